package vectorstore

import "codesense/internal/extractor"

// Record is the metadata kept alongside each vector, aligned by position.
type Record struct {
	FilePath  string               `json:"file_path"`
	Name      string               `json:"name"`
	Type      extractor.SymbolType `json:"type"`
	LineStart int                  `json:"line_start"`
	LineEnd   int                  `json:"line_end"`
	Code      string               `json:"code"`
}

// Match is one search hit. Lower Distance means more similar.
type Match struct {
	Record   Record  `json:"metadata"`
	Distance float32 `json:"distance"`
}
