package graph

import "codesense/internal/extractor"

// Symbol is a graph node: an extracted code unit with a project-local ID.
// IDs are assigned by Build and are only stable within one index run.
type Symbol struct {
	ID        int                  `json:"id"`
	Name      string               `json:"name"`
	FilePath  string               `json:"file_path"`
	Type      extractor.SymbolType `json:"type"`
	LineStart int                  `json:"line_start"`
	LineEnd   int                  `json:"line_end"`
	Code      string               `json:"code,omitempty"`
	Calls     []string             `json:"calls,omitempty"`
}

// Edge means From calls To.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// UnresolvedCall is a raw callee name that matched no indexed symbol,
// typically a builtin or a library function.
type UnresolvedCall struct {
	From int
	Name string
}

// CallGraph is the persisted per-project graph.
type CallGraph struct {
	Symbols []Symbol `json:"symbols"`
	Edges   []Edge   `json:"edges"`

	Unresolved []UnresolvedCall `json:"-"`
}
