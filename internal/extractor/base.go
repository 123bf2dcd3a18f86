package extractor

// SymbolType classifies an extracted code unit.
type SymbolType string

const (
	Function      SymbolType = "function"
	AsyncFunction SymbolType = "async_function"
	Class         SymbolType = "class"
	Method        SymbolType = "method"
	AsyncMethod   SymbolType = "async_method"
)

// Symbol is one function, class or method pulled out of a source file.
// Calls holds raw callee names as written at the call sites: the bare name for
// direct calls and the attribute name for method calls. They are not resolved.
type Symbol struct {
	Type      SymbolType `json:"type"`
	Name      string     `json:"name"`
	LineStart int        `json:"line_start"`
	LineEnd   int        `json:"line_end"`
	Code      string     `json:"code"`
	Calls     []string   `json:"calls"`
}

// LanguageExtractor parses source text of a single language.
type LanguageExtractor interface {
	Language() Language
	Extract(source []byte) ([]Symbol, error)
}
