package extractor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Language tags the source language of a file.
type Language string

const (
	Python     Language = "python"
	JavaScript Language = "javascript"
)

// ErrUnsupportedLanguage is returned for languages with no registered extractor.
var ErrUnsupportedLanguage = errors.New("unsupported language")

var extensions = map[string]Language{
	".py": Python,
	".js": JavaScript,
}

// LanguageForPath maps a file name to its language by extension.
func LanguageForPath(path string) (Language, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Extractor dispatches files to the extractor registered for their language.
type Extractor struct {
	langs map[Language]LanguageExtractor
}

// NewExtractor registers Python as a full extractor and JavaScript as a stub
// that recognizes the files but yields no symbols yet.
func NewExtractor() *Extractor {
	e := &Extractor{langs: make(map[Language]LanguageExtractor)}
	e.Register(&PythonExtractor{})
	e.Register(Unsupported(JavaScript))
	return e
}

// Register installs (or replaces) the extractor for its language.
func (e *Extractor) Register(le LanguageExtractor) {
	e.langs[le.Language()] = le
}

// Supports reports whether lang has a registered extractor, stub or not.
func (e *Extractor) Supports(lang Language) bool {
	_, ok := e.langs[lang]
	return ok
}

// ExtractFromFile reads path and extracts its symbols using lang's extractor.
func (e *Extractor) ExtractFromFile(path string, lang Language) ([]Symbol, error) {
	le, ok := e.langs[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	symbols, err := le.Extract(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	return symbols, nil
}

type unsupported struct {
	lang Language
}

// Unsupported returns a LanguageExtractor that accepts lang and extracts nothing.
func Unsupported(lang Language) LanguageExtractor {
	return unsupported{lang: lang}
}

func (u unsupported) Language() Language { return u.lang }

func (u unsupported) Extract([]byte) ([]Symbol, error) { return nil, nil }
