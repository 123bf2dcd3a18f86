package knowledge

import (
	"context"
	"errors"
	"fmt"

	"codesense/internal/apperr"
)

var (
	// ErrEmptyResponse is returned when a language model answers with no text.
	ErrEmptyResponse = errors.New("language model returned an empty response")

	// ErrNoGenerator is returned by features that need a language model when
	// none is configured.
	ErrNoGenerator = fmt.Errorf("%w: language model not configured", apperr.ErrProviderFailure)
)

// Embedder converts text to fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator produces text from a system instruction and a user message.
// Implementations never return an empty string with a nil error.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
