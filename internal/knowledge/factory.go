package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type EmbedderOptions struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string
}

// NewEmbedder builds the configured embedding provider. Missing credentials
// are reported here rather than on the first Embed call.
func NewEmbedder(ctx context.Context, opts EmbedderOptions) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "hashing"
	}

	var (
		e   Embedder
		err error
	)
	switch provider {
	case "hashing":
		e = NewHashingEmbedder(opts.Dimension)
	case "gemini":
		e, err = NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dimension)
	case "openai":
		e, err = NewOpenAIEmbedder(opts.APIKey, opts.Model, opts.Dimension, opts.BaseURL)
	case "ollama":
		e, err = NewOllamaEmbedder(opts.Model, opts.Dimension, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

type GeneratorOptions struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// NewGenerator builds the configured language model provider.
func NewGenerator(ctx context.Context, opts GeneratorOptions) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "openai"
	}

	var (
		g   Generator
		err error
	)
	switch provider {
	case "openai":
		g, err = NewOpenAIGenerator(opts)
	case "gemini":
		g, err = NewGeminiGenerator(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported generator provider: %s", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
