// Package assistant answers free-form questions about a project and explains
// code snippets using the configured language model.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"codesense/internal/apperr"
	"codesense/internal/knowledge"
	"codesense/internal/vectorstore"
)

const (
	chatTopK          = 5
	referenceSnippetN = 200
)

const chatSystemPrompt = "You are an AI code assistant with full context of this repository. " +
	"Use the provided code snippets as context to answer the user's question. " +
	"If the provided context is insufficient or you're unsure about something, say so clearly. " +
	"Be concise but thorough in your explanations."

// Searcher finds the records nearest to a query vector.
type Searcher interface {
	Search(ctx context.Context, projectID int64, query []float32, k int) ([]vectorstore.Match, error)
}

type Reference struct {
	FilePath  string `json:"file_path"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Snippet   string `json:"snippet"`
}

type ChatResponse struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
}

type Assistant struct {
	embedder knowledge.Embedder
	search   Searcher
	llm      knowledge.Generator
	logger   *slog.Logger
}

func New(embedder knowledge.Embedder, search Searcher, llm knowledge.Generator, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assistant{
		embedder: embedder,
		search:   search,
		llm:      llm,
		logger:   logger.With("component", "assistant"),
	}
}

// Chat retrieves the snippets nearest to message and asks the language model
// to answer with them as context. A project that was never indexed still gets
// an answer, just without snippets.
func (a *Assistant) Chat(ctx context.Context, projectID int64, message string) (*ChatResponse, error) {
	if a.llm == nil {
		return nil, knowledge.ErrNoGenerator
	}

	vecs, err := a.embedder.Embed(ctx, []string{message})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding question: %v", apperr.ErrProviderFailure, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedding question: got %d vectors", apperr.ErrProviderFailure, len(vecs))
	}

	matches, err := a.search.Search(ctx, projectID, vecs[0], chatTopK)
	if err != nil {
		return nil, err
	}

	answer, err := a.llm.Generate(ctx, chatSystemPrompt, BuildChatPrompt(message, matches))
	if err != nil {
		a.logger.Error("chat generation failed", "project_id", projectID, "error", err)
		return nil, fmt.Errorf("%w: chat: %v", apperr.ErrProviderFailure, err)
	}

	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{
			FilePath:  m.Record.FilePath,
			LineStart: m.Record.LineStart,
			LineEnd:   m.Record.LineEnd,
			Snippet:   truncateRunes(m.Record.Code, referenceSnippetN),
		})
	}
	return &ChatResponse{Answer: answer, References: refs}, nil
}

// BuildChatPrompt renders the question followed by numbered snippets.
func BuildChatPrompt(question string, matches []vectorstore.Match) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User question: %s\n\n", question)

	if len(matches) == 0 {
		sb.WriteString("No relevant code snippets found in the repository.\n\n")
	} else {
		sb.WriteString("Relevant code snippets from the repository:\n\n")
		for i, m := range matches {
			fmt.Fprintf(&sb, "--- Snippet %d ---\n%s\n\n", i+1, snippet(m.Record))
		}
	}

	sb.WriteString("Please answer the user's question based on the provided context.")
	return sb.String()
}

func snippet(r vectorstore.Record) string {
	return fmt.Sprintf("File: %s\nSymbol: %s %s\nLines: %d-%d\nCode:\n%s\n",
		r.FilePath, r.Type, r.Name, r.LineStart, r.LineEnd, r.Code)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
