package assistant

import (
	"context"
	"fmt"
	"strings"

	"codesense/internal/apperr"
	"codesense/internal/knowledge"
)

const explainSystemPrompt = "You are a helpful code explainer. Explain the provided code to an intermediate developer. " +
	"Mention the code's purpose, how it works, its complexity level, and any potential pitfalls or issues. " +
	"Be clear and concise."

type ExplainRequest struct {
	Code     string `json:"code"`
	FilePath string `json:"file_path,omitempty"`
	Language string `json:"language,omitempty"`
}

type ExplainResponse struct {
	Explanation string   `json:"explanation"`
	Complexity  string   `json:"complexity"`
	Issues      []string `json:"issues"`
}

// Explain asks the language model to explain req.Code and derives a rough
// complexity label and issue flag from the answer text.
func (a *Assistant) Explain(ctx context.Context, req ExplainRequest) (*ExplainResponse, error) {
	if a.llm == nil {
		return nil, knowledge.ErrNoGenerator
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: code is empty", apperr.ErrInputMismatch)
	}

	text, err := a.llm.Generate(ctx, explainSystemPrompt, BuildExplainPrompt(req))
	if err != nil {
		a.logger.Error("explain generation failed", "error", err)
		return nil, fmt.Errorf("%w: explain: %v", apperr.ErrProviderFailure, err)
	}

	return &ExplainResponse{
		Explanation: text,
		Complexity:  complexityOf(text),
		Issues:      issuesOf(text),
	}, nil
}

func BuildExplainPrompt(req ExplainRequest) string {
	var sb strings.Builder
	if req.FilePath != "" {
		fmt.Fprintf(&sb, "File: %s\n", req.FilePath)
	}
	if req.Language != "" {
		fmt.Fprintf(&sb, "Language: %s\n", req.Language)
	}
	fmt.Fprintf(&sb, "\nCode to explain:\n```\n%s\n```\n\n", req.Code)
	sb.WriteString("Please provide:\n")
	sb.WriteString("1. A clear explanation of what this code does\n")
	sb.WriteString("2. The complexity level (low/medium/high)\n")
	sb.WriteString("3. Any potential issues or pitfalls")
	return sb.String()
}

func complexityOf(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "complexity: low") || strings.Contains(lower, "low complexity"):
		return "low"
	case strings.Contains(lower, "complexity: high") || strings.Contains(lower, "high complexity"):
		return "high"
	default:
		return "medium"
	}
}

func issuesOf(text string) []string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"issue", "pitfall", "problem"} {
		if strings.Contains(lower, marker) {
			return []string{"See explanation for details"}
		}
	}
	return []string{}
}
