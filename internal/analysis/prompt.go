package analysis

import (
	"fmt"
	"strings"

	"codesense/internal/graph"
)

const (
	maxPromptDependencies = 10
	maxPromptAffected     = 15
)

const impactSystemPrompt = "You are a code architecture analyst. Analyze the potential impact of changing a code symbol. " +
	"Consider breaking changes, compatibility issues, test requirements, and refactoring needs. " +
	"Be concise but thorough. Structure your response with clear sections."

// BuildImpactPrompt renders the user message sent to the language model for
// an impact analysis. Long lists are cut and end with an "... and N more" line.
func BuildImpactPrompt(target graph.Symbol, affected, deps []graph.Symbol, change string) string {
	var sb strings.Builder

	sb.WriteString("Analyze the impact of changing the following symbol:\n\n")
	fmt.Fprintf(&sb, "Symbol: %s\n", target.Name)
	fmt.Fprintf(&sb, "Type: %s\n", target.Type)
	fmt.Fprintf(&sb, "File: %s\n\n", target.FilePath)

	if change != "" {
		fmt.Fprintf(&sb, "Proposed change: %s\n\n", change)
	}

	fmt.Fprintf(&sb, "Direct dependencies (symbols this calls): %d\n", len(deps))
	if len(deps) > 0 {
		sb.WriteString("Dependencies:\n")
		for _, d := range head(deps, maxPromptDependencies) {
			fmt.Fprintf(&sb, "  - %s (%s)\n", d.Name, d.FilePath)
		}
		if len(deps) > maxPromptDependencies {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(deps)-maxPromptDependencies)
		}
	}

	fmt.Fprintf(&sb, "\nAffected code (symbols that call this, directly or transitively): %d\n", len(affected))
	if len(affected) > 0 {
		sb.WriteString("Affected symbols:\n")
		for _, a := range head(affected, maxPromptAffected) {
			fmt.Fprintf(&sb, "  - %s (%s) in %s\n", a.Name, a.Type, a.FilePath)
		}
		if len(affected) > maxPromptAffected {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(affected)-maxPromptAffected)
		}
	}

	sb.WriteString("\nProvide an analysis of:\n")
	sb.WriteString("1. Potential breaking changes\n")
	sb.WriteString("2. Test coverage needs\n")
	sb.WriteString("3. Refactoring recommendations\n")
	sb.WriteString("4. Risk assessment")
	return sb.String()
}

func head(s []graph.Symbol, n int) []graph.Symbol {
	if len(s) > n {
		return s[:n]
	}
	return s
}
