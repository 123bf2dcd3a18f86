package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"codesense/internal/apperr"
	"codesense/internal/graph"
	"codesense/internal/knowledge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	reply  string
	err    error
	system string
	user   string
}

func (f *fakeGenerator) Generate(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.reply, f.err
}

func newEngine(t *testing.T, g *graph.CallGraph, gen *fakeGenerator) *Engine {
	t.Helper()
	store := graph.NewStore(t.TempDir())
	if g != nil {
		require.NoError(t, store.Save(1, g))
	}
	var llm knowledge.Generator
	if gen != nil {
		llm = gen
	}
	return NewEngine(store, llm, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sym(name, file string, calls ...string) graph.Symbol {
	return graph.Symbol{Name: name, FilePath: file, Type: "function", Calls: calls}
}

func names(ss []graph.Symbol) []string {
	out := []string{}
	for _, s := range ss {
		out = append(out, s.Name)
	}
	return out
}

// X -> Y -> Z, W -> Z, Z -> helper
func chainGraph() *graph.CallGraph {
	return graph.Build([]graph.Symbol{
		sym("X", "x.py", "Y"),
		sym("Y", "y.py", "Z"),
		sym("Z", "z.py", "helper"),
		sym("W", "w.py", "Z"),
		sym("helper", "z.py"),
	})
}

func TestEngine_Usage(t *testing.T) {
	e := newEngine(t, chainGraph(), nil)

	u, err := e.Usage(context.Background(), 1, "Z", "z.py")
	require.NoError(t, err)
	assert.Equal(t, "Z", u.Symbol.Name)
	assert.Equal(t, []string{"helper"}, names(u.Calls))
	assert.Equal(t, []string{"Y", "W"}, names(u.CalledBy))

	leaf, err := e.Usage(context.Background(), 1, "X", "x.py")
	require.NoError(t, err)
	assert.Empty(t, leaf.CalledBy)
	assert.NotNil(t, leaf.CalledBy)

	_, err = e.Usage(context.Background(), 1, "Z", "other.py")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEngine_Impact(t *testing.T) {
	gen := &fakeGenerator{reply: "Low blast radius."}
	e := newEngine(t, chainGraph(), gen)

	r, err := e.Impact(context.Background(), 1, "Z", "z.py", "rename argument")
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "Y", "W"}, names(r.Affected), "transitive callers in symbol-table order")
	assert.Equal(t, 3, r.AffectedCount)
	assert.Equal(t, []string{"helper"}, names(r.Dependencies))
	assert.Equal(t, 1, r.DependencyCount)
	assert.Equal(t, RiskLow, r.RiskLevel)
	assert.Equal(t, "Low blast radius.", r.Analysis)

	assert.Equal(t, impactSystemPrompt, gen.system)
	assert.Contains(t, gen.user, "Proposed change: rename argument\n\n")
	assert.Contains(t, gen.user, "  - helper (z.py)\n")
	assert.Contains(t, gen.user, "  - W (function) in w.py\n")
	assert.NotContains(t, gen.user, "  - Z (function)")
}

func TestEngine_ImpactProviderFailure(t *testing.T) {
	e := newEngine(t, chainGraph(), &fakeGenerator{err: errors.New("timeout")})
	_, err := e.Impact(context.Background(), 1, "Z", "z.py", "")
	assert.ErrorIs(t, err, apperr.ErrProviderFailure)

	noLLM := newEngine(t, chainGraph(), nil)
	_, err = noLLM.Impact(context.Background(), 1, "Z", "z.py", "")
	assert.ErrorIs(t, err, knowledge.ErrNoGenerator)
}

func TestEngine_NoGraph(t *testing.T) {
	e := newEngine(t, nil, &fakeGenerator{reply: "x"})

	_, err := e.Usage(context.Background(), 1, "foo", "a.py")
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.Impact(context.Background(), 1, "foo", "a.py", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEngine_ImpactNotFoundWithoutModel(t *testing.T) {
	e := NewEngine(graph.NewStore(t.TempDir()), nil, nil)

	_, err := e.Impact(context.Background(), 1, "foo", "a.py", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrProviderFailure)

	indexed := newEngine(t, chainGraph(), nil)
	_, err = indexed.Impact(context.Background(), 1, "missing", "z.py", "")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	assert.NotErrorIs(t, err, knowledge.ErrNoGenerator)
}

func TestRiskLevel(t *testing.T) {
	tests := []struct {
		total int
		want  Risk
	}{
		{0, RiskLow},
		{4, RiskLow},
		{5, RiskMedium},
		{14, RiskMedium},
		{15, RiskHigh},
		{200, RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskLevel(tt.total), "total=%d", tt.total)
	}
}

func TestBuildImpactPrompt(t *testing.T) {
	target := graph.Symbol{Name: "save", Type: "method", FilePath: "models.py"}

	t.Run("Empty lists", func(t *testing.T) {
		p := BuildImpactPrompt(target, nil, nil, "")
		want := "Analyze the impact of changing the following symbol:\n\n" +
			"Symbol: save\nType: method\nFile: models.py\n\n" +
			"Direct dependencies (symbols this calls): 0\n" +
			"\nAffected code (symbols that call this, directly or transitively): 0\n" +
			"\nProvide an analysis of:\n1. Potential breaking changes\n2. Test coverage needs\n" +
			"3. Refactoring recommendations\n4. Risk assessment"
		assert.Equal(t, want, p)
	})

	t.Run("Truncation", func(t *testing.T) {
		var deps, affected []graph.Symbol
		for i := 0; i < 12; i++ {
			deps = append(deps, sym(fmt.Sprintf("d%d", i), "d.py"))
		}
		for i := 0; i < 20; i++ {
			affected = append(affected, sym(fmt.Sprintf("a%d", i), "a.py"))
		}
		p := BuildImpactPrompt(target, affected, deps, "")
		assert.Contains(t, p, "  - d9 (d.py)\n")
		assert.NotContains(t, p, "  - d10 (d.py)")
		assert.Contains(t, p, "  ... and 2 more\n")
		assert.Contains(t, p, "  - a14 (function) in a.py\n")
		assert.NotContains(t, p, "a15")
		assert.Contains(t, p, "  ... and 5 more\n")
		assert.True(t, strings.HasSuffix(p, "4. Risk assessment"))
	})
}

func TestImpact_ClosedUnderComposition(t *testing.T) {
	g := graph.Build([]graph.Symbol{
		sym("X", "m.py", "Y"),
		sym("Y", "m.py", "Z"),
		sym("Z", "m.py"),
	})
	e := newEngine(t, g, &fakeGenerator{reply: "ok"})

	r, err := e.Impact(context.Background(), 1, "Z", "m.py", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"X", "Y"}, names(r.Affected))
}
