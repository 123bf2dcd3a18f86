package graph

import "fmt"

type symbolKey struct {
	name     string
	filePath string
}

// Build turns the symbols of one index run into a CallGraph.
//
// Every input symbol gets a 1-based ID in input order. Each raw callee name of
// a caller resolves to the first symbol, in input order, whose name equals the
// callee or ends with "."+callee and whose ID differs from the caller's. At most
// one edge is emitted per (caller, callee name); names with no match are recorded
// as unresolved. Resolution is purely name based, so a call may bind to an
// unrelated symbol sharing the name in another file.
//
// IDs used for edges come from the (name, file) lookup, so duplicate keys in
// the input collapse onto the last symbol carrying them.
func Build(symbols []Symbol) *CallGraph {
	g := &CallGraph{
		Symbols: make([]Symbol, len(symbols)),
		Edges:   []Edge{},
	}

	lookup := make(map[symbolKey]int, len(symbols))
	for i, s := range symbols {
		s.ID = i + 1
		g.Symbols[i] = s
		lookup[symbolKey{s.Name, s.FilePath}] = s.ID
	}

	candidates := candidateIndex(g.Symbols)

	for _, caller := range g.Symbols {
		fromID := lookup[symbolKey{caller.Name, caller.FilePath}]
		seen := make(map[string]bool, len(caller.Calls))

		for _, call := range caller.Calls {
			if seen[call] {
				continue
			}
			seen[call] = true

			resolved := false
			for _, pos := range candidates[call] {
				target := g.Symbols[pos]
				toID := lookup[symbolKey{target.Name, target.FilePath}]
				if toID == fromID {
					continue
				}
				g.Edges = append(g.Edges, Edge{From: fromID, To: toID})
				resolved = true
				break
			}
			if !resolved {
				g.Unresolved = append(g.Unresolved, UnresolvedCall{From: fromID, Name: call})
			}
		}
	}
	return g
}

// candidateIndex maps every name a call could use to reach a symbol (its full
// name and each suffix following a '.') to symbol positions in ascending order.
// Scanning a bucket front to back is the same as scanning the whole symbol
// list for exact or ".callee" suffix matches.
func candidateIndex(symbols []Symbol) map[string][]int {
	idx := make(map[string][]int, len(symbols))
	for pos, s := range symbols {
		idx[s.Name] = append(idx[s.Name], pos)
		for i := 0; i < len(s.Name); i++ {
			if s.Name[i] == '.' && i+1 < len(s.Name) {
				suffix := s.Name[i+1:]
				idx[suffix] = append(idx[suffix], pos)
			}
		}
	}
	return idx
}

// Find returns the first symbol with the given name and file path.
func (g *CallGraph) Find(name, filePath string) (Symbol, bool) {
	for _, s := range g.Symbols {
		if s.Name == name && s.FilePath == filePath {
			return s, true
		}
	}
	return Symbol{}, false
}

// Callees returns the symbols id calls directly, in symbol-table order.
func (g *CallGraph) Callees(id int) []Symbol {
	targets := make(map[int]bool)
	for _, e := range g.Edges {
		if e.From == id {
			targets[e.To] = true
		}
	}
	return g.Select(targets)
}

// Callers returns the symbols that call id directly, in symbol-table order.
func (g *CallGraph) Callers(id int) []Symbol {
	sources := make(map[int]bool)
	for _, e := range g.Edges {
		if e.To == id {
			sources[e.From] = true
		}
	}
	return g.Select(sources)
}

// TransitiveCallers returns the IDs of every symbol that reaches target through
// one or more call edges. target itself is never included.
func (g *CallGraph) TransitiveCallers(target int) map[int]bool {
	reverse := make(map[int][]int)
	for _, e := range g.Edges {
		reverse[e.To] = append(reverse[e.To], e.From)
	}

	callers := make(map[int]bool)
	visited := map[int]bool{target: true}
	queue := []int{target}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, caller := range reverse[current] {
			if visited[caller] {
				continue
			}
			visited[caller] = true
			callers[caller] = true
			queue = append(queue, caller)
		}
	}
	return callers
}

// Select returns the symbols whose IDs are in ids, in symbol-table order.
func (g *CallGraph) Select(ids map[int]bool) []Symbol {
	out := []Symbol{}
	for _, s := range g.Symbols {
		if ids[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that every edge endpoint names a known symbol.
func (g *CallGraph) Validate() error {
	known := make(map[int]bool, len(g.Symbols))
	for _, s := range g.Symbols {
		known[s.ID] = true
	}
	for i, e := range g.Edges {
		if !known[e.From] || !known[e.To] {
			return &DanglingEdgeError{Index: i, Edge: e}
		}
	}
	return nil
}

// DanglingEdgeError reports an edge whose endpoint is missing from Symbols.
type DanglingEdgeError struct {
	Index int
	Edge  Edge
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %d references unknown symbol (%d -> %d)", e.Index, e.Edge.From, e.Edge.To)
}
