package graph

import "sort"

// NameCount is a callee name with the number of call sites that used it.
type NameCount struct {
	Name  string
	Count int
}

// TopUnresolved returns the n most frequent unresolved callee names,
// ties broken alphabetically.
func (g *CallGraph) TopUnresolved(n int) []NameCount {
	if g == nil || n <= 0 {
		return nil
	}
	counts := make(map[string]int)
	for _, u := range g.Unresolved {
		counts[u.Name]++
	}
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
