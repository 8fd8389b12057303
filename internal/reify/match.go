package reify

import "github.com/sinaazimii/Wikidata-tools/internal/graph"

// Bindings maps slot keys to the terms they resolved to
type Bindings map[string]graph.Term

// Match finds the first solution of the patterns against set, in set order,
// and returns the binding of the slot named want. Slots act as variables.
func Match(set *graph.TripleSet, patterns []graph.Triple, want string) (graph.Term, bool) {
	if set.Len() == 0 {
		return graph.Term{}, false
	}
	b, ok := solve(set, patterns, Bindings{})
	if !ok {
		return graph.Term{}, false
	}
	t, ok := b[want]
	return t, ok
}

func solve(set *graph.TripleSet, patterns []graph.Triple, b Bindings) (Bindings, bool) {
	if len(patterns) == 0 {
		return b, true
	}
	p := substitute(patterns[0], b)
	for _, cand := range set.Match(wildcard(p.S), wildcard(p.P), wildcard(p.O)) {
		next, ok := bind(p, cand, b)
		if !ok {
			continue
		}
		if out, ok := solve(set, patterns[1:], next); ok {
			return out, true
		}
	}
	return nil, false
}

// bind extends b with the slot values of p seen in cand
func bind(p, cand graph.Triple, b Bindings) (Bindings, bool) {
	next := make(Bindings, len(b)+2)
	for k, v := range b {
		next[k] = v
	}
	pairs := [3][2]graph.Term{{p.S, cand.S}, {p.P, cand.P}, {p.O, cand.O}}
	for _, pv := range pairs {
		pat, val := pv[0], pv[1]
		if !pat.IsSlot() {
			continue
		}
		if prev, ok := next[pat.Value]; ok && prev != val {
			return nil, false
		}
		next[pat.Value] = val
	}
	return next, true
}

// substitute replaces bound slots in t
func substitute(t graph.Triple, b Bindings) graph.Triple {
	return graph.T(subst(t.S, b), subst(t.P, b), subst(t.O, b))
}

func subst(t graph.Term, b Bindings) graph.Term {
	if t.IsSlot() {
		if v, ok := b[t.Value]; ok {
			return v
		}
	}
	return t
}

func wildcard(t graph.Term) graph.Term {
	if t.IsSlot() {
		return graph.Term{}
	}
	return t
}
