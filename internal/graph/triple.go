package graph

// Triple is a (subject, predicate, object) statement
type Triple struct {
	S Term `json:"s"`
	P Term `json:"p"`
	O Term `json:"o"`
}

// T is a shorthand constructor
func T(s, p, o Term) Triple {
	return Triple{S: s, P: p, O: o}
}

// Key returns the structural identity of the triple. Two triples are equal
// iff their keys are equal: literal value, language and datatype all count.
func (t Triple) Key() string {
	return t.S.key() + "\x01" + t.P.key() + "\x01" + t.O.key()
}

// HasSlot reports whether any position is an unresolved placeholder
func (t Triple) HasSlot() bool {
	return t.S.IsSlot() || t.P.IsSlot() || t.O.IsSlot()
}

func (t Triple) String() string {
	return t.S.String() + " " + t.P.String() + " " + t.O.String() + " ."
}

// TripleSet is an insertion-ordered set of triples with hashed membership
type TripleSet struct {
	order []Triple
	index map[string]int
}

// NewTripleSet creates an empty set with room for n triples
func NewTripleSet(n int) *TripleSet {
	return &TripleSet{
		order: make([]Triple, 0, n),
		index: make(map[string]int, n),
	}
}

// Add inserts the triple unless already present and reports whether it was new
func (s *TripleSet) Add(t Triple) bool {
	k := t.Key()
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.order)
	s.order = append(s.order, t)
	return true
}

// Contains reports structural membership
func (s *TripleSet) Contains(t Triple) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[t.Key()]
	return ok
}

// Len returns the number of triples
func (s *TripleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Triples returns the triples in insertion order. The slice must not be modified.
func (s *TripleSet) Triples() []Triple {
	if s == nil {
		return nil
	}
	return s.order
}

// Minus returns the triples of s not in other, in the iteration order of s
func (s *TripleSet) Minus(other *TripleSet) *TripleSet {
	out := NewTripleSet(0)
	for _, t := range s.Triples() {
		if !other.Contains(t) {
			out.Add(t)
		}
	}
	return out
}

// Match returns every triple matching the pattern; zero-valued terms are wildcards
func (s *TripleSet) Match(subj, pred, obj Term) []Triple {
	var out []Triple
	for _, t := range s.Triples() {
		if subj != (Term{}) && t.S != subj {
			continue
		}
		if pred != (Term{}) && t.P != pred {
			continue
		}
		if obj != (Term{}) && t.O != obj {
			continue
		}
		out = append(out, t)
	}
	return out
}
