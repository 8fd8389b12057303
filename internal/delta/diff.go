// Package delta computes the added and removed triples between two
// canonical snapshots of one entity.
package delta

import (
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// vocabularyPrefixes name property vocabulary nodes. The dump serializes
// their declarations next to the entity, but they are not its state.
var vocabularyPrefixes = []string{
	"wdt", "wdtn", "p", "ps", "psv", "psn", "pq", "pqv", "pqn", "pr", "prv", "prn", "wdno",
}

// Diff returns new − old as Added (in the order of new) and old − new as
// Removed (in the order of old). Triples are compared structurally, so a
// literal whose language or datatype changed shows up on both sides.
// Out-of-scope triples are dropped before comparison.
func Diff(oldSnap, newSnap *graph.EntitySnapshot, entityID string) *graph.DeltaSet {
	o := scoped(triplesOf(oldSnap), entityID)
	n := scoped(triplesOf(newSnap), entityID)
	return &graph.DeltaSet{
		EntityID: entityID,
		Added:    n.Minus(o),
		Removed:  o.Minus(n),
	}
}

// InScope reports whether a canonical triple describes entityID's own state.
// Subjects that are another entity, or a property vocabulary node, belong to
// shared nodes pulled in by serialization.
func InScope(t graph.Triple, entityID string) bool {
	s := t.S
	if !s.IsIRI() || !s.Prefixed {
		return true
	}
	if s.HasPrefix("wd") {
		local := s.Local()
		return !model.IsEntityID(local) || local == entityID
	}
	for _, label := range vocabularyPrefixes {
		if s.HasPrefix(label) {
			return false
		}
	}
	return true
}

func scoped(set *graph.TripleSet, entityID string) *graph.TripleSet {
	out := graph.NewTripleSet(set.Len())
	for _, t := range set.Triples() {
		if InScope(t, entityID) {
			out.Add(t)
		}
	}
	return out
}

func triplesOf(s *graph.EntitySnapshot) *graph.TripleSet {
	if s == nil {
		return nil
	}
	return s.Triples
}
