// Package graph holds the in-memory triple model shared by the parser,
// canonicalizer, differencer, resolver and emitter.
package graph

// EntitySnapshot is the canonical triple set of one entity at one revision
type EntitySnapshot struct {
	EntityID   string
	RevisionID int64
	Triples    *TripleSet
}

// NewSnapshot creates an empty snapshot
func NewSnapshot(entityID string, revisionID int64) *EntitySnapshot {
	return &EntitySnapshot{
		EntityID:   entityID,
		RevisionID: revisionID,
		Triples:    NewTripleSet(0),
	}
}

// Len returns the number of triples, tolerating a nil snapshot
func (s *EntitySnapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.Triples.Len()
}

// DeltaSet is the difference between two snapshots of the same entity
type DeltaSet struct {
	EntityID string
	Added    *TripleSet
	Removed  *TripleSet
}

// Empty reports whether nothing was added or removed
func (d *DeltaSet) Empty() bool {
	return d == nil || (d.Added.Len() == 0 && d.Removed.Len() == 0)
}

// Op is the direction of a change
type Op int

const (
	OpDelete Op = iota
	OpInsert
)

func (o Op) String() string {
	if o == OpInsert {
		return "INSERT"
	}
	return "DELETE"
}
