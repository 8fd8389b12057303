// Package reify attaches qualifier, reference and rank changes to concrete
// statement and reference nodes.
//
// Rows produced from full snapshots are already concrete and are only
// checked. Rows produced from a rendered diff carry slots, placeholders for
// statement or reference nodes whose identifiers the diff does not show.
// Slots resolve through three tiers in order: the local block held by the
// pass, the query service, and a re-fetched revision document. A slot that
// no tier can resolve drops the rows that use it and records a diagnostic.
package reify

import (
	"strings"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
)

// Row is one change: a triple to delete or insert
type Row struct {
	Op     graph.Op
	Triple graph.Triple
}

// Context is the claim-group state threaded through one pass in document
// order. A fresh Context is created for every revision pair.
type Context struct {
	Claim      graph.Term // current statement node or claim slot
	Reference  graph.Term // current reference node or reference slot
	InProgress bool       // a whole claim is being added or removed
}

// Observe advances the context past one row. It reports whether the row
// opens a whole-statement addition or removal.
func (c *Context) Observe(r Row) bool {
	t := r.Triple
	switch {
	case isStatement(t.S):
		c.Claim = t.S
	case isReference(t.S):
		c.Reference = t.S
	}
	if t.P == wasDerivedFrom {
		c.Reference = t.O
	}
	if t.P.HasPrefix("p") && isStatement(t.O) {
		c.Claim = t.O
		c.InProgress = true
		c.Reference = graph.Term{}
		return true
	}
	return false
}

// Reset clears the context at a claim-group boundary
func (c *Context) Reset() {
	*c = Context{}
}

var (
	wasDerivedFrom = graph.Name("prov:wasDerivedFrom")
	rankPredicate  = graph.Name("wikibase:rank")
	statementType  = graph.Name("wikibase:Statement")
	typePredicate  = graph.Name("a")
)

var rankTable = map[string]graph.Term{
	"preferred":  graph.Name("wikibase:PreferredRank"),
	"normal":     graph.Name("wikibase:NormalRank"),
	"deprecated": graph.Name("wikibase:DeprecatedRank"),
}

// Rank maps a displayed rank ("Preferred rank", "normal") to its rank term
func Rank(word string) (graph.Term, bool) {
	fields := strings.Fields(strings.ToLower(strings.Trim(word, `" `)))
	if len(fields) == 0 {
		return graph.Term{}, false
	}
	t, ok := rankTable[fields[0]]
	return t, ok
}

// isStatement reports whether t can stand for a statement node
func isStatement(t graph.Term) bool {
	return t.HasPrefix("s") || (t.IsSlot() && strings.HasPrefix(t.Value, claimSlotPrefix))
}

// isReference reports whether t can stand for a reference node
func isReference(t graph.Term) bool {
	return t.HasPrefix("ref") || (t.IsSlot() && strings.HasPrefix(t.Value, refSlotPrefix))
}

// needsStatement reports whether the predicate only applies to statement nodes
func needsStatement(p graph.Term) bool {
	return p.HasPrefix("pq") || p.HasPrefix("pqv") || p.HasPrefix("pqn") ||
		p.HasPrefix("ps") || p.HasPrefix("psv") || p.HasPrefix("psn") ||
		p == wasDerivedFrom || p == rankPredicate
}

// needsReference reports whether the predicate only applies to reference nodes
func needsReference(p graph.Term) bool {
	return p.HasPrefix("pr") || p.HasPrefix("prv") || p.HasPrefix("prn")
}
