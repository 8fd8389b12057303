// Package canon rewrites parsed triples into their canonical short form and
// drops bookkeeping triples that do not represent entity-visible data.
package canon

import (
	"strings"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
)

// DefaultNoiseMarkers are bookkeeping terms that change on every edit or
// describe the ontology rather than the entity. Markers ending in '#' or '/'
// match a whole namespace.
var DefaultNoiseMarkers = []string{
	"schema:version",
	"schema:dateModified",
	"schema:softwareVersion",
	"cc:license",
	"wikibase:statements",
	"wikibase:sitelinks",
	"wikibase:identifiers",
	"http://www.w3.org/2002/07/owl#",
}

// TypeToken replaces rdf:type in predicate position
const TypeToken = "a"

// Canonicalizer rewrites absolute identifiers to prefixed names and drops
// noise triples. It holds only read-only state and is safe for concurrent use.
type Canonicalizer struct {
	table      *Table
	exact      map[string]bool
	namespaces []string
}

// New creates a canonicalizer. Markers may be absolute IRIs or prefixed names
// known to the table; unknown prefixed names are ignored.
func New(table *Table, markers []string) *Canonicalizer {
	if table == nil {
		table = NewTable(nil)
	}
	c := &Canonicalizer{
		table: table,
		exact: make(map[string]bool),
	}
	for _, m := range markers {
		iri := m
		if !strings.Contains(m, "://") {
			expanded, ok := table.Expand(m)
			if !ok {
				continue
			}
			iri = expanded
		}
		if strings.HasSuffix(iri, "#") || strings.HasSuffix(iri, "/") {
			c.namespaces = append(c.namespaces, iri)
		} else {
			c.exact[iri] = true
		}
	}
	return c
}

// Table returns the prefix table in use
func (c *Canonicalizer) Table() *Table {
	return c.table
}

// Canonicalize rewrites one parsed triple. It reports false when the triple
// is noise and must be dropped.
func (c *Canonicalizer) Canonicalize(t graph.Triple) (graph.Triple, bool) {
	if c.isNoise(t.S) || c.isNoise(t.P) || c.isNoise(t.O) {
		return graph.Triple{}, false
	}

	out := graph.Triple{S: c.Term(t.S), O: c.Term(t.O)}
	if t.P.IsIRI() && !t.P.Prefixed && t.P.Value == RDFType {
		out.P = graph.Name(TypeToken)
	} else {
		out.P = c.Term(t.P)
	}
	return out, true
}

// Term rewrites a single term. Literal datatypes are shortened too.
func (c *Canonicalizer) Term(t graph.Term) graph.Term {
	switch t.Kind {
	case graph.KindIRI:
		if t.Prefixed {
			return t
		}
		if short, ok := c.table.Shorten(t.Value); ok {
			return graph.Name(short)
		}
	case graph.KindLiteral:
		if t.Datatype != "" && strings.Contains(t.Datatype, "://") {
			if short, ok := c.table.Shorten(t.Datatype); ok {
				t.Datatype = short
			}
		}
	}
	return t
}

// Snapshot canonicalizes a parsed triple list into an entity snapshot,
// preserving document order.
func (c *Canonicalizer) Snapshot(entityID string, revisionID int64, triples []graph.Triple) *graph.EntitySnapshot {
	snap := graph.NewSnapshot(entityID, revisionID)
	for _, t := range triples {
		if ct, ok := c.Canonicalize(t); ok {
			snap.Triples.Add(ct)
		}
	}
	return snap
}

func (c *Canonicalizer) isNoise(t graph.Term) bool {
	if t.Kind != graph.KindIRI {
		return false
	}
	iri := t.Value
	if t.Prefixed {
		expanded, ok := c.table.Expand(t.Value)
		if !ok {
			return false
		}
		iri = expanded
	}
	if c.exact[iri] {
		return true
	}
	for _, ns := range c.namespaces {
		if strings.HasPrefix(iri, ns) {
			return true
		}
	}
	return false
}
