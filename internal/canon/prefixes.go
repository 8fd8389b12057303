package canon

import (
	"regexp"
	"sort"
	"strings"
)

// Prefix binds a short label to a namespace IRI
type Prefix struct {
	Label     string `yaml:"label"`
	Namespace string `yaml:"namespace"`
}

// defaultPrefixes is the vocabulary of the Wikibase RDF dump format, in
// declaration order. Several namespaces share the http://www.wikidata.org/prop/
// stem, so matching always goes by longest namespace, never by this order.
var defaultPrefixes = []Prefix{
	{"wd", "http://www.wikidata.org/entity/"},
	{"wdt", "http://www.wikidata.org/prop/direct/"},
	{"wdtn", "http://www.wikidata.org/prop/direct-normalized/"},
	{"p", "http://www.wikidata.org/prop/"},
	{"ps", "http://www.wikidata.org/prop/statement/"},
	{"psv", "http://www.wikidata.org/prop/statement/value/"},
	{"psn", "http://www.wikidata.org/prop/statement/value-normalized/"},
	{"pq", "http://www.wikidata.org/prop/qualifier/"},
	{"pqv", "http://www.wikidata.org/prop/qualifier/value/"},
	{"pqn", "http://www.wikidata.org/prop/qualifier/value-normalized/"},
	{"pr", "http://www.wikidata.org/prop/reference/"},
	{"prv", "http://www.wikidata.org/prop/reference/value/"},
	{"prn", "http://www.wikidata.org/prop/reference/value-normalized/"},
	{"wdno", "http://www.wikidata.org/prop/novalue/"},
	{"s", "http://www.wikidata.org/entity/statement/"},
	{"ref", "http://www.wikidata.org/reference/"},
	{"v", "http://www.wikidata.org/value/"},
	{"data", "https://www.wikidata.org/wiki/Special:EntityData/"},
	{"wikibase", "http://wikiba.se/ontology#"},
	{"schema", "http://schema.org/"},
	{"skos", "http://www.w3.org/2004/02/skos/core#"},
	{"prov", "http://www.w3.org/ns/prov#"},
	{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{"rdfs", "http://www.w3.org/2000/01/rdf-schema#"},
	{"xsd", "http://www.w3.org/2001/XMLSchema#"},
	{"owl", "http://www.w3.org/2002/07/owl#"},
	{"cc", "http://creativecommons.org/ns#"},
	{"geo", "http://www.opengis.net/ont/geosparql#"},
	{"ontolex", "http://www.w3.org/ns/lemon/ontolex#"},
	{"dct", "http://purl.org/dc/terms/"},
}

// Well-known absolute IRIs
const (
	RDFType     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
	XSDDate     = "http://www.w3.org/2001/XMLSchema#date"
	XSDTime     = "http://www.w3.org/2001/XMLSchema#time"
	LangStr     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// DefaultPrefixes returns a copy of the built-in prefix declarations
func DefaultPrefixes() []Prefix {
	out := make([]Prefix, len(defaultPrefixes))
	copy(out, defaultPrefixes)
	return out
}

var localNamePattern = regexp.MustCompile(`^([A-Za-z0-9_]([A-Za-z0-9_.\-]*[A-Za-z0-9_\-])?)?$`)

// Table resolves IRIs to prefixed names with longest-namespace-match semantics.
// A Table is read-only after construction and safe for concurrent use.
type Table struct {
	declared []Prefix          // declaration order, for PREFIX headers
	byLength []Prefix          // longest namespace first, for matching
	byLabel  map[string]string // label -> namespace
}

// NewTable builds a table from the defaults plus extra label -> namespace pairs.
// Extra entries override defaults with the same label.
func NewTable(extra map[string]string) *Table {
	t := &Table{byLabel: make(map[string]string)}

	for _, p := range defaultPrefixes {
		if ns, ok := extra[p.Label]; ok {
			p.Namespace = ns
		}
		t.declared = append(t.declared, p)
		t.byLabel[p.Label] = p.Namespace
	}

	labels := make([]string, 0, len(extra))
	for label := range extra {
		if _, known := t.byLabel[label]; !known {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	for _, label := range labels {
		t.declared = append(t.declared, Prefix{Label: label, Namespace: extra[label]})
		t.byLabel[label] = extra[label]
	}

	t.byLength = make([]Prefix, len(t.declared))
	copy(t.byLength, t.declared)
	sort.SliceStable(t.byLength, func(i, j int) bool {
		return len(t.byLength[i].Namespace) > len(t.byLength[j].Namespace)
	})

	return t
}

// Shorten rewrites an absolute IRI to its prefixed name. It reports false when
// no namespace matches or the remainder is not a legal local name.
func (t *Table) Shorten(iri string) (string, bool) {
	for _, p := range t.byLength {
		if !strings.HasPrefix(iri, p.Namespace) {
			continue
		}
		local := iri[len(p.Namespace):]
		if !localNamePattern.MatchString(local) {
			return "", false
		}
		return p.Label + ":" + local, true
	}
	return "", false
}

// Expand rewrites a prefixed name to its absolute IRI
func (t *Table) Expand(name string) (string, bool) {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return "", false
	}
	ns, ok := t.byLabel[name[:i]]
	if !ok {
		return "", false
	}
	return ns + name[i+1:], true
}

// Known reports whether a prefixed name uses a declared label
func (t *Table) Known(name string) bool {
	i := strings.IndexByte(name, ':')
	if i <= 0 {
		return false
	}
	_, ok := t.byLabel[name[:i]]
	return ok
}

// Prefixes returns the declarations in declaration order
func (t *Table) Prefixes() []Prefix {
	out := make([]Prefix, len(t.declared))
	copy(out, t.declared)
	return out
}
