package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// ObjectKind tags the variant held by an ObjectRef
type ObjectKind int

const (
	ObjectIRI ObjectKind = iota
	ObjectTime
	ObjectText
	ObjectGroup
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectIRI:
		return "iri"
	case ObjectTime:
		return "time"
	case ObjectText:
		return "text"
	case ObjectGroup:
		return "group"
	}
	return "unknown"
}

// ObjectRef is one value read from a rendered diff cell.
//
//   - ObjectIRI: Value is a prefixed name (wd:Q5) or an absolute IRI
//   - ObjectTime: Value is the rendered date as displayed (11 March 1952)
//   - ObjectText: Value is the displayed text, Lang set for monolingual text
//     and Datatype set for quantities
//   - ObjectGroup: Snaks holds (property, value) pairs of a qualifier or
//     reference block
type ObjectRef struct {
	Kind     ObjectKind
	Value    string
	Lang     string
	Datatype string
	Snaks    []Snak
}

// Snak is one (property, value) pair inside a nested group
type Snak struct {
	Property string // property id, e.g. P813
	Value    ObjectRef
}

// IRIRef builds an IRI object
func IRIRef(v string) ObjectRef { return ObjectRef{Kind: ObjectIRI, Value: v} }

// TimeRef builds a rendered-time object
func TimeRef(v string) ObjectRef { return ObjectRef{Kind: ObjectTime, Value: v} }

// TextRef builds a plain-text object
func TextRef(v string) ObjectRef { return ObjectRef{Kind: ObjectText, Value: v} }

// GroupRef builds a nested group object
func GroupRef(snaks ...Snak) ObjectRef { return ObjectRef{Kind: ObjectGroup, Snaks: snaks} }

// Term converts a scalar object into a graph term. Rendered times are parsed
// back into xsd:dateTime literals; unparseable dates wrap model.ErrFormat.
// Groups have no single term and always fail.
func (o ObjectRef) Term() (graph.Term, error) {
	switch o.Kind {
	case ObjectIRI:
		if strings.Contains(o.Value, "://") {
			return graph.IRI(o.Value), nil
		}
		return graph.Name(o.Value), nil
	case ObjectTime:
		ts, err := ParseRenderedTime(o.Value)
		if err != nil {
			return graph.Term{}, err
		}
		return graph.Typed(ts, "xsd:dateTime"), nil
	case ObjectText:
		switch {
		case o.Lang != "":
			return graph.LangString(o.Value, o.Lang), nil
		case o.Datatype != "":
			return graph.Typed(o.Value, o.Datatype), nil
		default:
			return graph.Plain(o.Value), nil
		}
	}
	return graph.Term{}, fmt.Errorf("%w: %s object has no single term", model.ErrFormat, o.Kind)
}

var (
	renderedLayouts = []string{"2 January 2006", "January 2 2006", "January 2006", "2006"}
	bceYear         = regexp.MustCompile(`^(\d{1,9})\s*(?:BCE|BC)$`)
	ceSuffix        = regexp.MustCompile(`\s*(?:CE|AD)$`)
)

// ParseRenderedTime turns a displayed date into the xsd:dateTime lexical form
// used by the entity dumps: day precision renders as 1952-03-11T00:00:00Z,
// coarser precisions default missing parts to 01. Years before the common
// era render with a leading minus, e.g. 500 BCE as -0500-01-01T00:00:00Z.
func ParseRenderedTime(s string) (string, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if m := bceYear.FindStringSubmatch(s); m != nil {
		year, err := strconv.Atoi(m[1])
		if err != nil || year == 0 {
			return "", fmt.Errorf("%w: date %q", model.ErrFormat, s)
		}
		return fmt.Sprintf("-%04d-01-01T00:00:00Z", year), nil
	}
	s = ceSuffix.ReplaceAllString(s, "")
	for _, layout := range renderedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format("2006-01-02T15:04:05Z"), nil
		}
	}
	return "", fmt.Errorf("%w: date %q", model.ErrFormat, s)
}
