// Package emit renders resolved triples as SPARQL update statements.
//
// Each triple becomes its own DELETE DATA or INSERT DATA statement so one
// malformed triple cannot block the others.
package emit

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

var (
	langTagPattern = regexp.MustCompile(`^[a-zA-Z]{1,8}(-[a-zA-Z0-9]{1,8})*$`)

	// characters not allowed inside an IRIREF
	iriForbidden = "<>\"{}|^`\\"

	literalEscaper = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)

	// datatypes whose zero offset is written as Z
	timeDatatypes = map[string]bool{
		"xsd:dateTime":    true,
		"xsd:date":        true,
		"xsd:time":        true,
		canon.XSDDateTime: true,
		canon.XSDDate:     true,
		canon.XSDTime:     true,
	}
)

// position is where a term is rendered
type position int

const (
	inData       position = iota // INSERT DATA or a bare triple
	inDeleteData                 // DELETE DATA, which forbids blank nodes
	inPattern                    // query pattern, slots become variables
)

// Emitter renders terms using a fixed prefix table. It holds no mutable
// state and is safe for concurrent use.
type Emitter struct {
	table  *canon.Table
	header string
}

// New creates an emitter. A nil table uses the default prefixes.
func New(table *canon.Table) *Emitter {
	if table == nil {
		table = canon.NewTable(nil)
	}
	var b strings.Builder
	for _, p := range table.Prefixes() {
		fmt.Fprintf(&b, "PREFIX %s: <%s>\n", p.Label, p.Namespace)
	}
	return &Emitter{table: table, header: b.String()}
}

// PrefixHeader returns the PREFIX declarations, one per line
func (e *Emitter) PrefixHeader() string {
	return e.header
}

// Emit renders the delete and insert sets. Each block holds one statement
// per line in set order and is empty when nothing in the set could be
// rendered. Triples that cannot be rendered are reported as format_error
// diagnostics and left out.
func (e *Emitter) Emit(pair model.RevisionPair, del, ins *graph.TripleSet) (deleteBlock, insertBlock string, diags []model.Diagnostic) {
	deleteBlock, diags = e.block(pair, graph.OpDelete, del, diags)
	insertBlock, diags = e.block(pair, graph.OpInsert, ins, diags)
	return deleteBlock, insertBlock, diags
}

func (e *Emitter) block(pair model.RevisionPair, op graph.Op, set *graph.TripleSet, diags []model.Diagnostic) (string, []model.Diagnostic) {
	lines := make([]string, 0, set.Len())
	for _, t := range set.Triples() {
		stmt, err := e.Statement(op, t)
		if err != nil {
			diags = append(diags, model.NewDiagnostic(model.DiagFormatError, pair, op.String()+" "+t.String(), err.Error()))
			continue
		}
		lines = append(lines, stmt)
	}
	return strings.Join(lines, "\n"), diags
}

// Statement renders one triple as an independently executable update
func (e *Emitter) Statement(op graph.Op, t graph.Triple) (string, error) {
	pos := inData
	if op == graph.OpDelete {
		pos = inDeleteData
	}
	body, err := e.triple(t, pos)
	if err != nil {
		return "", err
	}
	return op.String() + " DATA { " + body + " };", nil
}

// Triple renders "s p o ." with every position concrete
func (e *Emitter) Triple(t graph.Triple) (string, error) {
	return e.triple(t, inData)
}

// Pattern renders "s p o ." where slots become query variables
func (e *Emitter) Pattern(t graph.Triple) (string, error) {
	return e.triple(t, inPattern)
}

func (e *Emitter) triple(t graph.Triple, pos position) (string, error) {
	parts := make([]string, 3)
	for i, term := range []graph.Term{t.S, t.P, t.O} {
		s, err := e.term(term, pos)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return parts[0] + " " + parts[1] + " " + parts[2] + " .", nil
}

// Term renders a single concrete term
func (e *Emitter) Term(t graph.Term) (string, error) {
	return e.term(t, inData)
}

func (e *Emitter) term(t graph.Term, pos position) (string, error) {
	switch t.Kind {
	case graph.KindIRI:
		return e.iri(t)
	case graph.KindBlank:
		if t.Value == "" {
			return "", fmt.Errorf("%w: empty blank node label", model.ErrFormat)
		}
		if pos == inDeleteData {
			return "", fmt.Errorf("%w: blank node _:%s in DELETE DATA", model.ErrFormat, t.Value)
		}
		return "_:" + t.Value, nil
	case graph.KindLiteral:
		return e.literal(t)
	case graph.KindSlot:
		if pos == inPattern {
			return "?" + t.Value, nil
		}
		return "", fmt.Errorf("%w: unresolved node ?%s", model.ErrFormat, t.Value)
	}
	return "", fmt.Errorf("%w: unknown term kind %d", model.ErrFormat, t.Kind)
}

func (e *Emitter) iri(t graph.Term) (string, error) {
	if t.Prefixed {
		if t.Value == canon.TypeToken || e.table.Known(t.Value) {
			return t.Value, nil
		}
		return "", fmt.Errorf("%w: undeclared prefix in %s", model.ErrFormat, t.Value)
	}
	return e.absolute(t.Value)
}

// absolute renders an absolute IRI, shortened when a prefix applies
func (e *Emitter) absolute(iri string) (string, error) {
	if short, ok := e.table.Shorten(iri); ok {
		return short, nil
	}
	if iri == "" || !utf8.ValidString(iri) {
		return "", fmt.Errorf("%w: invalid IRI %q", model.ErrFormat, iri)
	}
	for _, r := range iri {
		if r <= 0x20 || strings.ContainsRune(iriForbidden, r) {
			return "", fmt.Errorf("%w: invalid character %q in IRI %s", model.ErrFormat, r, iri)
		}
	}
	return "<" + iri + ">", nil
}

func (e *Emitter) literal(t graph.Term) (string, error) {
	if !utf8.ValidString(t.Value) {
		return "", fmt.Errorf("%w: literal is not valid UTF-8", model.ErrFormat)
	}
	if t.Lang != "" {
		if !langTagPattern.MatchString(t.Lang) {
			return "", fmt.Errorf("%w: malformed language tag %q", model.ErrFormat, t.Lang)
		}
		return `"` + literalEscaper.Replace(t.Value) + `"@` + t.Lang, nil
	}
	if t.Datatype == "" {
		return `"` + literalEscaper.Replace(t.Value) + `"`, nil
	}

	value := t.Value
	if timeDatatypes[t.Datatype] {
		value = zulu(value)
	}
	var dt string
	if strings.Contains(t.Datatype, "://") {
		s, err := e.absolute(t.Datatype)
		if err != nil {
			return "", err
		}
		dt = s
	} else {
		if !e.table.Known(t.Datatype) {
			return "", fmt.Errorf("%w: undeclared datatype prefix in %s", model.ErrFormat, t.Datatype)
		}
		dt = t.Datatype
	}
	return `"` + literalEscaper.Replace(value) + `"^^` + dt, nil
}

// zulu rewrites a trailing zero offset to Z
func zulu(v string) string {
	if strings.HasSuffix(v, "+00:00") {
		return strings.TrimSuffix(v, "+00:00") + "Z"
	}
	return v
}
