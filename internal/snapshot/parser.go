// Package snapshot turns serialized entity documents into triples. The main
// path decodes Turtle snapshots; ParseCompare reads the rendered revision
// diff when full snapshots cannot be obtained.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/knakk/rdf"

	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// Document is one decoded snapshot before canonicalization
type Document struct {
	Triples       []graph.Triple
	Substitutions []Substitution
}

// Parse decodes a Turtle document. BCE timestamps are rewritten before
// decoding and restored afterwards. Empty input yields an empty document.
// Any decoding failure wraps model.ErrParse; no partial result is returned.
func Parse(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Document{}, nil
	}

	fixed, subs := PreprocessBCE(raw)

	dec := rdf.NewTripleDecoder(bytes.NewReader(fixed), rdf.Turtle)
	var triples []graph.Triple
	for {
		tr, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
		}
		t, err := convertTriple(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrParse, err)
		}
		triples = append(triples, t)
	}

	RestoreBCE(triples, subs)

	return &Document{Triples: triples, Substitutions: subs}, nil
}

func convertTriple(tr rdf.Triple) (graph.Triple, error) {
	s, err := convertTerm(tr.Subj)
	if err != nil {
		return graph.Triple{}, fmt.Errorf("subject: %w", err)
	}
	p, err := convertTerm(tr.Pred)
	if err != nil {
		return graph.Triple{}, fmt.Errorf("predicate: %w", err)
	}
	o, err := convertTerm(tr.Obj)
	if err != nil {
		return graph.Triple{}, fmt.Errorf("object: %w", err)
	}
	return graph.T(s, p, o), nil
}

func convertTerm(t rdf.Term) (graph.Term, error) {
	switch t.Type() {
	case rdf.TermIRI:
		return graph.IRI(t.String()), nil
	case rdf.TermBlank:
		return graph.Blank(t.String()), nil
	case rdf.TermLiteral:
		lit, ok := t.(rdf.Literal)
		if !ok {
			return graph.Term{}, fmt.Errorf("unexpected literal type %T", t)
		}
		if lang := lit.Lang(); lang != "" {
			return graph.LangString(lit.String(), lang), nil
		}
		switch dt := lit.DataType.String(); dt {
		case "", canon.XSDString, canon.LangStr:
			return graph.Plain(lit.String()), nil
		default:
			return graph.Typed(lit.String(), dt), nil
		}
	}
	return graph.Term{}, fmt.Errorf("unsupported term %q", t.String())
}
