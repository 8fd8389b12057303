package graph

import "strings"

// TermKind classifies a graph term
type TermKind int

const (
	KindIRI     TermKind = iota // Absolute IRI or prefixed name after canonicalization
	KindBlank                   // Blank node
	KindLiteral                 // Literal with optional language or datatype
	KindSlot                    // Unresolved claim/reference placeholder
)

func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	case KindSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// Term is one position of a triple. Terms are values and are never mutated
// after construction.
//
// For IRIs, Value holds either the absolute IRI or, once canonicalized, the
// prefixed name; Prefixed reports which. For slots, Value holds the slot key.
type Term struct {
	Kind     TermKind `json:"kind"`
	Value    string   `json:"value"`
	Lang     string   `json:"lang,omitempty"`
	Datatype string   `json:"datatype,omitempty"`
	Prefixed bool     `json:"prefixed,omitempty"`
}

// IRI builds an absolute IRI term
func IRI(v string) Term {
	return Term{Kind: KindIRI, Value: v}
}

// Name builds a prefixed-name term such as wd:Q42
func Name(v string) Term {
	return Term{Kind: KindIRI, Value: v, Prefixed: true}
}

// Blank builds a blank node term; a leading "_:" is stripped
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(id, "_:")}
}

// Plain builds a literal without language or datatype
func Plain(v string) Term {
	return Term{Kind: KindLiteral, Value: v}
}

// LangString builds a language-tagged literal
func LangString(v, lang string) Term {
	return Term{Kind: KindLiteral, Value: v, Lang: lang}
}

// Typed builds a datatype-tagged literal. The datatype may be absolute or prefixed.
func Typed(v, datatype string) Term {
	return Term{Kind: KindLiteral, Value: v, Datatype: datatype}
}

// Slot builds a placeholder for a node whose identifier is not yet known
func Slot(key string) Term {
	return Term{Kind: KindSlot, Value: key}
}

// IsIRI reports whether the term is an IRI or prefixed name
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsLiteral reports whether the term is a literal
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsSlot reports whether the term is an unresolved placeholder
func (t Term) IsSlot() bool { return t.Kind == KindSlot }

// HasPrefix reports whether a prefixed-name term uses the given prefix label
func (t Term) HasPrefix(label string) bool {
	return t.Kind == KindIRI && t.Prefixed && strings.HasPrefix(t.Value, label+":")
}

// Local returns the local part of a prefixed name, or the whole value otherwise
func (t Term) Local() string {
	if t.Kind == KindIRI && t.Prefixed {
		if i := strings.IndexByte(t.Value, ':'); i >= 0 {
			return t.Value[i+1:]
		}
	}
	return t.Value
}

// key is the structural identity used for set membership
func (t Term) key() string {
	var b strings.Builder
	b.Grow(len(t.Value) + len(t.Lang) + len(t.Datatype) + 8)
	b.WriteByte(byte('0' + t.Kind))
	if t.Prefixed {
		b.WriteByte('p')
	}
	b.WriteByte(0)
	b.WriteString(t.Value)
	b.WriteByte(0)
	b.WriteString(t.Lang)
	b.WriteByte(0)
	b.WriteString(t.Datatype)
	return b.String()
}

// String renders the term for logs and diagnostics. It is not the SPARQL rendering.
func (t Term) String() string {
	switch t.Kind {
	case KindIRI:
		if t.Prefixed {
			return t.Value
		}
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindSlot:
		return "?" + t.Value
	case KindLiteral:
		s := `"` + t.Value + `"`
		if t.Lang != "" {
			return s + "@" + t.Lang
		}
		if t.Datatype != "" {
			return s + "^^" + t.Datatype
		}
		return s
	}
	return t.Value
}
