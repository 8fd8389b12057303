package snapshot

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// Section is the part of an entity a rendered diff block belongs to
type Section int

const (
	SectionClaim Section = iota
	SectionQualifier
	SectionReference
	SectionRank
	SectionTerm
)

func (s Section) String() string {
	switch s {
	case SectionClaim:
		return "claim"
	case SectionQualifier:
		return "qualifier"
	case SectionReference:
		return "reference"
	case SectionRank:
		return "rank"
	case SectionTerm:
		return "term"
	}
	return "unknown"
}

// Header is the parsed diff-lineno row that opens a block
type Header struct {
	Section  Section
	Property string    // property id for claims, label|description|aliases for terms
	Claim    ObjectRef // main value named in qualifier, reference and rank headers
	Lang     string    // language code for terms
}

// CompareRow is one removed or added value of the rendered diff
type CompareRow struct {
	Header
	Op     graph.Op
	Object ObjectRef
}

var (
	propertyHref = regexp.MustCompile(`/wiki/Property:(P[1-9][0-9]*)`)
	entityHref   = regexp.MustCompile(`/wiki/(?:(?:Item|Lexeme|Property):)?([QLP][1-9][0-9]*)$`)
	numberText   = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)
)

// ParseCompare reads the HTML table produced by the compare API. Rows are
// returned in document order. Rows that cannot be attributed to a header are
// skipped; a document without any diff table is a parse error.
func ParseCompare(doc string) ([]CompareRow, error) {
	root, err := html.Parse(strings.NewReader("<table>" + doc + "</table>"))
	if err != nil {
		return nil, fmt.Errorf("%w: compare html: %v", model.ErrParse, err)
	}

	trs := findAll(root, func(n *html.Node) bool { return isElement(n, "tr") })
	if len(trs) == 0 && strings.TrimSpace(doc) != "" {
		return nil, fmt.Errorf("%w: compare html has no rows", model.ErrParse)
	}

	var (
		rows   []CompareRow
		header *Header
	)
	for _, tr := range trs {
		if lineno := findFirst(tr, classed("td", "diff-lineno")); lineno != nil {
			header = parseHeader(tr)
			continue
		}
		if header == nil {
			continue
		}
		if cell := findFirst(tr, classed("td", "diff-deletedline")); cell != nil {
			if obj, ok := parseCell(cell, "del", *header); ok {
				rows = append(rows, CompareRow{Header: *header, Op: graph.OpDelete, Object: obj})
			}
		}
		if cell := findFirst(tr, classed("td", "diff-addedline")); cell != nil {
			if obj, ok := parseCell(cell, "ins", *header); ok {
				rows = append(rows, CompareRow{Header: *header, Op: graph.OpInsert, Object: obj})
			}
		}
	}
	return rows, nil
}

// parseHeader reads "Property / P31", "Property / P31: human / qualifier",
// "label / en" style headers. Both sides of the row carry the same text, the
// first non-empty cell wins.
func parseHeader(tr *html.Node) *Header {
	var cell *html.Node
	for _, td := range findAll(tr, classed("td", "diff-lineno")) {
		if strings.TrimSpace(textOf(td)) != "" {
			cell = td
			break
		}
	}
	if cell == nil {
		return nil
	}

	parts := splitHeader(textOf(cell))
	h := &Header{}

	links := findAll(cell, func(n *html.Node) bool { return isElement(n, "a") && attr(n, "href") != "" })
	for _, a := range links {
		if m := propertyHref.FindStringSubmatch(attr(a, "href")); m != nil && h.Property == "" {
			h.Property = m[1]
			continue
		}
		if h.Property != "" && h.Claim.Value == "" {
			if ref, ok := linkRef(a); ok {
				h.Claim = ref
			}
		}
	}

	if h.Property != "" {
		h.Section = SectionClaim
		for _, p := range parts[1:] {
			switch strings.ToLower(p) {
			case "qualifier", "qualifiers":
				h.Section = SectionQualifier
			case "reference", "references":
				h.Section = SectionReference
			case "rank":
				h.Section = SectionRank
			}
		}
		if h.Claim.Value == "" && len(parts) > 1 {
			if _, after, found := strings.Cut(parts[1], ":"); found {
				h.Claim = TextRef(strings.TrimSpace(after))
			}
		}
		return h
	}

	if len(parts) == 0 {
		return nil
	}
	switch kind := strings.ToLower(strings.ReplaceAll(parts[0], " ", "")); kind {
	case "label", "description", "aliases":
		h.Section = SectionTerm
		h.Property = kind
		if len(parts) > 1 {
			h.Lang = strings.ReplaceAll(parts[1], "_", "-")
		}
		return h
	}
	return nil
}

// parseCell extracts the changed value of a deleted or added cell. Partial
// changes are wrapped in del/ins.diffchange, full-line changes are not.
func parseCell(cell *html.Node, mark string, h Header) (ObjectRef, bool) {
	value := findFirst(cell, classed(mark, "diffchange"))
	if value == nil {
		value = cell
	}
	removeDetails(value)
	if strings.TrimSpace(textOf(value)) == "" {
		return ObjectRef{}, false
	}

	switch h.Section {
	case SectionQualifier, SectionReference:
		snaks := parseSnaks(value)
		if len(snaks) == 0 {
			return ObjectRef{}, false
		}
		return GroupRef(snaks...), true
	case SectionTerm:
		return TextRef(strings.TrimSpace(textOf(value))), true
	case SectionRank:
		return TextRef(strings.TrimSpace(textOf(value))), true
	}
	return scalarRef(value), true
}

// parseSnaks reads the property/value spans of a qualifier or reference
// block. Each span holds a property link followed by its value.
func parseSnaks(value *html.Node) []Snak {
	var snaks []Snak
	for _, span := range findAll(value, func(n *html.Node) bool { return isElement(n, "span") }) {
		var prop *html.Node
		for _, a := range findAll(span, func(n *html.Node) bool { return isElement(n, "a") }) {
			if propertyHref.MatchString(attr(a, "href")) {
				prop = a
				break
			}
		}
		if prop == nil || !directChildOfSnak(span, prop) {
			continue
		}
		pid := propertyHref.FindStringSubmatch(attr(prop, "href"))[1]

		rest := siblingsAfter(span, prop)
		if rest == nil {
			continue
		}
		snaks = append(snaks, Snak{Property: pid, Value: scalarRef(rest)})
	}
	return snaks
}

// scalarRef classifies a value node into the tagged variant
func scalarRef(n *html.Node) ObjectRef {
	if b := findFirst(n, classed("b", "wb-time-rendered")); b != nil {
		return TimeRef(strings.TrimSpace(textOf(b)))
	}
	if b := findFirst(n, classed("b", "wb-quantity-rendered")); b != nil {
		v := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(textOf(b)))
		if numberText.MatchString(v) {
			return ObjectRef{Kind: ObjectText, Value: v, Datatype: "xsd:decimal"}
		}
		return TextRef(strings.TrimSpace(textOf(b)))
	}
	if span := findFirst(n, classed("span", "wb-monolingualtext-value")); span != nil {
		return ObjectRef{Kind: ObjectText, Value: strings.TrimSpace(textOf(span)), Lang: attr(span, "lang")}
	}
	if a := findFirst(n, func(n *html.Node) bool { return isElement(n, "a") && attr(n, "href") != "" }); a != nil {
		if classed("a", "wb-external-id")(a) {
			return TextRef(strings.TrimSpace(textOf(a)))
		}
		if ref, ok := linkRef(a); ok {
			return ref
		}
	}
	text := strings.TrimSpace(textOf(n))
	text = strings.TrimSpace(strings.TrimPrefix(text, ":"))
	return TextRef(text)
}

// linkRef maps an entity or external link to an IRI object
func linkRef(a *html.Node) (ObjectRef, bool) {
	href := attr(a, "href")
	if m := entityHref.FindStringSubmatch(href); m != nil {
		return IRIRef("wd:" + m[1]), true
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return IRIRef(href), true
	}
	return ObjectRef{}, false
}

// removeDetails drops the expanded wb-details tables that time values carry
func removeDetails(n *html.Node) {
	for _, t := range findAll(n, classed("table", "wb-details")) {
		if t.Parent != nil {
			t.Parent.RemoveChild(t)
		}
	}
}

func splitHeader(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// directChildOfSnak reports whether prop belongs to span rather than to a
// nested span, so each pair is read exactly once.
func directChildOfSnak(span, prop *html.Node) bool {
	for p := prop.Parent; p != nil; p = p.Parent {
		if p == span {
			return true
		}
		if isElement(p, "span") {
			return false
		}
	}
	return false
}

// siblingsAfter wraps the nodes following prop inside span into a detached
// container, so the value can be classified on its own.
func siblingsAfter(span, prop *html.Node) *html.Node {
	anchor := prop
	for anchor.Parent != nil && anchor.Parent != span {
		anchor = anchor.Parent
	}
	box := &html.Node{Type: html.ElementNode, Data: "span"}
	for s := anchor.NextSibling; s != nil; s = s.NextSibling {
		box.AppendChild(cloneNode(s))
	}
	if strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(textOf(box)), ":")) == "" {
		return nil
	}
	return box
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{Type: n.Type, DataAtom: n.DataAtom, Data: n.Data, Namespace: n.Namespace}
	c.Attr = append(c.Attr, n.Attr...)
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func classed(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if !isElement(n, tag) {
			return false
		}
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == class {
				return true
			}
		}
		return false
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findFirst(c, match); f != nil {
			return f
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
