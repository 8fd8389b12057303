package emit

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

var pair = model.RevisionPair{EntityID: "Q42", OldRevID: 1, NewRevID: 2}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func set(triples ...graph.Triple) *graph.TripleSet {
	s := graph.NewTripleSet(len(triples))
	for _, t := range triples {
		s.Add(t)
	}
	return s
}

func TestEmit_BirthDateInsert(t *testing.T) {
	e := New(nil)
	added := set(graph.T(graph.Name("wd:Q42"), graph.Name("wdt:P569"), graph.Typed("1952-03-11", "xsd:date")))

	del, ins, diags := e.Emit(pair, nil, added)
	assert.Empty(t, del)
	assert.Equal(t, `INSERT DATA { wd:Q42 wdt:P569 "1952-03-11"^^xsd:date . };`, ins)
	assert.Empty(t, diags)

	// swapping the sides yields the same triple as a single delete
	del, ins, diags = e.Emit(pair, added, nil)
	assert.Equal(t, `DELETE DATA { wd:Q42 wdt:P569 "1952-03-11"^^xsd:date . };`, del)
	assert.Empty(t, ins)
	assert.Empty(t, diags)
}

func TestEmit_MixedDelta(t *testing.T) {
	e := New(nil)
	q42 := graph.Name("wd:Q42")
	removed := set(
		graph.T(q42, graph.Name("wdt:P21"), graph.Name("wd:Q6581097")),
		graph.T(graph.Name("s:Q42-A"), graph.Name("pq:P580"), graph.Typed("1978-01-01T00:00:00+00:00", "xsd:dateTime")),
	)
	added := set(
		graph.T(q42, graph.Name("a"), graph.Name("wikibase:Item")),
		graph.T(q42, graph.Name("rdfs:label"), graph.LangString(`Douglas "DNA" Adams`, "en")),
		graph.T(q42, graph.Name("schema:description"), graph.LangString("line1\nline2\ttab", "en-gb")),
		graph.T(q42, graph.Name("wdt:P1"), graph.IRI("http://example.org/x y")),
		graph.T(q42, graph.Name("wdt:P856"), graph.IRI("https://example.org/home")),
		graph.T(q42, graph.Name("wdt:P1082"), graph.Typed("1", "http://example.org/dt#x")),
	)

	del, ins, diags := e.Emit(pair, removed, added)

	require.Len(t, diags, 1, "only the IRI with a space is rejected")
	assert.Equal(t, model.DiagFormatError, diags[0].Kind)
	assert.Contains(t, diags[0].Triple, "INSERT")

	newGoldie(t).Assert(t, "mixed_delta", []byte(del+"\n"+ins+"\n"))
}

func TestEmit_Deterministic(t *testing.T) {
	e := New(nil)
	added := set(
		graph.T(graph.Name("wd:Q42"), graph.Name("wdt:P31"), graph.Name("wd:Q5")),
		graph.T(graph.Name("wd:Q42"), graph.Name("wdt:P21"), graph.Name("wd:Q6581097")),
	)
	_, first, _ := e.Emit(pair, nil, added)
	for i := 0; i < 5; i++ {
		_, again, _ := e.Emit(pair, nil, added)
		require.Equal(t, first, again)
	}
	assert.Equal(t,
		"INSERT DATA { wd:Q42 wdt:P31 wd:Q5 . };\nINSERT DATA { wd:Q42 wdt:P21 wd:Q6581097 . };",
		first, "source order is kept, not sorted")
}

func TestEmit_EmptySets(t *testing.T) {
	del, ins, diags := New(nil).Emit(pair, graph.NewTripleSet(0), nil)
	assert.Empty(t, del)
	assert.Empty(t, ins)
	assert.Empty(t, diags)
}

func TestTerm(t *testing.T) {
	e := New(nil)
	tests := []struct {
		name string
		in   graph.Term
		want string
	}{
		{"prefixed", graph.Name("wd:Q42"), "wd:Q42"},
		{"type token", graph.Name("a"), "a"},
		{"absolute shortened", graph.IRI("http://www.wikidata.org/prop/statement/P31"), "ps:P31"},
		{"absolute kept", graph.IRI("http://example.org/thing"), "<http://example.org/thing>"},
		{"blank", graph.Blank("_:b0"), "_:b0"},
		{"plain", graph.Plain(`a\b`), `"a\\b"`},
		{"carriage return", graph.Plain("x\r"), `"x\r"`},
		{"language", graph.LangString("Douglas", "en"), `"Douglas"@en`},
		{"datatype absolute", graph.Typed("5", "http://www.w3.org/2001/XMLSchema#integer"), `"5"^^xsd:integer`},
		{"zulu", graph.Typed("2024-01-01T00:00:00+00:00", "xsd:dateTime"), `"2024-01-01T00:00:00Z"^^xsd:dateTime`},
		{"non-zero offset kept", graph.Typed("2024-01-01T00:00:00+02:00", "xsd:dateTime"), `"2024-01-01T00:00:00+02:00"^^xsd:dateTime`},
		{"zulu date", graph.Typed("2024-01-01+00:00", "xsd:date"), `"2024-01-01Z"^^xsd:date`},
		{"zulu absolute time", graph.Typed("12:00:00+00:00", "http://www.w3.org/2001/XMLSchema#time"), `"12:00:00Z"^^xsd:time`},
		{"string offset kept", graph.Typed("12+00:00", "xsd:string"), `"12+00:00"^^xsd:string`},
		{"integer offset kept", graph.Typed("12+00:00", "xsd:integer"), `"12+00:00"^^xsd:integer`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Term(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTerm_FormatErrors(t *testing.T) {
	e := New(nil)
	tests := map[string]graph.Term{
		"slot":               graph.Slot("c1"),
		"invalid utf8":       graph.Plain("bad\xff"),
		"bad language":       graph.LangString("x", "en_GB"),
		"unknown prefix":     graph.Name("foo:bar"),
		"unknown dt prefix":  graph.Typed("1", "foo:int"),
		"iri with quote":     graph.IRI(`http://example.org/"x"`),
		"empty blank":        graph.Blank(""),
		"dt iri with space":  graph.Typed("1", "http://example.org/a b"),
		"iri control char":   graph.IRI("http://example.org/\x01"),
		"empty absolute iri": graph.IRI(""),
	}
	for name, term := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.Term(term)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrFormat))
		})
	}
}

func TestStatement_BlankNodes(t *testing.T) {
	e := New(nil)
	triple := graph.T(graph.Name("wd:Q42"), graph.Name("wdt:P40"), graph.Blank("_:genid1"))

	got, err := e.Statement(graph.OpInsert, triple)
	require.NoError(t, err)
	assert.Equal(t, "INSERT DATA { wd:Q42 wdt:P40 _:genid1 . };", got)

	_, err = e.Statement(graph.OpDelete, triple)
	assert.ErrorIs(t, err, model.ErrFormat)

	del, ins, diags := e.Emit(pair, set(triple, graph.T(graph.Name("wd:Q42"), graph.Name("wdt:P31"), graph.Name("wd:Q5"))), set())
	assert.Equal(t, "DELETE DATA { wd:Q42 wdt:P31 wd:Q5 . };", del, "the other row is still emitted")
	assert.Empty(t, ins)
	require.Len(t, diags, 1)
	assert.Equal(t, model.DiagFormatError, diags[0].Kind)
	assert.Equal(t, "DELETE wd:Q42 wdt:P40 _:genid1 .", diags[0].Triple)
	assert.Contains(t, diags[0].Message, "blank node")
}

func TestPattern_RendersSlots(t *testing.T) {
	e := New(nil)
	got, err := e.Pattern(graph.T(graph.Name("wd:Q42"), graph.Name("p:P31"), graph.Slot("c1")))
	require.NoError(t, err)
	assert.Equal(t, "wd:Q42 p:P31 ?c1 .", got)

	_, err = e.Triple(graph.T(graph.Name("wd:Q42"), graph.Name("p:P31"), graph.Slot("c1")))
	assert.ErrorIs(t, err, model.ErrFormat)
}

func TestPrefixHeader(t *testing.T) {
	e := New(canon.NewTable(map[string]string{"ex": "http://example.org/"}))
	newGoldie(t).Assert(t, "prefix_header", []byte(e.PrefixHeader()))
}
