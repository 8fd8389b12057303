package wikidata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/emit"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/reify"
)

func claimQuery() reify.Query {
	c := graph.Slot("c1")
	return reify.Query{
		Select: "c1",
		Where: []graph.Triple{
			graph.T(graph.Name("wd:Q42"), graph.Name("p:P31"), c),
			graph.T(c, graph.Name("ps:P31"), graph.Name("wd:Q5")),
		},
	}
}

func TestSPARQLStore_QueryText(t *testing.T) {
	store := NewSPARQLStore(nil, emit.New(nil), nil, 0)
	text, err := store.QueryText(claimQuery())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "PREFIX wd: <http://www.wikidata.org/entity/>\n"))
	assert.True(t, strings.HasSuffix(text, "SELECT ?c1 WHERE {\n  wd:Q42 p:P31 ?c1 .\n  ?c1 ps:P31 wd:Q5 .\n}\nLIMIT 1\n"))
}

func TestSPARQLStore_Select(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/sparql", r.URL.Path)
		assert.Equal(t, "application/sparql-results+json", r.Header.Get("Accept"))
		assert.Contains(t, r.URL.Query().Get("query"), "SELECT ?c1 WHERE")
		_, _ = fmt.Fprint(w, `{"head":{"vars":["c1"]},"results":{"bindings":[
			{"c1":{"type":"uri","value":"http://www.wikidata.org/entity/statement/Q42-F078E5B3"}}
		]}}`)
	}))
	defer server.Close()

	store := NewSPARQLStore(newTestClient(server), emit.New(nil), cache.NewMemoryCache(time.Minute, time.Minute), time.Minute)

	for i := 0; i < 2; i++ {
		got, ok, err := store.Select(context.Background(), claimQuery())
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, graph.IRI("http://www.wikidata.org/entity/statement/Q42-F078E5B3"), got)
	}
	assert.Equal(t, int32(1), hits.Load(), "answers are cached")
}

func TestSPARQLStore_NoBinding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"head":{"vars":["c1"]},"results":{"bindings":[]}}`)
	}))
	defer server.Close()

	_, ok, err := NewSPARQLStore(newTestClient(server), emit.New(nil), nil, 0).Select(context.Background(), claimQuery())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSPARQLStore_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := NewSPARQLStore(newTestClient(server), emit.New(nil), nil, 0).Select(ctx, claimQuery())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSPARQLValue_Term(t *testing.T) {
	tests := []struct {
		in   sparqlValue
		want graph.Term
	}{
		{sparqlValue{Type: "uri", Value: "http://example.org/x"}, graph.IRI("http://example.org/x")},
		{sparqlValue{Type: "bnode", Value: "b0"}, graph.Blank("b0")},
		{sparqlValue{Type: "literal", Value: "Douglas", Lang: "en"}, graph.LangString("Douglas", "en")},
		{sparqlValue{Type: "literal", Value: "5", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}, graph.Typed("5", "http://www.w3.org/2001/XMLSchema#integer")},
		{sparqlValue{Type: "literal", Value: "x", Datatype: "http://www.w3.org/2001/XMLSchema#string"}, graph.Plain("x")},
		{sparqlValue{Type: "literal", Value: "x"}, graph.Plain("x")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.term())
	}
}
