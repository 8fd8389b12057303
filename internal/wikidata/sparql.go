package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/canon"
	"github.com/sinaazimii/Wikidata-tools/internal/emit"
	"github.com/sinaazimii/Wikidata-tools/internal/graph"
	"github.com/sinaazimii/Wikidata-tools/internal/reify"
)

// SPARQLStore answers slot lookups against the query service
type SPARQLStore struct {
	client    *Client
	emitter   *emit.Emitter
	answers   cache.Cache
	answerTTL time.Duration
}

// NewSPARQLStore creates a store. Answers are kept in answers for ttl; the
// query service lags behind edits, so ttl should stay short. A nil answers
// cache disables caching.
func NewSPARQLStore(client *Client, emitter *emit.Emitter, answers cache.Cache, ttl time.Duration) *SPARQLStore {
	if answers == nil {
		answers = cache.Disabled{}
	}
	return &SPARQLStore{client: client, emitter: emitter, answers: answers, answerTTL: ttl}
}

// QueryText renders q as a SELECT query with the prefix declarations
func (s *SPARQLStore) QueryText(q reify.Query) (string, error) {
	var b strings.Builder
	b.WriteString(s.emitter.PrefixHeader())
	fmt.Fprintf(&b, "SELECT ?%s WHERE {\n", q.Select)
	for _, t := range q.Where {
		line, err := s.emitter.Pattern(t)
		if err != nil {
			return "", fmt.Errorf("render pattern: %w", err)
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("}\nLIMIT 1\n")
	return b.String(), nil
}

type sparqlValue struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang"`
	Datatype string `json:"datatype"`
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

// Select runs the query and returns the first binding of q.Select. An empty
// result is no match, not an error.
func (s *SPARQLStore) Select(ctx context.Context, q reify.Query) (graph.Term, bool, error) {
	text, err := s.QueryText(q)
	if err != nil {
		return graph.Term{}, false, err
	}

	key := cache.CacheKey(text)
	body, ok := s.answers.Get(key)
	if !ok {
		params := url.Values{}
		params.Set("query", text)
		params.Set("format", "json")
		rawURL := s.client.endpoints.SPARQL + "?" + params.Encode()

		body, err = s.client.fetch(ctx, EndpointSPARQL, rawURL, "application/sparql-results+json")
		if err != nil {
			return graph.Term{}, false, fmt.Errorf("sparql: %w", err)
		}
	}

	var resp sparqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return graph.Term{}, false, fmt.Errorf("sparql: decode: %w", err)
	}
	if !ok {
		_ = s.answers.Set(key, body, s.answerTTL)
	}

	for _, binding := range resp.Results.Bindings {
		if v, found := binding[q.Select]; found {
			return v.term(), true, nil
		}
	}
	return graph.Term{}, false, nil
}

func (v sparqlValue) term() graph.Term {
	switch v.Type {
	case "uri":
		return graph.IRI(v.Value)
	case "bnode":
		return graph.Blank(v.Value)
	}
	switch {
	case v.Lang != "":
		return graph.LangString(v.Value, v.Lang)
	case v.Datatype != "" && v.Datatype != canon.XSDString:
		return graph.Typed(v.Value, v.Datatype)
	default:
		return graph.Plain(v.Value)
	}
}
