package wikidata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// apiTimeLayout is the timestamp format of the action API
const apiTimeLayout = "2006-01-02T15:04:05Z"

// APIError is an error object returned by the action API
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

type compareResponse struct {
	Compare *struct {
		FromRevID int64  `json:"fromrevid"`
		ToRevID   int64  `json:"torevid"`
		Body      string `json:"*"`
	} `json:"compare"`
	Error *APIError `json:"error"`
}

func (c *Client) apiURL(params url.Values) string {
	params.Set("format", "json")
	return c.endpoints.API + "?" + params.Encode()
}

// FetchCompare returns the rendered diff table between two revisions
func (c *Client) FetchCompare(ctx context.Context, fromRev, toRev int64) (string, error) {
	params := url.Values{}
	params.Set("action", "compare")
	params.Set("fromrev", strconv.FormatInt(fromRev, 10))
	params.Set("torev", strconv.FormatInt(toRev, 10))
	rawURL := c.apiURL(params)

	body, err := c.cached(ctx, cache.CompareKey(fromRev, toRev), func(ctx context.Context) ([]byte, error) {
		body, err := c.FetchWithRetry(ctx, EndpointAPI, rawURL, "application/json")
		if err != nil {
			return nil, err
		}
		// API errors arrive with status 200 and must not be cached
		var probe compareResponse
		if err := json.Unmarshal(body, &probe); err == nil && probe.Error != nil {
			return nil, probe.Error
		}
		return body, nil
	})
	if err != nil {
		return "", fmt.Errorf("compare %d->%d: %w", fromRev, toRev, err)
	}

	var resp compareResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("compare %d->%d: decode: %w", fromRev, toRev, err)
	}
	if resp.Compare == nil {
		return "", fmt.Errorf("compare %d->%d: response has no compare object", fromRev, toRev)
	}
	return resp.Compare.Body, nil
}

// RecentChangesQuery selects entries of the recent-changes feed
type RecentChangesQuery struct {
	Start  time.Time // oldest change, ignored when zero
	End    time.Time // newest change, ignored when zero
	Types  []model.ChangeKind
	Limit  int
	Entity string // restrict to one entity title
}

type recentChange struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	RevID     int64  `json:"revid"`
	OldRevID  int64  `json:"old_revid"`
	Timestamp string `json:"timestamp"`
}

type recentChangesResponse struct {
	Query struct {
		RecentChanges []recentChange `json:"recentchanges"`
	} `json:"query"`
	Error *APIError `json:"error"`
}

// RecentChanges lists recent edits and creations as revision pairs, newest
// first. Changes to pages that are not entities are skipped.
func (c *Client) RecentChanges(ctx context.Context, q RecentChangesQuery) ([]model.RevisionPair, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "recentchanges")
	params.Set("rcprop", "title|ids|sizes|flags|user|timestamp")
	if q.Limit > 0 {
		params.Set("rclimit", strconv.Itoa(q.Limit))
	}
	types := q.Types
	if len(types) == 0 {
		types = []model.ChangeKind{model.ChangeEdit, model.ChangeNew}
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	params.Set("rctype", strings.Join(names, "|"))
	// the feed runs backwards in time: rcstart is the newest bound
	if !q.End.IsZero() {
		params.Set("rcstart", q.End.UTC().Format(apiTimeLayout))
	}
	if !q.Start.IsZero() {
		params.Set("rcend", q.Start.UTC().Format(apiTimeLayout))
	}
	if q.Entity != "" {
		params.Set("rctitle", pageTitle(q.Entity))
	}

	body, err := c.FetchWithRetry(ctx, EndpointAPI, c.apiURL(params), "application/json")
	if err != nil {
		return nil, fmt.Errorf("recent changes: %w", err)
	}

	var resp recentChangesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("recent changes: decode: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("recent changes: %w", resp.Error)
	}

	pairs := make([]model.RevisionPair, 0, len(resp.Query.RecentChanges))
	for _, rc := range resp.Query.RecentChanges {
		id := entityTitle(rc.Title)
		if !model.IsEntityID(id) {
			continue
		}
		pair := model.RevisionPair{
			EntityID: id,
			OldRevID: rc.OldRevID,
			NewRevID: rc.RevID,
			Kind:     model.ChangeKind(rc.Type),
		}
		if ts, err := time.Parse(apiTimeLayout, rc.Timestamp); err == nil {
			pair.Timestamp = ts
		}
		if pair.Validate() != nil {
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// pageTitle is the wiki page title of an entity id. Items live in the main
// namespace; properties and lexemes in their own.
func pageTitle(id string) string {
	switch {
	case strings.HasPrefix(id, "P"):
		return "Property:" + id
	case strings.HasPrefix(id, "L"):
		return "Lexeme:" + id
	}
	return id
}

// entityTitle strips the namespace of property and lexeme pages
func entityTitle(title string) string {
	if i := strings.IndexByte(title, ':'); i >= 0 {
		switch title[:i] {
		case "Property", "Lexeme", "Item":
			return title[i+1:]
		}
	}
	return title
}
