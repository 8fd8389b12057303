package wikidata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sinaazimii/Wikidata-tools/internal/cache"
	"github.com/sinaazimii/Wikidata-tools/internal/model"
)

// SnapshotURL is the Turtle dump of one revision of an entity
func (c *Client) SnapshotURL(entityID string, revID int64) string {
	return fmt.Sprintf("%s/%s.ttl?revision=%d&flavor=dump",
		strings.TrimRight(c.endpoints.EntityData, "/"), url.PathEscape(entityID), revID)
}

// FetchSnapshot returns the Turtle dump of one revision. Revision 0 is the
// state before the entity existed and yields no document. Failures wrap
// model.ErrSnapshotUnavailable.
func (c *Client) FetchSnapshot(ctx context.Context, entityID string, revID int64) ([]byte, error) {
	if revID == 0 {
		return nil, nil
	}

	rawURL := c.SnapshotURL(entityID, revID)
	body, err := c.cached(ctx, cache.RevisionKey("ttl", entityID, revID), func(ctx context.Context) ([]byte, error) {
		return c.FetchWithRetry(ctx, EndpointEntityData, rawURL, "text/turtle")
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s revision %d: %w", model.ErrSnapshotUnavailable, entityID, revID, err)
	}
	return body, nil
}

// CachedSnapshot returns a revision dump only if it is already cached
func (c *Client) CachedSnapshot(entityID string, revID int64) ([]byte, bool) {
	if revID == 0 {
		return nil, true
	}
	return c.cache.Get(cache.RevisionKey("ttl", entityID, revID))
}
