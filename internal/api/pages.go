package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/shoplist/internal/cache"
	"github.com/erazemk/shoplist/internal/query"
)

// Cache failures never fail a request; they are logged and the store is used.

// cachedPage looks up a page. On a miss the returned entry is handed to
// storePage once the page has been read from the store.
func cachedPage(r *http.Request, c *cache.PageCache, collection string, p query.Params, dst any) (cache.Entry, bool) {
	e, hit, err := c.Get(r.Context(), collection, p.Values(), dst)
	if err != nil {
		slog.Warn("reading page cache", "collection", collection, "error", err, "request_id", RequestID(r.Context()))
		return cache.Entry{}, false
	}
	return e, hit
}

func storePage(r *http.Request, c *cache.PageCache, e cache.Entry, page any) {
	if err := c.Set(r.Context(), e, page); err != nil {
		slog.Warn("writing page cache", "error", err, "request_id", RequestID(r.Context()))
	}
}

// invalidatePages makes every cached page unreadable after a write. Item and
// list pages are dropped together since list pages embed items. A failed
// invalidation leaves the cache disabled until Redis recovers.
func invalidatePages(r *http.Request, c *cache.PageCache) {
	if err := c.InvalidateAll(r.Context()); err != nil {
		slog.Warn("invalidating page cache", "error", err, "request_id", RequestID(r.Context()))
	}
}
