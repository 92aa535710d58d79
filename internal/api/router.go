// Package api serves the shopping items and lists REST API.
package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/shoplist/internal/cache"
)

// Options configures optional router features.
type Options struct {
	// Cache stores collection pages. Nil disables caching.
	Cache *cache.PageCache
	// CORSOrigins lists allowed browser origins. Empty allows any origin.
	CORSOrigins []string
	Version     string
}

// NewRouter creates the API router with all endpoints and middleware.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	itemsHandler := &ItemsHandler{DB: db, Cache: opts.Cache}
	listsHandler := &ListsHandler{DB: db, Cache: opts.Cache}
	healthHandler := &HealthHandler{DB: db, Cache: opts.Cache, Service: "shoplist", Version: opts.Version}

	// Items.
	mux.HandleFunc("POST /item", itemsHandler.Create)
	mux.HandleFunc("GET /item", itemsHandler.List)
	mux.HandleFunc("GET /item/{id}", itemsHandler.Get)
	mux.HandleFunc("PUT /item/{id}", itemsHandler.Update)
	mux.HandleFunc("DELETE /item/{id}", itemsHandler.Delete)

	// Shopping lists.
	mux.HandleFunc("POST /list", listsHandler.Create)
	mux.HandleFunc("GET /list", listsHandler.List)
	mux.HandleFunc("GET /list/{id}", listsHandler.Get)
	mux.HandleFunc("PUT /list/{id}", listsHandler.Update)
	mux.HandleFunc("DELETE /list/{id}", listsHandler.Delete)

	mux.HandleFunc("GET /health", healthHandler.Check)
	mux.HandleFunc("GET /healthz", healthHandler.Check)

	var handler http.Handler = mux
	handler = CORSMiddleware(opts.CORSOrigins)(handler)
	handler = RecoverMiddleware(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}
