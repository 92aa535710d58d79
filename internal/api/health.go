package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/shoplist/internal/cache"
)

// HealthResponse is the body of the health endpoints.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db"`
	Cache     string    `json:"cache"`
}

// HealthHandler reports service liveness and backend reachability.
type HealthHandler struct {
	DB      *sql.DB
	Cache   *cache.PageCache
	Service string
	Version string
}

// Check handles GET /health and GET /healthz. An unreachable database makes
// the service unhealthy; an unreachable cache only degrades it.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.Service,
		Version:   h.Version,
		DB:        "up",
		Cache:     "disabled",
	}
	status := http.StatusOK

	if err := h.DB.PingContext(ctx); err != nil {
		resp.DB = "down"
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	if h.Cache != nil {
		if err := h.Cache.Ping(ctx); err != nil {
			resp.Cache = "down"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		} else {
			resp.Cache = "up"
		}
	}

	jsonResponse(w, status, resp)
}
