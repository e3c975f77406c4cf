// Package health aggregates component health checks for the /health endpoint.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atlas-accounts/atlas-accounts/internal/platform/httpx"
)

// Checker reports the health of a single component.
type Checker func(ctx context.Context) error

// Handler serves the aggregated health report.
type Handler struct {
	required map[string]Checker
	optional map[string]Checker
}

// NewHandler constructs a health handler. Required components decide overall
// health; optional ones are reported but never fail the check.
func NewHandler() *Handler {
	return &Handler{
		required: map[string]Checker{},
		optional: map[string]Checker{},
	}
}

// Require registers a component whose failure marks the service unhealthy.
func (h *Handler) Require(name string, check Checker) *Handler {
	h.required[name] = check
	return h
}

// Optional registers a best-effort component.
func (h *Handler) Optional(name string, check Checker) *Handler {
	h.optional[name] = check
	return h
}

// ServeHTTP renders per-component statuses in the response envelope.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string, len(h.required)+len(h.optional))
	healthy := true
	for name, check := range h.required {
		if err := check(ctx); err != nil {
			components[name] = "unhealthy"
			healthy = false
		} else {
			components[name] = "healthy"
		}
	}
	for name, check := range h.optional {
		if err := check(ctx); err != nil {
			components[name] = "unhealthy"
		} else {
			components[name] = "healthy"
		}
	}

	overall := "healthy"
	status := http.StatusOK
	if !healthy {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	// The report carries its own status field, so it is rendered bare
	// rather than inside the success envelope.
	httpx.JSON(w, status, map[string]any{
		"status":     overall,
		"components": components,
	})
}

// Postgres builds a checker over the connection pool.
func Postgres(pool *pgxpool.Pool) Checker {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// Redis builds a checker over the queue broker connection.
func Redis(client *redis.Client) Checker {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// HTTPEndpoint builds a best-effort checker probing an external URL.
func HTTPEndpoint(client *http.Client, url string) Checker {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("health: endpoint returned %d", resp.StatusCode)
		}
		return nil
	}
}
