package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/paymentsengine/internal/usecase"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	store usecase.Pinger
}

// NewHealthHandler creates a new HealthHandler. The store's Ping covers
// every backend it wraps, including the snapshot cache.
func NewHealthHandler(store usecase.Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness returns 200 if the service is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness returns 200 if the ledger store is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unhealthy", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"store":  "ok",
	})
}
