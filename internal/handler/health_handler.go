package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"go.uber.org/zap"
)

// HealthHandler reports service and database liveness
type HealthHandler struct {
	repo repository.RepositoryManager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(repo repository.RepositoryManager) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Healthz answers readiness probes; it fails when the database is unreachable.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.repo.Ping(ctx)
		cancel()
		if err != nil {
			logger.Base().Error("health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "database": "unreachable"})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
