package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/draftmill/internal/infrastructure/redis"
	"github.com/yourorg/draftmill/pkg/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db     *database.ConnectionPool
	redis  *redis.Client
	logger *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.ConnectionPool, redisClient *redis.Client, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{db: db, redis: redisClient, logger: logger}
}

// Health handles GET /healthz - liveness only.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz - returns 200 only when both stores answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if err := h.db.Health(ctx); err != nil {
		checks["postgres"] = "error: " + err.Error()
		ready = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.redis.Ping(ctx); err != nil {
		checks["redis"] = "error: " + err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed",
			slog.String("postgres", checks["postgres"]),
			slog.String("redis", checks["redis"]),
		)
	}

	_ = writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
