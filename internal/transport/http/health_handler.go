package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "rfxlicense/internal/errors"
	appmiddleware "rfxlicense/internal/middleware"
	"rfxlicense/internal/store"
)

// HealthService reports service and store health.
type HealthService interface {
	Ping(ctx context.Context) error
	LicenseCount(ctx context.Context) (int64, error)
	Stats(ctx context.Context, now time.Time) (*store.Stats, error)
}

// HealthHandler serves health and aggregate statistics.
type HealthHandler struct {
	service HealthService
	logger  *slog.Logger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(service HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// Routes returns the health router; stats is admin-guarded.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.With(appmiddleware.AdminOnly).Get("/stats", h.Stats)
	return r
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "health check failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "unreachable",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	total, err := h.service.LicenseCount(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "license count failed", slog.String("error", err.Error()))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "connected",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status":         "healthy",
		"database":       "connected",
		"total_licenses": total,
		"timestamp":      time.Now().UTC(),
	})
}

// Stats handles GET /api/stats.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.Stats(ctx, time.Now())
	if err != nil {
		reqID := appmiddleware.GetReqID(ctx)
		h.logger.ErrorContext(ctx, "stats failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		render.Render(w, r, apperrors.Problem(err, r.URL.Path, reqID))
		return
	}
	render.JSON(w, r, stats)
}
