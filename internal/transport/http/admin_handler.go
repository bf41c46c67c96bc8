package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
	appmiddleware "rfxlicense/internal/middleware"
)

// AdminService is the administrative surface over the license store.
type AdminService interface {
	RecentLicenses(ctx context.Context, limit int) ([]domain.License, error)
	ResetBinding(ctx context.Context, key string) error
	RecentActivity(ctx context.Context, key string, limit int) ([]domain.ActivityLogEntry, error)
	DistinctAccounts(ctx context.Context, key string, since time.Time) (int64, error)
}

// AdminHandler serves license administration. Binding reset is the only way
// to unbind a key; there is deliberately no self-service path.
type AdminHandler struct {
	service AdminService
	logger  *slog.Logger
}

// NewAdminHandler creates the handler.
func NewAdminHandler(service AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// Routes returns the admin router. Every route requires the admin role.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(appmiddleware.AdminOnly)
	r.Get("/licenses", h.ListLicenses)
	r.Post("/licenses/{key}/reset-binding", h.ResetBinding)
	r.Get("/licenses/{key}/activity", h.Activity)
	return r
}

// ListLicenses handles GET /api/admin/licenses.
func (h *AdminHandler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := h.service.RecentLicenses(r.Context(), 100)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"total":    len(licenses),
		"licenses": licenses,
	})
}

// ResetBinding handles POST /api/admin/licenses/{key}/reset-binding.
func (h *AdminHandler) ResetBinding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")
	if err := h.service.ResetBinding(ctx, key); err != nil {
		h.renderError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "binding reset",
		slog.String("key", key),
		slog.String("actor_id", appmiddleware.ActorFromContext(ctx).ID),
	)
	render.JSON(w, r, map[string]interface{}{
		"license_key": key,
		"message":     "binding cleared",
	})
}

// Activity handles GET /api/admin/licenses/{key}/activity: the recent audit
// trail plus the distinct-account count over the last week, the signal for
// a shared or leaked key.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	entries, err := h.service.RecentActivity(ctx, key, 100)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	accounts, err := h.service.DistinctAccounts(ctx, key, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"license_key":       key,
		"entries":           entries,
		"distinct_accounts": accounts,
	})
}

func (h *AdminHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reqID := appmiddleware.GetReqID(ctx)
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)
	render.Render(w, r, apperrors.Problem(err, r.URL.Path, reqID))
}
