package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
	appmiddleware "rfxlicense/internal/middleware"
)

var validate = validator.New()

// LicenseService is the slice of the license core the owner-facing
// endpoints need.
type LicenseService interface {
	GetOrCreateKey(ctx context.Context, ownerID string) (string, error)
	RequestTrial(ctx context.Context, ownerID string) (*domain.License, error)
	Status(ctx context.Context, ownerID string) (*domain.License, error)
}

// LicenseHandler serves key issuance, trial grants, and status queries.
type LicenseHandler struct {
	service LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates the handler.
func NewLicenseHandler(service LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the license router.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(15 * time.Second))
	r.Post("/key", h.IssueKey)
	r.Post("/trial", h.RequestTrial)
	r.Get("/status/{ownerID}", h.Status)
	return r
}

// OwnerRequest is the JSON body of owner-scoped operations.
type OwnerRequest struct {
	OwnerID string `json:"owner_id" validate:"required"`
}

// Bind implements render.Binder.
func (o *OwnerRequest) Bind(r *http.Request) error {
	return validate.Struct(o)
}

// IssueKey handles POST /api/license/key: returns the owner's permanent
// key, deriving and persisting it on first call.
func (h *LicenseHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := &OwnerRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	key, err := h.service.GetOrCreateKey(ctx, data.OwnerID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"owner_id":    data.OwnerID,
		"license_key": key,
	})
}

// RequestTrial handles POST /api/license/trial: the one-time trial grant.
func (h *LicenseHandler) RequestTrial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := &OwnerRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	lic, err := h.service.RequestTrial(ctx, data.OwnerID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "trial granted",
		slog.String("owner_id", data.OwnerID),
		slog.String("request_id", appmiddleware.GetReqID(ctx)),
	)
	render.JSON(w, r, lic)
}

// Status handles GET /api/license/status/{ownerID}. Lazy expiry applies:
// the first status read after a lapse persists the expired state.
func (h *LicenseHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	lic, err := h.service.Status(r.Context(), ownerID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, lic)
}

func (h *LicenseHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	problem := apperrors.NewProblemDetails(
		http.StatusBadRequest,
		"/errors/invalid-request",
		"Invalid Request",
		err.Error(),
		r.URL.Path,
	).WithExtension("request_id", appmiddleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func (h *LicenseHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reqID := appmiddleware.GetReqID(ctx)
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)
	render.Render(w, r, apperrors.Problem(err, r.URL.Path, reqID))
}
