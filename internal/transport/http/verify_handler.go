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
)

// VerifyService is the slice of the license core the verify handler needs.
type VerifyService interface {
	Verify(ctx context.Context, key, accountID string) *domain.VerificationResult
}

// VerifyHandler serves the verification endpoint remote clients poll.
type VerifyHandler struct {
	service VerifyService
	logger  *slog.Logger
}

// NewVerifyHandler creates the handler.
func NewVerifyHandler(service VerifyService, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "verify")),
	}
}

// Routes returns the verify router.
func (h *VerifyHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Second))
	r.Get("/{key}/{account}", h.VerifyPath)
	r.Post("/", h.VerifyBody)
	return r
}

// VerifyPath handles GET /api/verify/{key}/{account}, the path shape the
// deployed trading robots already use.
func (h *VerifyHandler) VerifyPath(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	account := chi.URLParam(r, "account")
	h.respond(w, r, key, account)
}

// VerifyRequest is the JSON body of POST /api/verify.
type VerifyRequest struct {
	Key       string `json:"license_key" validate:"required"`
	AccountID string `json:"account_id" validate:"required"`
}

// Bind implements render.Binder.
func (v *VerifyRequest) Bind(r *http.Request) error {
	return validate.Struct(v)
}

// VerifyBody handles POST /api/verify with a JSON payload.
func (h *VerifyHandler) VerifyBody(w http.ResponseWriter, r *http.Request) {
	data := &VerifyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, &domain.VerificationResult{
			Valid:  false,
			Reason: domain.ReasonFormatInvalid,
		})
		return
	}
	h.respond(w, r, data.Key, data.AccountID)
}

func (h *VerifyHandler) respond(w http.ResponseWriter, r *http.Request, key, account string) {
	result := h.service.Verify(r.Context(), key, account)
	render.Status(r, statusForResult(result))
	render.JSON(w, r, result)
}

// statusForResult maps a verdict onto the HTTP status so clients can
// dispatch on status codes without parsing the body.
func statusForResult(res *domain.VerificationResult) int {
	if res.Valid {
		return http.StatusOK
	}
	switch res.Reason {
	case domain.ReasonFormatInvalid:
		return http.StatusBadRequest
	case domain.ReasonKeyNotFound:
		return http.StatusNotFound
	case domain.ReasonPaymentUnverified:
		return http.StatusPaymentRequired
	case domain.ReasonInactive, domain.ReasonWrongAccount:
		return http.StatusForbidden
	case domain.ReasonExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
