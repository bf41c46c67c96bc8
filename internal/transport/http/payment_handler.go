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
	"rfxlicense/internal/payment"
)

// PaymentService is the slice of the payment gate the handler needs.
type PaymentService interface {
	CreateRequest(ctx context.Context, ownerID string, amount float64) (string, error)
	AttachReceipt(ctx context.Context, requestID, receiptRef string) error
	Decide(ctx context.Context, requestID string, decision domain.Decision, actor payment.Actor) error
	ListPending(ctx context.Context, actor payment.Actor) ([]domain.PaymentRequest, error)
}

// PaymentHandler serves the payment approval surface.
type PaymentHandler struct {
	service PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates the handler.
func NewPaymentHandler(service PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "payment")),
	}
}

// Routes returns the payments router. Decision and the review queue are
// admin-guarded.
func (h *PaymentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(15 * time.Second))
	r.Post("/", h.Create)
	r.Post("/{requestID}/receipt", h.AttachReceipt)
	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.AdminOnly)
		r.Post("/{requestID}/decision", h.Decide)
		r.Get("/pending", h.ListPending)
	})
	return r
}

// CreatePaymentRequest is the JSON body of POST /api/payments.
type CreatePaymentRequest struct {
	OwnerID string  `json:"owner_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
}

// Bind implements render.Binder.
func (c *CreatePaymentRequest) Bind(r *http.Request) error {
	return validate.Struct(c)
}

// Create handles POST /api/payments: opens a pending payment request.
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := &CreatePaymentRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	id, err := h.service.CreateRequest(ctx, data.OwnerID, data.Amount)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"request_id": id,
		"status":     domain.PaymentPending,
	})
}

// ReceiptRequest is the JSON body of the receipt attachment.
type ReceiptRequest struct {
	ReceiptRef string `json:"receipt_ref" validate:"required"`
}

// Bind implements render.Binder.
func (rr *ReceiptRequest) Bind(r *http.Request) error {
	return validate.Struct(rr)
}

// AttachReceipt handles POST /api/payments/{requestID}/receipt.
func (h *PaymentHandler) AttachReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "requestID")
	data := &ReceiptRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.service.AttachReceipt(ctx, requestID, data.ReceiptRef); err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"request_id": requestID,
		"message":    "receipt attached",
	})
}

// DecisionRequest is the JSON body of the admin decision.
type DecisionRequest struct {
	Decision domain.Decision `json:"decision" validate:"required,oneof=approve reject"`
}

// Bind implements render.Binder.
func (d *DecisionRequest) Bind(r *http.Request) error {
	return validate.Struct(d)
}

// Decide handles POST /api/payments/{requestID}/decision. Exactly-once: a
// second decision on the same request answers 409 without re-activating.
func (h *PaymentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi.URLParam(r, "requestID")
	data := &DecisionRequest{}
	if err := render.Bind(r, data); err != nil {
		h.badRequest(w, r, err)
		return
	}

	actor := appmiddleware.ActorFromContext(ctx)
	if err := h.service.Decide(ctx, requestID, data.Decision, actor); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "payment decided",
		slog.String("request_id", requestID),
		slog.String("decision", string(data.Decision)),
		slog.String("actor_id", actor.ID),
	)
	render.JSON(w, r, map[string]interface{}{
		"request_id": requestID,
		"decision":   data.Decision,
	})
}

// ListPending handles GET /api/payments/pending: the admin review queue.
func (h *PaymentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := appmiddleware.ActorFromContext(ctx)
	pending, err := h.service.ListPending(ctx, actor)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"total":    len(pending),
		"requests": pending,
	})
}

func (h *PaymentHandler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	problem := apperrors.NewProblemDetails(
		http.StatusBadRequest,
		"/errors/invalid-request",
		"Invalid Request",
		err.Error(),
		r.URL.Path,
	).WithExtension("request_id", appmiddleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func (h *PaymentHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	reqID := appmiddleware.GetReqID(ctx)
	h.logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
	)
	render.Render(w, r, apperrors.Problem(err, r.URL.Path, reqID))
}
