// Package payment implements the human-gated activation path: an owner
// claims an off-platform payment, attaches a receipt reference, and an
// admin decision converts the claim into a monthly activation.
package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// Repository is the payment-request persistence surface. The gate reads and
// writes PaymentRequest rows only; License rows are mutated exclusively
// through the state machine.
type Repository interface {
	Create(ctx context.Context, req *domain.PaymentRequest) error
	GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error)
	HasPending(ctx context.Context, ownerID string) (bool, error)
	AttachReceipt(ctx context.Context, id, receiptRef string) error
	Decide(ctx context.Context, id string, status domain.PaymentStatus) (bool, error)
	ListPending(ctx context.Context) ([]domain.PaymentRequest, error)
}

// Activator is the slice of the license state machine the gate calls into.
type Activator interface {
	ActivateMonthly(ctx context.Context, ownerID string) (*domain.License, error)
}

// Notifier receives decision outcomes for delivery to the owner. Delivery
// transport is external to this core.
type Notifier interface {
	PaymentDecided(ctx context.Context, req *domain.PaymentRequest, lic *domain.License)
}

// RoleAdmin is the claim required to decide payment requests.
const RoleAdmin = "admin"

// Actor identifies the caller of an administrative operation, decoupled
// from any specific chat platform's user-id type.
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports whether the actor carries the given role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Gate is the payment approval gate.
type Gate struct {
	repo      Repository
	activator Activator
	notifier  Notifier
	logger    *slog.Logger
}

// NewGate creates the gate. notifier may be nil.
func NewGate(repo Repository, activator Activator, notifier Notifier, logger *slog.Logger) *Gate {
	return &Gate{
		repo:      repo,
		activator: activator,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "payment_gate")),
	}
}

// CreateRequest opens a pending payment request with no receipt. An owner
// can have at most one undecided request at a time; a second create while
// one is pending fails with ErrAlreadyPending.
func (g *Gate) CreateRequest(ctx context.Context, ownerID string, amount float64) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner id must not be empty")
	}
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	pending, err := g.repo.HasPending(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if pending {
		return "", apperrors.ErrAlreadyPending
	}

	req := &domain.PaymentRequest{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Amount:  amount,
		Status:  domain.PaymentPending,
	}
	if err := g.repo.Create(ctx, req); err != nil {
		return "", err
	}

	g.logger.InfoContext(ctx, "payment request created",
		slog.String("request_id", req.ID),
		slog.String("owner_id", ownerID),
		slog.Float64("amount", amount),
	)
	return req.ID, nil
}

// AttachReceipt records the owner's proof of payment. Attaching again
// overwrites the previous reference; the operation is idempotent.
func (g *Gate) AttachReceipt(ctx context.Context, requestID, receiptRef string) error {
	if receiptRef == "" {
		return fmt.Errorf("receipt reference must not be empty")
	}
	req, err := g.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Decided() {
		return apperrors.ErrAlreadyDecided
	}
	if err := g.repo.AttachReceipt(ctx, requestID, receiptRef); err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "receipt attached",
		slog.String("request_id", requestID),
	)
	return nil
}

// Decide settles a pending request. Only admin actors may decide. Deciding
// an already-decided request is a no-op that returns ErrAlreadyDecided. On
// approval the monthly activation runs first and the request is marked
// approved only if activation succeeded; a failed activation leaves the
// request pending so the admin can retry.
func (g *Gate) Decide(ctx context.Context, requestID string, decision domain.Decision, actor Actor) error {
	if !actor.HasRole(RoleAdmin) {
		return apperrors.ErrForbidden
	}
	if !decision.Valid() {
		return fmt.Errorf("unknown decision %q", decision)
	}

	req, err := g.repo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.Decided() {
		return apperrors.ErrAlreadyDecided
	}

	if decision == domain.DecisionReject {
		ok, err := g.repo.Decide(ctx, requestID, domain.PaymentRejected)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrAlreadyDecided
		}
		req.Status = domain.PaymentRejected
		g.logger.InfoContext(ctx, "payment rejected",
			slog.String("request_id", requestID),
			slog.String("actor_id", actor.ID),
		)
		if g.notifier != nil {
			g.notifier.PaymentDecided(ctx, req, nil)
		}
		return nil
	}

	lic, err := g.activator.ActivateMonthly(ctx, req.OwnerID)
	if err != nil {
		// Activation failed: the request stays pending, no partial state.
		return fmt.Errorf("activate monthly license: %w", err)
	}
	ok, err := g.repo.Decide(ctx, requestID, domain.PaymentApproved)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrAlreadyDecided
	}
	req.Status = domain.PaymentApproved

	g.logger.InfoContext(ctx, "payment approved",
		slog.String("request_id", requestID),
		slog.String("owner_id", req.OwnerID),
		slog.String("actor_id", actor.ID),
	)
	if g.notifier != nil {
		g.notifier.PaymentDecided(ctx, req, lic)
	}
	return nil
}

// ListPending returns the admin review queue, oldest first.
func (g *Gate) ListPending(ctx context.Context, actor Actor) ([]domain.PaymentRequest, error) {
	if !actor.HasRole(RoleAdmin) {
		return nil, apperrors.ErrForbidden
	}
	return g.repo.ListPending(ctx)
}
