package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
	"rfxlicense/internal/payment"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	adminActor = payment.Actor{ID: "admin-1", Roles: []string{payment.RoleAdmin}}
	plainActor = payment.Actor{ID: "user-1"}
)

// memPaymentRepo is an in-memory payment.Repository with the store's
// single-shot decide semantics.
type memPaymentRepo struct {
	mu       sync.Mutex
	requests map[string]*domain.PaymentRequest

	createErr error
	decideErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{requests: make(map[string]*domain.PaymentRequest)}
}

func (r *memPaymentRepo) Create(ctx context.Context, req *domain.PaymentRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *memPaymentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *memPaymentRepo) HasPending(ctx context.Context, ownerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range r.requests {
		if req.OwnerID == ownerID && req.Status == domain.PaymentPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPaymentRepo) AttachReceipt(ctx context.Context, id, receiptRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	ref := receiptRef
	req.ReceiptRef = &ref
	return nil
}

func (r *memPaymentRepo) Decide(ctx context.Context, id string, status domain.PaymentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decideErr != nil {
		return false, r.decideErr
	}
	req, ok := r.requests[id]
	if !ok || req.Status != domain.PaymentPending {
		return false, nil
	}
	req.Status = status
	return true, nil
}

func (r *memPaymentRepo) ListPending(ctx context.Context) ([]domain.PaymentRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PaymentRequest
	for _, req := range r.requests {
		if req.Status == domain.PaymentPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) get(id string) *domain.PaymentRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil
	}
	cp := *req
	return &cp
}

// stubActivator counts activations and can fail.
type stubActivator struct {
	calls int
	err   error
	lic   *domain.License
}

func (a *stubActivator) ActivateMonthly(ctx context.Context, ownerID string) (*domain.License, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	if a.lic != nil {
		return a.lic, nil
	}
	return &domain.License{OwnerID: ownerID, Type: domain.TypeMonthly, Status: domain.StatusActive}, nil
}

// recordingNotifier captures decision notifications.
type recordingNotifier struct {
	decided []domain.PaymentStatus
}

func (n *recordingNotifier) PaymentDecided(ctx context.Context, req *domain.PaymentRequest, lic *domain.License) {
	n.decided = append(n.decided, req.Status)
}

func TestCreateRequest(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())

	id, err := gate.CreateRequest(context.Background(), "owner-1001", 100)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	req := repo.get(id)
	require.NotNil(t, req)
	assert.Equal(t, domain.PaymentPending, req.Status)
	assert.Equal(t, "owner-1001", req.OwnerID)
	assert.Nil(t, req.ReceiptRef)
}

func TestCreateRequestValidation(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	_, err := gate.CreateRequest(ctx, "", 100)
	assert.Error(t, err)

	_, err = gate.CreateRequest(ctx, "owner-1001", 0)
	assert.Error(t, err)

	_, err = gate.CreateRequest(ctx, "owner-1001", -5)
	assert.Error(t, err)
}

func TestCreateRequestRejectsSecondPending(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	_, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	_, err = gate.CreateRequest(ctx, "owner-1001", 100)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyPending)
}

func TestAttachReceipt(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	require.NoError(t, gate.AttachReceipt(ctx, id, "txn-0001"))
	require.NotNil(t, repo.get(id).ReceiptRef)
	assert.Equal(t, "txn-0001", *repo.get(id).ReceiptRef)

	// Re-attaching replaces the reference.
	require.NoError(t, gate.AttachReceipt(ctx, id, "txn-0002"))
	assert.Equal(t, "txn-0002", *repo.get(id).ReceiptRef)
}

func TestAttachReceiptAfterDecision(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)
	require.NoError(t, gate.Decide(ctx, id, domain.DecisionReject, adminActor))

	err = gate.AttachReceipt(ctx, id, "txn-0001")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)
}

func TestDecideRequiresAdmin(t *testing.T) {
	repo := newMemPaymentRepo()
	activator := &stubActivator{}
	gate := payment.NewGate(repo, activator, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	err = gate.Decide(ctx, id, domain.DecisionApprove, plainActor)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, 0, activator.calls)
	assert.Equal(t, domain.PaymentPending, repo.get(id).Status)
}

func TestDecideApprove(t *testing.T) {
	repo := newMemPaymentRepo()
	activator := &stubActivator{}
	notifier := &recordingNotifier{}
	gate := payment.NewGate(repo, activator, notifier, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	require.NoError(t, gate.Decide(ctx, id, domain.DecisionApprove, adminActor))

	assert.Equal(t, 1, activator.calls)
	assert.Equal(t, domain.PaymentApproved, repo.get(id).Status)
	require.Len(t, notifier.decided, 1)
	assert.Equal(t, domain.PaymentApproved, notifier.decided[0])
}

func TestDecideReject(t *testing.T) {
	repo := newMemPaymentRepo()
	activator := &stubActivator{}
	notifier := &recordingNotifier{}
	gate := payment.NewGate(repo, activator, notifier, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	require.NoError(t, gate.Decide(ctx, id, domain.DecisionReject, adminActor))

	assert.Equal(t, 0, activator.calls, "rejection must not touch the license")
	assert.Equal(t, domain.PaymentRejected, repo.get(id).Status)
	require.Len(t, notifier.decided, 1)
	assert.Equal(t, domain.PaymentRejected, notifier.decided[0])
}

func TestDecideExactlyOnce(t *testing.T) {
	repo := newMemPaymentRepo()
	activator := &stubActivator{}
	gate := payment.NewGate(repo, activator, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	require.NoError(t, gate.Decide(ctx, id, domain.DecisionApprove, adminActor))

	// A repeat decision, approve or reject, must not re-activate or flip
	// the terminal state.
	err = gate.Decide(ctx, id, domain.DecisionApprove, adminActor)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)
	err = gate.Decide(ctx, id, domain.DecisionReject, adminActor)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyDecided)

	assert.Equal(t, 1, activator.calls)
	assert.Equal(t, domain.PaymentApproved, repo.get(id).Status)
}

func TestDecideApproveActivationFailureKeepsPending(t *testing.T) {
	repo := newMemPaymentRepo()
	activator := &stubActivator{err: errors.New("database locked")}
	gate := payment.NewGate(repo, activator, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	err = gate.Decide(ctx, id, domain.DecisionApprove, adminActor)
	require.Error(t, err)
	assert.Equal(t, domain.PaymentPending, repo.get(id).Status,
		"a failed activation leaves the request pending for retry")

	// The admin retries after the fault clears.
	activator.err = nil
	require.NoError(t, gate.Decide(ctx, id, domain.DecisionApprove, adminActor))
	assert.Equal(t, domain.PaymentApproved, repo.get(id).Status)
}

func TestDecideUnknownDecision(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	err = gate.Decide(ctx, id, domain.Decision("maybe"), adminActor)
	assert.Error(t, err)
	assert.Equal(t, domain.PaymentPending, repo.get(id).Status)
}

func TestListPendingRequiresAdmin(t *testing.T) {
	repo := newMemPaymentRepo()
	gate := payment.NewGate(repo, &stubActivator{}, nil, testLogger())
	ctx := context.Background()

	_, err := gate.ListPending(ctx, plainActor)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	id, err := gate.CreateRequest(ctx, "owner-1001", 100)
	require.NoError(t, err)

	pending, err := gate.ListPending(ctx, adminActor)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}
