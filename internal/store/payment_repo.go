package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// PaymentRepo is the GORM-backed payment request repository.
type PaymentRepo struct {
	db *DB
}

// NewPaymentRepo creates a payment repository over the shared handle.
func NewPaymentRepo(db *DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// Create inserts a new pending payment request.
func (r *PaymentRepo) Create(ctx context.Context, req *domain.PaymentRequest) error {
	if err := r.db.gorm.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("create payment request: %w", err)
	}
	return nil
}

// GetByID fetches a payment request, or ErrNotFound.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentRequest, error) {
	var req domain.PaymentRequest
	err := r.db.gorm.WithContext(ctx).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	return &req, nil
}

// HasPending reports whether the owner already has an undecided request.
func (r *PaymentRepo) HasPending(ctx context.Context, ownerID string) (bool, error) {
	var n int64
	err := r.db.gorm.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("owner_id = ? AND status = ?", ownerID, domain.PaymentPending).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count pending payment requests: %w", err)
	}
	return n > 0, nil
}

// AttachReceipt sets (or overwrites) the receipt reference on a pending
// request. Attaching twice simply replaces the reference.
func (r *PaymentRepo) AttachReceipt(ctx context.Context, id, receiptRef string) error {
	res := r.db.gorm.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("id = ?", id).
		Update("receipt_ref", receiptRef)
	if res.Error != nil {
		return fmt.Errorf("attach receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Decide moves a request from pending to the given terminal status. The
// WHERE clause on status makes the transition single-shot: a request that
// is already decided is left untouched and false is returned.
func (r *PaymentRepo) Decide(ctx context.Context, id string, status domain.PaymentStatus) (bool, error) {
	res := r.db.gorm.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("id = ? AND status = ?", id, domain.PaymentPending).
		Update("status", status)
	if res.Error != nil {
		return false, fmt.Errorf("decide payment request: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListPending returns the admin review queue, oldest first.
func (r *PaymentRepo) ListPending(ctx context.Context) ([]domain.PaymentRequest, error) {
	var out []domain.PaymentRequest
	err := r.db.gorm.WithContext(ctx).
		Where("status = ?", domain.PaymentPending).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending payment requests: %w", err)
	}
	return out, nil
}

// CountPending returns the number of undecided requests, for stats.
func (r *PaymentRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.gorm.WithContext(ctx).Model(&domain.PaymentRequest{}).
		Where("status = ?", domain.PaymentPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count pending payment requests: %w", err)
	}
	return n, nil
}
