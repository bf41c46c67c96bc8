package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// LicenseRepo is the GORM-backed license repository. It exclusively owns
// License rows; no other component writes the licenses table.
type LicenseRepo struct {
	db *DB
}

// NewLicenseRepo creates a license repository over the shared handle.
func NewLicenseRepo(db *DB) *LicenseRepo {
	return &LicenseRepo{db: db}
}

// Create inserts a new license row. Returns ErrAlreadyExists semantics via
// gorm.ErrDuplicatedKey when the owner already has a license; callers race
// on the unique owner_id index and the loser re-reads.
func (r *LicenseRepo) Create(ctx context.Context, lic *domain.License) error {
	return r.db.gorm.WithContext(ctx).Create(lic).Error
}

// IsDuplicate reports whether err is the unique-constraint violation raised
// when two concurrent first calls insert for the same owner.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// GetByOwner fetches the license for an owner, or ErrKeyNotFound.
func (r *LicenseRepo) GetByOwner(ctx context.Context, ownerID string) (*domain.License, error) {
	var lic domain.License
	err := r.db.gorm.WithContext(ctx).Where("owner_id = ?", ownerID).First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get license by owner: %w", err)
	}
	return &lic, nil
}

// GetByKey fetches the license for a key, or ErrKeyNotFound.
func (r *LicenseRepo) GetByKey(ctx context.Context, key string) (*domain.License, error) {
	var lic domain.License
	err := r.db.gorm.WithContext(ctx).Where("license_key = ?", key).First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	return &lic, nil
}

// Save persists a full license row update (state-machine transitions).
func (r *LicenseRepo) Save(ctx context.Context, lic *domain.License) error {
	return r.db.gorm.WithContext(ctx).Save(lic).Error
}

// BindAccount performs the first-use-wins compare-and-swap: the account is
// written only if bound_account is still NULL. Returns true when this call
// won the binding; false means another request bound first (or the row is
// already bound) and the caller must re-read.
func (r *LicenseRepo) BindAccount(ctx context.Context, key, accountID string) (bool, error) {
	res := r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Where("license_key = ? AND (bound_account IS NULL OR bound_account = '')", key).
		Update("bound_account", accountID)
	if res.Error != nil {
		return false, fmt.Errorf("bind account: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ResetBinding clears the bound account. Administrative operation only;
// there is no self-service unbind.
func (r *LicenseRepo) ResetBinding(ctx context.Context, key string) error {
	res := r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Where("license_key = ?", key).
		Update("bound_account", nil)
	if res.Error != nil {
		return fmt.Errorf("reset binding: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrKeyNotFound
	}
	return nil
}

// MarkExpired flips an active license to expired once its expiry has passed.
// The condition in the WHERE clause makes the flip idempotent under
// concurrent reads; only the first caller updates the row.
func (r *LicenseRepo) MarkExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	res := r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Where("license_key = ? AND status = ? AND expires_at IS NOT NULL AND expires_at < ?",
			key, domain.StatusActive, now).
		Update("status", domain.StatusExpired)
	if res.Error != nil {
		return false, fmt.Errorf("mark expired: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Recent returns the most recently created licenses for the admin listing.
func (r *LicenseRepo) Recent(ctx context.Context, limit int) ([]domain.License, error) {
	var out []domain.License
	err := r.db.gorm.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list recent licenses: %w", err)
	}
	return out, nil
}

// Stats aggregates license counts for the stats endpoint.
func (r *LicenseRepo) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	g := r.db.gorm.WithContext(ctx).Model(&domain.License{})
	s := &Stats{Timestamp: now}

	if err := g.Count(&s.TotalLicenses).Error; err != nil {
		return nil, fmt.Errorf("count licenses: %w", err)
	}
	err := r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Where("status = ? AND (expires_at IS NULL OR expires_at >= ?)", domain.StatusActive, now).
		Count(&s.ActiveLicenses).Error
	if err != nil {
		return nil, fmt.Errorf("count active licenses: %w", err)
	}
	err = r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Count(&s.ExpiredLicenses).Error
	if err != nil {
		return nil, fmt.Errorf("count expired licenses: %w", err)
	}
	err = r.db.gorm.WithContext(ctx).Model(&domain.License{}).
		Distinct("owner_id").
		Count(&s.TotalOwners).Error
	if err != nil {
		return nil, fmt.Errorf("count owners: %w", err)
	}
	return s, nil
}

// Count returns the total number of license rows, for health reporting.
func (r *LicenseRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.gorm.WithContext(ctx).Model(&domain.License{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count licenses: %w", err)
	}
	return n, nil
}
