package store

import (
	"context"
	"fmt"
	"time"

	"rfxlicense/internal/domain"
)

// ActivityRepo is the append-only verification audit trail. Rows are never
// updated or deleted.
type ActivityRepo struct {
	db *DB
}

// NewActivityRepo creates an activity log repository over the shared handle.
func NewActivityRepo(db *DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

// Append records one verification attempt.
func (r *ActivityRepo) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	if err := r.db.gorm.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}

// Recent returns the latest entries for a key, newest first.
func (r *ActivityRepo) Recent(ctx context.Context, key string, limit int) ([]domain.ActivityLogEntry, error) {
	var out []domain.ActivityLogEntry
	err := r.db.gorm.WithContext(ctx).
		Where("license_key = ?", key).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list activity log: %w", err)
	}
	return out, nil
}

// DistinctAccounts counts how many different account IDs probed a key in the
// given window. A high count against one key flags a shared or leaked
// license for anti-abuse review.
func (r *ActivityRepo) DistinctAccounts(ctx context.Context, key string, since time.Time) (int64, error) {
	var n int64
	err := r.db.gorm.WithContext(ctx).Model(&domain.ActivityLogEntry{}).
		Where("license_key = ? AND timestamp >= ?", key, since).
		Distinct("account_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count distinct accounts: %w", err)
	}
	return n, nil
}
