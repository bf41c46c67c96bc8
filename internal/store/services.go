package store

import (
	"context"
	"time"

	"rfxlicense/internal/domain"
)

// AdminService is the administrative read/reset surface over the store,
// consumed by the admin handler.
type AdminService struct {
	licenses *LicenseRepo
	activity *ActivityRepo
}

// NewAdminService creates the admin service.
func NewAdminService(licenses *LicenseRepo, activity *ActivityRepo) *AdminService {
	return &AdminService{licenses: licenses, activity: activity}
}

// RecentLicenses lists the most recently issued licenses.
func (s *AdminService) RecentLicenses(ctx context.Context, limit int) ([]domain.License, error) {
	return s.licenses.Recent(ctx, limit)
}

// ResetBinding clears a license's account binding. This is the only unbind
// path in the system.
func (s *AdminService) ResetBinding(ctx context.Context, key string) error {
	return s.licenses.ResetBinding(ctx, key)
}

// RecentActivity returns the latest audit entries for a key.
func (s *AdminService) RecentActivity(ctx context.Context, key string, limit int) ([]domain.ActivityLogEntry, error) {
	return s.activity.Recent(ctx, key, limit)
}

// DistinctAccounts counts distinct account IDs that probed a key since the
// given time.
func (s *AdminService) DistinctAccounts(ctx context.Context, key string, since time.Time) (int64, error) {
	return s.activity.DistinctAccounts(ctx, key, since)
}

// HealthService reports connectivity and aggregate counts.
type HealthService struct {
	db       *DB
	licenses *LicenseRepo
	payments *PaymentRepo
}

// NewHealthService creates the health service.
func NewHealthService(db *DB, licenses *LicenseRepo, payments *PaymentRepo) *HealthService {
	return &HealthService{db: db, licenses: licenses, payments: payments}
}

// Ping verifies store connectivity.
func (s *HealthService) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// LicenseCount returns the total number of licenses.
func (s *HealthService) LicenseCount(ctx context.Context) (int64, error) {
	return s.licenses.Count(ctx)
}

// Stats aggregates the system snapshot: license counts plus the pending
// payment queue depth.
func (s *HealthService) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats, err := s.licenses.Stats(ctx, now)
	if err != nil {
		return nil, err
	}
	pending, err := s.payments.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	stats.PendingPayments = pending
	return stats, nil
}
