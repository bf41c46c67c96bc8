package license

import (
	"context"
	"time"

	"rfxlicense/internal/domain"
)

// Repository is the persistence surface the license core needs. The store
// package provides the SQLite implementation; tests may substitute their
// own.
type Repository interface {
	Create(ctx context.Context, lic *domain.License) error
	GetByOwner(ctx context.Context, ownerID string) (*domain.License, error)
	GetByKey(ctx context.Context, key string) (*domain.License, error)
	Save(ctx context.Context, lic *domain.License) error

	// BindAccount is the single contended write: a compare-and-swap that
	// sets the bound account only while it is still unset. It returns true
	// if this call won the binding.
	BindAccount(ctx context.Context, key, accountID string) (bool, error)

	// MarkExpired persists the lazy expiry flip for an active license whose
	// deadline has passed. Returns true if this call performed the flip.
	MarkExpired(ctx context.Context, key string, now time.Time) (bool, error)
}

// ActivityLog records verification attempts. Append-only.
type ActivityLog interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
}
