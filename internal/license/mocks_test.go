package license_test

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// memRepo is an in-memory license.Repository with the same semantics as the
// SQLite store: unique owner rows, compare-and-swap binding, conditional
// expiry flip. Error fields inject failures.
type memRepo struct {
	mu      sync.Mutex
	byOwner map[string]*domain.License

	createErr error
	getErr    error
	saveErr   error
	bindErr   error
	markErr   error

	bindCalls int
	markCalls int
}

func newMemRepo() *memRepo {
	return &memRepo{byOwner: make(map[string]*domain.License)}
}

func (r *memRepo) Create(ctx context.Context, lic *domain.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.byOwner[lic.OwnerID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, existing := range r.byOwner {
		if existing.Key == lic.Key {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *lic
	r.byOwner[lic.OwnerID] = &cp
	return nil
}

func (r *memRepo) GetByOwner(ctx context.Context, ownerID string) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	lic, ok := r.byOwner[ownerID]
	if !ok {
		return nil, apperrors.ErrKeyNotFound
	}
	cp := *lic
	return &cp, nil
}

func (r *memRepo) GetByKey(ctx context.Context, key string) (*domain.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, lic := range r.byOwner {
		if lic.Key == key {
			cp := *lic
			return &cp, nil
		}
	}
	return nil, apperrors.ErrKeyNotFound
}

func (r *memRepo) Save(ctx context.Context, lic *domain.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *lic
	r.byOwner[lic.OwnerID] = &cp
	return nil
}

func (r *memRepo) BindAccount(ctx context.Context, key, accountID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindCalls++
	if r.bindErr != nil {
		return false, r.bindErr
	}
	for _, lic := range r.byOwner {
		if lic.Key != key {
			continue
		}
		if lic.BoundAccount != nil && *lic.BoundAccount != "" {
			return false, nil
		}
		acct := accountID
		lic.BoundAccount = &acct
		return true, nil
	}
	return false, nil
}

func (r *memRepo) MarkExpired(ctx context.Context, key string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	if r.markErr != nil {
		return false, r.markErr
	}
	for _, lic := range r.byOwner {
		if lic.Key != key {
			continue
		}
		if lic.Status == domain.StatusActive && lic.ExpiresAt != nil && now.After(*lic.ExpiresAt) {
			lic.Status = domain.StatusExpired
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// seed inserts a license directly, bypassing Create semantics.
func (r *memRepo) seed(lic *domain.License) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lic
	r.byOwner[lic.OwnerID] = &cp
}

// get returns the stored row for assertions.
func (r *memRepo) get(ownerID string) *domain.License {
	r.mu.Lock()
	defer r.mu.Unlock()
	lic, ok := r.byOwner[ownerID]
	if !ok {
		return nil
	}
	cp := *lic
	return &cp
}

// memActivity is an in-memory ActivityLog that can fail a configured number
// of times before succeeding.
type memActivity struct {
	mu       sync.Mutex
	entries  []domain.ActivityLogEntry
	failFor  int
	appendEr error
}

func (a *memActivity) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failFor > 0 {
		a.failFor--
		return a.appendEr
	}
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *memActivity) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func (a *memActivity) last() domain.ActivityLogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

// stubPayments answers HasPending with fixed values.
type stubPayments struct {
	pending bool
	err     error
}

func (s *stubPayments) HasPending(ctx context.Context, ownerID string) (bool, error) {
	return s.pending, s.err
}
