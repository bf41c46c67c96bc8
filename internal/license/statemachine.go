package license

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// StateMachine owns every legal license transition: trial grant, monthly
// activation (including renewal), and the lazy expiry flip. All transitions
// are scoped to a single owner row.
type StateMachine struct {
	repo            Repository
	keygen          *KeyGenerator
	trialDuration   time.Duration
	monthlyDuration time.Duration
	logger          *slog.Logger
	now             func() time.Time
}

// NewStateMachine creates the state machine.
func NewStateMachine(repo Repository, keygen *KeyGenerator, trial, monthly time.Duration, logger *slog.Logger) *StateMachine {
	return &StateMachine{
		repo:            repo,
		keygen:          keygen,
		trialDuration:   trial,
		monthlyDuration: monthly,
		logger:          logger.With(slog.String("component", "state_machine")),
		now:             time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *StateMachine) SetClock(now func() time.Time) { m.now = now }

// RequestTrial grants the one-time trial: the license becomes an active
// trial expiring after the trial duration, and trialUsed latches true
// forever. The binding, if any, is left untouched.
func (m *StateMachine) RequestTrial(ctx context.Context, ownerID string) (*domain.License, error) {
	if _, err := m.keygen.GetOrCreateKey(ctx, ownerID); err != nil {
		return nil, err
	}
	lic, err := m.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if lic.TrialUsed {
		return nil, apperrors.ErrTrialAlreadyUsed
	}

	expires := m.now().Add(m.trialDuration)
	lic.Type = domain.TypeTrial
	lic.Status = domain.StatusActive
	lic.ExpiresAt = &expires
	lic.TrialUsed = true
	if err := m.repo.Save(ctx, lic); err != nil {
		return nil, fmt.Errorf("persist trial grant: %w", err)
	}

	m.logger.InfoContext(ctx, "trial granted",
		slog.String("owner_id", ownerID),
		slog.String("key", MaskKey(lic.Key)),
		slog.Time("expires_at", expires),
	)
	return lic, nil
}

// ActivateMonthly activates or renews the monthly plan. The new expiry is
// max(now, current expiry) + 30d: renewing a running license extends it,
// renewing a lapsed one restarts from now, and the clock never moves
// backwards.
func (m *StateMachine) ActivateMonthly(ctx context.Context, ownerID string) (*domain.License, error) {
	if _, err := m.keygen.GetOrCreateKey(ctx, ownerID); err != nil {
		return nil, err
	}
	lic, err := m.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	base := now
	if lic.ExpiresAt != nil && lic.ExpiresAt.After(now) {
		base = *lic.ExpiresAt
	}
	expires := base.Add(m.monthlyDuration)

	lic.Type = domain.TypeMonthly
	lic.Status = domain.StatusActive
	lic.ExpiresAt = &expires
	// The binding persists across the trial-to-monthly transition: the key
	// is permanent and so is its account.
	if err := m.repo.Save(ctx, lic); err != nil {
		return nil, fmt.Errorf("persist monthly activation: %w", err)
	}

	m.logger.InfoContext(ctx, "monthly license activated",
		slog.String("owner_id", ownerID),
		slog.String("key", MaskKey(lic.Key)),
		slog.Time("expires_at", expires),
	)
	return lic, nil
}

// Status returns the owner's license with lazy expiry applied: if the
// license lapsed since the last read, the expired status is persisted here
// before the row is returned.
func (m *StateMachine) Status(ctx context.Context, ownerID string) (*domain.License, error) {
	lic, err := m.repo.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return m.applyLazyExpiry(ctx, lic)
}

// applyLazyExpiry persists the expired flip when an active license has
// lapsed. There is no background timer; the first read past the deadline
// performs the memoized side effect.
func (m *StateMachine) applyLazyExpiry(ctx context.Context, lic *domain.License) (*domain.License, error) {
	if lic.Status != domain.StatusActive || !lic.ExpiredAt(m.now()) {
		return lic, nil
	}
	flipped, err := m.repo.MarkExpired(ctx, lic.Key, m.now())
	if err != nil {
		return nil, err
	}
	if flipped {
		m.logger.InfoContext(ctx, "license expired on read",
			slog.String("key", MaskKey(lic.Key)),
		)
	}
	lic.Status = domain.StatusExpired
	return lic, nil
}
