package license

import (
	"context"
	"fmt"
	"log/slog"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// BindingGuard enforces first-use-wins binding of a key to exactly one
// trading account. Binding is permanent; only an administrative reset,
// outside this guard, can clear it.
type BindingGuard struct {
	repo   Repository
	logger *slog.Logger
}

// NewBindingGuard creates the guard.
func NewBindingGuard(repo Repository, logger *slog.Logger) *BindingGuard {
	return &BindingGuard{
		repo:   repo,
		logger: logger.With(slog.String("component", "binding_guard")),
	}
}

// Check passes if the license is bound to accountID, binds it if it is
// still unbound, and fails with ErrWrongAccount otherwise. The bind is a
// compare-and-swap on the row: when several terminals probe a leaked key
// simultaneously, exactly one wins and the rest re-read the bound value.
// Returns true when this call established the binding.
func (g *BindingGuard) Check(ctx context.Context, lic *domain.License, accountID string) (bool, error) {
	if accountID == "" {
		return false, apperrors.ErrWrongAccount
	}

	if lic.Bound() {
		if *lic.BoundAccount == accountID {
			return false, nil
		}
		return false, apperrors.ErrWrongAccount
	}

	won, err := g.repo.BindAccount(ctx, lic.Key, accountID)
	if err != nil {
		return false, fmt.Errorf("bind account: %w", err)
	}
	if won {
		lic.BoundAccount = &accountID
		g.logger.InfoContext(ctx, "license bound to account",
			slog.String("key", MaskKey(lic.Key)),
			slog.String("account_id", accountID),
		)
		return true, nil
	}

	// Lost the race: another request bound first. Re-read and compare.
	fresh, err := g.repo.GetByKey(ctx, lic.Key)
	if err != nil {
		return false, err
	}
	lic.BoundAccount = fresh.BoundAccount
	if fresh.Bound() && *fresh.BoundAccount == accountID {
		return false, nil
	}
	return false, apperrors.ErrWrongAccount
}
