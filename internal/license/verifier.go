package license

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rfxlicense/internal/domain"
	apperrors "rfxlicense/internal/errors"
)

// PendingPayments lets the verifier distinguish "waiting for approval" from
// plain inactivity when a license has never been activated.
type PendingPayments interface {
	HasPending(ctx context.Context, ownerID string) (bool, error)
}

// VerificationRecorder counts verification outcomes for monitoring.
type VerificationRecorder interface {
	RecordVerification(result string, elapsed time.Duration)
}

// Verifier is the stateless verification service polled by remote clients.
// A call is idempotent except for two memoized side effects: the one-time
// account binding and the one-time expiry flip.
type Verifier struct {
	repo     Repository
	guard    *BindingGuard
	activity ActivityLog
	payments PendingPayments
	recorder VerificationRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewVerifier creates the verification service. recorder may be nil.
func NewVerifier(repo Repository, guard *BindingGuard, activity ActivityLog, payments PendingPayments, recorder VerificationRecorder, logger *slog.Logger) *Verifier {
	return &Verifier{
		repo:     repo,
		guard:    guard,
		activity: activity,
		payments: payments,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "verifier")),
		now:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (v *Verifier) SetClock(now func() time.Time) { v.now = now }

// Verify runs the full check chain for (key, accountID) and returns the
// verdict. Every attempt, successful or not, is appended to the activity
// log; storage failures are retried once and then surface as server_error,
// never as a false valid.
func (v *Verifier) Verify(ctx context.Context, key, accountID string) *domain.VerificationResult {
	start := v.now()
	res := v.verify(ctx, key, accountID)

	outcome := res.Reason
	if res.Valid {
		outcome = "valid"
	}
	if v.recorder != nil {
		v.recorder.RecordVerification(outcome, v.now().Sub(start))
	}

	entry := &domain.ActivityLogEntry{
		Key:       key,
		AccountID: accountID,
		Action:    domain.ActionVerify,
		Result:    outcome,
		Timestamp: v.now().UTC(),
	}
	if err := v.withRetry(func() error { return v.activity.Append(ctx, entry) }); err != nil {
		v.logger.ErrorContext(ctx, "activity log append failed",
			slog.String("key", MaskKey(key)),
			slog.String("error", err.Error()),
		)
		if res.Valid {
			// A success that cannot be audited is not served as a success.
			return failure(domain.ReasonServerError)
		}
	}

	if !res.Valid {
		v.logger.WarnContext(ctx, "verification failed",
			slog.String("key", MaskKey(key)),
			slog.String("account_id", accountID),
			slog.String("reason", res.Reason),
		)
	}
	return res
}

func (v *Verifier) verify(ctx context.Context, key, accountID string) *domain.VerificationResult {
	// 1. Syntactic format check: cheap rejection before any storage hit.
	if !ValidKeyFormat(key) {
		return failure(domain.ReasonFormatInvalid)
	}

	// 2. Existence lookup.
	lic, err := v.getByKeyRetry(ctx, key)
	if errors.Is(err, apperrors.ErrKeyNotFound) {
		return failure(domain.ReasonKeyNotFound)
	}
	if err != nil {
		v.logger.ErrorContext(ctx, "license lookup failed", slog.String("error", err.Error()))
		return failure(domain.ReasonServerError)
	}

	// 3. Status gate. An inactive license with a pending payment request is
	// reported as payment_unverified so the client can tell the owner what
	// is actually missing.
	switch lic.Status {
	case domain.StatusActive:
		// continue
	case domain.StatusInactive:
		if v.payments != nil {
			pending, perr := v.payments.HasPending(ctx, lic.OwnerID)
			if perr != nil {
				v.logger.ErrorContext(ctx, "pending payment lookup failed", slog.String("error", perr.Error()))
				return failure(domain.ReasonServerError)
			}
			if pending {
				return failure(domain.ReasonPaymentUnverified)
			}
		}
		return failure(domain.ReasonInactive)
	default: // expired, revoked
		if lic.Status == domain.StatusExpired {
			return failure(domain.ReasonExpired)
		}
		return failure(domain.ReasonInactive)
	}

	// 4. Lazy expiry: the first check past the deadline persists the flip.
	if lic.ExpiredAt(v.now()) {
		if err := v.withRetry(func() error {
			_, merr := v.repo.MarkExpired(ctx, lic.Key, v.now())
			return merr
		}); err != nil {
			v.logger.ErrorContext(ctx, "expiry flip failed", slog.String("error", err.Error()))
			return failure(domain.ReasonServerError)
		}
		return failure(domain.ReasonExpired)
	}

	// 5. Account binding: pass, bind-and-pass, or wrong_account.
	bound, err := v.guard.Check(ctx, lic, accountID)
	if errors.Is(err, apperrors.ErrWrongAccount) {
		return failure(domain.ReasonWrongAccount)
	}
	if err != nil {
		v.logger.ErrorContext(ctx, "binding check failed", slog.String("error", err.Error()))
		return failure(domain.ReasonServerError)
	}
	if bound {
		v.logger.InfoContext(ctx, "first verification bound license",
			slog.String("key", MaskKey(key)),
			slog.String("account_id", accountID),
		)
	}

	return &domain.VerificationResult{
		Valid:     true,
		Type:      lic.Type,
		Status:    string(domain.StatusActive),
		ExpiresAt: lic.ExpiresAt,
		AccountID: accountID,
		Message:   "License is valid",
	}
}

func (v *Verifier) getByKeyRetry(ctx context.Context, key string) (*domain.License, error) {
	lic, err := v.repo.GetByKey(ctx, key)
	if err == nil || errors.Is(err, apperrors.ErrKeyNotFound) {
		return lic, err
	}
	return v.repo.GetByKey(ctx, key)
}

// withRetry retries a storage operation once before giving up.
func (v *Verifier) withRetry(fn func() error) error {
	if err := fn(); err != nil {
		return fn()
	}
	return nil
}

func failure(reason string) *domain.VerificationResult {
	return &domain.VerificationResult{Valid: false, Reason: reason}
}
