// Package enforcer embeds license verification into a client process.
// It performs a blocking check at startup, re-verifies on a fixed
// interval in the background, and answers Allowed() from a cached
// verdict so the hot path never touches the network.
package enforcer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// State is the enforcement state derived from the last verdict.
type State string

const (
	// StateUnverified means Start has not completed a check yet.
	StateUnverified State = "unverified"
	// StateAllowed means the last authoritative verdict was valid.
	StateAllowed State = "allowed"
	// StateBlocked means operation must stop.
	StateBlocked State = "blocked"
)

// Reasons reported for locally derived blocks. Authoritative reasons
// come from the server verbatim.
const (
	ReasonServerUnreachable = "server_unreachable"
	ReasonExpired           = "expired"
)

// Verdict is the outcome of one verification round trip.
type Verdict struct {
	Valid     bool       `json:"valid"`
	Reason    string     `json:"reason,omitempty"`
	Type      string     `json:"plan_type,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CheckedAt time.Time  `json:"-"`
}

// Config configures an Enforcer. ServerURL, LicenseKey and AccountID
// are required. Zero durations and counts take defaults.
type Config struct {
	ServerURL  string
	LicenseKey string
	AccountID  string

	// CheckInterval is how often the background loop re-verifies.
	CheckInterval time.Duration
	// RetryDelay is the fixed pause between retries of a failed
	// round trip. MaxRetries bounds the attempts per check.
	RetryDelay time.Duration
	MaxRetries int
	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration

	// OnBlocked is invoked once whenever the state transitions to
	// Blocked, with the blocking reason. Optional.
	OnBlocked func(reason string)

	HTTPClient *http.Client
	Logger     *slog.Logger
}

const (
	defaultCheckInterval  = 4 * time.Hour
	defaultRetryDelay     = 10 * time.Second
	defaultMaxRetries     = 3
	defaultRequestTimeout = 15 * time.Second
)

// Enforcer caches the server's verdict and fails closed when the
// server is unreachable for longer than one check interval.
type Enforcer struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu       sync.RWMutex
	state    State
	verdict  Verdict
	lastGood time.Time

	now func() time.Time
}

// New validates cfg and returns an Enforcer in the unverified state.
func New(cfg Config) (*Enforcer, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("enforcer: server URL is required")
	}
	if _, err := url.Parse(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("enforcer: invalid server URL: %w", err)
	}
	if cfg.LicenseKey == "" {
		return nil, fmt.Errorf("enforcer: license key is required")
	}
	if cfg.AccountID == "" {
		return nil, fmt.Errorf("enforcer: account ID is required")
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Enforcer{
		cfg:    cfg,
		client: client,
		logger: logger,
		state:  StateUnverified,
		now:    time.Now,
	}, nil
}

// Start performs one blocking verification. It must succeed before the
// caller begins operating. On failure the enforcer is left Blocked and
// the error carries the reason.
func (e *Enforcer) Start(ctx context.Context) error {
	verdict, err := e.checkWithRetry(ctx)
	if err != nil {
		e.block(ReasonServerUnreachable)
		return fmt.Errorf("enforcer: startup verification failed: %w", err)
	}
	e.apply(verdict)
	if !verdict.Valid {
		return fmt.Errorf("enforcer: license rejected: %s", verdict.Reason)
	}
	return nil
}

// Run re-verifies every CheckInterval until ctx is cancelled. It runs
// in the caller's goroutine and returns on cancellation.
func (e *Enforcer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.checkRound(ctx)
		}
	}
}

// Allowed reports whether operation may proceed. It consults only the
// cached verdict. A cached expiry in the past blocks without waiting
// for the next round trip.
func (e *Enforcer) Allowed() bool {
	e.mu.RLock()
	state := e.state
	verdict := e.verdict
	e.mu.RUnlock()
	if state != StateAllowed {
		return false
	}
	if verdict.ExpiresAt != nil && e.now().After(*verdict.ExpiresAt) {
		e.block(ReasonExpired)
		return false
	}
	return true
}

// State returns the current state and last verdict.
func (e *Enforcer) State() (State, Verdict) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, e.verdict
}

// checkRound runs one scheduled verification and applies fail-closed
// policy on transport failure.
func (e *Enforcer) checkRound(ctx context.Context) {
	verdict, err := e.checkWithRetry(ctx)
	if err != nil {
		e.mu.RLock()
		lastGood := e.lastGood
		state := e.state
		e.mu.RUnlock()
		// Tolerate an unreachable server for at most one interval
		// past the check that failed, then fail closed.
		if state == StateAllowed && e.now().Sub(lastGood) <= 2*e.cfg.CheckInterval {
			e.logger.Warn("license check failed, keeping last verdict",
				"error", err, "last_good", lastGood)
			return
		}
		e.logger.Error("license check failed, blocking", "error", err)
		e.block(ReasonServerUnreachable)
		return
	}
	e.apply(verdict)
}

// checkWithRetry attempts one round trip up to MaxRetries times with a
// fixed delay. An authoritative answer, valid or not, stops retrying.
func (e *Enforcer) checkWithRetry(ctx context.Context) (Verdict, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		verdict, err := e.checkOnce(ctx)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
		if attempt < e.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return Verdict{}, ctx.Err()
			case <-time.After(e.cfg.RetryDelay):
			}
		}
	}
	return Verdict{}, lastErr
}

// checkOnce performs a single verification round trip. A non-nil error
// means transport failure; a decoded response is authoritative even
// when the verdict is invalid.
func (e *Enforcer) checkOnce(ctx context.Context) (Verdict, error) {
	endpoint := fmt.Sprintf("%s/api/verify/%s/%s",
		strings.TrimRight(e.cfg.ServerURL, "/"),
		url.PathEscape(e.cfg.LicenseKey),
		url.PathEscape(e.cfg.AccountID))

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Verdict{}, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Verdict{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("malformed response: %w", err)
	}
	verdict.CheckedAt = e.now()
	return verdict, nil
}

// apply stores an authoritative verdict and updates state.
func (e *Enforcer) apply(verdict Verdict) {
	if !verdict.Valid {
		e.mu.Lock()
		e.verdict = verdict
		e.mu.Unlock()
		e.block(verdict.Reason)
		return
	}
	e.mu.Lock()
	e.verdict = verdict
	e.state = StateAllowed
	e.lastGood = verdict.CheckedAt
	e.mu.Unlock()
	e.logger.Debug("license verified", "type", verdict.Type, "expires_at", verdict.ExpiresAt)
}

// block transitions to Blocked and fires OnBlocked once per transition.
func (e *Enforcer) block(reason string) {
	e.mu.Lock()
	already := e.state == StateBlocked
	e.state = StateBlocked
	if e.verdict.Reason == "" || !already {
		e.verdict.Reason = reason
	}
	e.mu.Unlock()
	if !already && e.cfg.OnBlocked != nil {
		e.cfg.OnBlocked(reason)
	}
}
