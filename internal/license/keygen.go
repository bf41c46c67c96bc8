package license

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/hkdf"

	"rfxlicense/internal/domain"
	"rfxlicense/internal/store"
)

// keyPattern matches the grouped key format: PFX-AAAA-BBBB-CCCC-DDDD where
// each group is four upper-case hex characters.
var keyPattern = regexp.MustCompile(`^[A-Z]{2,5}(-[0-9A-F]{4}){4}$`)

// ValidKeyFormat reports whether key is syntactically a license key. This is
// the cheap first gate of verification; it never touches storage.
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(strings.TrimSpace(key))
}

// KeyGenerator derives permanent, per-owner license keys. Derivation is a
// keyed hash of the owner identity under the server secret, so the same
// owner always maps to the same key and keys cannot be forged without the
// secret.
type KeyGenerator struct {
	repo   Repository
	secret []byte
	prefix string
	logger *slog.Logger
}

// NewKeyGenerator creates a key generator. The secret must be non-empty and
// stable across restarts; the prefix is the human-visible product tag.
func NewKeyGenerator(repo Repository, secret, prefix string, logger *slog.Logger) *KeyGenerator {
	return &KeyGenerator{
		repo:   repo,
		secret: []byte(secret),
		prefix: strings.ToUpper(prefix),
		logger: logger.With(slog.String("component", "keygen")),
	}
}

// DeriveKey computes the key for an owner without touching storage.
func (g *KeyGenerator) DeriveKey(ownerID string) (string, error) {
	kdf := hkdf.New(sha256.New, g.secret, nil, []byte(ownerID))
	raw := make([]byte, 8)
	if _, err := io.ReadFull(kdf, raw); err != nil {
		return "", fmt.Errorf("derive key material: %w", err)
	}
	h := strings.ToUpper(hex.EncodeToString(raw))
	return fmt.Sprintf("%s-%s-%s-%s-%s", g.prefix, h[0:4], h[4:8], h[8:12], h[12:16]), nil
}

// GetOrCreateKey returns the owner's permanent key, creating an inactive
// license row on first call. Idempotent: concurrent first calls converge on
// one row via the unique owner index, the loser re-reading the winner's row.
func (g *KeyGenerator) GetOrCreateKey(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("owner id must not be empty")
	}

	if existing, err := g.repo.GetByOwner(ctx, ownerID); err == nil {
		return existing.Key, nil
	}

	key, err := g.DeriveKey(ownerID)
	if err != nil {
		return "", err
	}

	lic := &domain.License{
		Key:     key,
		OwnerID: ownerID,
		Type:    domain.TypeTrial,
		Status:  domain.StatusInactive,
	}
	if err := g.repo.Create(ctx, lic); err != nil {
		if store.IsDuplicate(err) {
			winner, rerr := g.repo.GetByOwner(ctx, ownerID)
			if rerr != nil {
				return "", fmt.Errorf("re-read license after insert race: %w", rerr)
			}
			return winner.Key, nil
		}
		return "", fmt.Errorf("persist new license: %w", err)
	}

	g.logger.InfoContext(ctx, "license key issued",
		slog.String("owner_id", ownerID),
		slog.String("key", MaskKey(key)),
	)
	return key, nil
}

// MaskKey hides the middle of a key for log output.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
