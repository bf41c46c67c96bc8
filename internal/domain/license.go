package domain

import (
	"time"
)

// LicenseType is the closed set of license plans.
type LicenseType string

const (
	TypeTrial   LicenseType = "trial"
	TypeMonthly LicenseType = "monthly"
)

// Valid reports whether t is a known license type.
func (t LicenseType) Valid() bool {
	return t == TypeTrial || t == TypeMonthly
}

// LicenseStatus is the closed set of license lifecycle states.
type LicenseStatus string

const (
	StatusInactive LicenseStatus = "inactive"
	StatusActive   LicenseStatus = "active"
	StatusExpired  LicenseStatus = "expired"
	StatusRevoked  LicenseStatus = "revoked"
)

// Valid reports whether s is a known license status.
func (s LicenseStatus) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// License is the persisted record governing whether a key grants access.
// One row per owner; the key never changes once issued.
type License struct {
	ID           uint          `gorm:"primaryKey" json:"-"`
	Key          string        `gorm:"column:license_key;uniqueIndex;not null" json:"license_key"`
	OwnerID      string        `gorm:"column:owner_id;uniqueIndex;not null" json:"owner_id"`
	Type         LicenseType   `gorm:"column:plan_type;not null" json:"plan_type"`
	Status       LicenseStatus `gorm:"column:status;not null;index" json:"status"`
	ExpiresAt    *time.Time    `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	BoundAccount *string       `gorm:"column:bound_account;index" json:"bound_account,omitempty"`
	TrialUsed    bool          `gorm:"column:trial_used;not null;default:false" json:"trial_used"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TableName keeps the table name aligned with the verification queries.
func (License) TableName() string { return "licenses" }

// ExpiredAt reports whether the license has lapsed as of now.
// A nil expiry means the license was never activated and cannot have lapsed.
func (l *License) ExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// Bound reports whether the license is already tied to a trading account.
func (l *License) Bound() bool {
	return l.BoundAccount != nil && *l.BoundAccount != ""
}
