package domain

import "time"

// Activity actions recorded for every verification attempt.
const (
	ActionVerify = "verify"
	ActionBind   = "bind"
)

// ActivityLogEntry is one row of the append-only verification audit trail.
// Entries are never updated or deleted; the same key showing up with many
// distinct account IDs is the signature of a shared or leaked license.
type ActivityLogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Key       string    `gorm:"column:license_key;not null;index" json:"license_key"`
	AccountID string    `gorm:"column:account_id;not null" json:"account_id"`
	Action    string    `gorm:"column:action;not null" json:"action"`
	Result    string    `gorm:"column:result;not null" json:"result"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index" json:"timestamp"`
}

// TableName pins the audit table name.
func (ActivityLogEntry) TableName() string { return "activity_log" }
