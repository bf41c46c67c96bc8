package store

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// migration is one versioned schema step. Steps are idempotent and applied
// in ascending version order exactly once, recorded in schema_migrations.
type migration struct {
	Version int
	Name    string
	Run     func(tx *gorm.DB) error
}

type schemaMigration struct {
	Version   int    `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	AppliedAt time.Time
}

func (schemaMigration) TableName() string { return "schema_migrations" }

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_licenses",
		Run: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS licenses (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					license_key TEXT NOT NULL,
					owner_id TEXT NOT NULL,
					plan_type TEXT NOT NULL,
					status TEXT NOT NULL,
					expires_at DATETIME,
					bound_account TEXT,
					trial_used BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME,
					updated_at DATETIME
				)`).Error
		},
	},
	{
		Version: 2,
		Name:    "licenses_unique_indexes",
		Run: func(tx *gorm.DB) error {
			if err := tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_licenses_license_key ON licenses(license_key)`).Error; err != nil {
				return err
			}
			return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_licenses_owner_id ON licenses(owner_id)`).Error
		},
	},
	{
		Version: 3,
		Name:    "create_payment_requests",
		Run: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS payment_requests (
					id TEXT PRIMARY KEY,
					owner_id TEXT NOT NULL,
					amount REAL NOT NULL,
					status TEXT NOT NULL,
					receipt_ref TEXT,
					created_at DATETIME,
					updated_at DATETIME
				)`).Error
		},
	},
	{
		Version: 4,
		Name:    "create_activity_log",
		Run: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS activity_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					license_key TEXT NOT NULL,
					account_id TEXT NOT NULL,
					action TEXT NOT NULL,
					result TEXT NOT NULL,
					timestamp DATETIME NOT NULL
				)`).Error
		},
	},
	{
		Version: 5,
		Name:    "lookup_indexes",
		Run: func(tx *gorm.DB) error {
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_licenses_status ON licenses(status)`,
				`CREATE INDEX IF NOT EXISTS idx_licenses_expires_at ON licenses(expires_at)`,
				`CREATE INDEX IF NOT EXISTS idx_licenses_bound_account ON licenses(bound_account)`,
				`CREATE INDEX IF NOT EXISTS idx_payment_requests_owner_id ON payment_requests(owner_id)`,
				`CREATE INDEX IF NOT EXISTS idx_payment_requests_status ON payment_requests(status)`,
				`CREATE INDEX IF NOT EXISTS idx_activity_log_license_key ON activity_log(license_key)`,
				`CREATE INDEX IF NOT EXISTS idx_activity_log_timestamp ON activity_log(timestamp)`,
			}
			for _, s := range stmts {
				if err := tx.Exec(s).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending migrations in order. Each step runs in its own
// transaction together with its schema_migrations record, so a failed step
// leaves the version table consistent with the schema.
func (db *DB) Migrate() error {
	if err := db.gorm.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var applied []schemaMigration
	if err := db.gorm.Find(&applied).Error; err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, m := range applied {
		done[m.Version] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			continue
		}
		err := db.gorm.Transaction(func(tx *gorm.DB) error {
			if err := m.Run(tx); err != nil {
				return err
			}
			return tx.Create(&schemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		db.logger.Info("migration applied",
			slog.Int("version", m.Version),
			slog.String("name", m.Name),
		)
	}
	return nil
}
