package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the shared GORM handle. It is the single shared mutable resource
// on the server; every repository borrows it.
type DB struct {
	gorm   *gorm.DB
	logger *slog.Logger
}

// Open opens the SQLite database at path and applies pending migrations.
// Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// concurrent binding CAS writes serialized instead of returning SQLITE_BUSY.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{gorm: gdb, logger: logger.With(slog.String("component", "store"))}
	if err := db.Migrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Ping verifies database connectivity for health checks.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Gorm exposes the handle to repositories in this package and to tests.
func (db *DB) Gorm() *gorm.DB { return db.gorm }

// Stats is the aggregate snapshot served by the stats endpoint.
type Stats struct {
	TotalLicenses   int64     `json:"total_licenses"`
	ActiveLicenses  int64     `json:"active_licenses"`
	ExpiredLicenses int64     `json:"expired_licenses"`
	PendingPayments int64     `json:"pending_payments"`
	TotalOwners     int64     `json:"total_owners"`
	Timestamp       time.Time `json:"timestamp"`
}
