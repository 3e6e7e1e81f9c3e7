// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

// Open returns a fresh in-memory SQLite database with the schema applied.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, ":memory:", 5000)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// TxManager returns a manager with short retry delays.
func TxManager(db *sqlx.DB) *database.TxManager {
	return database.NewTxManager(db, database.TxConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, logger.NewNop())
}
