package database

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const DriverSQLite = "sqlite3"

// NewSQLite opens a single-connection SQLite database. Every transaction
// takes the write lock at BEGIN, which serializes writers the way row locks
// do on Postgres. Use ":memory:" for an ephemeral store.
func NewSQLite(ctx context.Context, path string, busyTimeoutMs int) (*sqlx.DB, error) {
	q := url.Values{}
	q.Set("_txlock", "immediate")
	q.Set("_foreign_keys", "1")
	q.Set("_busy_timeout", fmt.Sprint(busyTimeoutMs))

	dsn := "file:" + path + "?" + q.Encode()
	db, err := sqlx.ConnectContext(ctx, DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}
