package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewSQLite(ctx, ":memory:", 1000)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testTxManager(db *sqlx.DB) *TxManager {
	return NewTxManager(db, TxConfig{MaxAttempts: 3, BaseDelay: time.Millisecond}, logger.NewNop())
}

func insertItem(ctx context.Context, tx *sqlx.Tx, id string) error {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO stocked_items (id, merchant_id, name, item_class, unit, created_at, updated_at)
		VALUES (?, 'm1', ?, 'CONSUMABLE', 'KGS', ?, ?)`), id, "item "+id, now, now)
	return err
}

func countItems(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	if err := db.Get(&n, `SELECT count(*) FROM stocked_items`); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestWithinTxCommits(t *testing.T) {
	db := openTestDB(t)
	m := testTxManager(db)
	ctx := context.Background()

	err := m.WithinTx(ctx, func(tx *sqlx.Tx) error {
		return insertItem(ctx, tx, "a")
	})
	if err != nil {
		t.Fatalf("within tx: %v", err)
	}
	if got := countItems(t, db); got != 1 {
		t.Fatalf("expected 1 item, got %d", got)
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	m := testTxManager(db)
	ctx := context.Background()
	boom := errors.New("boom")

	calls := 0
	err := m.WithinTx(ctx, func(tx *sqlx.Tx) error {
		calls++
		if err := insertItem(ctx, tx, "a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected non-conflict error to run once, ran %d times", calls)
	}
	if got := countItems(t, db); got != 0 {
		t.Fatalf("expected rollback, found %d items", got)
	}
}

func TestWithinTxRetriesConflicts(t *testing.T) {
	db := openTestDB(t)
	m := testTxManager(db)
	ctx := context.Background()

	calls := 0
	err := m.WithinTx(ctx, func(tx *sqlx.Tx) error {
		calls++
		if err := insertItem(ctx, tx, fmt.Sprintf("attempt-%d", calls)); err != nil {
			return err
		}
		if calls < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if got := countItems(t, db); got != 1 {
		t.Fatalf("expected only the committed attempt to persist, got %d items", got)
	}
}

func TestWithinTxSurfacesConcurrencyConflict(t *testing.T) {
	db := openTestDB(t)
	m := testTxManager(db)

	calls := 0
	err := m.WithinTx(context.Background(), func(tx *sqlx.Tx) error {
		calls++
		return &pgconn.PgError{Code: pgSerializationFailure}
	})
	if !errors.Is(err, apperror.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if !apperror.IsRetryable(err) {
		t.Fatal("expected conflict to be retryable")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestIsConflict(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{&pgconn.PgError{Code: pgDeadlockDetected}, true},
		{&pgconn.PgError{Code: pgLockNotAvailable}, true},
		{&pgconn.PgError{Code: "23505"}, false},
		{fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), true},
		{sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{apperror.ErrConcurrencyConflict, true},
		{apperror.ErrInsufficientStock, false},
	}
	for i, c := range cases {
		if got := IsConflict(c.err); got != c.want {
			t.Fatalf("case %d: IsConflict(%v) = %v, want %v", i, c.err, got, c.want)
		}
	}
}
