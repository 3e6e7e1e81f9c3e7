package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

type TxConfig struct {
	MaxAttempts uint
	LockTimeout time.Duration
	BaseDelay   time.Duration
}

func DefaultTxConfig() TxConfig {
	return TxConfig{MaxAttempts: 3, LockTimeout: 3 * time.Second, BaseDelay: 20 * time.Millisecond}
}

// TxManager runs a unit of work in one transaction and retries it when the
// database aborts it for contention.
type TxManager struct {
	db     *sqlx.DB
	cfg    TxConfig
	logger logger.ZapLogger
}

func NewTxManager(db *sqlx.DB, cfg TxConfig, log logger.ZapLogger) *TxManager {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &TxManager{db: db, cfg: cfg, logger: log}
}

func (m *TxManager) DB() *sqlx.DB {
	return m.db
}

// WithinTx executes fn inside a transaction. fn may run more than once and
// must not have side effects outside tx.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := m.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if IsConflict(err) {
			m.logger.Warn("transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.BaseDelay
	b.MaxInterval = 10 * m.cfg.BaseDelay

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(m.cfg.MaxAttempts))
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if IsConflict(err) && !errors.Is(err, apperror.ErrConcurrencyConflict) {
		return apperror.Wrap(apperror.CodeConcurrencyConflict,
			fmt.Sprintf("transaction aborted after %d attempts", attempt), err)
	}
	return err
}

func (m *TxManager) runOnce(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if IsPostgres(tx) && m.cfg.LockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.cfg.LockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Postgres SQLSTATEs that abort a transaction because of contention.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// IsConflict reports whether err is a retryable contention failure.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, apperror.ErrConcurrencyConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked
	}
	return false
}
