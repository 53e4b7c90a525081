package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/edstack/academia-api/pkg/config"
)

// Postgres SQLSTATE codes the allocator cares about.
const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeLockNotAvailable     = "55P03"
)

// NewPostgres returns a configured PostgreSQL client. A positive
// lockTimeout bounds how long any statement may wait on a row or
// advisory lock before Postgres aborts it with SQLSTATE 55P03.
func NewPostgres(cfg config.DatabaseConfig, lockTimeout time.Duration) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", buildDSN(cfg, lockTimeout))
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func buildDSN(cfg config.DatabaseConfig, lockTimeout time.Duration) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	if lockTimeout > 0 {
		dsn += fmt.Sprintf(" options='-c lock_timeout=%d'", lockTimeout.Milliseconds())
	}
	return dsn
}

// UniqueConstraint returns the violated constraint name when err is a
// unique violation, and "" otherwise.
func UniqueConstraint(err error) string {
	if pqErr, ok := pqError(err); ok && string(pqErr.Code) == CodeUniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// IsTransient reports whether err is a serialization failure, deadlock
// or lock timeout that the caller may retry.
func IsTransient(err error) bool {
	pqErr, ok := pqError(err)
	if !ok {
		return false
	}
	switch string(pqErr.Code) {
	case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
		return true
	}
	return false
}

// WithinTx runs fn inside a transaction, rolling back on error.
func WithinTx(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}
