package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the tables and indexes this repository expects,
// including the partial unique index guarding the one-pending-per-attendance
// constraint.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same query methods serve inside and outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresRepository is the concrete implementation for a PostgreSQL
// database, driven through the pgx stdlib driver.
type PostgresRepository struct {
	db   querier
	conn *sql.DB
}

// NewPostgresRepository creates a new instance bound to the pool.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, conn: db}
}

// WithinTx runs fn against a transaction-bound repository. The transaction
// commits only if fn returns nil; any error rolls everything back. Calls on
// an already transaction-bound repository join the open transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(ctx context.Context, tr Repository) error) error {
	if _, ok := r.db.(*sql.Tx); ok {
		return fn(ctx, r)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txRepo := &PostgresRepository{db: tx, conn: r.conn}
	if err := fn(ctx, txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
