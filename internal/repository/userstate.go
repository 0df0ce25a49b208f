// Package repository provides persistence implementations for the two
// stateful storage units: per-user state and the shared forum state.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresUserStateRepository implements per-user keyed storage using a
// PostgreSQL database. Each user owns an isolated set of (key, value)
// documents addressed by username; values are opaque JSON read and written
// whole.
type PostgresUserStateRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserStateRepository creates a new PostgresUserStateRepository
// with the given database connection.
func NewPostgresUserStateRepository(db *sql.DB) *PostgresUserStateRepository {
	return &PostgresUserStateRepository{DB: db}
}

// Get returns the document stored under (username, key), or nil when no
// document exists.
func (r *PostgresUserStateRepository) Get(ctx context.Context, username, key string) ([]byte, error) {
	var value []byte
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT value FROM user_state WHERE username = $1 AND key = $2`,
		username, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

// Put stores value under (username, key), replacing any existing document.
func (r *PostgresUserStateRepository) Put(ctx context.Context, username, key string, value []byte) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO user_state (username, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (username, key) DO UPDATE SET value = EXCLUDED.value`,
		username, key, value,
	)
	return err
}

// Delete removes the document stored under (username, key). Deleting an
// absent document is not an error.
func (r *PostgresUserStateRepository) Delete(ctx context.Context, username, key string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`DELETE FROM user_state WHERE username = $1 AND key = $2`,
		username, key,
	)
	return err
}
