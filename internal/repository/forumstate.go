package repository

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresForumStateRepository implements the single shared storage unit
// backing the session directory and the thread collection. Documents are
// addressed by key alone and read and written whole.
type PostgresForumStateRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresForumStateRepository creates a new PostgresForumStateRepository
// with the given database connection.
func NewPostgresForumStateRepository(db *sql.DB) *PostgresForumStateRepository {
	return &PostgresForumStateRepository{DB: db}
}

// Get returns the document stored under key, or nil when no document exists.
func (r *PostgresForumStateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT value FROM forum_state WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

// Put stores value under key, replacing any existing document.
func (r *PostgresForumStateRepository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO forum_state (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

// Delete removes the document stored under key. Deleting an absent document
// is not an error.
func (r *PostgresForumStateRepository) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`DELETE FROM forum_state WHERE key = $1`,
		key,
	)
	return err
}
