package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/admindash/internal/domain"
)

// documentID is the primary key of the single row holding the record set
const documentID = 1

const createDocumentTable = `
	CREATE TABLE IF NOT EXISTS user_documents (
		id         SMALLINT PRIMARY KEY,
		body       JSONB NOT NULL,
		version    BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// PostgresUserStore keeps the whole record set as one JSONB row with a
// version column used for compare-and-swap saves.
type PostgresUserStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserStore creates a new user document store
func NewPostgresUserStore(db *sql.DB, logger *slog.Logger) *PostgresUserStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the document table if it does not exist
func (r *PostgresUserStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createDocumentTable); err != nil {
		return fmt.Errorf("failed to create user_documents table: %w", err)
	}
	return nil
}

// Load reads the record set
func (r *PostgresUserStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	query := `
		SELECT body, version
		FROM user_documents
		WHERE id = $1
	`

	var (
		body    []byte
		version int64
	)
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.Snapshot{Users: []domain.User{}}, nil
		}
		r.logger.Error("failed to load user document",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to load user document: %w", err)
	}

	users, err := decodeUsers(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}
	return &domain.Snapshot{Users: users, Version: uint64(version)}, nil
}

// Save replaces the record set if the stored version still equals expected
func (r *PostgresUserStore) Save(ctx context.Context, users []domain.User, expected uint64) (uint64, error) {
	body, err := encodeUsers(users)
	if err != nil {
		return 0, err
	}

	if expected == 0 {
		return r.insertFirst(ctx, body)
	}

	query := `
		UPDATE user_documents
		SET body = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	var next int64
	err = r.db.QueryRowContext(ctx, query, body, documentID, int64(expected)).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: user document version moved past %d", domain.ErrStaleSnapshot, expected)
		}
		r.logger.Error("failed to save user document",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to save user document: %w", err)
	}

	return uint64(next), nil
}

func (r *PostgresUserStore) insertFirst(ctx context.Context, body []byte) (uint64, error) {
	query := `
		INSERT INTO user_documents (id, body, version)
		VALUES ($1, $2, 1)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, documentID, body)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rows == 0 {
		return 0, fmt.Errorf("%w: user document already exists", domain.ErrStaleSnapshot)
	}

	return 1, nil
}

// Ping checks database connectivity
func (r *PostgresUserStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
