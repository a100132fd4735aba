// Package storage persists dedup records in Postgres. The reservation
// insert is the atomic claim that prevents two concurrent runs from
// publishing the same canonical key.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"ArticleForge/internal/domain"
	"ArticleForge/internal/ports"
)

const uniqueViolation = "23505"

// RecordStore is the Postgres-backed dedup store.
type RecordStore struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
}

var _ ports.RecordStore = (*RecordStore)(nil)

// NewRecordStore wires a sql.DB into the store.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{
		db:      sqlx.NewDb(db, "postgres"),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate creates the dedup table.
func (s *RecordStore) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS generated_articles (
    canonical_key TEXT PRIMARY KEY,
    publish_ref   TEXT NOT NULL DEFAULT '',
    run_id        TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_generated_articles_created ON generated_articles(created_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate dedup store: %w", err)
	}
	return nil
}

// CheckDuplicate looks up an existing record for the key. A nil record
// means the key is free.
func (s *RecordStore) CheckDuplicate(ctx context.Context, key string) (*domain.DedupRecord, error) {
	query, args, err := s.builder.
		Select("canonical_key", "publish_ref", "run_id", "created_at").
		From("generated_articles").
		Where(sq.Eq{"canonical_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build duplicate query: %w", err)
	}

	var record domain.DedupRecord
	if err := s.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("check duplicate %s: %w", key, err)
	}
	return &record, nil
}

// Reserve atomically claims a canonical key for a run. The insert relies
// on the primary key: zero rows affected (or a unique violation) means
// another run holds the key, which is the duplicate signal.
func (s *RecordStore) Reserve(ctx context.Context, key, runID string) (bool, *domain.DedupRecord, error) {
	query, args, err := s.builder.
		Insert("generated_articles").
		Columns("canonical_key", "run_id").
		Values(key, runID).
		Suffix("ON CONFLICT (canonical_key) DO NOTHING").
		ToSql()
	if err != nil {
		return false, nil, fmt.Errorf("build reserve query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			existing, lookupErr := s.CheckDuplicate(ctx, key)
			if lookupErr != nil {
				return false, nil, lookupErr
			}
			return false, existing, nil
		}
		return false, nil, fmt.Errorf("reserve %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("reserve %s: rows affected: %w", key, err)
	}
	if affected == 0 {
		existing, lookupErr := s.CheckDuplicate(ctx, key)
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}
	return true, nil, nil
}

// Complete stamps the publish reference onto a reserved record after a
// successful publish. Mutation happens here, once, never speculatively.
func (s *RecordStore) Complete(ctx context.Context, key, publishRef string) error {
	query, args, err := s.builder.
		Update("generated_articles").
		Set("publish_ref", publishRef).
		Where(sq.Eq{"canonical_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Release frees a reservation this run made but could not finish, so an
// aborted run does not squat on the key. Only the owning run's
// unpublished reservation is removed.
func (s *RecordStore) Release(ctx context.Context, key, runID string) error {
	query, args, err := s.builder.
		Delete("generated_articles").
		Where(sq.Eq{"canonical_key": key, "run_id": runID, "publish_ref": ""}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build release query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Reset deletes the record for a key regardless of owner. Operator
// action: allows regenerating an article that was published before.
func (s *RecordStore) Reset(ctx context.Context, key string) error {
	query, args, err := s.builder.
		Delete("generated_articles").
		Where(sq.Eq{"canonical_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build reset query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}
	return nil
}
