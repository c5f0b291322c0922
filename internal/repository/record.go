package repository

import (
	"context"
	"fmt"

	"harvest/scraper/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecordRepository appends harvested records to a Postgres table. Rows are only
// ever inserted, so reruns add rows exactly like the file sinks do.
type RecordRepository interface {
	EnsureSchema(ctx context.Context) error
	Append(ctx context.Context, record domain.Record) error
	Close() error
}

// executor is the part of *pgxpool.Pool the repository writes through.
type executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type recordRepository struct {
	db    executor
	close func()
	table string
	runID uuid.UUID
}

func NewRecordRepository(db *pgxpool.Pool, table string, runID uuid.UUID) RecordRepository {
	if db == nil {
		return newRecordRepository(nil, func() {}, table, runID)
	}
	return newRecordRepository(db, db.Close, table, runID)
}

func newRecordRepository(db executor, closeFn func(), table string, runID uuid.UUID) *recordRepository {
	return &recordRepository{
		db:    db,
		close: closeFn,
		table: pgx.Identifier{table}.Sanitize(),
		runID: runID,
	}
}

func (r *recordRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id         BIGSERIAL PRIMARY KEY,
		run_id     UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		data       JSONB NOT NULL
	)`, r.table)
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", r.table, err)
	}
	return nil
}

func (r *recordRepository) Append(ctx context.Context, record domain.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (run_id, data) VALUES ($1, $2)`, r.table)
	_, err := r.db.Exec(ctx, query, r.runID, map[string]any(record))
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

func (r *recordRepository) Close() error {
	r.close()
	return nil
}
