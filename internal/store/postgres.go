package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/polltrend/internal/contracts"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS polltrend;

CREATE TABLE IF NOT EXISTS polltrend.trend_runs (
	id           UUID PRIMARY KEY,
	source       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	settings     JSONB NOT NULL,
	observations INTEGER NOT NULL,
	candidates   TEXT[] NOT NULL,
	result       JSONB NOT NULL,
	diagnostics  JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trend_runs_finished_at ON polltrend.trend_runs (finished_at DESC);

CREATE TABLE IF NOT EXISTS polltrend.trend_points (
	run_id     UUID NOT NULL REFERENCES polltrend.trend_runs (id) ON DELETE CASCADE,
	trend_date DATE NOT NULL,
	candidate  TEXT NOT NULL,
	value      DOUBLE PRECISION,
	PRIMARY KEY (run_id, trend_date, candidate)
);

ALTER TABLE polltrend.trend_runs ADD COLUMN IF NOT EXISTS leader TEXT NOT NULL DEFAULT '';
ALTER TABLE polltrend.trend_runs ADD COLUMN IF NOT EXISTS average_outliers INTEGER NOT NULL DEFAULT 0;
ALTER TABLE polltrend.trend_runs ADD COLUMN IF NOT EXISTS observation_outliers INTEGER NOT NULL DEFAULT 0;
ALTER TABLE polltrend.trend_runs ADD COLUMN IF NOT EXISTS warnings INTEGER NOT NULL DEFAULT 0;`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var runColumns = []string{
	"id::text", "source", "started_at", "finished_at", "settings",
	"observations", "result", "diagnostics",
}

// summaryColumns are enough for RunSummary without decoding result JSONB
var summaryColumns = []string{
	"id::text", "source", "started_at", "finished_at", "observations",
	"candidates", "leader", "average_outliers", "observation_outliers", "warnings",
}

// PostgresStore persists runs in PostgreSQL. The full result is kept as JSONB;
// trend points are also flattened into trend_points for ad-hoc queries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if needed
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveRun inserts the run and its trend points in one transaction
func (s *PostgresStore) SaveRun(ctx context.Context, run *contracts.TrendRun) error {
	query, args, err := insertRunQuery(run)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if run.Result != nil && run.Result.Trends != nil {
		batch := &pgx.Batch{}
		for _, p := range run.Result.Trends.Points() {
			query, args, err := insertPointQuery(run.ID, p)
			if err != nil {
				return err
			}
			batch.Queue(query, args...)
		}

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert trend point: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// insertRunQuery builds the trend_runs insert, including the summary columns
func insertRunQuery(run *contracts.TrendRun) (string, []interface{}, error) {
	settings, err := json.Marshal(run.Settings)
	if err != nil {
		return "", nil, fmt.Errorf("marshal settings: %w", err)
	}
	result, err := json.Marshal(run.Result)
	if err != nil {
		return "", nil, fmt.Errorf("marshal result: %w", err)
	}
	diagnostics, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return "", nil, fmt.Errorf("marshal diagnostics: %w", err)
	}

	sum := run.Summary()
	candidates := sum.Candidates
	if candidates == nil {
		candidates = []string{}
	}

	return psql.Insert("polltrend.trend_runs").
		Columns(
			"id", "source", "started_at", "finished_at", "settings", "observations",
			"candidates", "result", "diagnostics",
			"leader", "average_outliers", "observation_outliers", "warnings",
		).
		Values(
			run.ID, run.Source, run.StartedAt, run.FinishedAt, settings, run.Observations,
			candidates, result, diagnostics,
			sum.Leader, sum.AverageOutliers, sum.ObservationOutliers, sum.Warnings,
		).
		ToSql()
}

func insertPointQuery(runID string, p contracts.TrendPoint) (string, []interface{}, error) {
	return psql.Insert("polltrend.trend_points").
		Columns("run_id", "trend_date", "candidate", "value").
		Values(runID, p.Date, p.Candidate, p.Value).
		ToSql()
}

// LatestRun returns the run with the newest finished_at
func (s *PostgresStore) LatestRun(ctx context.Context) (*contracts.TrendRun, error) {
	query, args, err := psql.Select(runColumns...).
		From("polltrend.trend_runs").
		OrderBy("finished_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryRun(ctx, query, args...)
}

// GetRun loads a run by id
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*contracts.TrendRun, error) {
	query, args, err := psql.Select(runColumns...).
		From("polltrend.trend_runs").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryRun(ctx, query, args...)
}

// ListRuns returns up to limit summaries, newest first
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]contracts.RunSummary, error) {
	query, args, err := listRunsQuery(limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.RunSummary
	for rows.Next() {
		var r contracts.RunSummary
		if err := rows.Scan(
			&r.ID, &r.Source, &r.StartedAt, &r.FinishedAt, &r.Observations,
			&r.Candidates, &r.Leader, &r.AverageOutliers, &r.ObservationOutliers, &r.Warnings,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listRunsQuery(limit int) (string, []interface{}, error) {
	b := psql.Select(summaryColumns...).
		From("polltrend.trend_runs").
		OrderBy("finished_at DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

func (s *PostgresStore) queryRun(ctx context.Context, query string, args ...interface{}) (*contracts.TrendRun, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrRunNotFound
	}
	return run, err
}

func scanRun(row pgx.Row) (*contracts.TrendRun, error) {
	var (
		run                           contracts.TrendRun
		settings, result, diagnostics []byte
	)
	if err := row.Scan(
		&run.ID, &run.Source, &run.StartedAt, &run.FinishedAt, &settings,
		&run.Observations, &result, &diagnostics,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settings, &run.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal(result, &run.Result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if err := json.Unmarshal(diagnostics, &run.Diagnostics); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	return &run, nil
}
