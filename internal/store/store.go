// Package store persists scenario results and their HTTP transcripts to
// PostgreSQL. The store is optional; the harness runs without one when no
// database URL is configured.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL results repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// PersistResult writes one scenario result and its transcript in a single
// transaction.
func (s *Store) PersistResult(ctx context.Context, result *schemas.ScenarioResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	const insertRun = `
        INSERT INTO scenario_runs (run_id, scenario, identity, status, detail, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	if _, err := tx.Exec(ctx, insertRun,
		result.RunID, result.Scenario, result.Identity,
		string(result.Status), result.Detail,
		result.StartedAt, result.FinishedAt,
	); err != nil {
		return fmt.Errorf("failed to insert scenario run %s: %w", result.RunID, err)
	}

	if len(result.Transcript) > 0 {
		if err := s.persistTranscript(ctx, tx, result.RunID, result.Transcript); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) persistTranscript(ctx context.Context, tx pgx.Tx, runID string, entries []schemas.TranscriptEntry) error {
	rows := make([][]interface{}, len(entries))
	for i, e := range entries {
		rows[i] = []interface{}{
			runID, i, e.StartedAt, e.DurationMs,
			e.Method, e.URL, e.Status,
			e.RequestBody, e.ResponseBody, e.Error,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"scenario_transcripts"},
		[]string{"run_id", "seq", "started_at", "duration_ms", "method", "url", "status", "request_body", "response_body", "error"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy transcript entries: %w", err)
	}
	if int(copyCount) != len(entries) {
		return fmt.Errorf("mismatch in copied transcript count: expected %d, got %d", len(entries), copyCount)
	}
	return nil
}

// ResultsByScenario returns all persisted runs of one scenario, oldest first.
func (s *Store) ResultsByScenario(ctx context.Context, scenario string) ([]schemas.ScenarioResult, error) {
	const query = `
        SELECT run_id, scenario, identity, status, detail, started_at, finished_at
        FROM scenario_runs
        WHERE scenario = $1
        ORDER BY started_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenario runs: %w", err)
	}
	defer rows.Close()

	var results []schemas.ScenarioResult
	for rows.Next() {
		var r schemas.ScenarioResult
		var status string
		if err := rows.Scan(&r.RunID, &r.Scenario, &r.Identity, &status, &r.Detail, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario run row: %w", err)
		}
		r.Status = schemas.ScenarioStatus(status)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}
