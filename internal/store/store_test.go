package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
)

var transcriptColumns = []string{"run_id", "seq", "started_at", "duration_ms", "method", "url", "status", "request_body", "response_body", "error"}

func sampleResult(runID string) *schemas.ScenarioResult {
	started := time.Now().Add(-time.Minute)
	return &schemas.ScenarioResult{
		RunID:      runID,
		Scenario:   "matter-lifecycle",
		Identity:   "qa@example.test",
		Status:     schemas.ScenarioPassed,
		StartedAt:  started,
		FinishedAt: started.Add(30 * time.Second),
		Transcript: []schemas.TranscriptEntry{
			{StartedAt: started, DurationMs: 120.5, Method: "POST", URL: "https://app.test/api2/Matter/", Status: 200},
			{StartedAt: started.Add(time.Second), DurationMs: 80.0, Method: "DELETE", URL: "https://app.test/api2/DeleteMatter", Status: 200},
		},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPersistResult(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)

		mockPool.ExpectPing().WillReturnError(nil)
		s, err := New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)
		return s, mockPool
	}

	t.Run("should persist a run and its transcript in one transaction", func(t *testing.T) {
		s, mockPool := newStore(t)
		result := sampleResult(uuid.NewString())

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO scenario_runs")).
			WithArgs(result.RunID, result.Scenario, result.Identity,
				string(result.Status), result.Detail, result.StartedAt, result.FinishedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"scenario_transcripts"}, transcriptColumns).
			WillReturnResult(int64(len(result.Transcript)))
		mockPool.ExpectCommit()

		require.NoError(t, s.PersistResult(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should skip the transcript copy when empty", func(t *testing.T) {
		s, mockPool := newStore(t)
		result := sampleResult(uuid.NewString())
		result.Transcript = nil

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO scenario_runs")).
			WithArgs(result.RunID, result.Scenario, result.Identity,
				string(result.Status), result.Detail, result.StartedAt, result.FinishedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()

		require.NoError(t, s.PersistResult(ctx, result))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		s, mockPool := newStore(t)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := s.PersistResult(ctx, sampleResult(uuid.NewString()))
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should rollback when the transcript copy fails", func(t *testing.T) {
		s, mockPool := newStore(t)
		result := sampleResult(uuid.NewString())

		copyErr := errors.New("copy from failed")
		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO scenario_runs")).
			WithArgs(result.RunID, result.Scenario, result.Identity,
				string(result.Status), result.Detail, result.StartedAt, result.FinishedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"scenario_transcripts"}, transcriptColumns).
			WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.PersistResult(ctx, result)
		require.Error(t, err)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail on a short transcript copy", func(t *testing.T) {
		s, mockPool := newStore(t)
		result := sampleResult(uuid.NewString())

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO scenario_runs")).
			WithArgs(result.RunID, result.Scenario, result.Identity,
				string(result.Status), result.Detail, result.StartedAt, result.FinishedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"scenario_transcripts"}, transcriptColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err := s.PersistResult(ctx, result)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied transcript count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestResultsByScenario(t *testing.T) {
	ctx := context.Background()

	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	now := time.Now()
	columns := []string{"run_id", "scenario", "identity", "status", "detail", "started_at", "finished_at"}
	rows := pgxmock.NewRows(columns).
		AddRow("run-1", "matter-lifecycle", "qa@example.test", "passed", "", now.Add(-time.Hour), now.Add(-time.Hour).Add(20*time.Second)).
		AddRow("run-2", "matter-lifecycle", "qa@example.test", "failed", "delete returned false", now, now.Add(25*time.Second))

	mockPool.ExpectQuery(regexp.QuoteMeta("FROM scenario_runs")).
		WithArgs("matter-lifecycle").
		WillReturnRows(rows)

	results, err := s.ResultsByScenario(ctx, "matter-lifecycle")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, schemas.ScenarioPassed, results[0].Status)
	assert.Equal(t, schemas.ScenarioFailed, results[1].Status)
	assert.Equal(t, "delete returned false", results[1].Detail)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
