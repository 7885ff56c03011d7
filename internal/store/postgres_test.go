package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proposal-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), string(model.RunStatusQueued), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testRFQ(), testEntity())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rfqJSON, err := json.Marshal(testRFQ())
	require.NoError(t, err)
	entityJSON, err := json.Marshal(testEntity())
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "rfq", "entity", "status", "result", "created_at", "updated_at"}).
		AddRow("run-1", rfqJSON, entityJSON, model.RunStatusComplete, (*[]byte)(nil), now, now)

	mock.ExpectQuery(`SELECT id, rfq, entity, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "rfq-001", run.RFQ.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Nil(t, run.Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, rfq, entity, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs(string(model.RunStatusWriting), pgxmock.AnyArg(), "nonexistent-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "nonexistent-run", model.RunStatusWriting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunResult(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), string(model.RunStatusFailed), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	result := &model.RunResult{Error: "boom", FailedStage: string(model.StageAssembly)}
	err := s.UpdateRunResult(context.Background(), "run-1", model.RunStatusFailed, result)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StageLifecycle(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_stages`).
		WithArgs(pgxmock.AnyArg(), "run-1", string(model.StageDataExtraction), string(model.StageStatusRunning), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec, err := s.CreateStage(context.Background(), "run-1", string(model.StageDataExtraction))
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE run_stages SET status`).
		WithArgs(string(model.StageStatusComplete), pgxmock.AnyArg(), rec.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.CompleteStage(context.Background(), rec.ID, &model.StageResult{
		Name:   string(model.StageDataExtraction),
		Status: model.StageStatusComplete,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveAndGetDocument(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	doc := &model.GeneratedDocument{
		Metadata: model.DocumentMetadata{RFQID: "rfq-001", Version: 3},
		Nodes: []model.DocumentNode{
			{ID: "root", Type: model.BlockHeading1, Content: "Proposal"},
		},
	}

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(pgxmock.AnyArg(), "run-1", "rfq-001", 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveDocument(context.Background(), "run-1", doc))

	docJSON, err := json.Marshal(doc)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT doc FROM documents WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(docJSON))

	got, err := s.GetDocument(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Metadata.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestVersion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\) FROM documents WHERE rfq_id = \$1`).
		WithArgs("rfq-001").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(4))

	v, err := s.LatestVersion(context.Background(), "rfq-001")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_FilterArgs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rfqJSON, err := json.Marshal(testRFQ())
	require.NoError(t, err)
	entityJSON, err := json.Marshal(testEntity())
	require.NoError(t, err)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "rfq", "entity", "status", "result", "created_at", "updated_at"}).
		AddRow("run-1", rfqJSON, entityJSON, model.RunStatusComplete, (*[]byte)(nil), now, now)

	mock.ExpectQuery(`SELECT id, rfq, entity, status, result, created_at, updated_at FROM runs WHERE true AND status = \$1 AND rfq->>'id' = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(string(model.RunStatusComplete), "rfq-001", 50).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusComplete,
		RFQID:  "rfq-001",
		Limit:  50,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
