package execstore

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresRepository(sqlxDB), mock
}

func TestPostgresRepository_CreateExecution(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO executions").WillReturnResult(sqlmock.NewResult(1, 1))

	rec := &ExecutionRecord{
		ID: "e1", WorkflowID: "w1", TenantID: "t1", TriggeredBy: TriggeredManual,
		InitialState: []byte(`{}`), StartedAt: time.Now(),
	}
	require.NoError(t, repo.CreateExecution(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CompleteExecutionIsIdempotentAtTheSQLLayer(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE executions SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CompleteExecution(context.Background(), "e1", StatusCompleted, nil, []byte(`{}`), []byte(`[]`), "", "")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetReturnsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT \\* FROM executions").WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.Get(context.Background(), "t1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
