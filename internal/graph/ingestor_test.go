package graph_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/feedguard/internal/graph"
	"github.com/jonesrussell/feedguard/internal/logger"
)

func newMockIngestor(t *testing.T) (*graph.Ingestor, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return graph.NewIngestor(sqlxDB, "u1", logger.NewNop()), mock
}

func TestIngestPost(t *testing.T) {
	t.Helper()

	ingestor, mock := newMockIngestor(t)

	// User, post, and domain nodes are merged.
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("user:u1", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("post:p1", "post", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("domain:bad.example", "domain", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// One contains edge per domain, then the view edge.
	mock.ExpectExec("INSERT INTO graph_edges").
		WithArgs("post:p1", "domain:bad.example", "contains", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO graph_edges").
		WithArgs("user:u1", "post:p1", "view", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	ingestor.IngestPost(context.Background(), "p1", []string{"bad.example"}, map[string]any{"links": 1})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestIngestClick(t *testing.T) {
	t.Helper()

	ingestor, mock := newMockIngestor(t)

	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("user:u1", "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_nodes").
		WithArgs("domain:bad.example", "domain", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO graph_edges").
		WithArgs("user:u1", "domain:bad.example", "click", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO graph_edges").
		WithArgs("post:p1", "domain:bad.example", "click", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	ingestor.IngestClick(context.Background(), "bad.example", "p1")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestIngestClick_EmptyDomainIsNoop(t *testing.T) {
	t.Helper()

	ingestor, mock := newMockIngestor(t)

	ingestor.IngestClick(context.Background(), "", "p1")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no database activity, got: %v", err)
	}
}

func TestIngestPost_SwallowsWriteFailures(t *testing.T) {
	t.Helper()

	ingestor, mock := newMockIngestor(t)

	// Every statement fails; ingestion must not panic or surface errors.
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO").WillReturnError(context.DeadlineExceeded)
	}

	ingestor.IngestPost(context.Background(), "p1", nil, nil)
}
