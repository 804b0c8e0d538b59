package flagstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/feedguard/internal/flagstore"
)

func newMockStore(t *testing.T) (*flagstore.Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return flagstore.New(sqlx.NewDb(db, "sqlmock")), mock
}

func TestStore_Add(t *testing.T) {
	t.Helper()

	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO flagged_links").
		WithArgs("https://bad.example/login", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.Add(context.Background(), "https://bad.example/login", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStore_List(t *testing.T) {
	t.Helper()

	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"url", "user_id", "flagged_at"}).
		AddRow("https://newer.example", "u1", time.Now()).
		AddRow("https://older.example", "u1", time.Now().Add(-time.Hour))

	mock.ExpectQuery("SELECT url, user_id, flagged_at").
		WithArgs(50).
		WillReturnRows(rows)

	links, err := store.List(context.Background(), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	if links[0].URL != "https://newer.example" {
		t.Errorf("expected newest link first, got %q", links[0].URL)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStore_ListDefaultsLimit(t *testing.T) {
	t.Helper()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT url, user_id, flagged_at").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"url", "user_id", "flagged_at"}))

	if _, err := store.List(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
