package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSessionRepo(t *testing.T) (*PostgresSessionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresSessionRepository(db, nil), mock
}

func TestEndReportsTransition(t *testing.T) {
	repo, mock := newSessionRepo(t)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE sessions SET active = FALSE`).
		WithArgs(at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ended, err := repo.End(context.Background(), "s1", at)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !ended {
		t.Fatalf("expected true when the session was active")
	}

	// A second end matches no row and must report false, so the sessions
	// gauge is only decremented once per session.
	mock.ExpectExec(`UPDATE sessions SET active = FALSE`).
		WithArgs(at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ended, err = repo.End(context.Background(), "s1", at)
	if err != nil {
		t.Fatalf("repeat end: %v", err)
	}
	if ended {
		t.Fatalf("expected false for an already-ended session")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCountActiveSessions(t *testing.T) {
	repo, mock := newSessionRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sessions WHERE active = TRUE`).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountActive(context.Background())
	if err != nil {
		t.Fatalf("count active: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 active sessions, got %d", count)
	}
}

func TestDeactivateIdleReportsSweptCount(t *testing.T) {
	repo, mock := newSessionRepo(t)
	cutoff := time.Now().UTC().Add(-time.Hour)

	mock.ExpectExec(`UPDATE sessions SET active = FALSE`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	swept, err := repo.DeactivateIdle(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("deactivate idle: %v", err)
	}
	if swept != 3 {
		t.Fatalf("expected 3 swept sessions, got %d", swept)
	}
}
