package distlock

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupLockDB(t *testing.T) (*PGAdvisoryLock, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewPGAdvisoryLock(db, "processor"), mock, func() { db.Close() }
}

func TestPGAdvisoryLockAcquireRelease(t *testing.T) {
	lock, mock, cleanup := setupLockDB(t)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery("pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec("pg_advisory_unlock").
		WithArgs(lock.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to succeed")
	}
	if lock.conn == nil {
		t.Fatal("acquire did not pin a connection for the unlock")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if lock.conn != nil {
		t.Fatal("release did not return the pinned connection")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGAdvisoryLockContended(t *testing.T) {
	lock, mock, cleanup := setupLockDB(t)
	defer cleanup()
	ctx := context.Background()

	mock.ExpectQuery("pg_try_advisory_lock").
		WithArgs(lock.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("expected acquire to fail while lock is held elsewhere")
	}
	if lock.conn != nil {
		t.Fatal("failed acquire must not keep a connection pinned")
	}

	// Release after a failed acquire must not send an unlock we don't own.
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPGAdvisoryLockReleaseWithoutAcquire(t *testing.T) {
	lock, mock, cleanup := setupLockDB(t)
	defer cleanup()

	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("release without acquire issued SQL: %v", err)
	}
}
