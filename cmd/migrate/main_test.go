package main

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := apply(db, "CREATE TABLE drip_subscribers (id UUID PRIMARY KEY);"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New(`column "missing_col" does not exist`))
	mock.ExpectRollback()

	content := "CREATE TABLE drip_send_log (id UUID PRIMARY KEY);\n" +
		"CREATE INDEX bad ON drip_send_log (missing_col);"
	if err := apply(db, content); err == nil {
		t.Fatal("expected the failing file to surface an error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("failure did not roll the transaction back: %v", err)
	}
}
