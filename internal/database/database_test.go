package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestMigrateRunsInOrder(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS a")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS b")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	stmts := []string{"CREATE TABLE IF NOT EXISTS a (id INT)", "  ", "CREATE TABLE IF NOT EXISTS b (id INT)"}
	if err := Migrate(context.Background(), db, stmts); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMigrateStopsOnError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectExec("CREATE").WillReturnError(boom)

	err = Migrate(context.Background(), db, []string{"CREATE TABLE x (id INT)", "CREATE TABLE y (id INT)"})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithParseTime(t *testing.T) {
	cases := map[string]string{
		"u:p@tcp(h)/db":                 "u:p@tcp(h)/db?parseTime=true",
		"u:p@tcp(h)/db?charset=utf8":    "u:p@tcp(h)/db?charset=utf8&parseTime=true",
		"u:p@tcp(h)/db?parseTime=false": "u:p@tcp(h)/db?parseTime=false",
	}
	for in, want := range cases {
		if got := withParseTime(in); got != want {
			t.Errorf("withParseTime(%q) = %q, want %q", in, got, want)
		}
	}
}
