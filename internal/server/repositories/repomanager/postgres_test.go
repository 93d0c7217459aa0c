package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/payslips/internal/server/repositories/payslips"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestPayslips_ReturnsPostgresRepository(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var m RepositoryManager = NewPostgresRepositoryManager()
	repo := m.Payslips(db)
	if _, ok := repo.(*payslips.PostgresRepository); !ok {
		t.Fatalf("want *payslips.PostgresRepository, got %T", repo)
	}
}

func TestRunMigrations_CallsGooseWithEmbeddedRoot(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	var gotDB *sql.DB
	gooseUpContext = func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDB, gotDir = d, dir
		return nil
	}

	if err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDB != db || gotDir != "." {
		t.Fatalf("goose called with db=%p dir=%q", gotDB, gotDir)
	}
}

func TestRunMigrations_PropagatesError(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	sentinel := errors.New("migrate failed")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return sentinel
	}

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	if !errors.Is(err, sentinel) {
		t.Fatalf("want wrapped sentinel, got %v", err)
	}
}
