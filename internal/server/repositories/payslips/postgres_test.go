package payslips

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var columnNames = []string{"id", "employee_id", "month", "year", "filename", "storage_key",
	"content_type", "file_size", "status", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func payslipRow(id string, status models.Status, ts time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(columnNames).
		AddRow(id, int64(1001), int64(3), int64(2024), "march.pdf", "payslips/1001/2024/3/"+id+".pdf",
			"application/pdf", int64(51200), string(status), ts, ts)
}

func newPending() *models.Payslip {
	return &models.Payslip{
		ID:          "p1",
		EmployeeID:  1001,
		Period:      models.Period{Month: 3, Year: 2024},
		Filename:    "march.pdf",
		StorageKey:  "payslips/1001/2024/3/p1.pdf",
		ContentType: "application/pdf",
		FileSize:    51200,
	}
}

const reserveQuery = `(?s)^INSERT\s+INTO\s+payslips\b.*ON\s+CONFLICT\s+ON\s+CONSTRAINT\s+uq_employee_month_year\s+DO\s+NOTHING\s+RETURNING\s+created_at,\s+updated_at$`

func TestReserve_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(reserveQuery).
		WithArgs("p1", int64(1001), 3, 2024, "march.pdf", "payslips/1001/2024/3/p1.pdf", "application/pdf", int64(51200)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ts, ts))

	p := newPending()
	if err := repo.Reserve(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != models.StatusPending || !p.CreatedAt.Equal(ts) {
		t.Fatalf("unexpected record state: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReserve_PeriodTaken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(reserveQuery).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}))

	err := repo.Reserve(context.Background(), newPending())
	if !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestReserve_UniqueViolationOnPeriod(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(reserveQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: PeriodConstraint})

	err := repo.Reserve(context.Background(), newPending())
	if !errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
}

func TestReserve_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(reserveQuery).WillReturnError(errors.New("boom"))

	err := repo.Reserve(context.Background(), newPending())
	if err == nil || errors.Is(err, common.ErrDuplicate) {
		t.Fatalf("want wrapped db error, got %v", err)
	}
}

const finalizeQuery = `(?s)^UPDATE\s+payslips\s+SET\s+status\s+=\s+'completed'.*WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+IN\s+\('pending',\s+'completed'\)\s+RETURNING\b`

func TestFinalize_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Now().UTC()
	mock.ExpectQuery(finalizeQuery).
		WithArgs("p1", "march.pdf", int64(51200)).
		WillReturnRows(payslipRow("p1", models.StatusCompleted, ts))

	p, err := repo.Finalize(context.Background(), "p1", "march.pdf", 51200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != models.StatusCompleted || p.Period.Month != 3 || p.Period.Year != 2024 || p.EmployeeID != 1001 {
		t.Fatalf("unexpected record: %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFinalize_ReservationGone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(finalizeQuery).WillReturnRows(sqlmock.NewRows(columnNames))

	_, err := repo.Finalize(context.Background(), "p1", "march.pdf", 51200)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRelease_OnlyPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+payslips\s+WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+=\s+\$2$`).
		WithArgs("p1", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Release(context.Background(), "p1"); err != nil {
		t.Fatalf("release of missing row must succeed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+id,.*FROM\s+payslips\s+WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+=\s+'completed'$`
	ts := time.Now().UTC()

	mock.ExpectQuery(q).WithArgs("p1").WillReturnRows(payslipRow("p1", models.StatusCompleted, ts))
	mock.ExpectQuery(q).WithArgs("p2").WillReturnRows(sqlmock.NewRows(columnNames))
	mock.ExpectQuery(q).WithArgs("p3").WillReturnError(errors.New("conn reset"))

	p, err := repo.GetByID(context.Background(), "p1")
	if err != nil || p.ID != "p1" || p.FileSize != 51200 {
		t.Fatalf("unexpected result: %+v, %v", p, err)
	}
	if _, err := repo.GetByID(context.Background(), "p2"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "p3"); err == nil || errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want db error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBuildListWhere(t *testing.T) {
	emp, year, month := int64(7), 2024, 3

	where, args := buildListWhere(models.Filter{})
	if where != "WHERE status = 'completed'" || len(args) != 0 {
		t.Fatalf("unexpected empty filter: %q %v", where, args)
	}

	where, args = buildListWhere(models.Filter{EmployeeID: &emp, Year: &year, Month: &month})
	want := "WHERE status = 'completed' AND employee_id = $1 AND year = $2 AND month = $3"
	if where != want {
		t.Fatalf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[0] != emp || args[1] != year || args[2] != month {
		t.Fatalf("unexpected args: %v", args)
	}

	where, args = buildListWhere(models.Filter{Month: &month})
	if where != "WHERE status = 'completed' AND month = $1" || len(args) != 1 {
		t.Fatalf("unexpected month-only filter: %q %v", where, args)
	}

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	where, args = buildListWhere(models.Filter{EmployeeID: &emp, After: &models.Cursor{CreatedAt: at, ID: "p9"}})
	want = "WHERE status = 'completed' AND employee_id = $1 AND (created_at, id) < ($2, $3)"
	if where != want {
		t.Fatalf("where = %q, want %q", where, want)
	}
	if len(args) != 3 || args[1] != at || args[2] != "p9" {
		t.Fatalf("unexpected cursor args: %v", args)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	emp := int64(1001)
	ts := time.Now().UTC()
	rows := payslipRow("p2", models.StatusCompleted, ts)
	rows.AddRow("p1", int64(1001), int64(2), int64(2024), "feb.pdf", "k1", "application/pdf", int64(10), "completed", ts, ts)

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+payslips\s+WHERE\s+status\s+=\s+'completed'\s+AND\s+employee_id\s+=\s+\$1\s+ORDER\s+BY\s+created_at\s+DESC,\s+id\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3$`).
		WithArgs(emp, 10, 20).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), models.Filter{EmployeeID: &emp, Skip: 20, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p2" || got[1].Filename != "feb.pdf" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_AfterCursor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+status\s+=\s+'completed'\s+AND\s+\(created_at,\s+id\)\s+<\s+\(\$1,\s+\$2\)\s+ORDER\s+BY\s+created_at\s+DESC,\s+id\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4$`).
		WithArgs(at, "p2", 2, 0).
		WillReturnRows(payslipRow("p1", models.StatusCompleted, at.Add(-time.Hour)))

	got, err := repo.List(context.Background(), models.Filter{Limit: 2, After: &models.Cursor{CreatedAt: at, ID: "p2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList_RowError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := payslipRow("p1", models.StatusCompleted, time.Now()).RowError(0, errors.New("broken row"))
	mock.ExpectQuery(`^SELECT\s+id,`).WillReturnRows(rows)

	if _, err := repo.List(context.Background(), models.Filter{Limit: 5}); err == nil {
		t.Fatal("expected row error")
	}
}

func TestMarkDeletingAndRestore(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mark := `(?s)^UPDATE\s+payslips\s+SET\s+status\s+=\s+'deleting'.*WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+IN\s+\(\$2\)\s+RETURNING`
	restore := `^UPDATE\s+payslips\s+SET\s+status\s+=\s+'completed'.*WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+=\s+'deleting'$`

	mock.ExpectQuery(mark).WithArgs("p1", "completed").WillReturnRows(payslipRow("p1", models.StatusDeleting, time.Now()))
	mock.ExpectQuery(mark).WithArgs("p9", "completed").WillReturnRows(sqlmock.NewRows(columnNames))
	mock.ExpectExec(restore).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(restore).WithArgs("p9").WillReturnResult(sqlmock.NewResult(0, 0))

	p, err := repo.MarkDeleting(context.Background(), "p1")
	if err != nil || p.Status != models.StatusDeleting {
		t.Fatalf("unexpected mark result: %+v, %v", p, err)
	}
	if _, err := repo.MarkDeleting(context.Background(), "p9"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := repo.RestoreCompleted(context.Background(), "p1"); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if err := repo.RestoreCompleted(context.Background(), "p9"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+payslips\s+WHERE\s+id\s+=\s+\$1\s+AND\s+status\s+=\s+\$2$`
	mock.ExpectExec(q).WithArgs("p1", "deleting").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("p1", "deleting").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("p2", "deleting").WillReturnError(errors.New("boom"))

	ok, err := repo.Delete(context.Background(), "p1", models.StatusDeleting)
	if err != nil || !ok {
		t.Fatalf("first delete: ok=%v err=%v", ok, err)
	}
	ok, err = repo.Delete(context.Background(), "p1", models.StatusDeleting)
	if err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v", ok, err)
	}
	if _, err := repo.Delete(context.Background(), "p2", models.StatusDeleting); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListStale(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now().Add(-15 * time.Minute)
	mock.ExpectQuery(`^SELECT\s+id,.*WHERE\s+status\s+=\s+\$1\s+AND\s+updated_at\s+<\s+\$2\s+ORDER\s+BY\s+updated_at\s+LIMIT\s+\$3$`).
		WithArgs("pending", sqlmock.AnyArg(), 50).
		WillReturnRows(payslipRow("p1", models.StatusPending, cutoff.Add(-time.Hour)))

	got, err := repo.ListStale(context.Background(), models.StatusPending, cutoff, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Status != models.StatusPending {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkDeleting_FromSeveralStatuses(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^UPDATE\s+payslips\s+SET\s+status\s+=\s+'deleting'.*status\s+IN\s+\(\$2,\s+\$3\)\s+RETURNING`).
		WithArgs("p1", "pending", "completed").
		WillReturnRows(payslipRow("p1", models.StatusDeleting, time.Now()))

	p, err := repo.MarkDeleting(context.Background(), "p1", models.StatusPending, models.StatusCompleted)
	if err != nil || p.Status != models.StatusDeleting {
		t.Fatalf("unexpected result: %+v, %v", p, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
