// internal/tenant/registry_test.go
//
// Unit-tests for the tenant registry using sqlmock.
//
// Context
// -------
// Creation must be all-or-nothing: the tenant row plus one folder_config
// row per default folder, committed together.  These tests verify:
//
//   • Create commits tenant + folder seeds in one transaction.
//   • A folder-seed failure rolls the tenant insert back.
//   • Duplicate tenant_key maps to ErrDuplicateTenant.
//   • ByKey maps sql.ErrNoRows to ErrNotFound.
//
// Run: go test ./internal/tenant -v

package tenant

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*Registry, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return NewRegistry(sqlx.NewDb(db, "sqlmock")), mock, func() { _ = db.Close() }
}

func TestCreate_SeedsDefaultFoldersInOneTx(t *testing.T) {
	r, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenant`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for range DefaultFolders {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO folder_config`)).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	id, err := r.Create(context.Background(), CreateParams{
		Key:        "springfield",
		Name:       "Springfield City Government",
		OutputPath: "/var/www/springfield/components",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty tenant ID")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestCreate_RollbackOnFolderSeedFailure(t *testing.T) {
	r, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenant`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO folder_config`)).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), CreateParams{
		Key:        "shelbyville",
		Name:       "Shelbyville",
		OutputPath: "/var/www/shelbyville",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	r, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO tenant`)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := r.Create(context.Background(), CreateParams{
		Key:        "springfield",
		Name:       "Springfield",
		OutputPath: "/tmp/out",
	})
	if !errors.Is(err, ErrDuplicateTenant) {
		t.Fatalf("err = %v, want ErrDuplicateTenant", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByKey_AbsenceMapsToErrNotFound(t *testing.T) {
	r, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM tenant WHERE tenant_key = ?`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.ByKey(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
