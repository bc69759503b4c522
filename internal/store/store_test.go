// internal/store/store_test.go
//
// Unit-tests for Store using sqlmock.
//
// Context
// -------
// These tests pin the SQL shape of the lifecycle operations:
//
//   • Upsert forces status=active, clears error_message, resets
//     retry_count — the idempotence clause.
//   • MarkDeleted is a status-only UPDATE; no other column appears.
//   • MarkError inserts on first sight (so a never-stored file that
//     fails to parse still gets an error row) and increments
//     retry_count only when asked.
//   • RecordsNeedingRetry excludes rows at the ceiling via `<`.
//   • A failed Exec rolls the transaction back.
//
// Run: go test ./internal/store -v

package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	sx := sqlx.NewDb(db, "sqlmock")
	return New(sx), mock, func() { _ = db.Close() }
}

const upsertSQL = `
        INSERT INTO sync_data
               (tenant_id, folder_name, file_id, file_name, mime_type,
                data, html_output, status, error_message, retry_count, last_synced)
        VALUES (?, ?, ?, ?, ?, ?, ?, 'active', NULL, 0, NOW())
        ON DUPLICATE KEY UPDATE
               file_name     = VALUES(file_name),
               mime_type     = VALUES(mime_type),
               data          = VALUES(data),
               html_output   = VALUES(html_output),
               status        = 'active',
               error_message = NULL,
               retry_count   = 0,
               last_synced   = NOW()`

func TestUpsert_CommitsIdempotentClause(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	data, _ := json.Marshal(map[string]string{"title": "Budget 2026"})
	p := UpsertParams{
		TenantID:   "t-1",
		FolderName: "budgets",
		FileID:     "f-1",
		FileName:   "budget.pdf",
		MIMEType:   "application/pdf",
		Data:       data,
		HTML:       "<div>…</div>",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs(p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType, []byte(p.Data), p.HTML).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Applying the same params twice must issue the identical statement;
	// the ON DUPLICATE KEY clause makes the second pass converge on the
	// same final row.
	if err := s.Upsert(context.Background(), p); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs(p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType, []byte(p.Data), p.HTML).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	if err := s.Upsert(context.Background(), p); err != nil {
		t.Fatalf("Upsert (second apply): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUpsert_RollbackOnExecFailure(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Upsert(context.Background(), UpsertParams{TenantID: "t-1", FolderName: "budgets", FileID: "f-1"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestMarkDeleted_StatusOnly(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE sync_data SET status = 'deleted', last_synced = NOW() WHERE file_id = ? AND tenant_id = ?`,
	)).
		WithArgs("f-9", "t-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.MarkDeleted(context.Background(), "f-9", "t-1"); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

const markErrorSQL = `
        INSERT INTO sync_data
               (tenant_id, folder_name, file_id, file_name, mime_type,
                data, html_output, status, error_message, retry_count, last_synced)
        VALUES (?, ?, ?, ?, ?, '{}', NULL, 'error', ?, ?, NOW())
        ON DUPLICATE KEY UPDATE
               status        = 'error',
               error_message = VALUES(error_message),
               retry_count   = retry_count + ?,
               last_synced   = NOW()`

func TestMarkError_InsertsFirstSeenFailures(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	p := ErrorParams{
		TenantID:       "t-1",
		FolderName:     "budgets",
		FileID:         "f-2",
		FileName:       "budget.pdf",
		MIMEType:       "application/pdf",
		Message:        "parse failed",
		IncrementRetry: true,
	}

	// First sight: the ON DUPLICATE KEY statement inserts the error row
	// with retry_count 1, so the bounded retry pass can see it even
	// though the file never had a successful upsert.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markErrorSQL)).
		WithArgs(p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType, p.Message, 1, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.MarkError(context.Background(), p); err != nil {
		t.Fatalf("MarkError(increment): %v", err)
	}

	p.IncrementRetry = false
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(markErrorSQL)).
		WithArgs(p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType, p.Message, 0, 0).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	if err := s.MarkError(context.Background(), p); err != nil {
		t.Fatalf("MarkError(no increment): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestRecordsNeedingRetry_ExcludesCeiling(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	cols := []string{"id", "tenant_id", "folder_name", "file_id", "file_name", "mime_type",
		"data", "html_output", "status", "error_message", "retry_count", "last_synced"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE  status = 'error' AND retry_count < ?`)).
		WithArgs(3, "t-1").
		WillReturnRows(sqlmock.NewRows(cols))

	rows, err := s.RecordsNeedingRetry(context.Background(), 3, "t-1")
	if err != nil {
		t.Fatalf("RecordsNeedingRetry: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestFileByID_AbsenceIsNotAnError(t *testing.T) {
	s, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE  file_id = ?`)).
		WithArgs("missing", "t-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec, err := s.FileByID(context.Background(), "missing", "t-1")
	if err != nil {
		t.Fatalf("FileByID: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}
