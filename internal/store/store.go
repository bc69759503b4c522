// internal/store/store.go
//
// Content-record lifecycle operations.
//
// Context
// -------
// Store wraps the shared *sqlx.DB pool and implements the persistence
// side of the reconciliation state machine: idempotent upsert, the
// deleted/error status transitions, active-set reads for the diff and
// aggregate rendering, and the bounded-retry selection.  The sync_log
// append lives here too so every operation writes through one pool.
//
// Workflow
// --------
//  1. Every mutation runs inside a transaction: BeginTxx, deferred
//     Rollback, explicit Commit.  The deferred Rollback is a no-op after
//     Commit, so the connection is returned to the pool on every exit
//     path, success or failure.
//  2. Reads use plain SelectContext/GetContext; the pool scopes the
//     connection to the call.
//  3. Errors are returned wrapped so callers can log with context; a
//     missing row on lookup is (nil, nil), not an error.
//
// Notes
// -----
//   - Column lists match the fields in `Record`; update both together.
//   - MarkDeleted accepts an optional tenant scope.  An empty tenantID
//     matches any tenant, mirroring the admin tooling that repairs
//     records across tenants.
//   - MarkError is an insert-or-update on the (tenant_id, folder_name,
//     file_id) key: a first-seen file can fail to parse before any
//     successful upsert, and it still needs an error row to enter the
//     bounded retry pass.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store provides content-record persistence atop a shared pool.
type Store struct {
	db *sqlx.DB
}

// New wraps an open pool.  The caller owns the pool's lifetime.
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// withTx runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

//
// Upsert
//

// UpsertParams carries the full mutable field set for one record.
type UpsertParams struct {
	TenantID   string
	FolderName string
	FileID     string
	FileName   string
	MIMEType   string
	Data       json.RawMessage
	HTML       string
}

// Upsert inserts a record or, on conflict on (tenant_id, folder_name,
// file_id), overwrites the mutable fields.  Either way the row ends up
// active with a cleared error_message and retry_count 0, so re-applying
// identical input is a no-op beyond the last_synced touch.
func (s *Store) Upsert(ctx context.Context, p UpsertParams) error {
	const q = `
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
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, q,
			p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType,
			p.Data, p.HTML); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", p.FolderName, p.FileID, err)
		}
		return nil
	})
}

//
// Status transitions
//

// MarkDeleted transitions a record to deleted.  All other fields are
// preserved so history survives the absence.  tenantID may be empty.
func (s *Store) MarkDeleted(ctx context.Context, fileID, tenantID string) error {
	q := `UPDATE sync_data SET status = 'deleted', last_synced = NOW() WHERE file_id = ?`
	args := []any{fileID}
	if tenantID != "" {
		q += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("mark deleted %s: %w", fileID, err)
		}
		return nil
	})
}

// ErrorParams identifies the failed file and carries the failure
// detail.  FileName and MIMEType fill the row when the failure is the
// file's first appearance; on update the existing payload columns are
// left untouched.
type ErrorParams struct {
	TenantID       string
	FolderName     string
	FileID         string
	FileName       string
	MIMEType       string
	Message        string
	IncrementRetry bool
}

// MarkError records a processing failure, inserting the row when the
// file was never successfully stored.  retry_count advances only when
// IncrementRetry is set; the retry pass uses that to push a record
// toward the ceiling while first-time failures start the count at 1.
func (s *Store) MarkError(ctx context.Context, p ErrorParams) error {
	const q = `
        INSERT INTO sync_data
               (tenant_id, folder_name, file_id, file_name, mime_type,
                data, html_output, status, error_message, retry_count, last_synced)
        VALUES (?, ?, ?, ?, ?, '{}', NULL, 'error', ?, ?, NOW())
        ON DUPLICATE KEY UPDATE
               status        = 'error',
               error_message = VALUES(error_message),
               retry_count   = retry_count + ?,
               last_synced   = NOW()`
	inc := 0
	if p.IncrementRetry {
		inc = 1
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, q,
			p.TenantID, p.FolderName, p.FileID, p.FileName, p.MIMEType,
			p.Message, inc, inc); err != nil {
			return fmt.Errorf("mark error %s/%s: %w", p.FolderName, p.FileID, err)
		}
		return nil
	})
}

//
// Reads
//

// ActiveRecords returns every active row for (tenant, folder), ordered
// by file name so the aggregate fragment renders deterministically.
func (s *Store) ActiveRecords(ctx context.Context, tenantID, folderName string) ([]Record, error) {
	const q = `
        SELECT id, tenant_id, folder_name, file_id, file_name, mime_type,
               data, html_output, status, error_message, retry_count, last_synced
        FROM   sync_data
        WHERE  tenant_id = ? AND folder_name = ? AND status = 'active'
        ORDER  BY file_name`
	var rows []Record
	if err := s.db.SelectContext(ctx, &rows, q, tenantID, folderName); err != nil {
		return nil, fmt.Errorf("active records %s/%s: %w", tenantID, folderName, err)
	}
	return rows, nil
}

// FileByID fetches one record by external file ID, optionally scoped to
// a tenant.  Absence is (nil, nil), not an error.
func (s *Store) FileByID(ctx context.Context, fileID, tenantID string) (*Record, error) {
	q := `
        SELECT id, tenant_id, folder_name, file_id, file_name, mime_type,
               data, html_output, status, error_message, retry_count, last_synced
        FROM   sync_data
        WHERE  file_id = ?`
	args := []any{fileID}
	if tenantID != "" {
		q += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	q += ` LIMIT 1`
	var rec Record
	if err := s.db.GetContext(ctx, &rec, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("file by id %s: %w", fileID, err)
	}
	return &rec, nil
}

// RecordsNeedingRetry returns errored rows still below the retry
// ceiling.  Rows at or above maxRetries stay stuck until an operator
// intervenes; they never reappear here regardless of elapsed time.
func (s *Store) RecordsNeedingRetry(ctx context.Context, maxRetries int, tenantID string) ([]Record, error) {
	q := `
        SELECT id, tenant_id, folder_name, file_id, file_name, mime_type,
               data, html_output, status, error_message, retry_count, last_synced
        FROM   sync_data
        WHERE  status = 'error' AND retry_count < ?`
	args := []any{maxRetries}
	if tenantID != "" {
		q += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}
	q += ` ORDER BY last_synced ASC`
	var rows []Record
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("records needing retry: %w", err)
	}
	return rows, nil
}

//
// Sync log
//

// LogOperation appends one sync_log row.  The log is advisory; callers
// treat failures as non-fatal and surface them through the logger.
func (s *Store) LogOperation(ctx context.Context, e LogEntry) error {
	const q = `
        INSERT INTO sync_log
               (tenant_id, operation, folder_name, file_name, file_id,
                status, message, error_details, duration_ms)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, q,
			e.TenantID, e.Operation, e.FolderName, e.FileName, e.FileID,
			e.Status, e.Message, e.ErrorDetails, e.DurationMS); err != nil {
			return fmt.Errorf("log operation %s: %w", e.Operation, err)
		}
		return nil
	})
}
