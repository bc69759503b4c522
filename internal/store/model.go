// internal/store/model.go
//
// `sync_data` and `sync_log` row models.
//
// Context
// -------
// `Record` mirrors one row in the persistent **sync_data** table, the
// durable representation of one external item: its parsed payload, the
// rendered HTML fragment, and the three-state lifecycle status used by
// the reconciliation diff.  `LogEntry` mirrors one append-only row in
// **sync_log**.  Both are used by the orchestrator via the Store and by
// admin tooling that inspects sync history.
//
// Schema reference (2026-08)
//
//	CREATE TABLE sync_data (
//	    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    tenant_id     CHAR(36)      NOT NULL,
//	    folder_name   VARCHAR(128)  NOT NULL,
//	    file_id       VARCHAR(128)  NOT NULL,
//	    file_name     VARCHAR(512)  NOT NULL,
//	    mime_type     VARCHAR(256)  NOT NULL,
//	    data          JSON          NOT NULL,
//	    html_output   MEDIUMTEXT,
//	    status        ENUM('active','deleted','error') NOT NULL DEFAULT 'active',
//	    error_message TEXT          NULL,
//	    retry_count   INT           NOT NULL DEFAULT 0,
//	    last_synced   TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    UNIQUE KEY uq_sync_data (tenant_id, folder_name, file_id)
//	);
//
//	CREATE TABLE sync_log (
//	    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    tenant_id     CHAR(36)      NULL,
//	    operation     VARCHAR(64)   NOT NULL,
//	    folder_name   VARCHAR(128)  NULL,
//	    file_name     VARCHAR(512)  NULL,
//	    file_id       VARCHAR(128)  NULL,
//	    status        VARCHAR(16)   NOT NULL,
//	    message       TEXT          NULL,
//	    error_details TEXT          NULL,
//	    duration_ms   INT           NULL,
//	    created_at    TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
// • Rows in sync_data are never physically deleted; the diff algorithm
//   and sync history rely on status transitions in place.
// • `Data` is the parsed payload as stored JSON; callers unmarshal into
//   parser.Document when re-rendering.
// • sync_log rows are written once and never mutated.
package store

import (
	"encoding/json"
	"time"
)

// Status is the three-state lifecycle tag on a content record.
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
	StatusError   Status = "error"
)

// Record mirrors one row in the `sync_data` table.
type Record struct {
	ID           uint64          `db:"id"`
	TenantID     string          `db:"tenant_id"`
	FolderName   string          `db:"folder_name"`
	FileID       string          `db:"file_id"`
	FileName     string          `db:"file_name"`
	MIMEType     string          `db:"mime_type"`
	Data         json.RawMessage `db:"data"`
	HTMLOutput   *string         `db:"html_output"`
	Status       Status          `db:"status"`
	ErrorMessage *string         `db:"error_message"`
	RetryCount   int             `db:"retry_count"`
	LastSynced   time.Time       `db:"last_synced"`
}

// LogEntry mirrors one row in the append-only `sync_log` table.  The
// tenant/folder/file references are weak: they exist for traceability,
// not ownership, so all are nullable.
type LogEntry struct {
	ID           uint64     `db:"id"`
	TenantID     *string    `db:"tenant_id"`
	Operation    string     `db:"operation"`
	FolderName   *string    `db:"folder_name"`
	FileName     *string    `db:"file_name"`
	FileID       *string    `db:"file_id"`
	Status       string     `db:"status"`
	Message      *string    `db:"message"`
	ErrorDetails *string    `db:"error_details"`
	DurationMS   *int64     `db:"duration_ms"`
	CreatedAt    *time.Time `db:"created_at"`
}
