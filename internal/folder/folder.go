// internal/folder/folder.go
//
// Per-tenant folder configuration.
//
// Context
// -------
// Each tenant owns a fixed set of content folders; a folder row binds a
// local folder name to an external Drive folder ID and carries the
// enabled flag plus the last-check timestamp.  Rows are seeded at tenant
// creation (see internal/tenant) and never deleted; operators toggle
// `enabled` and fill in the Drive folder ID.
//
// Schema reference (2026-08)
//
//	CREATE TABLE folder_config (
//	    id              BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    tenant_id       CHAR(36)      NOT NULL,
//	    folder_name     VARCHAR(128)  NOT NULL,
//	    drive_folder_id VARCHAR(128)  NOT NULL DEFAULT '',
//	    enabled         TINYINT(1)    NOT NULL DEFAULT 0,
//	    last_check      TIMESTAMP     NULL,
//	    UNIQUE KEY uq_folder (tenant_id, folder_name)
//	);
//
// Notes
// -----
// • Enabled() orders by folder_name so each cycle walks folders in a
//   deterministic order.
// • MarkChecked is best effort; the orchestrator logs and moves on.
package folder

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Config mirrors one row in the `folder_config` table.
type Config struct {
	ID            uint64     `db:"id"`
	TenantID      string     `db:"tenant_id"`
	FolderName    string     `db:"folder_name"`
	DriveFolderID string     `db:"drive_folder_id"`
	Enabled       bool       `db:"enabled"`
	LastCheck     *time.Time `db:"last_check"`
}

// Store provides folder-config persistence atop a shared pool.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open pool.  The caller owns the pool's lifetime.
func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Enabled returns the tenant's enabled folders ordered by name.
func (s *Store) Enabled(ctx context.Context, tenantID string) ([]Config, error) {
	const q = `
        SELECT id, tenant_id, folder_name, drive_folder_id, enabled, last_check
        FROM   folder_config
        WHERE  tenant_id = ? AND enabled = TRUE
        ORDER  BY folder_name`
	var rows []Config
	if err := s.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, fmt.Errorf("enabled folders for %q: %w", tenantID, err)
	}
	return rows, nil
}

// MarkChecked stamps the folder's last_check column.  Best effort.
func (s *Store) MarkChecked(ctx context.Context, tenantID, folderName string) error {
	const q = `UPDATE folder_config SET last_check = NOW() WHERE tenant_id = ? AND folder_name = ?`
	if _, err := s.db.ExecContext(ctx, q, tenantID, folderName); err != nil {
		return fmt.Errorf("mark checked %s/%s: %w", tenantID, folderName, err)
	}
	return nil
}

// SetEnabled toggles a folder and, when a Drive folder ID is supplied,
// rebinds it at the same time.  Used by the tenantctl CLI.
func (s *Store) SetEnabled(ctx context.Context, tenantID, folderName string, enabled bool, driveFolderID string) error {
	q := `UPDATE folder_config SET enabled = ?`
	args := []any{enabled}
	if driveFolderID != "" {
		q += `, drive_folder_id = ?`
		args = append(args, driveFolderID)
	}
	q += ` WHERE tenant_id = ? AND folder_name = ?`
	args = append(args, tenantID, folderName)
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("set enabled %s/%s: %w", tenantID, folderName, err)
	}
	return nil
}
