// internal/tenant/registry.go
//
// Tenant registry: lookups, creation, and sync bookkeeping.
//
// Context
// -------
// The registry is the only writer of the `tenant` table.  Creation is
// transactional: the tenant row and its default folder_config rows are
// inserted in one transaction, so a tenant without folder configuration
// is never observable.  Lookups distinguish absence (ErrNotFound) from
// real failures so callers can treat a missing tenant as a signal.
//
// Workflow
// --------
//  1. Create generates a UUID, inserts the tenant row, then seeds one
//     folder_config row per DefaultFolders entry inside the same tx.
//  2. A duplicate tenant_key surfaces as ErrDuplicateTenant, detected
//     via the MySQL duplicate-entry error number (1062).
//  3. TouchLastSynced is best effort; the orchestrator logs and moves
//     on when it fails.
//
// Notes
// -----
//   - Column list matches the fields in `Record`; update both together.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a key or ID is not present in the tenant
// table.  Callers treat it as absence, not failure.
var ErrNotFound = errors.New("tenant not found")

// ErrDuplicateTenant is returned by Create when the tenant_key already
// exists.
var ErrDuplicateTenant = errors.New("tenant key already exists")

// DefaultFolders is the folder set provisioned for every new tenant.
// Drive folder IDs start empty; operators fill them in before enabling
// sync for a folder.
var DefaultFolders = []string{
	"boards_commissions",
	"budgets",
	"event_flyers",
	"financial_reports",
	"job_postings",
	"meeting_agendas",
	"meeting_minutes",
	"news_press_releases",
	"ordinances",
	"public_notices",
	"resolutions",
}

const recordColumns = `id, tenant_key, name, domain, output_path,
               credential_file, metadata, sync_enabled, last_synced,
               created_at, updated_at`

// Registry provides tenant persistence atop a shared pool.
type Registry struct {
	db *sqlx.DB
}

// NewRegistry wraps an open pool.  The caller owns the pool's lifetime.
func NewRegistry(db *sqlx.DB) *Registry { return &Registry{db: db} }

// List returns tenants ordered by key, optionally restricted to rows
// with sync enabled.
func (r *Registry) List(ctx context.Context, enabledOnly bool) ([]Record, error) {
	q := `SELECT ` + recordColumns + ` FROM tenant`
	if enabledOnly {
		q += ` WHERE sync_enabled = TRUE`
	}
	q += ` ORDER BY tenant_key`
	var rows []Record
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return rows, nil
}

// ByKey fetches a single tenant by its unique key.  Absence maps to
// ErrNotFound.
func (r *Registry) ByKey(ctx context.Context, key string) (*Record, error) {
	q := `SELECT ` + recordColumns + ` FROM tenant WHERE tenant_key = ? LIMIT 1`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant by key %q: %w", key, err)
	}
	return &rec, nil
}

// ByID fetches a single tenant by UUID.  Absence maps to ErrNotFound.
func (r *Registry) ByID(ctx context.Context, id string) (*Record, error) {
	q := `SELECT ` + recordColumns + ` FROM tenant WHERE id = ? LIMIT 1`
	var rec Record
	if err := r.db.GetContext(ctx, &rec, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("tenant by id %q: %w", id, err)
	}
	return &rec, nil
}

// CreateParams carries the operator-supplied fields for a new tenant.
// Domain, CredentialFile, and Metadata are optional.
type CreateParams struct {
	Key            string
	Name           string
	OutputPath     string
	Domain         string
	CredentialFile string
	Metadata       []byte // JSON object; nil defaults to {}
}

// Create inserts the tenant row and its default folder_config rows in a
// single transaction and returns the new tenant ID.  Partial creation
// is never observable: any insert failure rolls the whole thing back.
func (r *Registry) Create(ctx context.Context, p CreateParams) (string, error) {
	id := uuid.NewString()
	meta := p.Metadata
	if meta == nil {
		meta = []byte(`{}`)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	const insertTenant = `
        INSERT INTO tenant
               (id, tenant_key, name, domain, output_path, credential_file, metadata)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertTenant,
		id, p.Key, p.Name, nullable(p.Domain), p.OutputPath, nullable(p.CredentialFile), meta); err != nil {
		if isDuplicateEntry(err) {
			return "", ErrDuplicateTenant
		}
		return "", fmt.Errorf("insert tenant %q: %w", p.Key, err)
	}

	const insertFolder = `
        INSERT INTO folder_config (tenant_id, folder_name, drive_folder_id, enabled)
        VALUES (?, ?, '', FALSE)`
	for _, folder := range DefaultFolders {
		if _, err := tx.ExecContext(ctx, insertFolder, id, folder); err != nil {
			return "", fmt.Errorf("seed folder %q for tenant %q: %w", folder, p.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tenant %q: %w", p.Key, err)
	}
	return id, nil
}

// TouchLastSynced stamps the tenant's last_synced column.  Best effort:
// callers log the returned error and continue.
func (r *Registry) TouchLastSynced(ctx context.Context, id string) error {
	const q = `UPDATE tenant SET last_synced = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("touch last_synced %q: %w", id, err)
	}
	return nil
}

// SetSyncEnabled toggles a tenant without deleting its history.
func (r *Registry) SetSyncEnabled(ctx context.Context, id string, enabled bool) error {
	const q = `UPDATE tenant SET sync_enabled = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, enabled, id); err != nil {
		return fmt.Errorf("set sync_enabled %q: %w", id, err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isDuplicateEntry reports whether err is MySQL error 1062.
func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
