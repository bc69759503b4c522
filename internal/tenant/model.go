// internal/tenant/model.go
//
// `tenant` table row model.
//
// Context
// -------
// The `Record` struct mirrors one row in the persistent **tenant** table,
// capturing the unique tenant key, publication target, credential file
// reference, and the sync-enabled flag.  It is used by the registry for
// lookups and by the orchestrator to walk enabled tenants each cycle.
//
// Schema reference (2026-08)
//
//	CREATE TABLE tenant (
//	    id              CHAR(36)      PRIMARY KEY,
//	    tenant_key      VARCHAR(64)   NOT NULL UNIQUE,
//	    name            VARCHAR(256)  NOT NULL,
//	    domain          VARCHAR(256)  NULL,
//	    output_path     VARCHAR(512)  NOT NULL,
//	    credential_file VARCHAR(512)  NULL,
//	    metadata        JSON          NOT NULL,
//	    sync_enabled    TINYINT(1)    NOT NULL DEFAULT 1,
//	    last_synced     TIMESTAMP     NULL,
//	    created_at      TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at      TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
// Notes
// -----
// • Tenants are never deleted, only disabled via `sync_enabled`.
// • Nullable columns are pointers; callers must nil-check before use.
// • This struct contains no behaviour—pure data model for sqlx scans.
package tenant

import (
	"encoding/json"
	"time"
)

// Record mirrors one row in the `tenant` table.
type Record struct {
	ID             string          `db:"id"`
	Key            string          `db:"tenant_key"`
	Name           string          `db:"name"`
	Domain         *string         `db:"domain"`
	OutputPath     string          `db:"output_path"`
	CredentialFile *string         `db:"credential_file"`
	Metadata       json.RawMessage `db:"metadata"`
	SyncEnabled    bool            `db:"sync_enabled"`
	LastSynced     *time.Time      `db:"last_synced"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}
