// cmd/tenantctl/main.go
//
// PortalSync – tenant administration CLI.
//
// Usage
// -----
//
//	tenantctl create -key riverton -name "City of Riverton" \
//	    -output /var/www/riverton/components \
//	    [-domain riverton.example.gov] [-credentials keys/riverton.json]
//
//	tenantctl list [-all]
//	tenantctl enable  -key riverton
//	tenantctl disable -key riverton
//	tenantctl enable-folder  -key riverton -folder budgets -drive-id <id>
//	tenantctl disable-folder -key riverton -folder budgets
//
// Creation seeds the full default folder set (disabled, unbound); the
// enable-folder step binds a Drive folder ID and turns syncing on.  The
// tool shares the daemon's configuration, so it connects to whatever
// database conf/global.yaml (or PORTALSYNC_ env overrides) points at.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yanizio/portalsync/internal/config"
	"github.com/yanizio/portalsync/internal/database"
	"github.com/yanizio/portalsync/internal/folder"
	"github.com/yanizio/portalsync/internal/tenant"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}
	db, err := database.OpenWithOptions(cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		fatalf("connect DB: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "create":
		cmdCreate(ctx, db, os.Args[2:])
	case "list":
		cmdList(ctx, db, os.Args[2:])
	case "enable":
		cmdSetSync(ctx, db, os.Args[2:], true)
	case "disable":
		cmdSetSync(ctx, db, os.Args[2:], false)
	case "enable-folder":
		cmdSetFolder(ctx, db, os.Args[2:], true)
	case "disable-folder":
		cmdSetFolder(ctx, db, os.Args[2:], false)
	default:
		usage()
		os.Exit(2)
	}
}

func cmdCreate(ctx context.Context, db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	key := fs.String("key", "", "unique tenant key (required)")
	name := fs.String("name", "", "display name (required)")
	output := fs.String("output", "", "component output directory (required)")
	domain := fs.String("domain", "", "public domain")
	credentials := fs.String("credentials", "", "service-account key file")
	metadata := fs.String("metadata", "", "tenant metadata as a JSON object")
	fs.Parse(args) //nolint:errcheck

	if *key == "" || *name == "" || *output == "" {
		fatalf("create: -key, -name, and -output are required")
	}
	if *metadata != "" && !json.Valid([]byte(*metadata)) {
		fatalf("create: -metadata is not valid JSON")
	}

	reg := tenant.NewRegistry(db)
	id, err := reg.Create(ctx, tenant.CreateParams{
		Key:            *key,
		Name:           *name,
		OutputPath:     *output,
		Domain:         *domain,
		CredentialFile: *credentials,
		Metadata:       jsonOrNil(*metadata),
	})
	if errors.Is(err, tenant.ErrDuplicateTenant) {
		fatalf("create: tenant key %q already exists", *key)
	}
	if err != nil {
		fatalf("create: %v", err)
	}

	fmt.Printf("created tenant %s (%s) with %d folders (all disabled)\n",
		*key, id, len(tenant.DefaultFolders))
	fmt.Println("next: bind Drive folders with enable-folder, then enable the tenant")
}

func cmdList(ctx context.Context, db *sqlx.DB, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	all := fs.Bool("all", false, "include tenants with sync disabled")
	fs.Parse(args) //nolint:errcheck

	reg := tenant.NewRegistry(db)
	tenants, err := reg.List(ctx, !*all)
	if err != nil {
		fatalf("list: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tSYNC\tLAST SYNCED\tOUTPUT")
	for _, t := range tenants {
		last := "never"
		if t.LastSynced != nil {
			last = t.LastSynced.Format(time.RFC3339)
		}
		sync := "off"
		if t.SyncEnabled {
			sync = "on"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Key, t.Name, sync, last, t.OutputPath)
	}
	w.Flush() //nolint:errcheck
}

func cmdSetSync(ctx context.Context, db *sqlx.DB, args []string, enabled bool) {
	fs := flag.NewFlagSet("enable/disable", flag.ExitOnError)
	key := fs.String("key", "", "tenant key (required)")
	fs.Parse(args) //nolint:errcheck
	if *key == "" {
		fatalf("-key is required")
	}

	reg := tenant.NewRegistry(db)
	rec, err := reg.ByKey(ctx, *key)
	if errors.Is(err, tenant.ErrNotFound) {
		fatalf("no tenant with key %q", *key)
	}
	if err != nil {
		fatalf("lookup: %v", err)
	}
	if err := reg.SetSyncEnabled(ctx, rec.ID, enabled); err != nil {
		fatalf("set sync: %v", err)
	}
	fmt.Printf("tenant %s: sync %s\n", *key, onOff(enabled))
}

func cmdSetFolder(ctx context.Context, db *sqlx.DB, args []string, enabled bool) {
	fs := flag.NewFlagSet("enable-folder/disable-folder", flag.ExitOnError)
	key := fs.String("key", "", "tenant key (required)")
	name := fs.String("folder", "", "folder name (required)")
	driveID := fs.String("drive-id", "", "Drive folder ID to bind (enable only)")
	fs.Parse(args) //nolint:errcheck
	if *key == "" || *name == "" {
		fatalf("-key and -folder are required")
	}
	if enabled && *driveID == "" {
		fatalf("enable-folder: -drive-id is required")
	}

	reg := tenant.NewRegistry(db)
	rec, err := reg.ByKey(ctx, *key)
	if errors.Is(err, tenant.ErrNotFound) {
		fatalf("no tenant with key %q", *key)
	}
	if err != nil {
		fatalf("lookup: %v", err)
	}

	if err := folder.NewStore(db).SetEnabled(ctx, rec.ID, *name, enabled, *driveID); err != nil {
		fatalf("set folder: %v", err)
	}
	fmt.Printf("tenant %s: folder %s %s\n", *key, *name, onOff(enabled))
}

func jsonOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tenantctl <command> [flags]

commands:
  create          provision a tenant and its default folder set
  list            show tenants (-all to include disabled)
  enable          turn a tenant's sync on
  disable         turn a tenant's sync off
  enable-folder   bind a Drive folder ID and enable the folder
  disable-folder  disable a folder without unbinding it`)
}
