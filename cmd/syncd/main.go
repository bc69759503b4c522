// cmd/syncd/main.go
//
// PortalSync – sync daemon entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (system-wide file → conf/.env fallback happens in
//     the config loader).
//
//  2. Load and validate layered configuration (YAML + env overrides);
//     a bad config never reaches the run loop.
//
//  3. Start daily rotating logger (tees to console when running in a
//     TTY).
//
//  4. Open the control-plane DB and log the enabled-tenant count.  A
//     pool that cannot be established is fatal; there is nothing to
//     reconcile against.
//
//  5. Expose Prometheus /metrics plus /healthz on the configured
//     listen address.
//
//  6. Run the reconciliation orchestrator until SIGINT/SIGTERM; the
//     in-progress pass completes, then the HTTP listener drains.
//
// Large comment blocks are framed by blank “//” lines; inline comments
// use a single “//”.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yanizio/portalsync/internal/config"
	"github.com/yanizio/portalsync/internal/database"
	"github.com/yanizio/portalsync/internal/folder"
	"github.com/yanizio/portalsync/internal/fragment"
	"github.com/yanizio/portalsync/internal/logger"
	"github.com/yanizio/portalsync/internal/parser"
	"github.com/yanizio/portalsync/internal/source"
	"github.com/yanizio/portalsync/internal/source/googledrive"
	"github.com/yanizio/portalsync/internal/store"
	"github.com/yanizio/portalsync/internal/syncer"
	"github.com/yanizio/portalsync/internal/tenant"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	//
	// ── 1.  Config (also loads conf/.env) ───────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	//
	// ── 2.  Logger ──────────────────────────────────────────────────────
	//
	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync() //nolint:errcheck

	//
	// ── 3.  Control-plane DB connect (fatal on failure) ─────────────────
	//
	logOut.Infow("connecting to control-plane DB")
	db, err := database.OpenWithOptions(cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		logOut.Fatalw("connect control-plane DB", "err", err)
	}
	defer db.Close()

	// Enabled-tenant count as an early sanity check.
	var enabled int
	_ = db.Get(&enabled, `SELECT COUNT(*) FROM tenant WHERE sync_enabled = TRUE`)
	logOut.Infow("control-plane DB online", "enabled_tenants", enabled)

	//
	// ── 4.  Wire the orchestrator ───────────────────────────────────────
	//
	records := store.New(db)
	tenants := tenant.NewRegistry(db)
	folders := folder.NewStore(db)

	// Per-tenant Drive handles are built lazily from each tenant's
	// service-account key; relative key paths resolve under the root.
	newSource := func(ctx context.Context, ten tenant.Record) (source.Source, error) {
		if ten.CredentialFile == nil || *ten.CredentialFile == "" {
			return nil, errors.New("tenant has no credential file configured")
		}
		credPath := *ten.CredentialFile
		if !filepath.IsAbs(credPath) {
			credPath = filepath.Join(cfg.Paths.Root, credPath)
		}
		return googledrive.New(ctx, credPath, cfg.Sync.BatchSize)
	}

	orc := syncer.New(records, tenants, folders,
		parser.NewRegistry(), fragment.New(), newSource,
		syncer.Config{
			PollInterval: cfg.Sync.PollInterval(),
			MaxRetries:   cfg.Sync.MaxRetries,
			RetryDelay:   cfg.Sync.RetryDelay(),
		}, logOut)

	//
	// ── 5.  Metrics / health endpoint ───────────────────────────────────
	//
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: r}
	go func() {
		logOut.Infow("metrics endpoint listening", "addr", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalw("http server", "err", err)
		}
	}()

	//
	// ── 6.  Run until signalled ─────────────────────────────────────────
	//
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logOut.Errorw("orchestrator exited", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logOut.Infow("syncd stopped")
}
