// internal/syncer/orchestrator.go
//
// Reconciliation orchestrator: the sync state machine.
//
// Context
// -------
// One Orchestrator drives the whole service.  Each cycle walks enabled
// tenants, and for each tenant its enabled folders, reconciling the
// external listing against the stored record set:
//
//   list → detect changes → parse → render → upsert
//        → delete by absence → regenerate aggregate → bookkeeping
//
// then runs the tenant's retry pass over errored records still below the
// retry ceiling.  Failures are isolated at their own boundary: a listing
// failure skips one folder for one cycle, a parse failure marks one
// record, a store failure loses one operation.  Nothing here aborts the
// pass.
//
// Workflow
// --------
//  1. The orchestrator owns a per-tenant source-handle cache, lazily
//     filled through singleflight so concurrent fills collapse to one
//     construction.  The cache is a performance optimisation only; all
//     durable state lives in the store, so InvalidateSource (or a
//     restart) loses nothing.
//  2. Run executes one cycle, then sleeps the configured poll interval.
//     Cancellation is cooperative: the sleep is the interruption point,
//     and an in-progress pass runs to completion.
//
// Notes
// -----
//   - Change detection trusts the source's reported modification time;
//     a strictly-newer timestamp triggers reprocessing.  A re-uploaded
//     file bearing an older timestamp than the stored row is skipped.
//     That is a known limitation of timestamp comparison, accepted here
//     in preference to content hashing.
//   - The retry pass is one extra attempt per cycle, not a backoff
//     schedule.  Records at the ceiling stay stuck until an operator
//     intervenes.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yanizio/portalsync/internal/folder"
	"github.com/yanizio/portalsync/internal/metrics"
	"github.com/yanizio/portalsync/internal/parser"
	"github.com/yanizio/portalsync/internal/source"
	"github.com/yanizio/portalsync/internal/store"
	"github.com/yanizio/portalsync/internal/tenant"
)

//
// Collaborator contracts
//

// RecordStore is the content-record persistence the orchestrator needs.
// *store.Store satisfies it; tests substitute an in-memory fake.
type RecordStore interface {
	Upsert(ctx context.Context, p store.UpsertParams) error
	MarkDeleted(ctx context.Context, fileID, tenantID string) error
	MarkError(ctx context.Context, p store.ErrorParams) error
	ActiveRecords(ctx context.Context, tenantID, folderName string) ([]store.Record, error)
	FileByID(ctx context.Context, fileID, tenantID string) (*store.Record, error)
	RecordsNeedingRetry(ctx context.Context, maxRetries int, tenantID string) ([]store.Record, error)
	LogOperation(ctx context.Context, e store.LogEntry) error
}

// TenantDirectory lists tenants and stamps sync times.
type TenantDirectory interface {
	List(ctx context.Context, enabledOnly bool) ([]tenant.Record, error)
	TouchLastSynced(ctx context.Context, id string) error
}

// FolderDirectory lists a tenant's enabled folders and stamps checks.
type FolderDirectory interface {
	Enabled(ctx context.Context, tenantID string) ([]folder.Config, error)
	MarkChecked(ctx context.Context, tenantID, folderName string) error
}

// Renderer turns documents into fragments and publishes aggregates.
type Renderer interface {
	Render(doc parser.Document) (template.HTML, error)
	RenderAggregate(cards []template.HTML) template.HTML
	WriteComponent(outputDir, folderName string, frag template.HTML) error
}

// SourceFactory builds a source handle for one tenant, typically a
// Drive adapter authenticated with the tenant's service-account key.
type SourceFactory func(ctx context.Context, ten tenant.Record) (source.Source, error)

//
// Orchestrator
//

// Config carries the reconciliation tunables.
type Config struct {
	PollInterval time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

// Counts summarises one tenant's pass: folders synced vs. failed.
type Counts struct {
	Success int
	Error   int
}

// Orchestrator drives the reconciliation cycle.  Construct with New;
// the zero value is invalid.
type Orchestrator struct {
	records   RecordStore
	tenants   TenantDirectory
	folders   FolderDirectory
	parsers   *parser.Registry
	renderer  Renderer
	newSource SourceFactory
	cfg       Config
	log       *zap.SugaredLogger

	mu      sync.Mutex
	sources map[string]source.Source
	sfg     singleflight.Group
}

// New wires the orchestrator.  All collaborators are required.
func New(records RecordStore, tenants TenantDirectory, folders FolderDirectory,
	parsers *parser.Registry, renderer Renderer, newSource SourceFactory,
	cfg Config, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		records:   records,
		tenants:   tenants,
		folders:   folders,
		parsers:   parsers,
		renderer:  renderer,
		newSource: newSource,
		cfg:       cfg,
		log:       log,
		sources:   make(map[string]source.Source),
	}
}

//
// Source-handle cache
//

// sourceFor returns the tenant's cached source handle, building it on
// first use.  Singleflight collapses concurrent fills for one tenant.
func (o *Orchestrator) sourceFor(ctx context.Context, ten tenant.Record) (source.Source, error) {
	o.mu.Lock()
	if src, ok := o.sources[ten.ID]; ok {
		o.mu.Unlock()
		return src, nil
	}
	o.mu.Unlock()

	v, err, _ := o.sfg.Do(ten.ID, func() (any, error) {
		o.mu.Lock()
		if src, ok := o.sources[ten.ID]; ok {
			o.mu.Unlock()
			return src, nil
		}
		o.mu.Unlock()

		src, err := o.newSource(ctx, ten)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		o.sources[ten.ID] = src
		o.mu.Unlock()
		metrics.ActiveTenants.Inc()
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(source.Source), nil
}

// InvalidateSource drops a tenant's cached handle; the next cycle
// rebuilds it.  Call after rotating a tenant's credentials.
func (o *Orchestrator) InvalidateSource(tenantID string) {
	o.mu.Lock()
	if _, ok := o.sources[tenantID]; ok {
		delete(o.sources, tenantID)
		metrics.ActiveTenants.Dec()
	}
	o.mu.Unlock()
}

//
// Folder reconciliation (steps 1–7)
//

// syncFolder reconciles one folder and returns an error only for
// folder-scoped failures; per-file failures are absorbed as record
// transitions.
func (o *Orchestrator) syncFolder(ctx context.Context, ten tenant.Record, fc folder.Config) error {
	start := time.Now()

	src, err := o.sourceFor(ctx, ten)
	if err != nil {
		o.logFolder(ctx, ten, fc, "error", fmt.Sprintf("source unavailable: %v", err), start)
		metrics.FoldersSkippedTotal.Inc()
		return fmt.Errorf("source for tenant %s: %w", ten.Key, err)
	}

	// 1. List.  A failed listing skips the folder for this cycle; the
	// next cycle lists again, so this error self-heals.
	files, err := src.List(ctx, fc.DriveFolderID)
	if err != nil {
		o.log.Errorw("folder listing failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
		o.logFolder(ctx, ten, fc, "error", fmt.Sprintf("source unavailable: %v", err), start)
		metrics.FoldersSkippedTotal.Inc()
		return fmt.Errorf("list %s/%s: %w", ten.Key, fc.FolderName, err)
	}

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		seen[f.ID] = struct{}{}
		o.processFile(ctx, ten, fc, src, f)
	}

	// 5. Deletion by absence: any active record whose file ID did not
	// appear in this listing is transitioned to deleted.  A failed read
	// means absence cannot be computed, so the folder is reported as an
	// error rather than claiming a completed pass.
	active, err := o.records.ActiveRecords(ctx, ten.ID, fc.FolderName)
	if err != nil {
		o.log.Errorw("active-record read failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
		o.logFolder(ctx, ten, fc, "error", fmt.Sprintf("active-record read failed: %v", err), start)
		return fmt.Errorf("active records %s/%s: %w", ten.Key, fc.FolderName, err)
	}
	for _, rec := range active {
		if _, ok := seen[rec.FileID]; ok {
			continue
		}
		o.log.Infow("marking record deleted",
			"tenant", ten.Key, "folder", fc.FolderName, "file", rec.FileName)
		if err := o.records.MarkDeleted(ctx, rec.FileID, ten.ID); err != nil {
			o.log.Errorw("mark deleted failed",
				"tenant", ten.Key, "file", rec.FileID, "err", err)
			continue
		}
		metrics.FilesDeletedTotal.Inc()
	}

	// 6. Aggregate regeneration from the complete active set, not just
	// the records touched this cycle.
	o.publishAggregate(ctx, ten, fc)

	// 7. Bookkeeping.
	if err := o.folders.MarkChecked(ctx, ten.ID, fc.FolderName); err != nil {
		o.log.Warnw("mark checked failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
	}
	o.logFolder(ctx, ten, fc, "success", fmt.Sprintf("synced %d files", len(files)), start)
	metrics.FoldersSyncedTotal.Inc()

	o.log.Infow("folder sync complete",
		"tenant", ten.Key, "folder", fc.FolderName,
		"files", len(files), "duration", time.Since(start))
	return nil
}

// processFile runs change detection, parse, render, and upsert for one
// listed file (steps 2–4).  Failures never propagate: they become an
// error record or a logged, skipped operation.
func (o *Orchestrator) processFile(ctx context.Context, ten tenant.Record, fc folder.Config, src source.Source, f source.FileMetadata) {
	// 2. Change detection: process when unseen or strictly newer than
	// the stored row.  The stored timestamp covers any status, so an
	// errored record at the retry ceiling is not re-attempted here.
	existing, err := o.records.FileByID(ctx, f.ID, ten.ID)
	if err != nil {
		o.log.Errorw("record lookup failed",
			"tenant", ten.Key, "folder", fc.FolderName, "file", f.Name, "err", err)
		return
	}
	if existing != nil && !f.ModifiedTime.After(existing.LastSynced) {
		return
	}

	// 3. Parse via the registry; nil documents and errors are the same
	// failure.
	p := o.parsers.Lookup(f.MIMEType)
	doc, err := p.Parse(ctx, f, src)
	if err == nil && doc == nil {
		err = fmt.Errorf("parser returned no document for %s", f.MIMEType)
	}
	if err != nil {
		o.log.Warnw("parse failed",
			"tenant", ten.Key, "folder", fc.FolderName, "file", f.Name, "err", err)
		o.markError(ctx, ten, fc, f, fmt.Sprintf("parse failed: %v", err))
		return
	}

	// 4. Render and persist.
	frag, err := o.renderer.Render(*doc)
	if err != nil {
		o.log.Warnw("render failed",
			"tenant", ten.Key, "folder", fc.FolderName, "file", f.Name, "err", err)
		o.markError(ctx, ten, fc, f, fmt.Sprintf("render failed: %v", err))
		return
	}

	data, err := json.Marshal(doc)
	if err != nil {
		o.markError(ctx, ten, fc, f, fmt.Sprintf("encode failed: %v", err))
		return
	}
	if err := o.records.Upsert(ctx, store.UpsertParams{
		TenantID:   ten.ID,
		FolderName: fc.FolderName,
		FileID:     f.ID,
		FileName:   f.Name,
		MIMEType:   f.MIMEType,
		Data:       data,
		HTML:       string(frag),
	}); err != nil {
		// The transaction already rolled back; other records are
		// unaffected.
		o.log.Errorw("upsert failed",
			"tenant", ten.Key, "folder", fc.FolderName, "file", f.Name, "err", err)
		return
	}
	metrics.FilesSyncedTotal.Inc()
}

// markError records a per-file failure, incrementing the retry count.
// The full identity travels along so a first-seen file gets its error
// row inserted.
func (o *Orchestrator) markError(ctx context.Context, ten tenant.Record, fc folder.Config, f source.FileMetadata, message string) {
	metrics.ParseErrorsTotal.Inc()
	if err := o.records.MarkError(ctx, store.ErrorParams{
		TenantID:       ten.ID,
		FolderName:     fc.FolderName,
		FileID:         f.ID,
		FileName:       f.Name,
		MIMEType:       f.MIMEType,
		Message:        message,
		IncrementRetry: true,
	}); err != nil {
		o.log.Errorw("mark error failed", "tenant", ten.Key, "file", f.ID, "err", err)
	}
}

// publishAggregate rebuilds the folder's aggregate fragment from every
// active record and writes it to the tenant's output path.
func (o *Orchestrator) publishAggregate(ctx context.Context, ten tenant.Record, fc folder.Config) {
	active, err := o.records.ActiveRecords(ctx, ten.ID, fc.FolderName)
	if err != nil {
		o.log.Errorw("aggregate read failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
		return
	}
	cards := make([]template.HTML, 0, len(active))
	for _, rec := range active {
		if rec.HTMLOutput != nil && *rec.HTMLOutput != "" {
			cards = append(cards, template.HTML(*rec.HTMLOutput))
		}
	}
	agg := o.renderer.RenderAggregate(cards)
	if err := o.renderer.WriteComponent(ten.OutputPath, fc.FolderName, agg); err != nil {
		o.log.Errorw("component write failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
	}
}

// logFolder appends the folder-level sync_log entry; exactly one per
// folder per cycle, success or error.
func (o *Orchestrator) logFolder(ctx context.Context, ten tenant.Record, fc folder.Config, status, message string, start time.Time) {
	durationMS := time.Since(start).Milliseconds()
	entry := store.LogEntry{
		TenantID:   &ten.ID,
		Operation:  "sync_folder",
		FolderName: &fc.FolderName,
		Status:     status,
		Message:    &message,
		DurationMS: &durationMS,
	}
	if err := o.records.LogOperation(ctx, entry); err != nil {
		o.log.Warnw("sync_log append failed",
			"tenant", ten.Key, "folder", fc.FolderName, "err", err)
	}
}

//
// Tenant pass
//

// syncTenant reconciles every enabled folder of one tenant, then runs
// the tenant's retry pass.
func (o *Orchestrator) syncTenant(ctx context.Context, ten tenant.Record) Counts {
	start := time.Now()

	configs, err := o.folders.Enabled(ctx, ten.ID)
	if err != nil {
		o.log.Errorw("folder config read failed", "tenant", ten.Key, "err", err)
		return Counts{}
	}
	if len(configs) == 0 {
		o.log.Infow("no enabled folders", "tenant", ten.Key)
		return Counts{}
	}

	var counts Counts
	for _, fc := range configs {
		if fc.DriveFolderID == "" {
			o.log.Warnw("enabled folder has no source folder id",
				"tenant", ten.Key, "folder", fc.FolderName)
			counts.Error++
			continue
		}
		if err := o.syncFolder(ctx, ten, fc); err != nil {
			counts.Error++
		} else {
			counts.Success++
		}
	}

	o.retryTenant(ctx, ten)

	if err := o.tenants.TouchLastSynced(ctx, ten.ID); err != nil {
		o.log.Warnw("touch last_synced failed", "tenant", ten.Key, "err", err)
	}

	o.log.Infow("tenant sync complete",
		"tenant", ten.Key, "success", counts.Success, "errors", counts.Error,
		"duration", time.Since(start))
	return counts
}

// retryTenant gives each errored record below the ceiling one fresh
// attempt: refetch metadata, reparse, and upsert on success.  Another
// failure advances the retry count toward the ceiling.
func (o *Orchestrator) retryTenant(ctx context.Context, ten tenant.Record) {
	failed, err := o.records.RecordsNeedingRetry(ctx, o.cfg.MaxRetries, ten.ID)
	if err != nil {
		o.log.Errorw("retry selection failed", "tenant", ten.Key, "err", err)
		return
	}
	if len(failed) == 0 {
		return
	}

	src, err := o.sourceFor(ctx, ten)
	if err != nil {
		o.log.Errorw("retry skipped, source unavailable", "tenant", ten.Key, "err", err)
		return
	}

	o.log.Infow("retrying failed records", "tenant", ten.Key, "count", len(failed))
	for _, rec := range failed {
		metrics.RetriesTotal.Inc()

		meta, err := src.Get(ctx, rec.FileID)
		if err != nil {
			o.retryFailed(ctx, ten, rec, fmt.Sprintf("retry fetch failed: %v", err))
			continue
		}

		p := o.parsers.Lookup(meta.MIMEType)
		doc, err := p.Parse(ctx, *meta, src)
		if err == nil && doc == nil {
			err = fmt.Errorf("parser returned no document for %s", meta.MIMEType)
		}
		if err != nil {
			o.retryFailed(ctx, ten, rec, fmt.Sprintf("retry parse failed: %v", err))
			continue
		}

		frag, err := o.renderer.Render(*doc)
		if err != nil {
			o.retryFailed(ctx, ten, rec, fmt.Sprintf("retry render failed: %v", err))
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			o.retryFailed(ctx, ten, rec, fmt.Sprintf("retry encode failed: %v", err))
			continue
		}

		// Upsert resets the record to active with retry_count 0.
		if err := o.records.Upsert(ctx, store.UpsertParams{
			TenantID:   ten.ID,
			FolderName: rec.FolderName,
			FileID:     meta.ID,
			FileName:   meta.Name,
			MIMEType:   meta.MIMEType,
			Data:       data,
			HTML:       string(frag),
		}); err != nil {
			o.log.Errorw("retry upsert failed",
				"tenant", ten.Key, "file", rec.FileID, "err", err)
			continue
		}
		o.log.Infow("retry succeeded",
			"tenant", ten.Key, "folder", rec.FolderName, "file", rec.FileName)
	}
}

func (o *Orchestrator) retryFailed(ctx context.Context, ten tenant.Record, rec store.Record, message string) {
	o.log.Warnw("retry failed",
		"tenant", ten.Key, "folder", rec.FolderName, "file", rec.FileName, "msg", message)
	if err := o.records.MarkError(ctx, store.ErrorParams{
		TenantID:       ten.ID,
		FolderName:     rec.FolderName,
		FileID:         rec.FileID,
		FileName:       rec.FileName,
		MIMEType:       rec.MIMEType,
		Message:        message,
		IncrementRetry: true,
	}); err != nil {
		o.log.Errorw("mark error failed", "tenant", ten.Key, "file", rec.FileID, "err", err)
	}
}

//
// Cycle and run loop
//

// RunCycle executes one full pass over all enabled tenants.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	start := time.Now()

	tenants, err := o.tenants.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	if len(tenants) == 0 {
		o.log.Warnw("no enabled tenants")
		return nil
	}

	var total Counts
	for _, ten := range tenants {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c := o.syncTenant(ctx, ten)
		total.Success += c.Success
		total.Error += c.Error
	}

	elapsed := time.Since(start)
	metrics.CycleDuration.Observe(elapsed.Seconds())
	o.log.Infow("cycle complete",
		"tenants", len(tenants), "success", total.Success, "errors", total.Error,
		"duration", elapsed)
	return nil
}

// Run loops RunCycle until ctx is cancelled.  The inter-cycle sleep is
// the interruption point; an in-progress pass runs to completion.  A
// failed cycle sleeps the shorter retry delay before trying again.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Infow("orchestrator starting",
		"poll_interval", o.cfg.PollInterval, "max_retries", o.cfg.MaxRetries)

	for {
		sleep := o.cfg.PollInterval
		if err := o.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.log.Errorw("cycle failed", "err", err)
			sleep = o.cfg.RetryDelay
		}

		select {
		case <-ctx.Done():
			o.log.Infow("orchestrator stopping")
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}
