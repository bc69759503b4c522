// Package metrics holds Prometheus instruments that are used across the
// sync service.  All collectors are registered with the global registry,
// so importing this package in main.go is enough to expose them on
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveTenants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_active_tenants",
			Help: "Number of tenants with a cached source handle.",
		})

	FoldersSyncedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_folders_synced_total",
			Help: "Cumulative number of folder sync passes that completed.",
		})

	FoldersSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_folders_skipped_total",
			Help: "Cumulative number of folder passes skipped because the source listing failed.",
		})

	FilesSyncedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_files_synced_total",
			Help: "Cumulative number of files upserted as active.",
		})

	FilesDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_files_deleted_total",
			Help: "Cumulative number of records transitioned to deleted by absence.",
		})

	ParseErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_parse_errors_total",
			Help: "Cumulative number of per-file parse failures.",
		})

	RetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_retries_total",
			Help: "Cumulative number of retry attempts on errored records.",
		})

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Wall-clock duration of a full multi-tenant sync cycle.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})
)

func init() {
	prometheus.MustRegister(
		ActiveTenants,
		FoldersSyncedTotal,
		FoldersSkippedTotal,
		FilesSyncedTotal,
		FilesDeletedTotal,
		ParseErrorsTotal,
		RetriesTotal,
		CycleDuration,
	)
}
