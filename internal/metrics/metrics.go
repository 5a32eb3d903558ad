// Package metrics exposes Prometheus collectors for the fetch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourcesTotal counts sources run, labeled by outcome.
	SourcesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aqfetch_sources_total",
		Help: "Total number of sources run, labeled by outcome.",
	}, []string{"outcome"})

	// MeasurementsTotal counts raw records seen per source.
	MeasurementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aqfetch_measurements_total",
		Help: "Total number of raw records pulled, labeled by source.",
	}, []string{"source"})

	// MeasurementsInserted counts records actually written to storage.
	MeasurementsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aqfetch_measurements_inserted_total",
		Help: "Total number of canonical records written to storage, labeled by source.",
	}, []string{"source"})

	// FailuresTotal counts captured record and source failures.
	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aqfetch_failures_total",
		Help: "Total number of captured failures, labeled by source.",
	}, []string{"source"})

	// UploadBytesTotal counts bytes streamed to object storage.
	UploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqfetch_upload_bytes_total",
		Help: "Total bytes streamed to object storage.",
	})

	// JobsTotal counts queue jobs processed by the worker loop.
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aqfetch_jobs_total",
		Help: "Total number of queue jobs processed, labeled by status.",
	}, []string{"status"})

	// SourcesInFlight tracks sources currently between started and finished.
	SourcesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aqfetch_sources_in_flight",
		Help: "Number of sources currently running.",
	})
)
