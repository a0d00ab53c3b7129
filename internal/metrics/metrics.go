// Package metrics registers the prometheus collectors for scans and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hadlocna/operations/internal/domain/entity"
)

var (
	// candidatesTotal counts candidates by final status
	candidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_intake_candidates_total",
			Help: "Candidates processed by final status",
		},
		[]string{"status"},
	)

	// runsTotal counts scan invocations by outcome
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_intake_runs_total",
			Help: "Scan invocations by outcome",
		},
		[]string{"outcome"},
	)

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_intake_run_duration_seconds",
		Help:    "Wall time of scan invocations in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	ledgerSoftErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_intake_ledger_soft_errors_total",
		Help: "Archived invoices whose ledger append failed",
	})

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invoice_intake_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invoice_intake_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordRun records one finished invocation. summary may be nil for runs that aborted.
func RecordRun(run *entity.ScanRun, summary *entity.ProcessingSummary, duration time.Duration) {
	runsTotal.WithLabelValues(run.Status).Inc()
	runDuration.Observe(duration.Seconds())

	if summary == nil {
		return
	}
	candidatesTotal.WithLabelValues(entity.StatusSuccess).Add(float64(len(summary.Processed)))
	candidatesTotal.WithLabelValues(entity.StatusSkipped).Add(float64(len(summary.Skipped)))
	candidatesTotal.WithLabelValues(entity.StatusError).Add(float64(len(summary.Errors)))
	ledgerSoftErrors.Add(float64(summary.LedgerSoftErrors()))
}

// ObserveHTTP records one served request. path should be the route template.
func ObserveHTTP(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
