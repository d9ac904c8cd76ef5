package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsHandledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_worker_jobs_handled_total",
		Help: "Total number of jobs handled",
	})

	JobsSucceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "export_worker_jobs_succeeded_total",
		Help: "Total number of jobs that produced a pipeline result",
	})

	JobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_worker_job_failures_total",
		Help: "Total number of jobs that produced an error envelope, by error code",
	}, []string{"code"})

	SubprocessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "export_worker_subprocess_duration_seconds",
		Help:    "Time spent inside the export pipeline subprocess in seconds",
		Buckets: prometheus.DefBuckets,
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "export_worker_jobs_in_flight",
		Help: "Number of jobs currently being handled",
	})
)
