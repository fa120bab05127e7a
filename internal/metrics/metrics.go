// Package metrics exposes Prometheus collectors for the alerting engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flow labels.
const (
	FlowInstant = "instant"
	FlowDigest  = "digest"
)

// Failure stages.
const (
	StageContact = "contact"
	StageSink    = "sink"
	StageStore   = "store"
	StageDedup   = "dedup"
)

var (
	alertsEvaluatedTotal *prometheus.CounterVec
	alertsMatchedTotal   *prometheus.CounterVec
	alertsDispatchTotal  *prometheus.CounterVec
	alertsFailuresTotal  *prometheus.CounterVec
	alertsLostRacesTotal *prometheus.CounterVec
	digestRunSeconds     *prometheus.HistogramVec
	tasksEnqueuedTotal   *prometheus.CounterVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to call
// more than once; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
		alertsEvaluatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_evaluated_total",
				Help: "Saved searches evaluated, labeled by flow.",
			},
			[]string{"flow"},
		)
		alertsMatchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_matched_total",
				Help: "Saved searches that matched at least one listing, labeled by flow.",
			},
			[]string{"flow"},
		)
		alertsDispatchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_dispatched_total",
				Help: "Notifications submitted to the sink, labeled by flow.",
			},
			[]string{"flow"},
		)
		alertsFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_failures_total",
				Help: "Per-search processing failures, labeled by flow and stage.",
			},
			[]string{"flow", "stage"},
		)
		alertsLostRacesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alerts_lost_races_total",
				Help: "Conditional lastAlertSent updates that found a stale value.",
			},
			[]string{"flow"},
		)
		digestRunSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alerts_digest_run_seconds",
				Help:    "Duration of digest runs, labeled by frequency.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"frequency"},
		)
		tasksEnqueuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasks_enqueued_total",
				Help: "Background tasks enqueued, labeled by type and result.",
			},
			[]string{"type", "result"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEvaluated counts one evaluated search.
func ObserveEvaluated(flow string) {
	Init()
	alertsEvaluatedTotal.WithLabelValues(flow).Inc()
}

// ObserveMatched counts one matching search.
func ObserveMatched(flow string) {
	Init()
	alertsMatchedTotal.WithLabelValues(flow).Inc()
}

// ObserveDispatched counts one accepted notification.
func ObserveDispatched(flow string) {
	Init()
	alertsDispatchTotal.WithLabelValues(flow).Inc()
}

// ObserveFailure counts one per-search failure.
func ObserveFailure(flow, stage string) {
	Init()
	alertsFailuresTotal.WithLabelValues(flow, stage).Inc()
}

// ObserveLostRace counts one stale conditional update.
func ObserveLostRace(flow string) {
	Init()
	alertsLostRacesTotal.WithLabelValues(flow).Inc()
}

// ObserveDigestRun records how long a digest run took.
func ObserveDigestRun(frequency string, d time.Duration) {
	Init()
	digestRunSeconds.WithLabelValues(frequency).Observe(d.Seconds())
}

// ObserveEnqueue counts a task enqueue attempt.
func ObserveEnqueue(taskType string, err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	tasksEnqueuedTotal.WithLabelValues(taskType, result).Inc()
}
