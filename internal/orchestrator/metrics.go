package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dusk-indust/refinery/internal/quality"
)

// Metrics exposes Prometheus collectors that report refinement activity.
// All methods are safe on a nil receiver.
type Metrics struct {
	runs            *prometheus.CounterVec
	attempts        prometheus.Histogram
	finalScore      prometheus.Histogram
	fixerDuration   *prometheus.HistogramVec
	editsReconciled *prometheus.CounterVec
	rewriteRetries  prometheus.Counter
	reconcileFails  prometheus.Counter
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global Prometheus
// registry. Collectors are created once so repeated engine construction does
// not panic on duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics on reg, reusing collectors that are
// already registered under the same names. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refinery",
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Refinement runs by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "refinery",
			Subsystem: "engine",
			Name:      "run_attempts",
			Help:      "Refinement attempts consumed per run.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8},
		}),
		finalScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "refinery",
			Subsystem: "engine",
			Name:      "final_score",
			Help:      "Overall score at the end of each run.",
			Buckets:   prometheus.LinearBuckets(0, 1, 11),
		}),
		fixerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refinery",
			Subsystem: "fixer",
			Name:      "duration_seconds",
			Help:      "Duration of fixer calls by dimension and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"dimension", "status"}),
		editsReconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refinery",
			Subsystem: "reconciler",
			Name:      "edits_total",
			Help:      "Edits processed by the reconciler by disposition.",
		}, []string{"disposition"}),
		rewriteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refinery",
			Subsystem: "reconciler",
			Name:      "rewrite_retries_total",
			Help:      "Rewrite oracle calls retried after a transient failure.",
		}),
		reconcileFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "refinery",
			Subsystem: "reconciler",
			Name:      "soft_failures_total",
			Help:      "Rounds whose rewrite failed and left the document unchanged.",
		}),
	}

	m.runs = register(reg, m.runs)
	m.attempts = register(reg, m.attempts)
	m.finalScore = register(reg, m.finalScore)
	m.fixerDuration = register(reg, m.fixerDuration)
	m.editsReconciled = register(reg, m.editsReconciled)
	m.rewriteRetries = register(reg, m.rewriteRetries)
	m.reconcileFails = register(reg, m.reconcileFails)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(res *quality.RunResult) {
	if m == nil || res == nil {
		return
	}
	outcome := "passed"
	if !res.Success {
		outcome = "exhausted"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.attempts.Observe(float64(len(res.Attempts)))
	m.finalScore.Observe(res.FinalScore)
}

// ObserveFixer records one fixer call.
func (m *Metrics) ObserveFixer(d quality.Dimension, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.fixerDuration.WithLabelValues(string(d), status).Observe(elapsed.Seconds())
}

// ObserveReconciliation records the disposition of one round's edits.
func (m *Metrics) ObserveReconciliation(res quality.ReconciliationResult) {
	if m == nil {
		return
	}
	m.editsReconciled.WithLabelValues("applied").Add(float64(len(res.EditsApplied)))
	m.editsReconciled.WithLabelValues("skipped").Add(float64(len(res.EditsSkipped)))
	if res.Failed() {
		m.reconcileFails.Inc()
	}
}

// IncRewriteRetry counts one retried rewrite call.
func (m *Metrics) IncRewriteRetry() {
	if m == nil {
		return
	}
	m.rewriteRetries.Inc()
}
