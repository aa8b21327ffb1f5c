package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus instrumentation for workflow execution.
//
// Metrics (namespace "hybridflow"):
//   - inflight_runnables (gauge): runnables currently executing.
//   - run_latency_ms (histogram): runnable execution duration, labeled
//     by runnable name and status (success/error).
//   - branch_failures_total (counter): race branch failures, by branch.
//   - race_wins_total (counter): winning branch selections, by branch.
//   - loop_iterations_total (counter): completed loop iterations, by
//     workflow name.
//
// All methods are safe to call on a nil receiver, so combinators can
// instrument unconditionally.
type Metrics struct {
	inflight       prometheus.Gauge
	runLatency     *prometheus.HistogramVec
	branchFailures *prometheus.CounterVec
	raceWins       *prometheus.CounterVec
	loopIterations *prometheus.CounterVec
}

// NewMetrics registers the workflow metrics with the given registerer.
// A nil registerer falls back to the Prometheus default.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "hybridflow",
			Name:      "inflight_runnables",
			Help:      "Number of runnables currently executing",
		}),
		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hybridflow",
			Name:      "run_latency_ms",
			Help:      "Runnable execution duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"runnable", "status"}),
		branchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridflow",
			Name:      "branch_failures_total",
			Help:      "Race branch failures tolerated by the combination step",
		}, []string{"branch"}),
		raceWins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridflow",
			Name:      "race_wins_total",
			Help:      "Race combinations won, per branch",
		}, []string{"branch"}),
		loopIterations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hybridflow",
			Name:      "loop_iterations_total",
			Help:      "Completed loop iterations, per workflow",
		}, []string{"workflow"}),
	}
}

// RunStarted increments the in-flight gauge.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

// RunFinished decrements the in-flight gauge and records the runnable's
// latency with the given status ("success" or "error").
func (m *Metrics) RunFinished(runnable string, start time.Time, status string) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.runLatency.WithLabelValues(runnable, status).Observe(float64(time.Since(start).Milliseconds()))
}

// BranchFailed counts a tolerated race branch failure.
func (m *Metrics) BranchFailed(branch string) {
	if m == nil {
		return
	}
	m.branchFailures.WithLabelValues(branch).Inc()
}

// RaceWon counts a winning branch selection.
func (m *Metrics) RaceWon(branch string) {
	if m == nil {
		return
	}
	m.raceWins.WithLabelValues(branch).Inc()
}

// LoopIteration counts a completed loop iteration.
func (m *Metrics) LoopIteration(workflow string) {
	if m == nil {
		return
	}
	m.loopIterations.WithLabelValues(workflow).Inc()
}
