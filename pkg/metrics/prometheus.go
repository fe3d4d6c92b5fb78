package metrics

import (
	"AOWI/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles      prometheus.Counter
	intents     *prometheus.CounterVec
	evalErrors  *prometheus.CounterVec
	orders      *prometheus.CounterVec
	results     *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	clamps      *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	state       prometheus.Gauge
	latency     *prometheus.HistogramVec
	cycleTime   prometheus.Histogram
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "aowi_cycles_total",
			Help: "Total number of completed dispatch cycles",
		}),
		intents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_intents_total",
				Help: "Intents produced per strategy",
			},
			[]string{"strategy"},
		),
		evalErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_evaluation_errors_total",
				Help: "Strategy evaluation failures",
			},
			[]string{"strategy"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_orders_total",
				Help: "Aggregated orders by symbol and side",
			},
			[]string{"symbol", "side"},
		),
		results: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_results_total",
				Help: "Dispatch results by status and adapter",
			},
			[]string{"status", "adapter"},
		),
		conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_conflicts_total",
				Help: "Opposing intents resolved by the aggregator",
			},
			[]string{"symbol"},
		),
		clamps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_clamps_total",
				Help: "Orders clamped to the volume cap",
			},
			[]string{"symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aowi_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "aowi_dispatch_state",
			Help: "Current dispatch loop state (0 idle .. 4 shut down)",
		}),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aowi_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cycleTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aowi_cycle_duration_seconds",
			Help:    "Wall time of one dispatch cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Recorder) RecordCycle(seconds float64) {
	r.cycles.Inc()
	r.cycleTime.Observe(seconds)
}

func (r *Recorder) RecordIntents(strategy string, n int) {
	r.intents.WithLabelValues(strategy).Add(float64(n))
}

func (r *Recorder) RecordEvaluationError(strategy string) {
	r.evalErrors.WithLabelValues(strategy).Inc()
}

func (r *Recorder) RecordOrder(symbol string, side models.Side) {
	r.orders.WithLabelValues(symbol, string(side)).Inc()
}

func (r *Recorder) RecordResult(status models.Status, adapter string) {
	r.results.WithLabelValues(string(status), adapter).Inc()
}

func (r *Recorder) RecordConflict(symbol string) {
	r.conflicts.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordClamp(symbol string) {
	r.clamps.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordState(state int) {
	r.state.Set(float64(state))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordCycle(float64)                {}
func (Nop) RecordIntents(string, int)          {}
func (Nop) RecordEvaluationError(string)       {}
func (Nop) RecordOrder(string, models.Side)    {}
func (Nop) RecordResult(models.Status, string) {}
func (Nop) RecordConflict(string)              {}
func (Nop) RecordClamp(string)                 {}
func (Nop) RecordState(int)                    {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLatency(string, float64)      {}
