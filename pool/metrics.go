package pool

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a pool with Prometheus collectors. A nil *Metrics
// is valid and records nothing, so instrumentation stays optional.
type Metrics struct {
	// DispatchesTotal counts commands routed to each worker index.
	DispatchesTotal *prometheus.CounterVec

	// ResetsTotal counts full pool resets triggered by worker death.
	ResetsTotal prometheus.Counter

	// WorkersSpawnedTotal counts engine workers started, including
	// respawns after a reset.
	WorkersSpawnedTotal prometheus.Counter

	// RequestsInFlight tracks commands between enqueue and completion.
	RequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers the pool's collectors.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		DispatchesTotal: promauto.With(registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_pool_dispatches_total",
				Help: "Commands dispatched, by worker index",
			},
			[]string{"worker"},
		),
		ResetsTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "script_pool_resets_total",
				Help: "Full pool resets triggered by worker death",
			},
		),
		WorkersSpawnedTotal: promauto.With(registerer).NewCounter(
			prometheus.CounterOpts{
				Name: "script_pool_workers_spawned_total",
				Help: "Engine workers started, including respawns",
			},
		),
		RequestsInFlight: promauto.With(registerer).NewGauge(
			prometheus.GaugeOpts{
				Name: "script_pool_requests_in_flight",
				Help: "Commands between enqueue and completion",
			},
		),
	}
}

func (m *Metrics) dispatched(worker int) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(strconv.Itoa(worker)).Inc()
}

func (m *Metrics) reset() {
	if m == nil {
		return
	}
	m.ResetsTotal.Inc()
}

func (m *Metrics) spawned(n int) {
	if m == nil {
		return
	}
	m.WorkersSpawnedTotal.Add(float64(n))
}

func (m *Metrics) inflight(delta float64) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Add(delta)
}
