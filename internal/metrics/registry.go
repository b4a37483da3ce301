// internal/metrics/registry.go

// Package metrics provides Prometheus metrics for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics of one process. All record methods are safe on
// a nil *Registry so components can run without metrics in tests.
type Registry struct {
	reg *prometheus.Registry

	// Transport metrics
	Exchanges       *prometheus.CounterVec
	ExchangeLatency *prometheus.HistogramVec
	BreakerState    prometheus.Gauge

	// Polling metrics
	Sweeps      prometheus.Counter
	Reads       *prometheus.CounterVec
	Alarms      *prometheus.CounterVec
	EchoWrites  prometheus.Counter
	CyclesTotal *prometheus.CounterVec

	// Bridge metrics
	BridgeRequests *prometheus.CounterVec
}

// NewRegistry creates a registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,

		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "modbus",
			Name:      "exchanges_total",
			Help:      "Field-bus exchanges by register kind, operation and result",
		}, []string{"kind", "op", "result"}),
		ExchangeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bridge",
			Subsystem: "modbus",
			Name:      "exchange_duration_seconds",
			Help:      "Field-bus exchange latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "bridge",
			Subsystem: "modbus",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),

		Sweeps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "polling",
			Name:      "sweeps_total",
			Help:      "Polling sweeps started",
		}),
		Reads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "polling",
			Name:      "reads_total",
			Help:      "Characteristic reads issued by the polling cycle",
		}, []string{"result"}),
		Alarms: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "polling",
			Name:      "alarms_total",
			Help:      "Alarms tripped, by characteristic name",
		}, []string{"characteristic"}),
		EchoWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "polling",
			Name:      "echo_writes_total",
			Help:      "Echo/test pattern write-backs",
		}),
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "polling",
			Name:      "cycles_total",
			Help:      "Completed polling cycles by outcome",
		}, []string{"outcome"}),

		BridgeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bridge",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Bridge Get/Set requests by operation, function code and result",
		}, []string{"op", "func_code", "result"}),
	}
}

// Handler serves this registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RecordExchange records one field-bus exchange.
func (r *Registry) RecordExchange(kind, op string, ok bool, seconds float64) {
	if r == nil {
		return
	}
	r.Exchanges.WithLabelValues(kind, op, result(ok)).Inc()
	r.ExchangeLatency.WithLabelValues(op).Observe(seconds)
}

// SetBreakerState records the breaker state as a number.
func (r *Registry) SetBreakerState(state int) {
	if r == nil {
		return
	}
	r.BreakerState.Set(float64(state))
}

func (r *Registry) RecordSweep() {
	if r == nil {
		return
	}
	r.Sweeps.Inc()
}

func (r *Registry) RecordPollRead(ok bool) {
	if r == nil {
		return
	}
	r.Reads.WithLabelValues(result(ok)).Inc()
}

func (r *Registry) RecordAlarm(characteristic string) {
	if r == nil {
		return
	}
	r.Alarms.WithLabelValues(characteristic).Inc()
}

func (r *Registry) RecordEchoWrite() {
	if r == nil {
		return
	}
	r.EchoWrites.Inc()
}

func (r *Registry) RecordCycle(outcome string) {
	if r == nil {
		return
	}
	r.CyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordBridgeRequest records one Get or Set.
func (r *Registry) RecordBridgeRequest(op, funcCode, res string) {
	if r == nil {
		return
	}
	r.BridgeRequests.WithLabelValues(op, funcCode, res).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
