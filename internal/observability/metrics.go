package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	invocationReplays  prometheus.Counter

	ticketsCreatedTotal prometheus.Counter
	ticketsDecidedTotal *prometheus.CounterVec
	ticketsPending      prometheus.Gauge
	ticketWaitDuration  prometheus.Histogram

	downstreamRequestsTotal   *prometheus.CounterVec
	downstreamRequestDuration *prometheus.HistogramVec

	storeEntries       prometheus.Gauge
	storeEvictionTotal prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			invocationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "invocations_total",
					Help: "Total tool invocations by tool and terminal status.",
				},
				[]string{"tool", "status"},
			),
			invocationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "invocation_duration_seconds",
					Help:    "End-to-end invocation duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			invocationReplays: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "invocation_replays_total",
					Help: "Total invocations answered from the idempotency cache.",
				},
			),
			ticketsCreatedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "tickets_created_total",
					Help: "Total confirmation tickets created.",
				},
			),
			ticketsDecidedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tickets_decided_total",
					Help: "Total confirmation tickets by terminal status.",
				},
				[]string{"status"},
			),
			ticketsPending: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "tickets_pending",
					Help: "Confirmation tickets currently awaiting a decision.",
				},
			),
			ticketWaitDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "ticket_wait_duration_seconds",
					Help:    "Time from ticket creation to terminal status in seconds.",
					Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
			),
			downstreamRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "downstream_requests_total",
					Help: "Total downstream console requests by method and outcome.",
				},
				[]string{"method", "outcome"},
			),
			downstreamRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "downstream_request_duration_seconds",
					Help:    "Downstream console request duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			storeEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "store_entries",
					Help: "Invocation records currently held in the store.",
				},
			),
			storeEvictionTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "store_evictions_total",
					Help: "Total invocation records evicted by the retention janitor.",
				},
			),
		}

		prometheus.MustRegister(
			m.invocationsTotal,
			m.invocationDuration,
			m.invocationReplays,
			m.ticketsCreatedTotal,
			m.ticketsDecidedTotal,
			m.ticketsPending,
			m.ticketWaitDuration,
			m.downstreamRequestsTotal,
			m.downstreamRequestDuration,
			m.storeEntries,
			m.storeEvictionTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns an HTTP handler exposing the default registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordInvocation records a terminal invocation result.
func RecordInvocation(tool, status string, duration time.Duration) {
	m := getMetrics()
	m.invocationsTotal.WithLabelValues(tool, status).Inc()
	m.invocationDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordInvocationReplay records a cached-result replay.
func RecordInvocationReplay() {
	getMetrics().invocationReplays.Inc()
}

// RecordTicketCreated records a new pending ticket.
func RecordTicketCreated() {
	m := getMetrics()
	m.ticketsCreatedTotal.Inc()
	m.ticketsPending.Inc()
}

// RecordTicketDecided records a ticket reaching a terminal status.
func RecordTicketDecided(status string, waited time.Duration) {
	m := getMetrics()
	m.ticketsDecidedTotal.WithLabelValues(status).Inc()
	m.ticketsPending.Dec()
	m.ticketWaitDuration.Observe(waited.Seconds())
}

// RecordDownstreamRequest records one downstream console request.
func RecordDownstreamRequest(method, outcome string, duration time.Duration) {
	m := getMetrics()
	m.downstreamRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.downstreamRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetStoreEntries updates the store entry gauge.
func SetStoreEntries(count int) {
	getMetrics().storeEntries.Set(float64(count))
}

// RecordStoreEvictions adds to the eviction counter.
func RecordStoreEvictions(count int) {
	getMetrics().storeEvictionTotal.Add(float64(count))
}
