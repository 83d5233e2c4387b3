package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments exposed at /metrics (spec
// SPEC_FULL §2.3): request/error counts, how many rendezvous are live
// right now, how many senders/receivers have ever connected, and how many
// bytes have been relayed in total.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	activeRendezvous prometheus.Gauge
	sendersConnected prometheus.Counter
	receiversJoined  prometheus.Counter
	bytesRelayed     prometheus.Counter
}

// New creates and registers the relay's Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piping_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piping_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	activeRendezvous := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "piping_active_rendezvous",
		Help: "Number of paths currently holding a pending or streaming rendezvous",
	})
	sendersConnected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piping_senders_connected_total",
		Help: "Total number of senders that have attached to a path",
	})
	receiversJoined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piping_receivers_joined_total",
		Help: "Total number of receivers that have attached to a path",
	})
	bytesRelayed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "piping_bytes_relayed_total",
		Help: "Total number of sender body bytes relayed to receivers",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		activeRendezvous,
		sendersConnected,
		receiversJoined,
		bytesRelayed,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		activeRendezvous: activeRendezvous,
		sendersConnected: sendersConnected,
		receiversJoined:  receiversJoined,
		bytesRelayed:     bytesRelayed,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActiveRendezvous sets the active rendezvous gauge.
func (m *Metrics) SetActiveRendezvous(n int) {
	m.activeRendezvous.Set(float64(n))
}

// IncSendersConnected increments the senders-connected counter.
func (m *Metrics) IncSendersConnected() {
	m.sendersConnected.Inc()
}

// IncReceiversJoined increments the receivers-joined counter.
func (m *Metrics) IncReceiversJoined() {
	m.receiversJoined.Inc()
}

// AddBytesRelayed adds n to the bytes-relayed counter.
func (m *Metrics) AddBytesRelayed(n int64) {
	if n > 0 {
		m.bytesRelayed.Add(float64(n))
	}
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// the active rendezvous count).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
