package escrow

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records adapter activity on its own registry.
type Metrics struct {
	registry     *prometheus.Registry
	txTotal      *prometheus.CounterVec
	readsTotal   *prometheus.CounterVec
	readDuration *prometheus.HistogramVec
	listeners    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	tx := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "innchain_transactions_total",
		Help: "Transactions submitted to the escrow or token contract",
	}, []string{"method", "status"})

	reads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "innchain_reads_total",
		Help: "Contract reads performed by the adapter",
	}, []string{"method", "status"})

	readDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "innchain_read_duration_seconds",
		Help:    "Latency of contract reads",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	listeners := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "innchain_event_listeners",
		Help: "Active contract event listeners",
	}, []string{"event"})

	r := prometheus.NewRegistry()
	r.MustRegister(tx, reads, readDuration, listeners)

	return &Metrics{
		registry:     r,
		txTotal:      tx,
		readsTotal:   reads,
		readDuration: readDuration,
		listeners:    listeners,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeTx(method string, err error) {
	if m == nil {
		return
	}
	m.txTotal.WithLabelValues(method, statusLabel(err)).Inc()
}

func (m *Metrics) observeRead(method string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.readsTotal.WithLabelValues(method, status).Inc()
	m.readDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) setListeners(event string, n int) {
	if m == nil {
		return
	}
	m.listeners.WithLabelValues(event).Set(float64(n))
}
