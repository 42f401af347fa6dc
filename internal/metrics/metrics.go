package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"rentdesk/internal/booking"
)

// Metrics holds the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lowStock  prometheus.Gauge
	active    prometheus.Gauge
	streams   prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg yields a no-op set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentdesk_mutations_total",
			Help: "Store mutations by operation and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
		lowStock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rentdesk_low_stock_items",
			Help: "Inventory items below the low stock threshold.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rentdesk_active_reservations",
			Help: "Reservations not yet finished.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rentdesk_stream_clients",
			Help: "Connected live update streams.",
		}),
	}
	reg.MustRegister(m.mutations, m.duration, m.lowStock, m.active, m.streams)
	return m
}

// Mutation counts one store mutation; err decides the result label.
func (m *Metrics) Mutation(op string, err error) {
	if m == nil || m.mutations == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mutations.WithLabelValues(normalizeLabel(op), result).Inc()
}

func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(route), statusClass(status)).Observe(d.Seconds())
}

// ObserveState refreshes the gauges from a mirrored snapshot.
func (m *Metrics) ObserveState(s booking.State) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Set(float64(len(booking.LowStock(s.Inventory))))
	active := 0
	for _, r := range s.Reservations {
		if !r.Finished() {
			active++
		}
	}
	m.active.Set(float64(active))
}

func (m *Metrics) StreamOpened() {
	if m == nil || m.streams == nil {
		return
	}
	m.streams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil || m.streams == nil {
		return
	}
	m.streams.Dec()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
