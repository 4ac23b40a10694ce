package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements the domain Metrics interface using Prometheus.
type Recorder struct {
	messages       *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	reconnectTotal *prometheus.CounterVec
	subscribers    prometheus.Gauge
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helixpull_stream_messages_total",
				Help: "Messages processed per upstream stream",
			},
			[]string{"stream", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helixpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helixpull_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helixpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		reconnectTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helixpull_stream_reconnects_total",
				Help: "Upstream stream reconnect attempts",
			},
			[]string{"stream"},
		),
		subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "helixpull_subscribers",
				Help: "Currently connected broadcast subscribers",
			},
		),
	}
}

func (r *Recorder) RecordMessage(stream, symbol string) {
	r.messages.WithLabelValues(stream, symbol).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordReconnect(stream string) {
	r.reconnectTotal.WithLabelValues(stream).Inc()
}

func (r *Recorder) SetSubscribers(n int) {
	r.subscribers.Set(float64(n))
}
