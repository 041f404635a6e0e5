// Package observability provides Prometheus metrics for the data
// acquisition daemons. The deterministic core does not record metrics;
// only the feed and fetch paths do.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	BarsReceived     prometheus.Counter
	BarsAppended     prometheus.Counter
	Reconnects       prometheus.Counter
	AppendLatency    prometheus.Histogram
	LastBarTimestamp prometheus.Gauge

	// Fetch metrics
	FetchRequests prometheus.Counter
	FetchErrors   prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bar_replay"
	}

	return &Metrics{
		// Feed metrics
		BarsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bars_received_total",
			Help:      "Total number of closed candles received from the stream",
		}),
		BarsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "bars_appended_total",
			Help:      "Total number of bars appended to the snapshot",
		}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnects",
		}),
		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "append_latency_seconds",
			Help:      "Snapshot append latency in seconds",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		LastBarTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "last_bar_timestamp",
			Help:      "Unix timestamp of the last bar appended",
		}),

		// Fetch metrics
		FetchRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total number of market-data requests issued",
		}),
		FetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "request_errors_total",
			Help:      "Total number of failed market-data requests",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordBarReceived increments the bars received counter.
func RecordBarReceived() {
	DefaultMetrics.BarsReceived.Inc()
}

// RecordBarAppended records one appended bar and its write latency.
func RecordBarAppended(barTime time.Time, seconds float64) {
	DefaultMetrics.BarsAppended.Inc()
	DefaultMetrics.AppendLatency.Observe(seconds)
	DefaultMetrics.LastBarTimestamp.Set(float64(barTime.Unix()))
}

// RecordReconnect increments the reconnect counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordFetchRequest records one market-data request and its result.
func RecordFetchRequest(err error) {
	DefaultMetrics.FetchRequests.Inc()
	if err != nil {
		DefaultMetrics.FetchErrors.Inc()
	}
}
