// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedEvents          *prometheus.CounterVec
	FeedReconnects      *prometheus.CounterVec
	FeedMessagesDropped prometheus.Counter
	FeedConnected       prometheus.Gauge

	// Session metrics
	TokensAdmitted   prometheus.Counter
	DuplicatesSeen   prometheus.Counter
	TradeFlushes     prometheus.Counter
	TradesAggregated prometheus.Counter
	TrackedTokens    prometheus.Gauge
	DistinctMints    prometheus.Gauge

	// Target metrics
	TargetStatus  *prometheus.GaugeVec
	TargetChanges *prometheus.CounterVec

	// External call metrics
	ExternalCallLatency *prometheus.HistogramVec
	ExternalCallErrors  *prometheus.CounterVec
	SolPriceUSD         prometheus.Gauge
}

// NewMetrics creates and registers all metrics.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trend_scout"
	}

	return &Metrics{
		FeedEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Total number of decoded feed events by kind",
		}, []string{"kind"}),
		FeedReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnect attempts by reason",
		}, []string{"reason"}),
		FeedMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_dropped_total",
			Help:      "Total number of feed messages that could not be decoded",
		}),
		FeedConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 when the feed connection is open",
		}),

		TokensAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tokens_admitted_total",
			Help:      "Total number of creation events admitted into groups",
		}),
		DuplicatesSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duplicates_total",
			Help:      "Total number of creation events dropped as duplicates",
		}),
		TradeFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "trade_flushes_total",
			Help:      "Total number of flushes that changed state",
		}),
		TradesAggregated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "trades_aggregated_total",
			Help:      "Total number of trade events folded into deltas",
		}),
		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "tracked_tokens",
			Help:      "Number of ids in the dedup cache",
		}),
		DistinctMints: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "distinct_mints_estimate",
			Help:      "Estimated number of distinct mints seen since start",
		}),

		TargetStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "target",
			Name:      "status",
			Help:      "1 for the current target status, 0 otherwise",
		}, []string{"status"}),
		TargetChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "target",
			Name:      "changes_total",
			Help:      "Total number of target changes by provenance",
		}, []string{"provenance"}),

		ExternalCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_latency_seconds",
			Help:      "External call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		ExternalCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "call_errors_total",
			Help:      "Total number of failed external calls",
		}, []string{"service", "operation"}),
		SolPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "sol_usd",
			Help:      "Current SOL price in USD",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFeedEvent increments the decoded feed events counter.
func RecordFeedEvent(kind string) {
	DefaultMetrics.FeedEvents.WithLabelValues(kind).Inc()
}

// RecordFeedReconnect increments the reconnect counter.
func RecordFeedReconnect(reason string) {
	DefaultMetrics.FeedReconnects.WithLabelValues(reason).Inc()
}

// RecordFeedDropped increments the dropped messages counter.
func RecordFeedDropped() {
	DefaultMetrics.FeedMessagesDropped.Inc()
}

// SetFeedConnected updates the connection gauge.
func SetFeedConnected(connected bool) {
	DefaultMetrics.FeedConnected.Set(boolValue(connected))
}

// RecordTokenAdmitted increments the admitted tokens counter.
func RecordTokenAdmitted() {
	DefaultMetrics.TokensAdmitted.Inc()
}

// RecordDuplicate increments the duplicate events counter.
func RecordDuplicate() {
	DefaultMetrics.DuplicatesSeen.Inc()
}

// RecordFlush records a state-changing flush covering n trade events.
func RecordFlush(n int) {
	DefaultMetrics.TradeFlushes.Inc()
	DefaultMetrics.TradesAggregated.Add(float64(n))
}

// UpdateCacheSizes updates the dedup cache gauges.
func UpdateCacheSizes(tracked int, distinct uint64) {
	DefaultMetrics.TrackedTokens.Set(float64(tracked))
	DefaultMetrics.DistinctMints.Set(float64(distinct))
}

var targetStatuses = []string{"hunting", "tentative", "confirmed", "locked"}

// SetTargetStatus marks status as the current target status.
func SetTargetStatus(status string) {
	for _, s := range targetStatuses {
		DefaultMetrics.TargetStatus.WithLabelValues(s).Set(boolValue(s == status))
	}
}

// RecordTargetChange increments the target changes counter.
func RecordTargetChange(provenance string) {
	DefaultMetrics.TargetChanges.WithLabelValues(provenance).Inc()
}

// RecordExternalCall records latency and failure of an external call.
func RecordExternalCall(service, operation string, seconds float64, err error) {
	DefaultMetrics.ExternalCallLatency.WithLabelValues(service, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.ExternalCallErrors.WithLabelValues(service, operation).Inc()
	}
}

// SetSolPrice updates the SOL price gauge.
func SetSolPrice(usd float64) {
	DefaultMetrics.SolPriceUSD.Set(usd)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
