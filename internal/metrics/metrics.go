package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors the swap assistant exports. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	indexerRequests *prometheus.CounterVec
	indexerLatency  *prometheus.HistogramVec
	quotes          *prometheus.CounterVec
	swaps           *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default returns the process-wide set registered on the default registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// New builds a set and registers it on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		indexerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_indexer_requests_total",
			Help: "Indexer API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		indexerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swap_indexer_request_seconds",
			Help:    "Indexer API request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_quotes_total",
			Help: "Quotes computed by outcome.",
		}, []string{"outcome"}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swap_transactions_total",
			Help: "Swap pipeline stages by outcome.",
		}, []string{"stage", "outcome"}),
	}
	reg.MustRegister(m.indexerRequests, m.indexerLatency, m.quotes, m.swaps)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveIndexer(endpoint string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.indexerRequests.WithLabelValues(endpoint, outcome(err)).Inc()
	m.indexerLatency.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveQuote(err error) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(outcome(err)).Inc()
}

// ObserveSwap counts one pipeline stage: build, sign or submit.
func (m *Metrics) ObserveSwap(stage string, err error) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(stage, outcome(err)).Inc()
}
