package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "obo"

// Result label values for token acquisitions
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors for the authorized client provider.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	Acquisitions        *prometheus.CounterVec
	AcquisitionDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Authorized client lookups served from the cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Authorized client lookups that required a new token",
		}),
		Acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_acquisitions_total",
				Help:      "Token endpoint round trips by registration, grant type and result",
			},
			[]string{"registration", "grant_type", "result"},
		),
		AcquisitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "token_acquisition_duration_seconds",
				Help:      "Histogram of token endpoint round trip durations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"registration"},
		),
	}
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.Acquisitions, m.AcquisitionDuration)
	return m
}

func (m *Metrics) Hit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) Miss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// Acquired records one token endpoint round trip
func (m *Metrics) Acquired(registration, grantType string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.Acquisitions.WithLabelValues(registration, grantType, result).Inc()
	m.AcquisitionDuration.WithLabelValues(registration).Observe(time.Since(started).Seconds())
}

// Handler serves the collectors registered with gatherer in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
