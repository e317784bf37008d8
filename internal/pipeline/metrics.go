package pipeline

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

// Metrics counts batch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Entries       *prometheus.CounterVec
	Products      *prometheus.CounterVec
	PersistErrors prometheus.Counter
	Confidence    prometheus.Histogram
	EntryDuration prometheus.Histogram
}

// NewMetrics creates the batch metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_entries_total",
			Help: "Entries processed, by terminal state",
		}, []string{"state"}),
		Products: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resolver_products_total",
			Help: "Resolved products, by validation status and auto-accept",
		}, []string{"status", "auto_accepted"}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resolver_persist_errors_total",
			Help: "Products that could not be stored",
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolver_product_confidence",
			Help:    "Aggregate confidence of resolved products",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		EntryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resolver_entry_duration_seconds",
			Help:    "Wall time spent on one entry",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	if err := reg.Register(m); err != nil {
		return nil, eris.Wrap(err, "pipeline: register metrics")
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Entries.Describe(ch)
	m.Products.Describe(ch)
	m.PersistErrors.Describe(ch)
	m.Confidence.Describe(ch)
	m.EntryDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Entries.Collect(ch)
	m.Products.Collect(ch)
	m.PersistErrors.Collect(ch)
	m.Confidence.Collect(ch)
	m.EntryDuration.Collect(ch)
}

// Observe records one finished entry.
func (m *Metrics) Observe(o Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Entries.WithLabelValues(string(o.State)).Inc()
	m.EntryDuration.Observe(elapsed.Seconds())
	if o.PersistError != "" {
		m.PersistErrors.Inc()
	}
	if p := o.Product; p != nil {
		m.Products.WithLabelValues(string(p.Status), strconv.FormatBool(p.AutoAccepted)).Inc()
		m.Confidence.Observe(p.Confidence)
	}
}
