package sink

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics feeds Prometheus counters from events.
type Metrics struct {
	records          prometheus.Counter
	failures         *prometheus.CounterVec
	retries          *prometheus.CounterVec
	populateTimeouts *prometheus.CounterVec
	emptyLevels      *prometheus.CounterVec
	checkpoints      prometheus.Counter
	banksStarted     prometheus.Counter
	lastRecord       prometheus.Gauge
}

// NewMetrics registers the scrape counters on reg under namespace. A nil
// reg uses prometheus.DefaultRegisterer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		records: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Branch records captured",
		}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Nodes abandoned after navigation, selection or extraction failure",
		}, []string{"level"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried navigations and selections",
		}, []string{"level"}),
		populateTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "populate_timeouts_total",
			Help:      "Dependent dropdowns that did not populate in time",
		}, []string{"level"}),
		emptyLevels: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_levels_total",
			Help:      "Dropdowns that offered no real option",
		}, []string{"level"}),
		checkpoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Checkpoint flushes written",
		}),
		banksStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "banks_started_total",
			Help:      "Banks whose subtree traversal began",
		}),
		lastRecord: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_record_timestamp_seconds",
			Help:      "Unix time of the most recent captured record",
		}),
	}
}

func (m *Metrics) Emit(_ context.Context, ev Event) error {
	level := ev.Level
	if level == "" {
		level = "page"
	}
	switch ev.Kind {
	case KindRecord:
		m.records.Inc()
		at := ev.Time
		if at.IsZero() {
			at = time.Now()
		}
		m.lastRecord.Set(float64(at.Unix()))
	case KindFailure:
		m.failures.WithLabelValues(level).Inc()
	case KindRetry:
		m.retries.WithLabelValues(level).Inc()
	case KindPopulateTimeout:
		m.populateTimeouts.WithLabelValues(level).Inc()
	case KindEmptyLevel:
		m.emptyLevels.WithLabelValues(level).Inc()
	case KindCheckpoint:
		m.checkpoints.Inc()
	case KindBankStarted:
		m.banksStarted.Inc()
	}
	return nil
}

func (m *Metrics) Close() error { return nil }
