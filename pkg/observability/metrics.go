package observability

import (
	"context"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pass and handler activity as Prometheus collectors.
type Metrics struct {
	passes          prometheus.Counter
	passDuration    prometheus.Histogram
	changedCells    prometheus.Histogram
	handlerRuns     *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	staleDiscarded  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "mosaic"
	}
	m := &Metrics{
		passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Total number of propagation passes.",
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of propagation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		changedCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_changed_cells",
			Help:      "Number of cells changed per pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		handlerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_runs_total",
			Help:      "Handler invocations by outcome.",
		}, []string{"handler", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Duration of handler invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Async results discarded because their inputs moved on.",
		}, []string{"handler"}),
	}
	for _, c := range []prometheus.Collector{
		m.passes, m.passDuration, m.changedCells, m.handlerRuns, m.handlerDuration, m.staleDiscarded,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPassEnd: func(_ context.Context, e *domain.PassEvent) {
			m.passes.Inc()
			m.passDuration.Observe(e.Duration.Seconds())
			m.changedCells.Observe(float64(len(e.Changed)))
		},
		OnHandlerEnd: func(_ context.Context, e *domain.HandlerEvent) {
			m.handlerRuns.WithLabelValues(string(e.Handler), string(e.Outcome)).Inc()
			m.handlerDuration.WithLabelValues(string(e.Handler)).Observe(e.Duration.Seconds())
		},
		OnStaleDiscarded: func(_ context.Context, e *domain.HandlerEvent) {
			m.staleDiscarded.WithLabelValues(string(e.Handler)).Inc()
		},
	}
}
