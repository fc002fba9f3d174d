package extensions

import (
	"github.com/prometheus/client_golang/prometheus"

	searchfn "github.com/searchfn/searchfn-go"
)

// MetricsExtension exports fetch counters and latency histograms.
//
// Collectors are owned by the extension instance and registered with the
// supplied registerer on Init, so several scopes can carry independent
// extensions against separate registries.
type MetricsExtension struct {
	searchfn.BaseExtension
	registerer prometheus.Registerer

	fetchesStarted *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
}

// NewMetricsExtension creates a metrics extension that registers its
// collectors with reg when the extension joins a scope
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	return &MetricsExtension{
		BaseExtension: searchfn.NewBaseExtension("metrics"),
		registerer:    reg,
		fetchesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "searchfn",
				Name:      "fetches_started_total",
				Help:      "Count of fetches issued per coordinator.",
			},
			[]string{"coordinator"},
		),
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "searchfn",
				Name:      "settlements_total",
				Help:      "Count of fetch settlements per coordinator and outcome.",
			},
			[]string{"coordinator", "outcome"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "searchfn",
				Name:      "fetch_duration_seconds",
				Help:      "Latency of settled fetch calls.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"coordinator"},
		),
	}
}

func (e *MetricsExtension) Init(scope *searchfn.Scope) error {
	for _, c := range e.collectors() {
		if err := e.registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *MetricsExtension) OnFetchStart(op *searchfn.Operation) error {
	e.fetchesStarted.WithLabelValues(op.Coordinator.Name()).Inc()
	return nil
}

func (e *MetricsExtension) OnSettle(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.settlements.WithLabelValues(s.Coordinator, s.Outcome.String()).Inc()
	e.fetchDuration.WithLabelValues(s.Coordinator).Observe(s.Duration.Seconds())
}

func (e *MetricsExtension) OnDiscard(scope *searchfn.Scope, s *searchfn.Settlement) {
	e.settlements.WithLabelValues(s.Coordinator, s.Outcome.String()).Inc()
}

func (e *MetricsExtension) Dispose(scope *searchfn.Scope) error {
	for _, c := range e.collectors() {
		e.registerer.Unregister(c)
	}
	return nil
}

func (e *MetricsExtension) collectors() []prometheus.Collector {
	return []prometheus.Collector{e.fetchesStarted, e.settlements, e.fetchDuration}
}
