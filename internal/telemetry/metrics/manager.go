package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests              *prometheus.CounterVec
	CounterHandleRequestPanic    prometheus.Counter
	CounterRateLimitedRequests   prometheus.Counter
	CounterWorkoutsCreated       prometheus.Counter
	CounterWorkoutsImported      *prometheus.CounterVec
	CounterSortOrderFallbacks    prometheus.Counter
	CounterSortOrderGapExhausted prometheus.Counter
	CounterSortOrderRebalances   prometheus.Counter
	CounterSortOrdersBackfilled  prometheus.Counter
	CounterStatsCacheLookups     *prometheus.CounterVec

	// gauges
	GaugeRequests        prometheus.Gauge
	GaugeOpenConnections prometheus.Gauge
	GaugeLifeSignal      prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistogramRebalanceSize   prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("setpad", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("setpad", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedRequests := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterWorkoutsCreated := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_created",
		Help:      "The total number of created workouts",
	})
	counterWorkoutsImported := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_imported",
		Help:      "The total number of workouts processed by bulk imports, by outcome",
	}, []string{"outcome"})
	counterSortOrderFallbacks := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sort_order_fallbacks",
		Help:      "Workouts placed at the end of the list because of an unparseable date",
	})
	counterSortOrderGapExhausted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sort_order_gap_exhausted",
		Help:      "Placements that found no free sort order between neighbours",
	})
	counterSortOrderRebalances := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sort_order_rebalances",
		Help:      "The total number of full sort order renumberings",
	})
	counterSortOrdersBackfilled := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sort_orders_backfilled",
		Help:      "Legacy workouts that got a sort order assigned at startup",
	})
	counterStatsCacheLookups := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stats_cache_lookups",
		Help:      "Stats cache lookups, by result (hit, miss)",
	}, []string{"result"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeOpenConnections := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "open_connections",
		Help:      "Current number of open client connections",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histogramRebalanceSize := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sort_order_rebalance_size",
		Help:      "Number of workouts renumbered by a single rebalance",
		Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
	})

	return &Manager{
		CounterRequests:              counterRequests,
		CounterHandleRequestPanic:    counterHandleRequestPanic,
		CounterRateLimitedRequests:   counterRateLimitedRequests,
		CounterWorkoutsCreated:       counterWorkoutsCreated,
		CounterWorkoutsImported:      counterWorkoutsImported,
		CounterSortOrderFallbacks:    counterSortOrderFallbacks,
		CounterSortOrderGapExhausted: counterSortOrderGapExhausted,
		CounterSortOrderRebalances:   counterSortOrderRebalances,
		CounterSortOrdersBackfilled:  counterSortOrdersBackfilled,
		CounterStatsCacheLookups:     counterStatsCacheLookups,
		GaugeRequests:                gaugeRequests,
		GaugeOpenConnections:         gaugeOpenConnections,
		GaugeLifeSignal:              gaugeLifeSignal,
		HistogramRequestDuration:     histogramRequestDuration,
		HistogramRebalanceSize:       histogramRebalanceSize,
	}
}
