package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_cycles_total",
			Help: "Polling cycles by result.",
		},
		[]string{"result"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedwatch_cycle_duration_seconds",
			Help:    "Wall time of one fetch, filter and evaluate cycle.",
			Buckets: prometheus.DefBuckets,
		},
	)
	feedsObserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedwatch_feeds_observed",
			Help: "Feeds returned by the source in the last successful cycle.",
		},
	)
	feedsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedwatch_feeds_tracked",
			Help: "Feeds with baseline statistics.",
		},
	)
	feedsFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedwatch_feeds_filtered_total",
			Help: "Feed observations excluded from tracking, by reason.",
		},
		[]string{"reason"},
	)
	spikesConfirmed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedwatch_spikes_confirmed_total",
			Help: "Spike episodes confirmed and handed off for notification.",
		},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, cycleDuration, feedsObserved, feedsTracked, feedsFiltered, spikesConfirmed)
}
