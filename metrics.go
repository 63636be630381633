package leadimage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	selectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadimage_selections_total",
		Help: "Finalized renders by selection outcome.",
	}, []string{"outcome"})

	selectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadimage_selection_duration_seconds",
		Help:    "Time spent scoring and selecting a lead image per render.",
		Buckets: prometheus.DefBuckets,
	})

	blacklistRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadimage_blacklist_refreshes_total",
		Help: "Times the blacklist was rebuilt from its sources.",
	})

	blacklistSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "leadimage_blacklist_entries",
		Help: "Entries in the current blacklist snapshot.",
	})
)
