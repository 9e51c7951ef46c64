// Package metrics holds the Prometheus collectors for the trip engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ProviderCalls counts route provider calls by outcome ("ok", "error").
	ProviderCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_provider_calls_total",
		Help: "Route provider calls by outcome",
	}, []string{"status"})

	// SegmentCacheHits counts generate-routes pairs served from the cache.
	SegmentCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_cache_hits_total",
		Help: "Adjacent stop pairs served from the segment cache",
	})

	// SegmentCacheMisses counts generate-routes pairs that needed a fetch.
	SegmentCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "segment_cache_misses_total",
		Help: "Adjacent stop pairs that required a provider fetch",
	})

	// SegmentInvalidations counts cache invalidations by trigger
	// ("insert", "reorder").
	SegmentInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "segment_invalidations_total",
		Help: "Segment cache invalidations by trigger",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		ProviderCalls,
		SegmentCacheHits,
		SegmentCacheMisses,
		SegmentInvalidations,
	)
}
