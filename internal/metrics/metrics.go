// Package metrics exposes live PluginStats and the cache hit ratio as
// Prometheus gauges, served by the `daemon start` metrics endpoint.
// `performance stats` reads the Registry directly and does not use it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"synx/internal/model"
)

var (
	executions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "plugin_executions_total",
		Help:      "Total validation executions recorded per plugin.",
	}, []string{"plugin_id"})

	successes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "plugin_successes_total",
		Help:      "Total successful validation executions recorded per plugin.",
	}, []string{"plugin_id"})

	failures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "plugin_failures_total",
		Help:      "Total failed validation executions recorded per plugin.",
	}, []string{"plugin_id"})

	avgWallMS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "plugin_avg_wall_ms",
		Help:      "Mean wall-clock time per execution, in milliseconds.",
	}, []string{"plugin_id"})

	maxWallMS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "plugin_max_wall_ms",
		Help:      "Maximum observed wall-clock time for a single execution, in milliseconds.",
	}, []string{"plugin_id"})

	cacheHitRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "synx",
		Name:      "cache_hit_ratio",
		Help:      "Validation cache hit ratio since process start.",
	})
)

// RecordPluginStats publishes one plugin's current stats snapshot as
// gauge values. Called after each scan (or periodically by a daemon)
// rather than on every execution, since these are point-in-time
// snapshots, not counters owned by this package.
func RecordPluginStats(pluginID string, stats model.PluginStats) {
	executions.WithLabelValues(pluginID).Set(float64(stats.Executions))
	successes.WithLabelValues(pluginID).Set(float64(stats.Successes))
	failures.WithLabelValues(pluginID).Set(float64(stats.Failures))
	avgWallMS.WithLabelValues(pluginID).Set(stats.AvgWallMS())
	maxWallMS.WithLabelValues(pluginID).Set(float64(stats.MaxWallMS))
}

// RecordCacheStats publishes the validation cache's hit ratio.
func RecordCacheStats(stats model.CacheStats) {
	cacheHitRatio.Set(stats.HitRatio)
}

// Handler returns the HTTP handler a `daemon start` command can mount
// to expose these gauges for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
