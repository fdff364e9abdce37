/*
Package observability turns engine lifecycle events into logs and Prometheus metrics.

Both are exposed as domain.LifecycleHooks and can be merged:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := observability.LogHooks(logger).Merge(metrics.Hooks())
*/
package observability
