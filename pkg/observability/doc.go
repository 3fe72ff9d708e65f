/*
Package observability exports engine activity as Prometheus metrics and
structured log lines.

Both are delivered as domain.LifecycleHooks, so they can be merged and
passed to runtime.WithHooks:

	metrics, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LogHooks(logger))
	engine := runtime.NewEngine(runtime.WithHooks(hooks))
*/
package observability
