/*
Package metrics instruments storage backends with Prometheus metrics.

A Collector owns a private registry with three series:

	<ns>_operations_total{operation,code}        counter, code is OK or the error code
	<ns>_operation_duration_seconds{operation}   histogram
	<ns>_bytes_total{operation}                  file content read or written

Instrument wraps any types.Backend so that every call is recorded:

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "jailstore",
	}, logger)
	if err != nil {
		return err
	}
	backend = metrics.Instrument(backend, collector)

	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(ctx)

# HTTP Endpoints

	/metrics            Prometheus exposition (path configurable)
	/health             liveness probe
	/debug/operations   JSON form of GetMetrics

A disabled collector records nothing and Instrument returns the backend
unwrapped.
*/
package metrics
