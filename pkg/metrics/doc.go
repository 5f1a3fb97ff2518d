/*
Package metrics provides Prometheus instrumentation for the coordinator
state machine core.

There is no HTTP API, scheduler, or reconciler layer here to instrument: the
metrics surface is just the Apply Engine and the reverse indexes it
maintains. Two counters/histograms, two gauges, and a ticking Collector that
samples the gauges from a live *reverse.Indexes.

# Usage

	timer := metrics.NewTimer()
	// ... run the apply ...
	metrics.RecordApply("assign_task", timer, err)

	collector := metrics.NewCollector(idx)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
