// Package metrics exports engine activity to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewRecorder(reg)
//	collector, _ := signals.NewCollector(signals.WithObserver(rec))
//	matcher, _ := matching.NewMatcher(repos, collector, matching.WithMonitor(rec))
//	http.Handle("/metrics", rec.Handler())
package metrics
