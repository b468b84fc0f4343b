// Package metrics provides the observability hooks used by a synchronization run.
//
// Components receive a Recorder through a fluent WithRecorder option and default to
// NoopRecorder, so metrics can be switched on without nil checks anywhere:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewPrometheusRecorder(reg)
//	client := git.NewClient(root).WithRecorder(rec)
//	...
//	_ = metrics.WriteTextFile(reg, "/var/lib/node_exporter/depsync.prom")
//
// depsync is a short lived process, so instead of serving an HTTP endpoint the
// collected metrics are written once per run in the node exporter textfile format.
package metrics
