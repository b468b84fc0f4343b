package metrics

import (
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "depsync"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	syncDuration      *prom.HistogramVec
	syncResults       *prom.CounterVec
	gitRetries        *prom.CounterVec
	installResults    *prom.CounterVec
	runDuration       prom.Histogram
	processedProjects prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		syncDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of individual repository synchronizations",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		syncResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sync_results_total",
			Help:      "Repository synchronization results by outcome",
		}, []string{"result"}),
		gitRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "git_retries_total",
			Help:      "Retried git network operations",
		}, []string{"operation"}),
		installResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "install_results_total",
			Help:      "Requirement manifest install results by outcome",
		}, []string{"result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total duration of a synchronization run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		processedProjects: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "processed_projects",
			Help:      "Number of distinct projects processed by the last run",
		}),
	}
	reg.MustRegister(pr.syncDuration, pr.syncResults, pr.gitRetries, pr.installResults, pr.runDuration, pr.processedProjects)
	return pr
}

func (p *PrometheusRecorder) ObserveSyncDuration(d time.Duration, result SyncResult) {
	if p == nil {
		return
	}
	p.syncDuration.WithLabelValues(string(result)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSyncResult(result SyncResult) {
	if p == nil {
		return
	}
	p.syncResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncGitRetry(op string) {
	if p == nil {
		return
	}
	p.gitRetries.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncInstallResult(result InstallResult) {
	if p == nil {
		return
	}
	p.installResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetProcessedProjects(n int) {
	if p == nil {
		return
	}
	p.processedProjects.Set(float64(n))
}

// WriteTextFile writes everything g gathers to path in the text exposition format.
// The write goes through a temporary file so collectors never read a partial file.
func WriteTextFile(g prom.Gatherer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return prom.WriteToTextfile(path, g)
}
