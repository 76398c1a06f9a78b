// Package metrics exposes run and plugin metrics in the Prometheus format.
// Every Recorder owns its own registry, so several applications can live in
// one process (as they do in tests).
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/lifecycle"
)

const (
	namespace = "ttrpgconv"
	subsystem = "pipeline"
)

// Recorder implements executor.Observer and serves the collected metrics.
type Recorder struct {
	registry     *prometheus.Registry
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

var _ executor.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "nodes_total",
			Help:      "Number of pipeline nodes finished, by outcome.",
		}, []string{"status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "node_duration_seconds",
			Help:      "Execution time of pipeline nodes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"status"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Number of pipeline runs, by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
	}
	r.registry.MustRegister(r.nodesTotal, r.nodeDuration, r.runsTotal, r.runDuration)
	return r
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// NodeFinished implements executor.Observer.
func (r *Recorder) NodeFinished(_ context.Context, res executor.NodeResult) {
	status := res.Status.String()
	r.nodesTotal.WithLabelValues(status).Inc()
	if res.Duration > 0 {
		r.nodeDuration.WithLabelValues(status).Observe(res.Duration.Seconds())
	}
}

// RunFinished implements executor.Observer.
func (r *Recorder) RunFinished(_ context.Context, report *executor.Report) {
	outcome := "succeeded"
	if !report.Succeeded() {
		outcome = "failed"
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(report.TotalDuration.Seconds())
}

// TrackLifecycle exports the number of plugin instances per lifecycle state,
// read from stats on every scrape.
func (r *Recorder) TrackLifecycle(stats func() lifecycle.Stats) error {
	return r.registry.Register(&lifecycleCollector{stats: stats, desc: pluginStatesDesc})
}

var pluginStatesDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "plugins", "instances"),
	"Number of plugin instances, by lifecycle state.",
	[]string{"state"}, nil,
)

type lifecycleCollector struct {
	stats func() lifecycle.Stats
	desc  *prometheus.Desc
}

func (c *lifecycleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *lifecycleCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, st := range lifecycle.States {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(s.ByState[st]), st.String())
	}
}
