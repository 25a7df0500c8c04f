package report

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/nvr-ai/calbench/benchmark"
)

// DefaultNamespace is the metric namespace used when none is given.
const DefaultNamespace = "calbench"

// Prometheus exports the latest result of each benchmark as Prometheus gauges.
//
// The metrics live on a dedicated registry so they can be written to a
// node_exporter textfile with WriteTextfile after the suite finishes.
//
// Thread Safety: Safe for concurrent use.
type Prometheus struct {
	registry *prometheus.Registry

	metricValue *prometheus.GaugeVec
	iterations  *prometheus.GaugeVec
	duration    *prometheus.GaugeVec
	stopped     *prometheus.GaugeVec
	unavailable *prometheus.GaugeVec
	failures    *prometheus.CounterVec
	runs        *prometheus.CounterVec
}

// NewPrometheus creates a Prometheus reporter on a new registry.
//
// Arguments:
//   - namespace: Metric namespace. DefaultNamespace if empty.
//
// Returns:
//   - *Prometheus: The reporter.
//   - error: Non-nil if metric registration fails.
func NewPrometheus(namespace string) (*Prometheus, error) {
	return NewPrometheusWithRegistry(namespace, prometheus.NewRegistry())
}

// NewPrometheusWithRegistry creates a Prometheus reporter on registry. Collectors
// already registered there by an earlier reporter are reused.
func NewPrometheusWithRegistry(namespace string, registry *prometheus.Registry) (*Prometheus, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	p := &Prometheus{registry: registry}

	var err error
	if p.metricValue, err = registerGaugeVec(registry, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "metric_value",
		Help:      "Aggregated metric value of the latest run, per benchmark and metric kind.",
	}, []string{"benchmark", "metric", "unit"}); err != nil {
		return nil, err
	}
	if p.iterations, err = registerGaugeVec(registry, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "iterations",
		Help:      "Measured invocations in the latest run.",
	}, []string{"benchmark"}); err != nil {
		return nil, err
	}
	if p.duration, err = registerGaugeVec(registry, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "duration_seconds",
		Help:      "Wall-clock time spent in the measured loop of the latest run.",
	}, []string{"benchmark"}); err != nil {
		return nil, err
	}
	if p.stopped, err = registerGaugeVec(registry, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stopped_early",
		Help:      "1 if the workload stopped the latest run before either bound.",
	}, []string{"benchmark"}); err != nil {
		return nil, err
	}
	if p.unavailable, err = registerGaugeVec(registry, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "metric_unavailable",
		Help:      "1 if the metric kind could not be sampled on this host.",
	}, []string{"benchmark", "metric"}); err != nil {
		return nil, err
	}
	if p.failures, err = registerCounterVec(registry, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Benchmarks that faulted or could not be configured.",
	}, []string{"benchmark"}); err != nil {
		return nil, err
	}
	if p.runs, err = registerCounterVec(registry, prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Benchmark runs reported.",
	}, []string{"benchmark"}); err != nil {
		return nil, err
	}

	return p, nil
}

func registerGaugeVec(reg prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) (*prometheus.GaugeVec, error) {
	vec := prometheus.NewGaugeVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrapf(err, "register %s", opts.Name)
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, pkgerrors.Wrapf(err, "register %s", opts.Name)
	}
	return vec, nil
}

// Registry returns the registry holding the reporter's metrics.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Report implements benchmark.Reporter.
func (p *Prometheus) Report(_ context.Context, result *benchmark.RunResult) error {
	name := result.Name
	p.runs.WithLabelValues(name).Inc()
	if result.Failed() {
		p.failures.WithLabelValues(name).Inc()
	}

	p.iterations.WithLabelValues(name).Set(float64(result.Iterations))
	p.duration.WithLabelValues(name).Set(result.Duration.Seconds())
	if result.StoppedEarly {
		p.stopped.WithLabelValues(name).Set(1)
	} else {
		p.stopped.WithLabelValues(name).Set(0)
	}

	for _, s := range result.Samples {
		p.metricValue.WithLabelValues(name, s.Kind.String(), s.Unit).Set(s.Value)
	}
	for _, kind := range result.Configuration.Metrics.Kinds() {
		if lo.Contains(result.Unavailable, kind) {
			p.unavailable.WithLabelValues(name, kind.String()).Set(1)
		} else {
			p.unavailable.WithLabelValues(name, kind.String()).Set(0)
		}
	}
	return nil
}

// WriteTextfile writes the current metrics in the text exposition format, for
// the node_exporter textfile collector.
func (p *Prometheus) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, p.registry); err != nil {
		return pkgerrors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
