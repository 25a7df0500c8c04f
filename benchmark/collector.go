package benchmark

import (
	"runtime"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/calbench/profiler"
)

// probe reads one monotonically increasing counter. Implementations must not
// allocate, so that reading them does not disturb MallocCountTotal.
type probe interface {
	read() (float64, error)
}

type wallProbe struct {
	epoch time.Time
}

func (p *wallProbe) read() (float64, error) {
	return float64(time.Since(p.epoch)), nil
}

type mallocProbe struct {
	stats runtime.MemStats
}

func (p *mallocProbe) read() (float64, error) {
	runtime.ReadMemStats(&p.stats)
	return float64(p.stats.Mallocs), nil
}

func defaultProbes() [numMetricKinds]probe {
	var probes [numMetricKinds]probe
	probes[WallClock] = &wallProbe{epoch: time.Now()}
	probes[CPUTotal] = newCPUProbe()
	probes[MallocCountTotal] = &mallocProbe{}
	return probes
}

// Collector samples the enabled metric kinds around each workload invocation and
// accumulates per-kind statistics.
//
// Begin and End do not allocate. A Collector belongs to a single run and is not
// safe for concurrent use.
type Collector struct {
	requested   MetricSet
	active      MetricSet
	probes      [numMetricKinds]probe
	start       [numMetricKinds]float64
	trackers    [numMetricKinds]profiler.Tracker
	unavailable []MetricKind
}

// NewCollector creates a collector for the requested metric kinds.
//
// Kinds the host cannot sample are dropped and reported by Unavailable; the
// collector still works for the remaining kinds.
//
// Arguments:
// - metrics: The metric kinds to collect.
//
// Returns:
// - *Collector: The collector.
func NewCollector(metrics MetricSet) *Collector {
	return newCollector(metrics, defaultProbes())
}

func newCollector(metrics MetricSet, probes [numMetricKinds]probe) *Collector {
	c := &Collector{
		requested: metrics,
		probes:    probes,
	}
	for _, kind := range metrics.Kinds() {
		if kind == Throughput {
			continue
		}
		if p := probes[kind]; p != nil {
			if _, err := p.read(); err == nil {
				c.active = c.active.With(kind)
				continue
			}
		}
		c.unavailable = append(c.unavailable, kind)
	}
	return c
}

// Requested returns the kinds the collector was created with.
func (c *Collector) Requested() MetricSet {
	return c.requested
}

// Active returns the kinds being sampled.
func (c *Collector) Active() MetricSet {
	return c.active
}

// Unavailable returns the requested kinds the host could not sample.
func (c *Collector) Unavailable() []MetricKind {
	return append([]MetricKind(nil), c.unavailable...)
}

// Begin snapshots every active counter. Call it immediately before an invocation.
func (c *Collector) Begin() {
	// Innermost measurement last so the other reads are outside the wall-clock window.
	for k := numMetricKinds; k > 0; k-- {
		kind := k - 1
		if !c.active.Has(kind) {
			continue
		}
		v, err := c.probes[kind].read()
		if err != nil {
			c.drop(kind)
			continue
		}
		c.start[kind] = v
	}
}

// End reads every active counter again and records the deltas since Begin.
func (c *Collector) End() {
	for kind := MetricKind(0); kind < numMetricKinds; kind++ {
		if !c.active.Has(kind) {
			continue
		}
		v, err := c.probes[kind].read()
		if err != nil {
			c.drop(kind)
			continue
		}
		c.trackers[kind].Record(v - c.start[kind])
	}
}

func (c *Collector) drop(kind MetricKind) {
	c.active = c.active.Without(kind)
	c.unavailable = append(c.unavailable, kind)
	c.trackers[kind].Reset()
}

// Sample measures a single metric kind around fn.
//
// Arguments:
//   - kind: The metric kind to sample. Throughput cannot be sampled.
//   - fn: The invocation to measure.
//
// Returns:
//   - MetricSample: The delta observed around fn.
//   - error: ErrMetricUnavailable if the kind cannot be sampled on this host,
//     otherwise the error returned by fn.
func (c *Collector) Sample(kind MetricKind, fn func() error) (MetricSample, error) {
	if kind >= numMetricKinds || kind == Throughput || c.probes[kind] == nil {
		return MetricSample{}, errors.Wrapf(ErrMetricUnavailable, "%s cannot be sampled", kind)
	}

	p := c.probes[kind]
	before, err := p.read()
	if err != nil {
		return MetricSample{}, errors.Wrapf(ErrMetricUnavailable, "%s: %v", kind, err)
	}
	fnErr := fn()
	after, err := p.read()
	if err != nil {
		return MetricSample{}, errors.Wrapf(ErrMetricUnavailable, "%s: %v", kind, err)
	}

	return MetricSample{Kind: kind, Value: after - before, Unit: kind.Unit()}, fnErr
}

// Samples aggregates everything recorded so far.
//
// Arguments:
//   - iterations: The number of measured invocations.
//   - elapsed: The wall-clock time of the measured loop, used for throughput.
//
// Returns:
//   - []MetricSample: One sample per requested, available kind in kind order.
func (c *Collector) Samples(iterations int, elapsed time.Duration) []MetricSample {
	samples := make([]MetricSample, 0, numMetricKinds)
	for _, kind := range c.requested.Kinds() {
		switch {
		case kind == Throughput:
			var ops float64
			if elapsed > 0 {
				ops = float64(iterations) / elapsed.Seconds()
			}
			samples = append(samples, MetricSample{Kind: kind, Value: ops, Unit: kind.Unit()})
		case c.active.Has(kind):
			samples = append(samples, MetricSample{
				Kind:  kind,
				Value: c.trackers[kind].Total(),
				Unit:  kind.Unit(),
			})
		}
	}
	return samples
}

// Stats returns per-invocation statistics for every active kind.
func (c *Collector) Stats() map[MetricKind]profiler.Summary {
	stats := make(map[MetricKind]profiler.Summary, numMetricKinds)
	for _, kind := range c.active.Kinds() {
		stats[kind] = c.trackers[kind].Summary()
	}
	return stats
}
