package benchmark

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepProbe returns a counter that advances by step on every read.
type stepProbe struct {
	value float64
	step  float64
	fail  bool
}

func (p *stepProbe) read() (float64, error) {
	if p.fail {
		return 0, ErrMetricUnavailable
	}
	p.value += p.step
	return p.value, nil
}

func fakeProbes() [numMetricKinds]probe {
	var probes [numMetricKinds]probe
	probes[WallClock] = &stepProbe{step: 100}
	probes[CPUTotal] = &stepProbe{step: 50}
	probes[MallocCountTotal] = &stepProbe{step: 2}
	return probes
}

func TestCollectorAccumulates(t *testing.T) {
	c := newCollector(NewMetricSet(WallClock, CPUTotal, MallocCountTotal, Throughput), fakeProbes())

	for i := 0; i < 4; i++ {
		c.Begin()
		c.End()
	}

	samples := c.Samples(4, 2*time.Second)
	require.Len(t, samples, 4)

	assert.Equal(t, MetricSample{Kind: WallClock, Value: 400, Unit: "ns"}, samples[0])
	assert.Equal(t, MetricSample{Kind: CPUTotal, Value: 200, Unit: "ns"}, samples[1])
	assert.Equal(t, MetricSample{Kind: MallocCountTotal, Value: 8, Unit: "allocs"}, samples[2])
	assert.Equal(t, MetricSample{Kind: Throughput, Value: 2, Unit: "ops/s"}, samples[3])

	stats := c.Stats()
	assert.Len(t, stats, 3)
	assert.Equal(t, int64(4), stats[WallClock].Count)
	assert.Equal(t, 100.0, stats[WallClock].Mean)
	assert.NotContains(t, stats, Throughput)
}

func TestCollectorOnlyRequestedKinds(t *testing.T) {
	c := newCollector(NewMetricSet(MallocCountTotal), fakeProbes())
	c.Begin()
	c.End()

	samples := c.Samples(1, time.Second)
	require.Len(t, samples, 1)
	assert.Equal(t, MallocCountTotal, samples[0].Kind)
	assert.Equal(t, NewMetricSet(MallocCountTotal), c.Active())
}

func TestCollectorOmitsUnavailableMetric(t *testing.T) {
	probes := fakeProbes()
	probes[CPUTotal] = &stepProbe{fail: true}

	c := newCollector(NewMetricSet(WallClock, CPUTotal), probes)
	c.Begin()
	c.End()

	assert.Equal(t, []MetricKind{CPUTotal}, c.Unavailable())
	assert.False(t, c.Active().Has(CPUTotal))

	samples := c.Samples(1, time.Second)
	require.Len(t, samples, 1)
	assert.Equal(t, WallClock, samples[0].Kind)
}

func TestCollectorDropsMetricThatFailsMidRun(t *testing.T) {
	probes := fakeProbes()
	cpu := &stepProbe{step: 1}
	probes[CPUTotal] = cpu

	c := newCollector(NewMetricSet(CPUTotal, WallClock), probes)
	c.Begin()
	c.End()
	cpu.fail = true
	c.Begin()
	c.End()

	assert.Equal(t, []MetricKind{CPUTotal}, c.Unavailable())
	_, ok := c.Stats()[CPUTotal]
	assert.False(t, ok)
}

func TestCollectorThroughputWithZeroElapsed(t *testing.T) {
	c := newCollector(NewMetricSet(Throughput), fakeProbes())
	samples := c.Samples(10, 0)
	require.Len(t, samples, 1)
	assert.Equal(t, 0.0, samples[0].Value)
}

func TestCollectorSample(t *testing.T) {
	c := NewCollector(NewMetricSet(WallClock))

	sample, err := c.Sample(WallClock, func() error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, WallClock, sample.Kind)
	assert.GreaterOrEqual(t, sample.Value, float64(2*time.Millisecond))
}

var sink []*int

func TestCollectorSampleMallocCount(t *testing.T) {
	c := NewCollector(NewMetricSet(MallocCountTotal))

	sample, err := c.Sample(MallocCountTotal, func() error {
		for i := 0; i < 100; i++ {
			sink = append(sink, new(int))
		}
		return nil
	})
	sink = nil

	require.NoError(t, err)
	assert.GreaterOrEqual(t, sample.Value, 100.0)
}

func TestCollectorSampleReturnsWorkloadError(t *testing.T) {
	c := NewCollector(NewMetricSet(WallClock))
	boom := errors.New("boom")

	_, err := c.Sample(WallClock, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestCollectorSampleThroughputUnavailable(t *testing.T) {
	c := NewCollector(NewMetricSet(Throughput))

	_, err := c.Sample(Throughput, func() error { return nil })
	assert.ErrorIs(t, err, ErrMetricUnavailable)
}

func TestCollectorSampleUnavailableProbe(t *testing.T) {
	probes := fakeProbes()
	probes[CPUTotal] = &stepProbe{fail: true}
	c := newCollector(NewMetricSet(CPUTotal), probes)

	_, err := c.Sample(CPUTotal, func() error { return nil })
	assert.ErrorIs(t, err, ErrMetricUnavailable)
}

func TestCollectorBeginEndDoNotAllocate(t *testing.T) {
	c := NewCollector(NewMetricSet(WallClock, CPUTotal, MallocCountTotal, Throughput))

	allocs := testing.AllocsPerRun(50, func() {
		c.Begin()
		c.End()
	})
	assert.Equal(t, 0.0, allocs)
}

func TestCPUProbeAvailability(t *testing.T) {
	c := NewCollector(NewMetricSet(CPUTotal))

	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "netbsd", "openbsd":
		assert.True(t, c.Active().Has(CPUTotal))
		assert.Empty(t, c.Unavailable())
	case "windows", "js", "wasip1", "plan9":
		assert.Equal(t, []MetricKind{CPUTotal}, c.Unavailable())
	}
}
