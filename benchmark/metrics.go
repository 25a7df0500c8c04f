// Package benchmark - Functionality for running benchmarks.
package benchmark

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/nvr-ai/calbench/profiler"
)

// MetricKind is a category of measurement.
type MetricKind uint8

const (
	// WallClock is elapsed monotonic time around each invocation, in nanoseconds.
	WallClock MetricKind = iota
	// CPUTotal is process user+system CPU time around each invocation, in nanoseconds.
	CPUTotal
	// MallocCountTotal is the number of heap objects allocated during each invocation.
	MallocCountTotal
	// Throughput is measured invocations per second of run time. It is derived, never sampled.
	Throughput

	numMetricKinds
)

var metricKindNames = [numMetricKinds]string{
	WallClock:        "wallClock",
	CPUTotal:         "cpuTotal",
	MallocCountTotal: "mallocCountTotal",
	Throughput:       "throughput",
}

var metricKindUnits = [numMetricKinds]string{
	WallClock:        "ns",
	CPUTotal:         "ns",
	MallocCountTotal: "allocs",
	Throughput:       "ops/s",
}

// AllMetricKinds lists every kind in declaration order.
func AllMetricKinds() []MetricKind {
	return []MetricKind{WallClock, CPUTotal, MallocCountTotal, Throughput}
}

// String returns the camel-case name of the kind.
func (k MetricKind) String() string {
	if k >= numMetricKinds {
		return "unknown"
	}
	return metricKindNames[k]
}

// Unit returns the unit values of this kind are reported in.
func (k MetricKind) Unit() string {
	if k >= numMetricKinds {
		return ""
	}
	return metricKindUnits[k]
}

// ParseMetricKind parses a kind name. Matching is case-insensitive and accepts
// snake_case spellings such as "cpu_total".
func ParseMetricKind(s string) (MetricKind, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for k, name := range metricKindNames {
		if strings.ToLower(name) == norm {
			return MetricKind(k), nil
		}
	}
	return 0, invalidf("unknown metric kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k MetricKind) MarshalText() ([]byte, error) {
	if k >= numMetricKinds {
		return nil, invalidf("unknown metric kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MetricKind) UnmarshalText(text []byte) error {
	v, err := ParseMetricKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// MetricSet is an immutable set of metric kinds.
type MetricSet uint8

// NewMetricSet returns a set holding the given kinds.
func NewMetricSet(kinds ...MetricKind) MetricSet {
	var s MetricSet
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// ParseMetricSet parses a list of kind names.
func ParseMetricSet(names []string) (MetricSet, error) {
	var s MetricSet
	for _, name := range names {
		k, err := ParseMetricKind(name)
		if err != nil {
			return 0, err
		}
		s = s.With(k)
	}
	return s, nil
}

// Has reports whether k is in the set.
func (s MetricSet) Has(k MetricKind) bool {
	return k < numMetricKinds && s&(1<<k) != 0
}

// With returns a copy of the set including k.
func (s MetricSet) With(k MetricKind) MetricSet {
	if k >= numMetricKinds {
		return s
	}
	return s | 1<<k
}

// Without returns a copy of the set excluding k.
func (s MetricSet) Without(k MetricKind) MetricSet {
	if k >= numMetricKinds {
		return s
	}
	return s &^ (1 << k)
}

// Kinds returns the members in declaration order.
func (s MetricSet) Kinds() []MetricKind {
	return lo.Filter(AllMetricKinds(), func(k MetricKind, _ int) bool {
		return s.Has(k)
	})
}

// Names returns the member names in declaration order.
func (s MetricSet) Names() []string {
	return lo.Map(s.Kinds(), func(k MetricKind, _ int) string {
		return k.String()
	})
}

// String returns the member names joined by commas.
func (s MetricSet) String() string {
	return strings.Join(s.Names(), ",")
}

// MarshalJSON encodes the set as a list of names.
func (s MetricSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names.
func (s *MetricSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return errors.Wrap(err, "failed to unmarshal metric set")
	}
	v, err := ParseMetricSet(names)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MetricSample is one aggregated measurement.
type MetricSample struct {
	Kind  MetricKind `json:"kind"`
	Value float64    `json:"value"`
	Unit  string     `json:"unit"`
}

// RunResult is the outcome of one benchmark's bounded execution.
type RunResult struct {
	// ID uniquely identifies this run.
	ID string `json:"id"`
	// Name is the benchmark name.
	Name string `json:"name"`
	// Configuration is the resolved configuration the benchmark ran under.
	Configuration Configuration `json:"configuration"`
	// StartedAt is when measurement began.
	StartedAt time.Time `json:"started_at"`
	// Iterations is the number of measured invocations that ran.
	Iterations int `json:"iterations"`
	// Duration is the wall-clock time spent in the measured loop.
	Duration time.Duration `json:"duration"`
	// Samples holds one aggregated sample per collected metric kind, in kind order.
	Samples []MetricSample `json:"samples"`
	// Stats holds per-invocation distributions for sampled kinds.
	Stats map[MetricKind]profiler.Summary `json:"stats,omitempty"`
	// Unavailable lists requested kinds the host could not sample.
	Unavailable []MetricKind `json:"unavailable,omitempty"`
	// StoppedEarly is set when the workload asked to stop before either bound.
	StoppedEarly bool `json:"stopped_early"`
	// Err is non-nil when the benchmark could not be scheduled or its workload faulted.
	Err error `json:"-"`
}

// Failed reports whether the run ended in an error.
func (r *RunResult) Failed() bool {
	return r.Err != nil
}

// Sample returns the sample for kind, if one was collected.
func (r *RunResult) Sample(kind MetricKind) (MetricSample, bool) {
	return lo.Find(r.Samples, func(s MetricSample) bool {
		return s.Kind == kind
	})
}

// ErrorMessage returns the error message or an empty string.
func (r *RunResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// MarshalJSON adds the error message to the encoded result.
func (r *RunResult) MarshalJSON() ([]byte, error) {
	type plain RunResult
	return json.Marshal(struct {
		*plain
		Error string `json:"error,omitempty"`
	}{
		plain: (*plain)(r),
		Error: r.ErrorMessage(),
	})
}
