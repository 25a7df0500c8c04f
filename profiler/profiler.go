// Package profiler provides allocation-free running statistics and host runtime
// snapshots used while measuring benchmark invocations.
package profiler

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"time"
)

// Tracker tracks running statistics for a stream of metric values.
//
// Record never allocates, so a Tracker may be updated between two reads of the
// runtime allocation counters without biasing them. The zero value is ready to use.
type Tracker struct {
	count int64
	sum   float64
	min   float64
	max   float64
	mean  float64
	m2    float64
}

// Summary is a read-only view of a Tracker.
type Summary struct {
	Count  int64   `json:"count"   yaml:"count"`
	Total  float64 `json:"total"   yaml:"total"`
	Min    float64 `json:"min"     yaml:"min"`
	Max    float64 `json:"max"     yaml:"max"`
	Mean   float64 `json:"mean"    yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
}

// Record adds a value to the tracker.
//
// Arguments:
// - value: The metric value to record.
func (t *Tracker) Record(value float64) {
	t.count++
	t.sum += value

	if t.count == 1 {
		t.min = value
		t.max = value
	} else {
		if value < t.min {
			t.min = value
		}
		if value > t.max {
			t.max = value
		}
	}

	// Welford's online update.
	delta := value - t.mean
	t.mean += delta / float64(t.count)
	t.m2 += delta * (value - t.mean)
}

// Count returns the number of recorded values.
func (t *Tracker) Count() int64 {
	return t.count
}

// Total returns the sum of recorded values.
func (t *Tracker) Total() float64 {
	return t.sum
}

// Reset clears all recorded values.
func (t *Tracker) Reset() {
	*t = Tracker{}
}

// Summary returns the current statistics.
//
// Returns:
// - Summary: Count, total, min, max, mean and sample standard deviation.
func (t *Tracker) Summary() Summary {
	s := Summary{
		Count: t.count,
		Total: t.sum,
		Min:   t.min,
		Max:   t.max,
		Mean:  t.mean,
	}
	if t.count > 1 {
		s.StdDev = math.Sqrt(t.m2 / float64(t.count-1))
	}
	return s
}

// Environment describes the host a benchmark suite ran on.
type Environment struct {
	Hostname   string `json:"hostname"`
	GoVersion  string `json:"go_version"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	NumCPU     int    `json:"num_cpu"`
	GOMAXPROCS int    `json:"gomaxprocs"`
}

// CaptureEnvironment returns a snapshot of the current host.
func CaptureEnvironment() Environment {
	hostname, _ := os.Hostname()
	return Environment{
		Hostname:   hostname,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}
}

// Settle runs a garbage collection so heap state left behind by a previous
// benchmark does not leak into the next measurement.
func Settle() {
	runtime.GC()
}

// FormatCount formats large counts with a metric suffix, e.g. 1.5M.
func FormatCount(v float64) string {
	switch abs := math.Abs(v); {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fG", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatNanos formats a nanosecond value as a duration truncated to the microsecond
// for values above one millisecond.
func FormatNanos(ns float64) string {
	d := time.Duration(ns)
	if d > time.Millisecond {
		d = d.Truncate(time.Microsecond)
	}
	return d.String()
}
