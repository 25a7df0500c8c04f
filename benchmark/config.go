package benchmark

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ScalingFactor is the multiplier applied to a base iteration count.
type ScalingFactor int

const (
	// Unit runs the base count unchanged.
	Unit ScalingFactor = 1
	// Kilo multiplies the base count by one thousand.
	Kilo ScalingFactor = 1_000
	// Mega multiplies the base count by one million.
	Mega ScalingFactor = 1_000_000
)

// Multiplier returns the factor as an integer multiplier.
func (s ScalingFactor) Multiplier() int {
	return int(s)
}

// Valid reports whether s is one of Unit, Kilo or Mega.
func (s ScalingFactor) Valid() bool {
	switch s {
	case Unit, Kilo, Mega:
		return true
	default:
		return false
	}
}

// String returns the lowercase name of the scaling factor.
func (s ScalingFactor) String() string {
	switch s {
	case Unit:
		return "unit"
	case Kilo:
		return "kilo"
	case Mega:
		return "mega"
	default:
		return "unknown"
	}
}

// ParseScalingFactor parses "unit", "kilo" or "mega".
func ParseScalingFactor(s string) (ScalingFactor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unit", "one":
		return Unit, nil
	case "kilo", "k":
		return Kilo, nil
	case "mega", "m":
		return Mega, nil
	default:
		return 0, invalidf("unknown scaling factor %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler. Invalid factors, such as the
// zero value of a result that never resolved, encode as "unknown".
func (s ScalingFactor) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ScalingFactor) UnmarshalText(text []byte) error {
	v, err := ParseScalingFactor(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Configuration controls a single benchmark run.
//
// A Configuration is a value: Resolve returns a new one and the engine receives a copy,
// so nothing a benchmark does can change the defaults seen by the next one.
type Configuration struct {
	// MaxIterations bounds the number of measured invocations.
	MaxIterations int `json:"max_iterations"`
	// MaxDuration bounds the wall-clock time spent in measured invocations.
	MaxDuration time.Duration `json:"max_duration"`
	// ScalingFactor sets the length of Invocation.ScaledIterations.
	ScalingFactor ScalingFactor `json:"scaling_factor"`
	// Metrics is the set of metric kinds to collect.
	Metrics MetricSet `json:"metrics"`
	// WarmupIterations is the number of unmeasured invocations run first.
	WarmupIterations int `json:"warmup_iterations"`
}

// DefaultConfiguration returns the suite-wide defaults.
//
// Returns:
// - Configuration: 1000 iterations, 3s, kilo scaling and all metric kinds.
func DefaultConfiguration() Configuration {
	return Configuration{
		MaxIterations: 1_000,
		MaxDuration:   3 * time.Second,
		ScalingFactor: Kilo,
		Metrics:       NewMetricSet(CPUTotal, WallClock, MallocCountTotal, Throughput),
	}
}

// Validate checks the configuration bounds.
//
// Returns:
// - error: ErrInvalidConfiguration wrapped with the offending field, or nil.
func (c Configuration) Validate() error {
	if c.MaxIterations < 1 {
		return invalidf("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxDuration <= 0 {
		return invalidf("max duration must be positive, got %s", c.MaxDuration)
	}
	if !c.ScalingFactor.Valid() {
		return invalidf("unknown scaling factor %d", int(c.ScalingFactor))
	}
	if c.WarmupIterations < 0 {
		return invalidf("warmup iterations must be non-negative, got %d", c.WarmupIterations)
	}
	return nil
}

// ScaledCount returns the number of values produced by ScaledIterations.
func (c Configuration) ScaledCount() int {
	return ScaledCount(c.ScalingFactor, 1)
}

// Override is a partial Configuration. Nil fields inherit the global default.
type Override struct {
	MaxIterations    *int           `json:"max_iterations,omitempty"`
	MaxDuration      *time.Duration `json:"max_duration,omitempty"`
	ScalingFactor    *ScalingFactor `json:"scaling_factor,omitempty"`
	Metrics          *MetricSet     `json:"metrics,omitempty"`
	WarmupIterations *int           `json:"warmup_iterations,omitempty"`
}

// IsZero reports whether no field is set.
func (o *Override) IsZero() bool {
	return o == nil || (o.MaxIterations == nil &&
		o.MaxDuration == nil &&
		o.ScalingFactor == nil &&
		o.Metrics == nil &&
		o.WarmupIterations == nil)
}

// Merge returns a new Override where fields set on other replace fields set on o.
// Either side may be nil. The result shares no memory with its inputs.
func (o *Override) Merge(other *Override) *Override {
	merged := &Override{}
	for _, src := range []*Override{o, other} {
		if src == nil {
			continue
		}
		if src.MaxIterations != nil {
			merged.MaxIterations = lo.ToPtr(*src.MaxIterations)
		}
		if src.MaxDuration != nil {
			merged.MaxDuration = lo.ToPtr(*src.MaxDuration)
		}
		if src.ScalingFactor != nil {
			merged.ScalingFactor = lo.ToPtr(*src.ScalingFactor)
		}
		if src.Metrics != nil {
			merged.Metrics = lo.ToPtr(*src.Metrics)
		}
		if src.WarmupIterations != nil {
			merged.WarmupIterations = lo.ToPtr(*src.WarmupIterations)
		}
	}
	return merged
}

// Resolve merges a per-benchmark override onto the global configuration.
//
// Arguments:
//   - global: The suite-wide defaults.
//   - override: The per-benchmark override. May be nil.
//
// Returns:
//   - Configuration: The resolved configuration. Field values set on the override win.
//   - error: ErrInvalidConfiguration if the resolved bounds are out of range.
func Resolve(global Configuration, override *Override) (Configuration, error) {
	resolved := global
	if override != nil {
		if override.MaxIterations != nil {
			resolved.MaxIterations = *override.MaxIterations
		}
		if override.MaxDuration != nil {
			resolved.MaxDuration = *override.MaxDuration
		}
		if override.ScalingFactor != nil {
			resolved.ScalingFactor = *override.ScalingFactor
		}
		if override.Metrics != nil {
			resolved.Metrics = *override.Metrics
		}
		if override.WarmupIterations != nil {
			resolved.WarmupIterations = *override.WarmupIterations
		}
	}

	if err := resolved.Validate(); err != nil {
		return Configuration{}, errors.WithMessage(err, "resolve configuration")
	}
	return resolved, nil
}
