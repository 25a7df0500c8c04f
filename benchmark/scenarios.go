package benchmark

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// OverrideBuilder builds an Override with a fluent API.
type OverrideBuilder struct {
	override Override
}

// NewOverride creates a new override builder with every field unset.
func NewOverride() *OverrideBuilder {
	return &OverrideBuilder{}
}

// WithMaxIterations sets the iteration bound.
func (b *OverrideBuilder) WithMaxIterations(n int) *OverrideBuilder {
	b.override.MaxIterations = lo.ToPtr(n)
	return b
}

// WithMaxDuration sets the duration bound.
func (b *OverrideBuilder) WithMaxDuration(d time.Duration) *OverrideBuilder {
	b.override.MaxDuration = lo.ToPtr(d)
	return b
}

// WithScalingFactor sets the scaling factor.
func (b *OverrideBuilder) WithScalingFactor(s ScalingFactor) *OverrideBuilder {
	b.override.ScalingFactor = lo.ToPtr(s)
	return b
}

// WithMetrics sets the metric kinds to collect.
func (b *OverrideBuilder) WithMetrics(kinds ...MetricKind) *OverrideBuilder {
	b.override.Metrics = lo.ToPtr(NewMetricSet(kinds...))
	return b
}

// WithWarmupIterations sets the number of unmeasured warmup invocations.
func (b *OverrideBuilder) WithWarmupIterations(n int) *OverrideBuilder {
	b.override.WarmupIterations = lo.ToPtr(n)
	return b
}

// Build returns the configured override.
func (b *OverrideBuilder) Build() *Override {
	return b.override.Merge(nil)
}

// FileOverride is the on-disk form of an Override.
type FileOverride struct {
	MaxIterations    *int     `json:"max_iterations,omitempty"    yaml:"max_iterations,omitempty"`
	MaxDuration      string   `json:"max_duration,omitempty"      yaml:"max_duration,omitempty"`
	ScalingFactor    string   `json:"scaling_factor,omitempty"    yaml:"scaling_factor,omitempty"`
	Metrics          []string `json:"metrics,omitempty"           yaml:"metrics,omitempty"`
	WarmupIterations *int     `json:"warmup_iterations,omitempty" yaml:"warmup_iterations,omitempty"`
}

// Override parses the file form.
//
// Returns:
// - *Override: The parsed override.
// - error: ErrInvalidConfiguration if a duration, scaling factor or metric name does not parse.
func (f FileOverride) Override() (*Override, error) {
	o := &Override{}
	if f.MaxIterations != nil {
		o.MaxIterations = lo.ToPtr(*f.MaxIterations)
	}
	if f.MaxDuration != "" {
		d, err := time.ParseDuration(f.MaxDuration)
		if err != nil {
			return nil, invalidf("max duration %q: %v", f.MaxDuration, err)
		}
		o.MaxDuration = lo.ToPtr(d)
	}
	if f.ScalingFactor != "" {
		s, err := ParseScalingFactor(f.ScalingFactor)
		if err != nil {
			return nil, err
		}
		o.ScalingFactor = lo.ToPtr(s)
	}
	if len(f.Metrics) > 0 {
		m, err := ParseMetricSet(f.Metrics)
		if err != nil {
			return nil, err
		}
		o.Metrics = lo.ToPtr(m)
	}
	if f.WarmupIterations != nil {
		o.WarmupIterations = lo.ToPtr(*f.WarmupIterations)
	}
	return o, nil
}

// NewFileOverride converts an Override to its file form.
func NewFileOverride(o *Override) FileOverride {
	var f FileOverride
	if o == nil {
		return f
	}
	if o.MaxIterations != nil {
		f.MaxIterations = lo.ToPtr(*o.MaxIterations)
	}
	if o.MaxDuration != nil {
		f.MaxDuration = o.MaxDuration.String()
	}
	if o.ScalingFactor != nil {
		f.ScalingFactor = o.ScalingFactor.String()
	}
	if o.Metrics != nil {
		f.Metrics = o.Metrics.Names()
	}
	if o.WarmupIterations != nil {
		f.WarmupIterations = lo.ToPtr(*o.WarmupIterations)
	}
	return f
}

// SuiteFile is a suite configuration loaded from YAML or JSON.
type SuiteFile struct {
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Defaults    FileOverride            `json:"defaults"              yaml:"defaults"`
	Benchmarks  map[string]FileOverride `json:"benchmarks,omitempty"  yaml:"benchmarks,omitempty"`
	Filter      string                  `json:"filter,omitempty"      yaml:"filter,omitempty"`
}

// Configuration applies the file defaults on top of base.
func (s *SuiteFile) Configuration(base Configuration) (Configuration, error) {
	o, err := s.Defaults.Override()
	if err != nil {
		return Configuration{}, errors.WithMessage(err, "defaults")
	}
	return Resolve(base, o)
}

// Overrides parses the per-benchmark overrides.
func (s *SuiteFile) Overrides() (map[string]*Override, error) {
	overrides := make(map[string]*Override, len(s.Benchmarks))
	for name, f := range s.Benchmarks {
		o, err := f.Override()
		if err != nil {
			return nil, errors.WithMessagef(err, "benchmark %q", name)
		}
		overrides[name] = o
	}
	return overrides, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadSuiteFile loads a suite file. Files ending in .json are decoded as JSON,
// anything else as YAML.
//
// Arguments:
// - filename: Path to the suite file.
//
// Returns:
// - *SuiteFile: The parsed file.
// - error: Error if the file cannot be read or decoded.
func LoadSuiteFile(filename string) (*SuiteFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read suite file")
	}

	var suite SuiteFile
	if isJSON(filename) {
		err = json.Unmarshal(data, &suite)
	} else {
		err = yaml.Unmarshal(data, &suite)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode suite file %s", filename)
	}

	return &suite, nil
}

// SaveSuiteFile writes a suite file, choosing JSON or YAML by extension.
func SaveSuiteFile(suite *SuiteFile, filename string) error {
	var (
		data []byte
		err  error
	)
	if isJSON(filename) {
		data, err = json.MarshalIndent(suite, "", "  ")
	} else {
		data, err = yaml.Marshal(suite)
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal suite file")
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write suite file")
	}

	return nil
}

// DefaultSuiteFile returns a suite file holding DefaultConfiguration and the
// given per-benchmark overrides.
func DefaultSuiteFile(overrides map[string]*Override) *SuiteFile {
	d := DefaultConfiguration()
	suite := &SuiteFile{
		Description: "calbench suite configuration",
		Defaults: FileOverride{
			MaxIterations:    lo.ToPtr(d.MaxIterations),
			MaxDuration:      d.MaxDuration.String(),
			ScalingFactor:    d.ScalingFactor.String(),
			Metrics:          d.Metrics.Names(),
			WarmupIterations: lo.ToPtr(d.WarmupIterations),
		},
		Benchmarks: make(map[string]FileOverride, len(overrides)),
	}
	for name, o := range overrides {
		if o.IsZero() {
			continue
		}
		suite.Benchmarks[name] = NewFileOverride(o)
	}
	return suite
}
