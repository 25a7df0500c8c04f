package benchmark

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Definition is a named workload with an optional configuration override.
type Definition struct {
	Name     string
	Workload Workload
	Override *Override
}

// Reporter receives each RunResult as soon as its benchmark finishes.
type Reporter interface {
	Report(ctx context.Context, result *RunResult) error
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(ctx context.Context, result *RunResult) error

// Report calls f(ctx, result).
func (f ReporterFunc) Report(ctx context.Context, result *RunResult) error {
	return f(ctx, result)
}

// Registry is an ordered collection of benchmark definitions.
//
// Registration is a setup phase: Register must not be called concurrently or while
// RunAll is in progress. The registry takes no locks.
type Registry struct {
	entries []Definition
	index   map[string]int
	engine  *Engine
	logger  *slog.Logger
}

// NewRegistry creates an empty registry with a default Engine.
func NewRegistry() *Registry {
	return &Registry{
		index:  make(map[string]int),
		engine: NewEngine(),
		logger: slog.Default(),
	}
}

// SetLogger sets the logger for the registry and its engine. Nil values are ignored.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.logger = logger
	r.engine.SetLogger(logger)
}

// Engine returns the engine used by RunAll.
func (r *Registry) Engine() *Engine {
	return r.engine
}

// Register adds a benchmark.
//
// Arguments:
//   - name: Unique benchmark name. Must not be empty.
//   - workload: The code under measurement. Must not be nil.
//   - override: Optional per-benchmark configuration override.
//
// Returns:
//   - error: ErrDuplicateName if name is already registered; the registry is unchanged.
func (r *Registry) Register(name string, workload Workload, override *Override) error {
	if name == "" {
		return errors.New("benchmark name must not be empty")
	}
	if workload == nil {
		return errors.Errorf("benchmark %q: workload must not be nil", name)
	}
	if _, exists := r.index[name]; exists {
		return errors.Wrapf(ErrDuplicateName, "benchmark %q", name)
	}

	r.index[name] = len(r.entries)
	r.entries = append(r.entries, Definition{
		Name:     name,
		Workload: workload,
		Override: override.Merge(nil),
	})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, workload Workload, override *Override) {
	if err := r.Register(name, workload, override); err != nil {
		panic(err)
	}
}

// Lookup returns a copy of the named definition.
func (r *Registry) Lookup(name string) (Definition, bool) {
	i, ok := r.index[name]
	if !ok {
		return Definition{}, false
	}
	return r.copyOf(i), true
}

// Len returns the number of registered benchmarks.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns the benchmark names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, def := range r.entries {
		names[i] = def.Name
	}
	return names
}

// Definitions returns copies of the definitions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, len(r.entries))
	for i := range r.entries {
		defs[i] = r.copyOf(i)
	}
	return defs
}

func (r *Registry) copyOf(i int) Definition {
	def := r.entries[i]
	def.Override = def.Override.Merge(nil)
	return def
}

// RunOption configures RunAll.
type RunOption func(*runOptions)

type runOptions struct {
	filter    *regexp.Regexp
	overrides map[string]*Override
	reporters []Reporter
}

// WithFilter runs only benchmarks whose name matches re.
func WithFilter(re *regexp.Regexp) RunOption {
	return func(o *runOptions) {
		o.filter = re
	}
}

// WithOverrides layers additional per-benchmark overrides, keyed by name, on top
// of those given at registration. Typically loaded from a suite file.
func WithOverrides(overrides map[string]*Override) RunOption {
	return func(o *runOptions) {
		o.overrides = overrides
	}
}

// WithReporter hands each result to rep as soon as its benchmark finishes.
func WithReporter(rep Reporter) RunOption {
	return func(o *runOptions) {
		if rep != nil {
			o.reporters = append(o.reporters, rep)
		}
	}
}

// RunAll runs every registered benchmark sequentially in registration order.
//
// A benchmark whose configuration does not resolve, or whose workload faults, gets
// a RunResult with Err set and the suite moves on to the next benchmark.
//
// Arguments:
//   - ctx: Carries tracing and is passed to reporters.
//   - global: The suite-wide default configuration.
//   - opts: Optional filter, overrides and reporters.
//
// Returns:
//   - []*RunResult: One result per benchmark run, in registration order.
//   - error: ErrInvalidConfiguration if global itself is invalid; nothing runs.
//     ctx.Err() if ctx is done between benchmarks; results hold those already run.
func (r *Registry) RunAll(ctx context.Context, global Configuration, opts ...RunOption) ([]*RunResult, error) {
	if err := global.Validate(); err != nil {
		return nil, errors.WithMessage(err, "global configuration")
	}

	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := r.engine.tracer.Start(ctx, "benchmark.Registry.RunAll",
		trace.WithAttributes(attribute.Int("benchmark.registered", len(r.entries))),
	)
	defer span.End()

	for name := range o.overrides {
		if _, ok := r.index[name]; !ok {
			r.logger.WarnContext(ctx, "override matches no registered benchmark",
				slog.String("benchmark", name),
			)
		}
	}

	results := make([]*RunResult, 0, len(r.entries))
	failed := 0
	for _, def := range r.entries {
		if o.filter != nil && !o.filter.MatchString(def.Name) {
			continue
		}
		// Cancellation is only observed between benchmarks, never during one.
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "interrupted")
			r.logger.WarnContext(ctx, "benchmark suite interrupted",
				slog.Int("completed", len(results)),
			)
			return results, errors.Wrap(err, "benchmark suite interrupted")
		}

		result := r.runOne(ctx, def, global, o.overrides[def.Name])
		if result.Failed() {
			failed++
		}
		results = append(results, result)

		for _, rep := range o.reporters {
			if err := rep.Report(ctx, result); err != nil {
				r.logger.WarnContext(ctx, "reporter failed",
					slog.String("benchmark", result.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("benchmark.ran", len(results)),
		attribute.Int("benchmark.failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, "one or more benchmarks failed")
	}

	return results, nil
}

func (r *Registry) runOne(ctx context.Context, def Definition, global Configuration, extra *Override) *RunResult {
	cfg, err := Resolve(global, def.Override.Merge(extra))
	if err != nil {
		r.logger.WarnContext(ctx, "benchmark skipped",
			slog.String("benchmark", def.Name),
			slog.String("error", err.Error()),
		)
		return &RunResult{ID: uuid.NewString(), Name: def.Name, Err: errors.WithMessagef(err, "benchmark %q", def.Name)}
	}

	result, err := r.engine.Run(ctx, def, cfg, NewCollector(cfg.Metrics))
	if result == nil {
		return &RunResult{ID: uuid.NewString(), Name: def.Name, Configuration: cfg, Err: err}
	}
	return result
}
