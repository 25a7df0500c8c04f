package benchmark

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nvr-ai/calbench/profiler"
)

const tracerName = "github.com/nvr-ai/calbench/benchmark"

// Engine runs one benchmark definition under a resolved configuration.
//
// The engine favors bounded run time over sample size: a slow workload completes
// fewer invocations than MaxIterations rather than overrunning MaxDuration. The
// duration bound is checked between invocations, so at least one invocation always
// runs and an invocation is never interrupted.
type Engine struct {
	logger *slog.Logger
	tracer trace.Tracer
	settle func()
}

// NewEngine creates an engine that logs to slog.Default and traces through the
// global OpenTelemetry tracer provider.
func NewEngine() *Engine {
	return &Engine{
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
		settle: profiler.Settle,
	}
}

// SetLogger replaces the engine's logger. Nil values are ignored.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetTracer replaces the engine's tracer. Nil values are ignored.
func (e *Engine) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		e.tracer = tracer
	}
}

// Run executes a benchmark.
//
// Arguments:
//   - ctx: Carries the parent trace span. Runs are bounded by the configuration only
//     and do not observe ctx cancellation.
//   - def: The benchmark to run.
//   - cfg: The resolved configuration.
//   - collector: Samples metrics around each invocation. If nil, one is created
//     for cfg.Metrics.
//
// Returns:
//   - *RunResult: The result. On a workload fault the partial result is returned
//     with Err set.
//   - error: ErrInvalidConfiguration for a bad cfg, or an *ExecutionError matching
//     ErrExecutionFailed if the workload faulted.
func (e *Engine) Run(ctx context.Context, def Definition, cfg Configuration, collector *Collector) (*RunResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if def.Workload == nil {
		return nil, errors.Errorf("benchmark %q has no workload", def.Name)
	}
	if collector == nil {
		collector = NewCollector(cfg.Metrics)
	}

	ctx, span := e.tracer.Start(ctx, "benchmark.Engine.Run",
		trace.WithAttributes(
			attribute.String("benchmark.name", def.Name),
			attribute.Int("benchmark.max_iterations", cfg.MaxIterations),
			attribute.String("benchmark.max_duration", cfg.MaxDuration.String()),
			attribute.String("benchmark.scaling_factor", cfg.ScalingFactor.String()),
			attribute.StringSlice("benchmark.metrics", cfg.Metrics.Names()),
		),
	)
	defer span.End()

	result := &RunResult{
		ID:            uuid.NewString(),
		Name:          def.Name,
		Configuration: cfg,
	}
	inv := &Invocation{name: def.Name, config: cfg}

	e.logger.DebugContext(ctx, "benchmark starting",
		slog.String("benchmark", def.Name),
		slog.Int("max_iterations", cfg.MaxIterations),
		slog.Duration("max_duration", cfg.MaxDuration),
		slog.String("scaling_factor", cfg.ScalingFactor.String()),
	)

	for i := 0; i < cfg.WarmupIterations; i++ {
		inv.reset(i, true)
		if err := invoke(def.Workload, inv); err != nil {
			return e.fail(ctx, span, result, collector, err)
		}
		if inv.stop {
			break
		}
	}
	inv.stop = false

	e.settle()

	start := time.Now()
	result.StartedAt = start
	for result.Iterations < cfg.MaxIterations {
		inv.reset(result.Iterations, false)

		collector.Begin()
		if err := invoke(def.Workload, inv); err != nil {
			result.Duration = time.Since(start)
			return e.fail(ctx, span, result, collector, err)
		}
		collector.End()
		result.Iterations++

		if inv.stop || time.Since(start) >= cfg.MaxDuration {
			break
		}
	}
	result.Duration = time.Since(start)
	result.StoppedEarly = inv.stop && result.Iterations < cfg.MaxIterations

	e.finish(result, collector)

	span.SetAttributes(
		attribute.Int("benchmark.result.iterations", result.Iterations),
		attribute.Int64("benchmark.result.duration_ns", int64(result.Duration)),
		attribute.Bool("benchmark.result.stopped_early", result.StoppedEarly),
	)
	span.SetStatus(codes.Ok, "benchmark completed")

	for _, kind := range result.Unavailable {
		e.logger.WarnContext(ctx, "metric unavailable",
			slog.String("benchmark", def.Name),
			slog.String("metric", kind.String()),
		)
	}
	e.logger.InfoContext(ctx, "benchmark completed",
		slog.String("benchmark", def.Name),
		slog.Int("iterations", result.Iterations),
		slog.Duration("duration", result.Duration),
		slog.Bool("stopped_early", result.StoppedEarly),
	)

	return result, nil
}

func (e *Engine) finish(result *RunResult, collector *Collector) {
	result.Samples = collector.Samples(result.Iterations, result.Duration)
	result.Stats = collector.Stats()
	result.Unavailable = collector.Unavailable()
}

func (e *Engine) fail(ctx context.Context, span trace.Span, result *RunResult, collector *Collector, fault error) (*RunResult, error) {
	err := &ExecutionError{Name: result.Name, Fault: fault}
	result.Err = err
	e.finish(result, collector)

	span.RecordError(err)
	span.SetStatus(codes.Error, "workload faulted")

	e.logger.WarnContext(ctx, "benchmark failed",
		slog.String("benchmark", result.Name),
		slog.Int("iterations", result.Iterations),
		slog.String("error", fault.Error()),
	)
	return result, err
}

// invoke runs one invocation and converts a panic into an error.
func invoke(w Workload, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return w.Run(inv)
}
