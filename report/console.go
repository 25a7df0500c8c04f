// Package report turns benchmark results into console output, result files and
// Prometheus metrics.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/nvr-ai/calbench/benchmark"
	"github.com/nvr-ai/calbench/profiler"
)

// Console prints one line per finished benchmark.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console reporter writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Report implements benchmark.Reporter.
func (c *Console) Report(_ context.Context, result *benchmark.RunResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if result.Failed() {
		_, err := fmt.Fprintf(c.w, "%s failed after %d iterations: %v\n", result.Name, result.Iterations, result.Err)
		return err
	}

	_, err := fmt.Fprintf(c.w, "%s completed: %d iterations in %s (%s)\n",
		result.Name, result.Iterations, profiler.FormatNanos(float64(result.Duration)), formatSamples(result))
	return err
}

// WriteTable writes a summary table of results to w.
//
// Arguments:
// - w: Destination writer.
// - env: Host description printed above the table.
// - results: Results in the order they ran.
//
// Returns:
// - error: Error if writing fails.
func WriteTable(w io.Writer, env profiler.Environment, results []*benchmark.RunResult) error {
	if _, err := fmt.Fprintf(w, "host=%s go=%s os=%s/%s cpus=%d gomaxprocs=%d\n\n",
		env.Hostname, env.GoVersion, env.OS, env.Arch, env.NumCPU, env.GOMAXPROCS); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tSCALE\tITERATIONS\tDURATION\tWALL/OP\tCPU/OP\tALLOCS/OP\tTHROUGHPUT\tSTATUS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name,
			r.Configuration.ScalingFactor,
			r.Iterations,
			profiler.FormatNanos(float64(r.Duration)),
			perOp(r, benchmark.WallClock, profiler.FormatNanos),
			perOp(r, benchmark.CPUTotal, profiler.FormatNanos),
			perOp(r, benchmark.MallocCountTotal, profiler.FormatCount),
			throughput(r),
			status(r),
		)
	}
	return tw.Flush()
}

func perOp(r *benchmark.RunResult, kind benchmark.MetricKind, format func(float64) string) string {
	s, ok := r.Sample(kind)
	if !ok || r.Iterations == 0 {
		return "-"
	}
	return format(s.Value / float64(r.Iterations))
}

func throughput(r *benchmark.RunResult) string {
	s, ok := r.Sample(benchmark.Throughput)
	if !ok {
		return "-"
	}
	return profiler.FormatCount(s.Value) + " ops/s"
}

func status(r *benchmark.RunResult) string {
	switch {
	case r.Failed():
		return "FAILED: " + r.ErrorMessage()
	case r.StoppedEarly:
		return "stopped"
	default:
		return "ok"
	}
}

func formatSamples(r *benchmark.RunResult) string {
	parts := make([]string, 0, len(r.Samples)+len(r.Unavailable))
	for _, s := range r.Samples {
		switch s.Kind {
		case benchmark.WallClock, benchmark.CPUTotal:
			parts = append(parts, fmt.Sprintf("%s=%s", s.Kind, profiler.FormatNanos(s.Value)))
		default:
			parts = append(parts, fmt.Sprintf("%s=%s %s", s.Kind, profiler.FormatCount(s.Value), s.Unit))
		}
	}
	for _, kind := range r.Unavailable {
		parts = append(parts, kind.String()+"=unavailable")
	}
	return strings.Join(parts, ", ")
}
