package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/calbench/benchmark"
	"github.com/nvr-ai/calbench/profiler"
	"github.com/nvr-ai/calbench/report"
	"github.com/nvr-ai/calbench/workloads"
)

const defaultSuiteFile = "calbench.yaml"

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "calbench",
		Short: "Calendar and locale micro-benchmarks",
		Long: `calbench runs a suite of calendar and locale micro-benchmarks, each bounded by
an iteration count and a duration, and reports wall clock time, CPU time,
allocation counts and throughput.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.AddCommand(newRunCmd(), newListCmd(), newInitCmd())
	return rootCmd
}

type runFlags struct {
	configFile    string
	outputDir     string
	filter        string
	format        string
	maxIterations int
	maxDuration   time.Duration
	scaling       string
	metrics       []string
	warmup        int
	overrideAll   bool
	promFile      string
	logLevel      string
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the benchmark suite",
		Example: `  calbench run
  calbench run --config calbench.yaml --output ./benchmark_results
  calbench run --filter 'Locale$' --scaling unit --override-all --max-duration 500ms`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Path to a suite file (yaml or json)")
	flags.StringVarP(&f.outputDir, "output", "o", "", "Directory for JSON and CSV result files")
	flags.StringVarP(&f.filter, "filter", "f", "", "Only run benchmarks whose name matches this regular expression")
	flags.StringVar(&f.format, "format", "table", "Output format: table or json")
	flags.IntVar(&f.maxIterations, "max-iterations", 0, "Maximum measured invocations per benchmark")
	flags.DurationVar(&f.maxDuration, "max-duration", 0, "Maximum measured time per benchmark")
	flags.StringVar(&f.scaling, "scaling", "", "Scaling factor: unit, kilo or mega")
	flags.StringSliceVar(&f.metrics, "metrics", nil, "Metrics to collect: wallClock, cpuTotal, mallocCountTotal, throughput")
	flags.IntVar(&f.warmup, "warmup", 0, "Unmeasured invocations before measuring")
	flags.BoolVar(&f.overrideAll, "override-all", false, "Apply the bound flags on top of per-benchmark overrides too")
	flags.StringVar(&f.promFile, "prom-file", "", "Write Prometheus metrics to this textfile")
	flags.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	return cmd
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// flagOverride collects the bound flags the user actually set.
func flagOverride(cmd *cobra.Command, f *runFlags) (*benchmark.Override, error) {
	flags := cmd.Flags()
	b := benchmark.NewOverride()
	if flags.Changed("max-iterations") {
		b.WithMaxIterations(f.maxIterations)
	}
	if flags.Changed("max-duration") {
		b.WithMaxDuration(f.maxDuration)
	}
	if flags.Changed("scaling") {
		s, err := benchmark.ParseScalingFactor(f.scaling)
		if err != nil {
			return nil, err
		}
		b.WithScalingFactor(s)
	}
	if flags.Changed("metrics") {
		m, err := benchmark.ParseMetricSet(f.metrics)
		if err != nil {
			return nil, err
		}
		b.WithMetrics(m.Kinds()...)
	}
	if flags.Changed("warmup") {
		b.WithWarmupIterations(f.warmup)
	}
	return b.Build(), nil
}

func runSuite(cmd *cobra.Command, f *runFlags) error {
	logger, err := newLogger(cmd.ErrOrStderr(), f.logLevel)
	if err != nil {
		return err
	}
	if f.format != "table" && f.format != "json" {
		return errors.Errorf("unknown format %q", f.format)
	}

	reg := benchmark.NewRegistry()
	reg.SetLogger(logger)
	if err := workloads.Register(reg); err != nil {
		return errors.Wrap(err, "failed to register workloads")
	}

	global := benchmark.DefaultConfiguration()
	overrides := map[string]*benchmark.Override{}
	filter := f.filter

	if f.configFile != "" {
		suite, err := benchmark.LoadSuiteFile(f.configFile)
		if err != nil {
			return err
		}
		if global, err = suite.Configuration(global); err != nil {
			return err
		}
		if overrides, err = suite.Overrides(); err != nil {
			return err
		}
		if filter == "" {
			filter = suite.Filter
		}
		logger.Info("loaded suite file",
			slog.String("path", f.configFile),
			slog.Int("overrides", len(overrides)),
		)
	}

	cli, err := flagOverride(cmd, f)
	if err != nil {
		return err
	}
	if global, err = benchmark.Resolve(global, cli); err != nil {
		return err
	}
	if f.overrideAll && !cli.IsZero() {
		for _, name := range reg.Names() {
			overrides[name] = overrides[name].Merge(cli)
		}
	}

	opts := []benchmark.RunOption{benchmark.WithOverrides(overrides)}
	if filter != "" {
		re, err := regexp.Compile(filter)
		if err != nil {
			return errors.Wrapf(err, "invalid filter %q", filter)
		}
		opts = append(opts, benchmark.WithFilter(re))
	}

	runID := uuid.NewString()
	env := profiler.CaptureEnvironment()

	reporters := []benchmark.Reporter{report.NewConsole(cmd.ErrOrStderr())}
	var files *report.Files
	if f.outputDir != "" {
		files = report.NewFiles(f.outputDir, runID, env)
		reporters = append(reporters, files)
	}
	var prom *report.Prometheus
	if f.promFile != "" {
		if prom, err = report.NewPrometheus(report.DefaultNamespace); err != nil {
			return err
		}
		reporters = append(reporters, prom)
	}
	opts = append(opts, benchmark.WithReporter(report.Multi(reporters...)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	// A second interrupt falls through to the default handler.
	context.AfterFunc(ctx, stop)

	logger.Info("starting benchmark suite",
		slog.String("run_id", runID),
		slog.Int("max_iterations", global.MaxIterations),
		slog.Duration("max_duration", global.MaxDuration),
		slog.String("scaling_factor", global.ScalingFactor.String()),
		slog.String("metrics", global.Metrics.String()),
	)
	start := time.Now()

	results, interrupted := reg.RunAll(ctx, global, opts...)
	if interrupted != nil && !errors.Is(interrupted, context.Canceled) {
		return interrupted
	}

	logger.Info("benchmark suite completed",
		slog.String("run_id", runID),
		slog.Int("benchmarks", len(results)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if err := writeResults(cmd.OutOrStdout(), f.format, runID, env, results); err != nil {
		return err
	}

	if files != nil {
		resultsFile, summaryFile, err := files.Save()
		if err != nil {
			return err
		}
		logger.Info("results saved", slog.String("results", resultsFile), slog.String("summary", summaryFile))
	}
	if prom != nil {
		if err := prom.WriteTextfile(f.promFile); err != nil {
			return err
		}
		logger.Info("metrics written", slog.String("path", f.promFile))
	}

	if interrupted != nil {
		return interrupted
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d benchmarks failed", failed, len(results))
	}
	return nil
}

func writeResults(w io.Writer, format, runID string, env profiler.Environment, results []*benchmark.RunResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Document{
			RunID:       runID,
			CreatedAt:   time.Now(),
			Environment: env,
			Results:     results,
		})
	}
	return report.WriteTable(w, env, results)
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered benchmarks and their overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := benchmark.NewRegistry()
			if err := workloads.Register(reg); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tOVERRIDE")
			for _, def := range reg.Definitions() {
				fmt.Fprintf(tw, "%s\t%s\n", def.Name, describeOverride(def.Override))
			}
			return tw.Flush()
		},
	}
}

func describeOverride(o *benchmark.Override) string {
	if o.IsZero() {
		return "-"
	}
	var parts []string
	if o.MaxIterations != nil {
		parts = append(parts, fmt.Sprintf("max_iterations=%d", *o.MaxIterations))
	}
	if o.MaxDuration != nil {
		parts = append(parts, "max_duration="+o.MaxDuration.String())
	}
	if o.ScalingFactor != nil {
		parts = append(parts, "scaling_factor="+o.ScalingFactor.String())
	}
	if o.Metrics != nil {
		parts = append(parts, "metrics="+o.Metrics.String())
	}
	if o.WarmupIterations != nil {
		parts = append(parts, fmt.Sprintf("warmup_iterations=%d", *o.WarmupIterations))
	}
	return strings.Join(parts, " ")
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a suite file with the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultSuiteFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.Errorf("%s already exists, use --force to overwrite", path)
			}

			if err := benchmark.SaveSuiteFile(benchmark.DefaultSuiteFile(workloads.Overrides()), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suite file written to: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
