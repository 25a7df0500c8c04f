package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/calbench/benchmark"
	"github.com/nvr-ai/calbench/profiler"
)

// Document is the content of a JSON results file.
type Document struct {
	RunID       string                 `json:"run_id"`
	CreatedAt   time.Time              `json:"created_at"`
	Environment profiler.Environment   `json:"environment"`
	Results     []*benchmark.RunResult `json:"results"`
}

// Files buffers results and writes them as a JSON document and a CSV summary.
type Files struct {
	mu        sync.Mutex
	outputDir string
	runID     string
	env       profiler.Environment
	results   []*benchmark.RunResult
}

// NewFiles creates a file reporter.
//
// Arguments:
// - outputDir: Directory the files are written to. Created on Save if missing.
// - runID: Identifier recorded in the JSON document.
// - env: Host description recorded in the JSON document.
//
// Returns:
// - *Files: The reporter.
func NewFiles(outputDir, runID string, env profiler.Environment) *Files {
	return &Files{outputDir: outputDir, runID: runID, env: env}
}

// Report implements benchmark.Reporter by buffering result until Save.
func (f *Files) Report(_ context.Context, result *benchmark.RunResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

// Results returns the buffered results.
func (f *Files) Results() []*benchmark.RunResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*benchmark.RunResult, len(f.results))
	copy(out, f.results)
	return out
}

// Save writes the buffered results.
//
// Returns:
// - string: Path of the JSON results file.
// - string: Path of the CSV summary file.
// - error: Error if a file cannot be written.
func (f *Files) Save() (string, string, error) {
	results := f.Results()

	if err := os.MkdirAll(f.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	now := time.Now()
	timestamp := now.Format("2006-01-02_15-04-05")

	resultsFile := filepath.Join(f.outputDir, fmt.Sprintf("calbench_results_%s.json", timestamp))
	data, err := json.MarshalIndent(Document{
		RunID:       f.runID,
		CreatedAt:   now,
		Environment: f.env,
		Results:     results,
	}, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(f.outputDir, fmt.Sprintf("calbench_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}

	return resultsFile, summaryFile, nil
}

var summaryHeader = []string{
	"benchmark", "scaling_factor", "iterations", "duration_ns",
	"wall_clock_ns", "cpu_total_ns", "malloc_count_total", "throughput_ops",
	"stopped_early", "error",
}

func saveSummaryCSV(filename string, results []*benchmark.RunResult) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return writeSummaryCSV(file, results)
}

func writeSummaryCSV(out io.Writer, results []*benchmark.RunResult) error {
	w := csv.NewWriter(out)
	if err := w.Write(summaryHeader); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Name,
			r.Configuration.ScalingFactor.String(),
			strconv.Itoa(r.Iterations),
			strconv.FormatInt(r.Duration.Nanoseconds(), 10),
			sampleValue(r, benchmark.WallClock),
			sampleValue(r, benchmark.CPUTotal),
			sampleValue(r, benchmark.MallocCountTotal),
			sampleValue(r, benchmark.Throughput),
			strconv.FormatBool(r.StoppedEarly),
			r.ErrorMessage(),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func sampleValue(r *benchmark.RunResult, kind benchmark.MetricKind) string {
	s, ok := r.Sample(kind)
	if !ok {
		return ""
	}
	return strconv.FormatFloat(s.Value, 'f', 2, 64)
}
