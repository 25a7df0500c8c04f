package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/calbench/benchmark"
	"github.com/nvr-ai/calbench/profiler"
)

func sampleResults() []*benchmark.RunResult {
	cfg := benchmark.DefaultConfiguration()
	return []*benchmark.RunResult{
		{
			ID:            "1",
			Name:          "nextThousandThanksgivings",
			Configuration: cfg,
			Iterations:    10,
			Duration:      2 * time.Second,
			Samples: []benchmark.MetricSample{
				{Kind: benchmark.WallClock, Value: 2e9, Unit: "ns"},
				{Kind: benchmark.MallocCountTotal, Value: 5000, Unit: "allocs"},
				{Kind: benchmark.Throughput, Value: 5, Unit: "ops/s"},
			},
			Unavailable: []benchmark.MetricKind{benchmark.CPUTotal},
		},
		{
			ID:            "2",
			Name:          "identifierFromComponents",
			Configuration: cfg,
			Iterations:    3,
			StoppedEarly:  true,
			Err:           &benchmark.ExecutionError{Name: "identifierFromComponents", Fault: errors.New("bad tag")},
		},
	}
}

func testEnv() profiler.Environment {
	return profiler.Environment{Hostname: "bench-01", GoVersion: "go1.24.2", OS: "linux", Arch: "amd64", NumCPU: 8, GOMAXPROCS: 8}
}

func TestConsoleReport(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	for _, r := range sampleResults() {
		require.NoError(t, c.Report(context.Background(), r))
	}

	out := buf.String()
	assert.Contains(t, out, "nextThousandThanksgivings completed: 10 iterations in 2s")
	assert.Contains(t, out, "mallocCountTotal=5.00K allocs")
	assert.Contains(t, out, "cpuTotal=unavailable")
	assert.Contains(t, out, "identifierFromComponents failed after 3 iterations")
	assert.Contains(t, out, "bad tag")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, testEnv(), sampleResults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "host=bench-01")
	assert.True(t, strings.HasPrefix(lines[2], "BENCHMARK"))

	assert.Contains(t, lines[3], "nextThousandThanksgivings")
	assert.Contains(t, lines[3], "200ms")
	assert.Contains(t, lines[3], "500")
	assert.Contains(t, lines[3], "5 ops/s")
	assert.Contains(t, lines[3], "ok")

	assert.Contains(t, lines[4], "identifierFromComponents")
	assert.Contains(t, lines[4], "FAILED: ")
}

func TestFilesSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f := NewFiles(dir, "run-42", testEnv())

	for _, r := range sampleResults() {
		require.NoError(t, f.Report(context.Background(), r))
	}
	assert.Len(t, f.Results(), 2)

	jsonPath, csvPath, err := f.Save()
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var doc struct {
		RunID       string               `json:"run_id"`
		Environment profiler.Environment `json:"environment"`
		Results     []map[string]any     `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-42", doc.RunID)
	assert.Equal(t, testEnv(), doc.Environment)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, "nextThousandThanksgivings", doc.Results[0]["name"])
	assert.Contains(t, doc.Results[1]["error"], "bad tag")

	file, err := os.Open(csvPath)
	require.NoError(t, err)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, summaryHeader, rows[0])
	assert.Equal(t, []string{
		"nextThousandThanksgivings", "kilo", "10", "2000000000",
		"2000000000.00", "", "5000.00", "5.00", "false", "",
	}, rows[1])
	assert.Equal(t, "true", rows[2][8])
	assert.Contains(t, rows[2][9], "bad tag")
}

func TestPrometheusReport(t *testing.T) {
	p, err := NewPrometheus("")
	require.NoError(t, err)

	for _, r := range sampleResults() {
		require.NoError(t, p.Report(context.Background(), r))
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(p.iterations.WithLabelValues("nextThousandThanksgivings")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.duration.WithLabelValues("nextThousandThanksgivings")))
	assert.Equal(t, 5000.0, testutil.ToFloat64(p.metricValue.WithLabelValues("nextThousandThanksgivings", "mallocCountTotal", "allocs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.unavailable.WithLabelValues("nextThousandThanksgivings", "cpuTotal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.failures.WithLabelValues("identifierFromComponents")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.failures.WithLabelValues("nextThousandThanksgivings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.stopped.WithLabelValues("identifierFromComponents")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.runs))
}

func TestPrometheusUnavailableResetsOnLaterRun(t *testing.T) {
	p, err := NewPrometheus("")
	require.NoError(t, err)

	first := sampleResults()[0]
	require.NoError(t, p.Report(context.Background(), first))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.unavailable.WithLabelValues(first.Name, "cpuTotal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.unavailable.WithLabelValues(first.Name, "wallClock")))

	second := *first
	second.Unavailable = nil
	second.Samples = append(second.Samples, benchmark.MetricSample{Kind: benchmark.CPUTotal, Value: 1e9, Unit: "ns"})
	require.NoError(t, p.Report(context.Background(), &second))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.unavailable.WithLabelValues(first.Name, "cpuTotal")))
	assert.Equal(t, 1e9, testutil.ToFloat64(p.metricValue.WithLabelValues(first.Name, "cpuTotal", "ns")))
}

func TestPrometheusSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPrometheusWithRegistry("shared", reg)
	require.NoError(t, err)
	second, err := NewPrometheusWithRegistry("shared", reg)
	require.NoError(t, err)

	require.NoError(t, first.Report(context.Background(), sampleResults()[0]))
	assert.Equal(t, 10.0, testutil.ToFloat64(second.iterations.WithLabelValues("nextThousandThanksgivings")))
}

func TestPrometheusWriteTextfile(t *testing.T) {
	p, err := NewPrometheus("calbench")
	require.NoError(t, err)
	require.NoError(t, p.Report(context.Background(), sampleResults()[0]))

	path := filepath.Join(t.TempDir(), "calbench.prom")
	require.NoError(t, p.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `calbench_iterations{benchmark="nextThousandThanksgivings"} 10`)
	assert.Contains(t, string(data), "# TYPE calbench_runs_total counter")
}

func TestMulti(t *testing.T) {
	var calls atomic.Int32
	counting := benchmark.ReporterFunc(func(context.Context, *benchmark.RunResult) error {
		calls.Add(1)
		return nil
	})
	boom := errors.New("boom")
	failing := benchmark.ReporterFunc(func(context.Context, *benchmark.RunResult) error {
		return boom
	})

	err := Multi(counting, nil, counting).Report(context.Background(), sampleResults()[0])
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	err = Multi(counting, failing).Report(context.Background(), sampleResults()[0])
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), calls.Load())

	assert.NoError(t, Multi().Report(context.Background(), sampleResults()[0]))
}
