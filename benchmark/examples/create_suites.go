package main

import (
	"fmt"
	"log"
	"time"

	"github.com/nvr-ai/calbench/benchmark"
	"github.com/nvr-ai/calbench/workloads"
)

// Example program to create and save suite files
func main() {
	// Full suite: defaults plus the registration-time overrides
	full := benchmark.DefaultSuiteFile(workloads.Overrides())
	full.Description = "full calendar suite"
	if err := benchmark.SaveSuiteFile(full, "full_suite.yaml"); err != nil {
		log.Fatalf("Failed to save full suite: %v", err)
	}
	fmt.Printf("Saved full suite with %d overrides\n", len(full.Benchmarks))

	// Quick suite: every benchmark at unit scale with tight bounds
	quick := make(map[string]*benchmark.Override)
	for name := range workloads.Overrides() {
		quick[name] = benchmark.NewOverride().WithScalingFactor(benchmark.Unit).Build()
	}
	quickSuite := benchmark.DefaultSuiteFile(quick)
	quickSuite.Description = "quick smoke run"
	quickSuite.Defaults = benchmark.NewFileOverride(benchmark.NewOverride().
		WithMaxIterations(50).
		WithMaxDuration(200 * time.Millisecond).
		WithScalingFactor(benchmark.Unit).
		Build())
	if err := benchmark.SaveSuiteFile(quickSuite, "quick_suite.json"); err != nil {
		log.Fatalf("Failed to save quick suite: %v", err)
	}
	fmt.Printf("Saved quick suite with %d overrides\n", len(quickSuite.Benchmarks))

	// Locale-only suite measuring allocations
	locale := benchmark.DefaultSuiteFile(nil)
	locale.Description = "locale allocations"
	locale.Filter = "Locale$|^identifierFromComponents$"
	locale.Defaults.Metrics = []string{
		benchmark.MallocCountTotal.String(),
		benchmark.WallClock.String(),
	}
	if err := benchmark.SaveSuiteFile(locale, "locale_suite.yaml"); err != nil {
		log.Fatalf("Failed to save locale suite: %v", err)
	}
	fmt.Println("Saved locale suite")
}
