package benchmark

import "iter"

// Workload is the unit of code under measurement.
//
// Run is called once per invocation. A returned error or a panic is a fault: the
// benchmark is aborted and reported as ErrExecutionFailed.
type Workload interface {
	Run(inv *Invocation) error
}

// WorkloadFunc adapts a function to the Workload interface.
type WorkloadFunc func(inv *Invocation) error

// Run calls f(inv).
func (f WorkloadFunc) Run(inv *Invocation) error {
	return f(inv)
}

// Invocation is the per-invocation context handed to a workload.
//
// The engine owns the Invocation and reuses it across invocations of one run; a
// workload must not retain it after Run returns.
type Invocation struct {
	name      string
	config    Configuration
	iteration int
	warmup    bool
	stop      bool
}

// Name returns the benchmark name.
func (inv *Invocation) Name() string {
	return inv.name
}

// Iteration returns the zero-based index of the current measured invocation.
// During warmup it counts warmup invocations instead.
func (inv *Invocation) Iteration() int {
	return inv.iteration
}

// Warmup reports whether this invocation is an unmeasured warmup.
func (inv *Invocation) Warmup() bool {
	return inv.warmup
}

// Configuration returns the resolved configuration of the run.
func (inv *Invocation) Configuration() Configuration {
	return inv.config
}

// ScaledIterations returns a fresh sequence sized by the run's scaling factor.
func (inv *Invocation) ScaledIterations() iter.Seq[int] {
	return Iterations(inv.config.ScalingFactor, 1)
}

// ScaledCount returns the length of ScaledIterations.
func (inv *Invocation) ScaledCount() int {
	return ScaledCount(inv.config.ScalingFactor, 1)
}

// Stop asks the engine to end the run after this invocation. The run completes
// successfully with the invocations performed so far, this one included.
func (inv *Invocation) Stop() {
	inv.stop = true
}

// Stopped reports whether Stop was called during this run.
func (inv *Invocation) Stopped() bool {
	return inv.stop
}

func (inv *Invocation) reset(iteration int, warmup bool) {
	inv.iteration = iteration
	inv.warmup = warmup
}
