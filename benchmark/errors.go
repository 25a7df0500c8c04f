package benchmark

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConfiguration indicates a configuration with out-of-range bounds.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicateName indicates a benchmark name is already registered.
	ErrDuplicateName = errors.New("duplicate benchmark name")

	// ErrExecutionFailed indicates a workload faulted during a run.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrMetricUnavailable indicates the host cannot sample a metric kind.
	ErrMetricUnavailable = errors.New("metric unavailable")
)

// ExecutionError carries the benchmark that faulted and the underlying fault.
type ExecutionError struct {
	Name  string
	Fault error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("benchmark %q: %v: %v", e.Name, ErrExecutionFailed, e.Fault)
}

// Unwrap exposes the fault to errors.Is and errors.As.
func (e *ExecutionError) Unwrap() error {
	return e.Fault
}

// Is reports ErrExecutionFailed as a match so callers need not know the concrete type.
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

// panicError wraps a recovered panic value.
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfiguration, format, args...)
}
