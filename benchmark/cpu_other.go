//go:build !unix

package benchmark

import "github.com/pkg/errors"

type cpuProbe struct{}

func newCPUProbe() probe {
	return cpuProbe{}
}

func (cpuProbe) read() (float64, error) {
	return 0, errors.Wrap(ErrMetricUnavailable, "process cpu time is not exposed on this platform")
}
