//go:build unix

package benchmark

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// cpuProbe reads process user+system CPU time.
type cpuProbe struct {
	usage unix.Rusage
}

func newCPUProbe() probe {
	return &cpuProbe{}
}

func (p *cpuProbe) read() (float64, error) {
	if err := unix.Getrusage(unix.RUSAGE_SELF, &p.usage); err != nil {
		return 0, errors.Wrap(ErrMetricUnavailable, err.Error())
	}
	return float64(p.usage.Utime.Nano() + p.usage.Stime.Nano()), nil
}
