package report

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/calbench/benchmark"
)

type multi []benchmark.Reporter

// Multi returns a reporter that hands each result to every reporter concurrently
// and waits for all of them. The first error is returned.
func Multi(reporters ...benchmark.Reporter) benchmark.Reporter {
	out := make(multi, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multi) Report(ctx context.Context, result *benchmark.RunResult) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range m {
		g.Go(func() error {
			return r.Report(ctx, result)
		})
	}
	return g.Wait()
}
