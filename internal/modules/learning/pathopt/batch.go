package pathopt

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type BatchResult struct {
	Result *SelectionResult
	Err    error
}

// OptimizeBatch runs independent requests concurrently, at most
// Config.BatchConcurrency at a time. Results line up with requests. A failed
// request does not stop the others; a cancelled ctx marks requests that had
// not started with ctx.Err().
func (o *Optimizer) OptimizeBatch(ctx context.Context, reqs []Request) []BatchResult {
	out := make([]BatchResult, len(reqs))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.BatchConcurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			res, err := o.Optimize(ctx, reqs[i])
			out[i] = BatchResult{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
