package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for each element in its own goroutine, at most limit at
// a time (limit <= 0 means unbounded). The context passed to action is
// cancelled on the first error, which is returned after all goroutines finish.
func ForEach[T any](ctx context.Context, items []T, limit int, action func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return action(gctx, item)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
