package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelLimit applies fn to every item with at most limit calls in flight
// and returns the results in input order. The first error cancels the
// context passed to the remaining calls.
//
// Example:
//
//	items, err := ParallelLimit(ctx, 4, uploads, func(ctx context.Context, i int, u Upload) (LineItem, error) {
//	    return analyzer.Analyze(ctx, u.Path, u.Filename, u.Material, u.Quantity)
//	})
func ParallelLimit[T, R any](
	ctx context.Context,
	limit int,
	items []T,
	fn func(ctx context.Context, index int, item T) (R, error),
) ([]R, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]R, len(items))

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result, err := fn(ctx, i, item)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel execution failed: %w", err)
	}

	return results, nil
}

// FanOut distributes items across a fixed number of workers. Unlike
// ParallelLimit every item is attempted; the returned error joins all
// failures.
//
// Example:
//
//	err := FanOut(ctx, 3, paths, func(ctx context.Context, path string) error {
//	    return removeIfExists(path)
//	})
func FanOut[T any](ctx context.Context, workers int, items []T, fn func(context.Context, T) error) error {
	if workers < 1 {
		workers = 1
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	itemChan := make(chan T)

	for range workers {
		g.Go(func() error {
			for item := range itemChan {
				if err := fn(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}

			return nil
		})
	}

	for _, item := range items {
		itemChan <- item
	}

	close(itemChan)

	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("fan out failed: %w", err)
	}

	return nil
}
