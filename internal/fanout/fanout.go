// Package fanout runs independent calls concurrently and waits for all of them to
// settle. A failing member never cancels its siblings; callers decide what to do
// with the failures.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Success is a member that returned without error.
type Success[T, R any] struct {
	Index int
	Item  T
	Value R
}

// Failure is a member that returned an error.
type Failure[T any] struct {
	Index int
	Item  T
	Err   error
}

// Settle calls fn for every item with at most limit calls in flight (limit <= 0
// means unbounded). Both returned slices are ordered by input index.
func Settle[T, R any](
	ctx context.Context,
	items []T,
	limit int,
	fn func(ctx context.Context, item T) (R, error),
) ([]Success[T, R], []Failure[T]) {
	type outcome struct {
		value R
		err   error
	}
	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].err = err
				return nil
			}
			v, err := fn(ctx, item)
			outcomes[i] = outcome{value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var successes []Success[T, R]
	var failures []Failure[T]
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, Failure[T]{Index: i, Item: items[i], Err: o.err})
			continue
		}
		successes = append(successes, Success[T, R]{Index: i, Item: items[i], Value: o.value})
	}
	return successes, failures
}
