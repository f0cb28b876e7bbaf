// Package batch runs independent items through a bounded worker pool and
// reports one outcome per item in input order.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// MaxItems is the hard ceiling on the size of a batch.
const MaxItems = 100

// Outcome is the result of one item.
type Outcome[T any] struct {
	Index int
	Value T
	Err   error
}

// CheckSize rejects empty batches and batches above MaxItems.
func CheckSize(n int) error {
	switch {
	case n == 0:
		return apperrors.New(apperrors.CodeBatchEmpty, "batch contains no items")
	case n > MaxItems:
		return apperrors.WithMetadata(apperrors.CodeBatchTooLarge,
			fmt.Sprintf("batch of %d items exceeds the limit of %d", n, MaxItems),
			map[string]string{"size": fmt.Sprint(n), "limit": fmt.Sprint(MaxItems)})
	}
	return nil
}

// Run calls fn for every item with at most workers calls in flight. A
// failing item never affects the others. Once ctx is done no further item is
// dispatched; those items fail with a not-dispatched error. Items already
// dispatched run to completion under a context that ignores the
// cancellation, so a commit that has started is never torn.
func Run[In, Out any](ctx context.Context, workers int, items []In, fn func(context.Context, In) (Out, error)) []Outcome[Out] {
	if workers < 1 {
		workers = 1
	}
	outcomes := make([]Outcome[Out], len(items))
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(workers)
	for i, item := range items {
		outcomes[i].Index = i
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = notDispatched(i, err)
			continue
		}
		// Go waits for a free worker, so cancellation is checked again once
		// the item holds one.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = notDispatched(i, err)
				return nil
			}
			v, err := fn(detached, item)
			outcomes[i].Value = v
			outcomes[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func notDispatched(i int, err error) error {
	return apperrors.Wrap(apperrors.CodeBatchCancelled,
		fmt.Sprintf("item %d was not processed: %v", i, err), err)
}
