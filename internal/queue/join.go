package queue

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// call is one runner dispatch in a batch.
type call[T any] struct {
	index int
	run   func(ctx context.Context) (T, error)
}

// join launches every call concurrently and waits according to the
// configured join mode. Runners receive ctx unchanged: a failure never
// cancels its siblings.
func (q *Queue[T]) join(ctx context.Context, calls []call[T]) ([]T, error) {
	results := make([]T, len(calls))
	errs := make([]error, len(calls))
	failed := make(chan error, 1)

	var g errgroup.Group
	for i, c := range calls {
		g.Go(func() error {
			value, err := c.run(ctx)
			if err != nil {
				rerr := &RunnerError{Index: c.index, Err: err}
				errs[i] = rerr
				select {
				case failed <- rerr:
				default:
				}
				return rerr
			}
			results[i] = value
			return nil
		})
	}

	if q.config.Join == JoinAllSettled {
		_ = g.Wait()

		var merr *multierror.Error
		for _, err := range errs {
			if err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		if err := merr.ErrorOrNil(); err != nil {
			return results, err
		}
		return results, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-failed:
		return nil, err
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}
