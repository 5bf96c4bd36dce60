package source

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one retrieval of a batch
type Task[T any] struct {
	URL  string
	Info T
}

// FetchFunc retrieves the text behind url
type FetchFunc func(ctx context.Context, url string) (string, error)

// Stream retrieves every task concurrently, at most limit at a time (no
// bound when limit <= 0), and returns without waiting.
//
// onSuccess and onError are never called concurrently with each other; they
// run in the order retrievals settle. onDone runs once after the last of
// them. With no tasks onDone runs before Stream returns. A failed task never
// stops its siblings, and cancelling ctx does not abort launched tasks.
func Stream[T any](
	ctx context.Context,
	limit int,
	tasks []Task[T],
	fetch FetchFunc,
	onSuccess func(Task[T], string),
	onError func(Task[T], error),
	onDone func(),
) {
	if len(tasks) == 0 {
		onDone()
		return
	}

	ctx = context.WithoutCancel(ctx)

	go func() {
		var (
			g  errgroup.Group
			mu sync.Mutex
		)
		if limit > 0 {
			g.SetLimit(limit)
		}

		for _, t := range tasks {
			g.Go(func() error {
				code, err := fetch(ctx, t.URL)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					onError(t, err)
				} else {
					onSuccess(t, code)
				}
				return nil
			})
		}

		_ = g.Wait()
		onDone()
	}()
}
