package transport

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Launch runs fn on every rank of a new World of the given size, one goroutine
// per rank, and waits for all of them.
func Launch(size int, fn func(c Comm) error) error {
	return NewWorld(size).Run(fn)
}

/*
Run starts fn once per rank and blocks until every rank returns. A rank that
fails (error or panic) aborts the world so that its peers stop waiting on it.
The returned error aggregates the original failures; ranks that only observed
the abort are not reported.
*/
func (w *World) Run(fn func(c Comm) error) (err error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		aborted error
	)
	for np := 0; np < w.size; np++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			rerr := w.runRank(rank, fn)
			if rerr == nil {
				return
			}
			mu.Lock()
			if errors.Is(rerr, ErrAborted) {
				aborted = multierr.Append(aborted, rerr)
			} else {
				err = multierr.Append(err, rerr)
			}
			mu.Unlock()
			w.Abort(rerr)
		}(np)
	}
	wg.Wait()
	if err == nil {
		err = aborted
	}
	return
}

func (w *World) runRank(rank int, fn func(c Comm) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(error); ok {
				err = errors.Wrapf(rerr, "rank %d panicked", rank)
			} else {
				err = errors.Errorf("rank %d panicked: %v", rank, r)
			}
		}
	}()
	if err = fn(w.Comm(rank)); err != nil {
		err = errors.Wrapf(err, "rank %d", rank)
	}
	return
}
