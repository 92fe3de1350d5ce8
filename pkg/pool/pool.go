package pool

import (
	"context"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// searchAlone is Search on the calling goroutine.
func searchAlone(f func() (interface{}, error), count int) ([]interface{}, error) {
	results := make([]interface{}, 0, count)
	for len(results) < count {
		res, err := f()
		if err != nil {
			return nil, err
		}
		if res != nil {
			results = append(results, res)
		}
	}
	return results, nil
}

// parallelizeAlone is Parallelize on the calling goroutine, stopping at the first error.
func parallelizeAlone(f func(int) error, count int) error {
	for i := 0; i < count; i++ {
		if err := f(i); err != nil {
			return err
		}
	}
	return nil
}

// Pool bounds how many goroutines a parallel computation may use.
//
// A nil *Pool is valid and runs everything on the calling goroutine.
type Pool struct {
	workers int
}

// NewPool returns a pool of count workers, or one per CPU if count <= 0.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	return &Pool{workers: count}
}

// Workers returns the number of workers in the pool, or 1 for a nil pool.
func (p *Pool) Workers() int {
	if p == nil {
		return 1
	}
	return p.workers
}

// Search calls f on every worker until it has returned count non-nil results,
// which are returned in the order they were found. Each call of f tries one
// candidate. The first error from f stops the search.
func (p *Pool) Search(count int, f func() (interface{}, error)) ([]interface{}, error) {
	if p == nil {
		return searchAlone(f, count)
	}

	var (
		mu      sync.Mutex
		found   atomic.Bool
		results = make([]interface{}, 0, count)
	)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for ctx.Err() == nil && !found.Load() {
				res, err := f()
				if err != nil {
					return err
				}
				if res == nil {
					continue
				}
				mu.Lock()
				if len(results) < count {
					results = append(results, res)
				}
				if len(results) == count {
					found.Store(true)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Parallelize calls f(0), ..., f(count-1).
//
// At most Workers() calls run at the same time. The first error is returned
// once all started calls have finished.
func (p *Pool) Parallelize(count int, f func(int) error) error {
	if p == nil {
		return parallelizeAlone(f, count)
	}

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			return f(i)
		})
	}
	return g.Wait()
}

// LockedReader serializes reads from a shared io.Reader, so that workers can
// draw randomness from one source. Concurrent readers never see the same bytes.
type LockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{r: r}
}

func (l *LockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}
