package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"credgate/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes   int32
	Errors      int32
	Unavailable int32
	NotFounds   int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Unavailable + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines and collects results.
// Errors are bucketed into unavailable, not_found, or generic error.
// All goroutines are released together so they contend on the same code path.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, unavailable, notFounds atomic.Int32
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrUnavailable):
				unavailable.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:   successes.Load(),
		Errors:      errs.Load(),
		Unavailable: unavailable.Load(),
		NotFounds:   notFounds.Load(),
	}
}

// RunConcurrentValues executes fn in parallel and collects every returned value.
// Use it for credential getters where callers must observe the same value.
func RunConcurrentValues(goroutines int, fn func(idx int) (string, bool)) []string {
	var wg sync.WaitGroup
	var mu sync.Mutex
	start := make(chan struct{})
	values := make([]string, 0, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, ok := fn(idx)
			if !ok {
				return
			}
			mu.Lock()
			values = append(values, v)
			mu.Unlock()
		}(i)
	}

	close(start)
	wg.Wait()
	return values
}
