package operations

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/arthur-debert/safops/pkg/safops/core"
)

// Pool runs background work on at most a fixed number of goroutines. Submitting
// blocks while the pool is full.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// NewPool creates a pool of the given size.
func NewPool(workers int, logger zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(workers)),
		logger: logger,
	}
}

// Go runs fn once a worker is free. It returns ctx.Err() if ctx is done first, in
// which case fn never runs. A panic in fn is recovered and handed to onPanic
// wrapped in core.ErrUnexpected.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context), onPanic func(err error)) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("%w: %v", core.ErrUnexpected, r)
				p.logger.Error().Err(err).Msg("background operation panicked")
				if onPanic != nil {
					onPanic(err)
				}
			}
		}()
		fn(ctx)
	}()
	return nil
}

// Wait blocks until all submitted work has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
