package operations_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/operations"
)

func TestTrackerFiresOnceAfterAllReports(t *testing.T) {
	var fired int
	var got operations.BatchResult
	tracker := operations.NewTracker(3, func(r operations.BatchResult) {
		fired++
		got = r
	})

	tracker.Report(2, nil)
	tracker.Report(0, nil)
	assert.Zero(t, fired, "waits for every index")
	tracker.Report(0, errors.New("late duplicate"))
	tracker.Report(7, nil)
	assert.Zero(t, fired, "duplicates and unknown indices do not count")

	tracker.Report(1, errors.New("boom"))
	assert.Equal(t, 1, fired)
	assert.Equal(t, []bool{true, false, true}, got.Succeeded)
	assert.False(t, got.AllSucceeded())

	tracker.Report(1, nil)
	assert.Equal(t, 1, fired)
}

func TestTrackerConcurrentReports(t *testing.T) {
	const n = 64
	var fired atomic.Int32
	done := make(chan operations.BatchResult, 1)
	tracker := operations.NewTracker(n, func(r operations.BatchResult) {
		fired.Add(1)
		done <- r
	})

	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Report(i, nil)
		}()
	}
	wg.Wait()

	assert.True(t, (<-done).AllSucceeded())
	assert.Equal(t, int32(1), fired.Load())
}

func TestTrackerEmpty(t *testing.T) {
	fired := false
	operations.NewTracker(0, func(r operations.BatchResult) {
		fired = true
		assert.True(t, r.AllSucceeded())
	})
	assert.True(t, fired)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := operations.NewPool(2, zerolog.Nop())
	var running, peak atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 6)

	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		for i := 0; i < 6; i++ {
			_ = pool.Go(context.Background(), func(context.Context) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				started <- struct{}{}
				<-release
				running.Add(-1)
			}, nil)
		}
	}()

	<-started
	<-started
	assert.Equal(t, int32(2), running.Load(), "the third submission waits for a free worker")
	close(release)
	<-submitted
	pool.Wait()
	assert.Equal(t, int32(2), peak.Load())
}

func TestPoolRecoversPanics(t *testing.T) {
	pool := operations.NewPool(1, zerolog.Nop())
	errs := make(chan error, 1)

	require.NoError(t, pool.Go(context.Background(), func(context.Context) {
		panic("boom")
	}, func(err error) {
		errs <- err
	}))
	assert.True(t, errors.Is(<-errs, core.ErrUnexpected))
	pool.Wait()
}

func TestPoolRejectsCancelledContext(t *testing.T) {
	pool := operations.NewPool(1, zerolog.Nop())
	block := make(chan struct{})
	require.NoError(t, pool.Go(context.Background(), func(context.Context) { <-block }, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pool.Go(ctx, func(context.Context) { t.Error("must not run") }, nil)
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	pool.Wait()
}
