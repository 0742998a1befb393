package operations

import (
	"errors"
	"fmt"
	"sync"
)

// BatchResult is the aggregate outcome of a bulk operation, indexed by the
// position of each item in the request.
type BatchResult struct {
	Succeeded []bool
	Errs      []error
}

// AllSucceeded reports whether every item succeeded. An empty batch succeeds.
func (r BatchResult) AllSucceeded() bool {
	for _, ok := range r.Succeeded {
		if !ok {
			return false
		}
	}
	return true
}

// Count returns the number of successful items.
func (r BatchResult) Count() int {
	n := 0
	for _, ok := range r.Succeeded {
		if ok {
			n++
		}
	}
	return n
}

// Err joins the errors of failed items, or returns nil when all succeeded.
func (r BatchResult) Err() error {
	if r.AllSucceeded() {
		return nil
	}
	errs := []error{fmt.Errorf("%d of %d items failed", len(r.Succeeded)-r.Count(), len(r.Succeeded))}
	for _, err := range r.Errs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Tracker collects one report per item index and fires its callback exactly once,
// after every index has reported, regardless of arrival order.
type Tracker struct {
	mu       sync.Mutex
	result   BatchResult
	reported []bool
	pending  int
	done     func(BatchResult)
}

// NewTracker creates a tracker for n items. With n == 0 done fires immediately.
func NewTracker(n int, done func(BatchResult)) *Tracker {
	t := &Tracker{
		result: BatchResult{
			Succeeded: make([]bool, n),
			Errs:      make([]error, n),
		},
		reported: make([]bool, n),
		pending:  n,
		done:     done,
	}
	if n == 0 && done != nil {
		done(t.result)
	}
	return t
}

// Report records the outcome of item i. Repeated or out-of-range reports are ignored.
func (t *Tracker) Report(i int, err error) {
	t.mu.Lock()
	if i < 0 || i >= len(t.reported) || t.reported[i] {
		t.mu.Unlock()
		return
	}
	t.reported[i] = true
	t.result.Succeeded[i] = err == nil
	t.result.Errs[i] = err
	t.pending--
	fire := t.pending == 0
	result := t.result
	t.mu.Unlock()

	if fire && t.done != nil {
		t.done(result)
	}
}
