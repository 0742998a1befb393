package operations

import (
	"context"
	"sync"

	"github.com/arthur-debert/safops/pkg/safops/items"
)

// submit runs fn on the background pool and passes its error to done exactly
// once, including when the pool rejects the work or fn panics.
func (e *Engine) submit(ctx context.Context, fn func(ctx context.Context) error, done func(err error)) {
	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			if done != nil {
				done(err)
			}
		})
	}
	if err := e.pool.Go(ctx, func(ctx context.Context) { finish(fn(ctx)) }, finish); err != nil {
		finish(err)
	}
}

// DeleteFileAsync runs DeleteFile in the background and reports success to done.
func (e *Engine) DeleteFileAsync(ctx context.Context, item items.FileDirItem, allowFolderDelete bool, done func(ok bool)) {
	e.submit(ctx, func(ctx context.Context) error {
		return e.DeleteFile(ctx, item, allowFolderDelete)
	}, func(err error) {
		if done != nil {
			done(err == nil)
		}
	})
}

// DeleteFilesAsync runs DeleteFiles in the background. done fires once with the
// aggregate result.
func (e *Engine) DeleteFilesAsync(ctx context.Context, list []items.FileDirItem, allowFolderDelete bool, done func(BatchResult)) {
	var result BatchResult
	e.submit(ctx, func(ctx context.Context) error {
		result = e.DeleteFiles(ctx, list, allowFolderDelete)
		return nil
	}, func(err error) {
		if err != nil {
			result = failedBatch(len(list), err)
		}
		if done != nil {
			done(result)
		}
	})
}

// DeleteFolderAsync runs DeleteFolder in the background.
func (e *Engine) DeleteFolderAsync(ctx context.Context, folder items.FileDirItem, mediaOnly bool, done func(ok bool)) {
	e.submit(ctx, func(ctx context.Context) error {
		return e.DeleteFolder(ctx, folder, mediaOnly)
	}, func(err error) {
		if done != nil {
			done(err == nil)
		}
	})
}

// RenameAsync runs Rename in the background.
func (e *Engine) RenameAsync(ctx context.Context, oldPath, newPath string, done func(ok bool)) {
	e.submit(ctx, func(ctx context.Context) error {
		return e.Rename(ctx, oldPath, newPath)
	}, func(err error) {
		if done != nil {
			done(err == nil)
		}
	})
}

// CopyMoveAsync runs CopyMove in the background. done receives the result and
// whether every item made it.
func (e *Engine) CopyMoveAsync(ctx context.Context, req TransferRequest, done func(result TransferResult, ok bool)) {
	result := TransferResult{CopyOnly: req.CopyOnly, Outcome: OutcomeFailed}
	e.submit(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.CopyMove(ctx, req)
		return err
	}, func(err error) {
		if err != nil && result.Err == nil && len(result.Batch.Succeeded) == 0 {
			result.Err = err
		}
		if done != nil {
			done(result, err == nil)
		}
	})
}

func failedBatch(n int, err error) BatchResult {
	result := BatchResult{Succeeded: make([]bool, n), Errs: make([]error, n)}
	for i := range result.Errs {
		result.Errs[i] = err
	}
	return result
}
