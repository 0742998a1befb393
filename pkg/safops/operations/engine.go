// Package operations implements copy, move, delete, rename and stream access
// across direct, tree-granted and OTG storage.
package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// Gate defers work until a storage kind is granted.
type Gate interface {
	Run(ctx context.Context, kind core.StorageKind, fn func() error) error
}

// Deps are the collaborators of an Engine.
type Deps struct {
	FS         filesystem.FileSystem
	Classifier *storage.Classifier
	Resolver   *document.Resolver
	Provider   document.Provider
	Gate       Gate
	Index      *mediaindex.Synchronizer
	Config     *config.BaseConfig
	Notifier   Notifier
	Bus        core.EventBus
	// Workers bounds the background pool used by the Async variants.
	Workers int
	Logger  zerolog.Logger
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs file operations. Blocking methods are safe for concurrent use.
type Engine struct {
	deps Deps
	pool *Pool
}

// NewEngine creates an engine.
func NewEngine(deps Deps) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(deps.Logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &Engine{
		deps: deps,
		pool: NewPool(deps.Workers, deps.Logger),
	}
}

// Wait blocks until every background operation has finished.
func (e *Engine) Wait() {
	e.pool.Wait()
}

func (e *Engine) kind(path string) core.StorageKind {
	return e.deps.Classifier.Classify(path)
}

// exists reports whether path exists, asking the document provider for OTG paths.
func (e *Engine) exists(path string) bool {
	if e.kind(path) == core.KindOtg {
		doc, err := e.deps.Resolver.Resolve(path)
		return err == nil && doc.Exists()
	}
	return filesystem.Exists(e.deps.FS, path)
}

// finish logs and publishes the outcome of one operation and wraps err with context.
func (e *Engine) finish(ctx context.Context, op, path string, start time.Time, err error) error {
	kind := e.kind(path)
	err = core.WrapOperationError(op, path, kind, err)

	event := e.deps.Logger.Debug()
	if err != nil {
		event = e.deps.Logger.Warn().Err(err)
	}
	event.
		Str("op", op).
		Str("path", path).
		Str("kind", kind.String()).
		Dur("duration", time.Since(start)).
		Msg("operation finished")

	core.PublishEvent(ctx, e.deps.Bus, core.EventOperationCompleted, core.OperationEvent{
		Op:       op,
		Path:     path,
		Kind:     kind,
		Success:  err == nil,
		Err:      err,
		Duration: time.Since(start),
	})
	return err
}

// reportSecurity turns a security fault from the document provider into a
// user-visible message.
func (e *Engine) reportSecurity(err error) {
	if errors.Is(err, core.ErrSecurityRejected) {
		e.deps.Notifier.Error(fmt.Sprintf(MsgErrorOccurred, err), err)
	}
}

// applyLastModified sets the modification time of path after a rename: the
// original time when keep-last-modified is on, now otherwise. Failures are logged.
func (e *Engine) applyLastModified(path string, original time.Time) {
	when := e.deps.Now()
	if e.deps.Config.KeepLastModified() {
		if original.IsZero() {
			return
		}
		when = original
	}
	if err := e.deps.FS.Chtimes(path, when); err != nil {
		e.deps.Logger.Debug().
			Str("path", path).
			Err(err).
			Msg("could not update modification time")
	}
}
