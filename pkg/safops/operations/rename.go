package operations

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// Rename renames oldPath to newPath within the same directory tree and keeps the
// media index in step. On removable storage it renames through the document
// grant and fails with core.ErrIdentityMismatch when the provider silently
// ignores the request.
func (e *Engine) Rename(ctx context.Context, oldPath, newPath string) error {
	start := time.Now()
	var err error
	if kind := e.kind(newPath); kind.NeedsCapability() {
		err = e.deps.Gate.Run(ctx, kind, func() error {
			return e.renameDocument(ctx, kind, oldPath, newPath)
		})
		e.reportSecurity(err)
	} else {
		err = e.renameDirect(ctx, oldPath, newPath)
	}
	return e.finish(ctx, "rename", oldPath, start, err)
}

func (e *Engine) renameDocument(ctx context.Context, kind core.StorageKind, oldPath, newPath string) error {
	doc, err := e.deps.Resolver.Resolve(oldPath)
	if err != nil {
		return err
	}
	if kind != core.KindOtg {
		if info, err := e.deps.FS.Stat(oldPath); err == nil && info.IsDir() != doc.IsDirectory() {
			return fmt.Errorf("document for %s does not match the file type on disk", oldPath)
		}
	}

	original := doc.LastModified()
	uri, err := e.deps.Provider.RenameDocument(doc.URI(), path.Base(newPath))
	if err != nil {
		return err
	}
	if uri == doc.URI() {
		return core.ErrIdentityMismatch
	}

	e.deps.Index.Update(ctx, oldPath, newPath)
	if err := e.deps.Index.Rescan(ctx, []string{oldPath, newPath}); err != nil {
		e.deps.Logger.Warn().Err(err).Str("path", newPath).Msg("failed to rescan renamed document")
	}
	if kind != core.KindOtg {
		e.applyLastModified(newPath, original)
	}
	return nil
}

func (e *Engine) renameDirect(ctx context.Context, oldPath, newPath string) error {
	info, err := e.deps.FS.Stat(oldPath)
	if err != nil {
		return err
	}
	if filesystem.Exists(e.deps.FS, newPath) {
		return fmt.Errorf("%s: %w", newPath, core.ErrAlreadyExists)
	}

	var listed []string
	if info.IsDir() {
		listed, _ = filesystem.ListFiles(e.deps.FS, oldPath)
	}
	if err := e.deps.FS.Rename(oldPath, newPath); err != nil {
		return err
	}

	if info.IsDir() {
		// The old rows go first, then the new location is scanned as a whole.
		if err := e.deps.Index.Reindex(ctx, append(append(listed, oldPath), newPath)); err != nil {
			e.deps.Logger.Warn().Err(err).Str("path", newPath).Msg("failed to reindex renamed directory")
		}
		return nil
	}

	e.applyLastModified(newPath, info.ModTime())
	e.deps.Index.Update(ctx, oldPath, newPath)
	if err := e.deps.Index.Rescan(ctx, []string{newPath}); err != nil {
		e.deps.Logger.Warn().Err(err).Str("path", newPath).Msg("failed to rescan renamed file")
	}
	return nil
}
