package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/items"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
)

// DeleteFile removes item. A path that is already gone counts as deleted.
// Directories that can be written directly are removed with their contents.
// When the direct delete is refused on removable storage the document grant is
// used instead, requesting it from the user if necessary, and a directory is
// only deleted that way when allowFolderDelete is set.
func (e *Engine) DeleteFile(ctx context.Context, item items.FileDirItem, allowFolderDelete bool) error {
	start := time.Now()
	err := e.deleteFile(ctx, item.Path, allowFolderDelete)
	return e.finish(ctx, "delete", item.Path, start, err)
}

func (e *Engine) deleteFile(ctx context.Context, p string, allowFolderDelete bool) error {
	kind := e.kind(p)

	var listed []string
	if kind != core.KindOtg {
		listed, _ = filesystem.ListFiles(e.deps.FS, p)
		err := e.deleteDirect(p)
		if err == nil {
			e.reindexDeleted(ctx, p, listed)
			return nil
		}
		if !kind.NeedsCapability() {
			return err
		}
		e.deps.Logger.Debug().
			Str("path", p).
			Err(err).
			Msg("direct delete refused, using document grant")
	}

	err := e.deps.Gate.Run(ctx, kind, func() error {
		return e.deleteDocument(p, allowFolderDelete)
	})
	if err != nil {
		e.reportSecurity(err)
		return err
	}
	e.reindexDeleted(ctx, p, listed)
	return nil
}

func (e *Engine) deleteDirect(p string) error {
	info, err := e.deps.FS.Stat(p)
	if filesystem.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	err = e.deps.FS.Remove(p)
	if err == nil || filesystem.IsNotExist(err) {
		return nil
	}
	if info.IsDir() && !errors.Is(err, fs.ErrPermission) {
		return removeTree(e.deps.FS, p)
	}
	return err
}

func (e *Engine) deleteDocument(p string, allowFolderDelete bool) error {
	if doc, err := e.deps.Resolver.ResolveFast(p); err == nil && doc.IsFile() {
		if err := doc.Delete(); err == nil {
			return nil
		}
	}

	doc, err := e.deps.Resolver.Resolve(p)
	if document.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !doc.IsFile() && !allowFolderDelete {
		return fmt.Errorf("%s is a directory and folder delete is not allowed", p)
	}
	if err := doc.Delete(); err != nil && !document.IsNotFound(err) {
		return err
	}
	return nil
}

// reindexDeleted drops the index rows of p and of every file that was listed
// below it before the delete.
func (e *Engine) reindexDeleted(ctx context.Context, p string, listed []string) {
	var err error
	if len(listed) == 0 || (len(listed) == 1 && listed[0] == p) {
		err = e.deps.Index.Remove(ctx, p)
	} else {
		err = e.deps.Index.Reindex(ctx, append(listed, p))
	}
	if err != nil {
		e.deps.Logger.Warn().
			Str("path", p).
			Err(err).
			Msg("failed to update media index after delete")
	}
}

// DeleteFiles deletes every item and reports per-item outcomes. Items are deleted
// concurrently, bounded by the worker count.
func (e *Engine) DeleteFiles(ctx context.Context, list []items.FileDirItem, allowFolderDelete bool) BatchResult {
	var result BatchResult
	tracker := NewTracker(len(list), func(r BatchResult) {
		result = r
	})

	var g errgroup.Group
	g.SetLimit(e.deps.Workers)
	for i, item := range list {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("%w: %v", core.ErrUnexpected, r)
					e.deps.Logger.Error().Str("path", item.Path).Err(err).Msg("delete panicked")
					tracker.Report(i, err)
				}
			}()
			tracker.Report(i, e.DeleteFile(ctx, item, allowFolderDelete))
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// DeleteFolder deletes the direct children of folder, or only its media files
// when mediaOnly is set, and then folder itself if it ended up empty. Children
// that cannot be deleted are logged and skipped.
func (e *Engine) DeleteFolder(ctx context.Context, folder items.FileDirItem, mediaOnly bool) error {
	children, err := e.List(ctx, folder.Path)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, child := range children {
		if mediaOnly && (child.IsDirectory || !mediaindex.IsMediaFast(child.Path)) {
			continue
		}
		if err := e.DeleteFile(ctx, child, false); err != nil {
			e.deps.Logger.Debug().
				Str("path", child.Path).
				Err(err).
				Msg("skipping child that could not be deleted")
		}
	}

	remaining, err := e.List(ctx, folder.Path)
	if err != nil || len(remaining) > 0 {
		return nil
	}
	return e.DeleteFile(ctx, folder, true)
}

// removeTree deletes p and everything below it, deepest first. A child that
// cannot be removed does not stop the walk; the errors are joined.
func removeTree(fsys filesystem.FileSystem, p string) error {
	info, err := fsys.Stat(p)
	if filesystem.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := fsys.ReadDir(p)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		var errs []error
		for _, name := range names {
			if err := removeTree(fsys, path.Join(p, name)); err != nil {
				errs = append(errs, err)
			}
		}
		if err := fsys.Remove(p); err != nil && !filesystem.IsNotExist(err) {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	if err := fsys.Remove(p); err != nil && !filesystem.IsNotExist(err) {
		return err
	}
	return nil
}
