package operations

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/items"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// OpenReader opens p for reading. Removable storage is read directly when the
// platform allows it and through the document grant otherwise.
func (e *Engine) OpenReader(ctx context.Context, p string) (io.ReadCloser, error) {
	kind := e.kind(p)
	if kind != core.KindOtg {
		r, err := e.deps.FS.Open(p)
		if err == nil || !kind.NeedsCapability() {
			return r, core.WrapOperationError("open", p, kind, err)
		}
	}

	var r io.ReadCloser
	err := e.deps.Gate.Run(ctx, kind, func() error {
		doc, err := e.deps.Resolver.Resolve(p)
		if err != nil {
			return err
		}
		r, err = doc.OpenReader()
		return err
	})
	return r, core.WrapOperationError("open", p, kind, err)
}

// OpenWriter opens p for writing, creating or truncating it. On removable storage
// a missing file is created in its parent document first.
func (e *Engine) OpenWriter(ctx context.Context, p string) (io.WriteCloser, error) {
	kind := e.kind(p)
	if !kind.NeedsCapability() {
		w, err := e.deps.FS.Create(p)
		return w, core.WrapOperationError("create", p, kind, err)
	}

	var w io.WriteCloser
	err := e.deps.Gate.Run(ctx, kind, func() error {
		doc, err := e.deps.Resolver.Resolve(p)
		if document.IsNotFound(err) {
			parent, perr := e.deps.Resolver.ResolveParent(p)
			if perr != nil {
				return perr
			}
			doc, err = parent.CreateFile("", path.Base(p))
		}
		if err != nil {
			e.deps.Notifier.Error(fmt.Sprintf(MsgCouldNotCreateFile, p), err)
			return err
		}
		w, err = doc.OpenWriter()
		return err
	})
	return w, core.WrapOperationError("create", p, kind, err)
}

// CreateDirectory creates the directory p. An existing directory is not an error.
// On removable storage only the last segment is created, so the parent must exist.
func (e *Engine) CreateDirectory(ctx context.Context, p string) error {
	start := time.Now()
	err := e.createDirectory(ctx, p)
	e.reportSecurity(err)
	return e.finish(ctx, "mkdir", p, start, err)
}

func (e *Engine) createDirectory(ctx context.Context, p string) error {
	if e.exists(p) {
		return nil
	}
	kind := e.kind(p)
	if !kind.NeedsCapability() {
		return e.deps.FS.MkdirAll(p, 0755)
	}
	return e.deps.Gate.Run(ctx, kind, func() error {
		parent, err := e.deps.Resolver.ResolveParent(p)
		if err != nil {
			return err
		}
		_, err = parent.CreateDirectory(path.Base(p))
		return err
	})
}

// List returns the direct children of dir. A missing dir yields an error wrapping
// core.ErrNotFound.
func (e *Engine) List(ctx context.Context, dir string) ([]items.FileDirItem, error) {
	kind := e.kind(dir)
	if kind == core.KindOtg {
		return e.listDocuments(ctx, dir)
	}

	entries, err := e.deps.FS.ReadDir(dir)
	if filesystem.IsNotExist(err) {
		return nil, core.WrapOperationError("list", dir, kind, fmt.Errorf("%w: %v", core.ErrNotFound, err))
	}
	if err != nil {
		return nil, core.WrapOperationError("list", dir, kind, err)
	}

	list := make([]items.FileDirItem, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		item := items.FromFileInfo(dir, info)
		if item.IsDirectory {
			if children, err := e.deps.FS.ReadDir(item.Path); err == nil {
				item.Children = len(children)
			}
		}
		list = append(list, item)
	}
	return list, nil
}

func (e *Engine) listDocuments(ctx context.Context, dir string) ([]items.FileDirItem, error) {
	var list []items.FileDirItem
	err := e.deps.Gate.Run(ctx, core.KindOtg, func() error {
		doc, err := e.deps.Resolver.Resolve(dir)
		if err != nil {
			return err
		}
		children, err := doc.ListFiles()
		if err != nil {
			return err
		}
		for _, child := range children {
			item := items.FileDirItem{
				Path:        storage.Join(dir, child.Name()),
				Name:        child.Name(),
				IsDirectory: child.IsDirectory(),
				ModTime:     child.LastModified(),
			}
			if item.IsDirectory {
				if grand, err := child.ListFiles(); err == nil {
					item.Children = len(grand)
				}
			} else {
				item.Size = child.Size()
			}
			list = append(list, item)
		}
		return nil
	})
	return list, core.WrapOperationError("list", dir, core.KindOtg, err)
}

// ProperSize returns the size of item, summing every file below it for
// directories. Hidden entries are skipped unless countHidden is set. OTG items are
// measured through the document provider.
func (e *Engine) ProperSize(ctx context.Context, item items.FileDirItem, countHidden bool) (int64, error) {
	if e.kind(item.Path) == core.KindOtg {
		var size int64
		err := e.deps.Gate.Run(ctx, core.KindOtg, func() error {
			doc, err := e.deps.Resolver.Resolve(item.Path)
			if err != nil {
				return err
			}
			size, err = document.TreeSize(doc, countHidden)
			return err
		})
		return size, core.WrapOperationError("size", item.Path, core.KindOtg, err)
	}

	info, err := e.deps.FS.Stat(item.Path)
	if filesystem.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, core.WrapOperationError("size", item.Path, e.kind(item.Path), err)
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	files, err := filesystem.ListFiles(e.deps.FS, item.Path)
	if err != nil {
		return 0, core.WrapOperationError("size", item.Path, e.kind(item.Path), err)
	}
	root := strings.TrimRight(item.Path, "/")
	var size int64
	for _, f := range files {
		if !countHidden && isHidden(strings.TrimPrefix(f, root+"/")) {
			continue
		}
		if info, err := e.deps.FS.Stat(f); err == nil {
			size += info.Size()
		}
	}
	return size, nil
}

func isHidden(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}
