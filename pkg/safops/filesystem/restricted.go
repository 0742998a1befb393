package filesystem

import (
	"io"
	"io/fs"
	"strings"
	"sync"
	"time"
)

// Restricted wraps a FileSystem and rejects direct mutation under a set of roots.
// It reproduces a platform where removable media is readable by path but writable
// only through document grants. Reads always pass through.
type Restricted struct {
	FileSystem
	mu    sync.RWMutex
	roots []string
}

// NewRestricted creates a restricted view of fsys. Empty roots are ignored.
func NewRestricted(fsys FileSystem, roots ...string) *Restricted {
	r := &Restricted{FileSystem: fsys}
	for _, root := range roots {
		r.AddRoot(root)
	}
	return r
}

// AddRoot adds another write-protected root.
func (r *Restricted) AddRoot(root string) {
	root = strings.TrimRight(root, "/")
	if root == "" {
		return
	}
	r.mu.Lock()
	r.roots = append(r.roots, root)
	r.mu.Unlock()
}

func (r *Restricted) denied(op, p string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, root := range r.roots {
		if p == root || strings.HasPrefix(p, root+"/") {
			return &fs.PathError{Op: op, Path: p, Err: fs.ErrPermission}
		}
	}
	return nil
}

// Create implements WriteFS
func (r *Restricted) Create(p string) (io.WriteCloser, error) {
	if err := r.denied("create", p); err != nil {
		return nil, err
	}
	return r.FileSystem.Create(p)
}

// MkdirAll implements WriteFS
func (r *Restricted) MkdirAll(p string, perm fs.FileMode) error {
	if err := r.denied("mkdirall", p); err != nil {
		return err
	}
	return r.FileSystem.MkdirAll(p, perm)
}

// Remove implements WriteFS
func (r *Restricted) Remove(p string) error {
	if err := r.denied("remove", p); err != nil {
		return err
	}
	return r.FileSystem.Remove(p)
}

// Rename implements WriteFS
func (r *Restricted) Rename(oldpath, newpath string) error {
	if err := r.denied("rename", oldpath); err != nil {
		return err
	}
	if err := r.denied("rename", newpath); err != nil {
		return err
	}
	return r.FileSystem.Rename(oldpath, newpath)
}

// Chtimes implements WriteFS
func (r *Restricted) Chtimes(p string, mtime time.Time) error {
	if err := r.denied("chtimes", p); err != nil {
		return err
	}
	return r.FileSystem.Chtimes(p, mtime)
}

// WalkFiles forwards to the wrapped filesystem when it can walk.
func (r *Restricted) WalkFiles(root string, fn func(path string) error) error {
	if walker, ok := r.FileSystem.(FileWalker); ok {
		return walker.WalkFiles(root, fn)
	}
	return walkDir(r.FileSystem, root, fn)
}
