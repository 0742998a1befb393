// Package filesystem defines the direct file API used by safops and its
// implementations. All paths are absolute.
package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// ReadFS defines read access by absolute path.
type ReadFS interface {
	Stat(path string) (fs.FileInfo, error)
	ReadDir(path string) ([]fs.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
}

// WriteFS defines the mutating operations.
type WriteFS interface {
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string, perm fs.FileMode) error
	Remove(path string) error
	Rename(oldpath, newpath string) error
	Chtimes(path string, mtime time.Time) error
}

// FileSystem combines read and write operations.
type FileSystem interface {
	ReadFS
	WriteFS
}

// FileWalker is implemented by filesystems with a faster recursive listing than
// repeated ReadDir calls.
type FileWalker interface {
	// WalkFiles calls fn for every non-directory entry below root.
	WalkFiles(root string, fn func(path string) error) error
}

// Exists reports whether path can be stat'ed.
func Exists(fsys ReadFS, path string) bool {
	_, err := fsys.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(fsys ReadFS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// IsNotExist reports whether err means the path is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
