package filesystem

import (
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
)

// OSFileSystem implements FileSystem and FileWalker using the OS filesystem
type OSFileSystem struct{}

// NewOSFileSystem creates a new OS-based filesystem
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// Stat implements ReadFS
func (osfs *OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// ReadDir implements ReadFS
func (osfs *OSFileSystem) ReadDir(path string) ([]fs.DirEntry, error) {
	return os.ReadDir(path)
}

// Open implements ReadFS
func (osfs *OSFileSystem) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Create implements WriteFS
func (osfs *OSFileSystem) Create(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// MkdirAll implements WriteFS
func (osfs *OSFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove implements WriteFS
func (osfs *OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// Rename implements WriteFS
func (osfs *OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Chtimes implements WriteFS. The access time is set to the modification time.
func (osfs *OSFileSystem) Chtimes(path string, mtime time.Time) error {
	return os.Chtimes(path, mtime, mtime)
}

// WalkFiles implements FileWalker. fastwalk invokes the callback from several
// goroutines, so results are collected under a lock and delivered in sorted order.
func (osfs *OSFileSystem) WalkFiles(root string, fn func(path string) error) error {
	var (
		mu    sync.Mutex
		files []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		mu.Lock()
		files = append(files, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	sort.Strings(files)
	for _, f := range files {
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
