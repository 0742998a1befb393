package filesystem

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"syscall"
	"testing/fstest"
	"time"
)

// TestFileSystem is an in-memory FileSystem built on fstest.MapFS. It accepts
// absolute paths, is safe for concurrent use and supports fault injection.
// Parent directories of stored files are synthesized the way MapFS does.
type TestFileSystem struct {
	mu     sync.RWMutex
	files  fstest.MapFS
	faults map[string]error
}

// NewTestFileSystem creates an empty test filesystem
func NewTestFileSystem() *TestFileSystem {
	return &TestFileSystem{
		files:  make(fstest.MapFS),
		faults: make(map[string]error),
	}
}

func mapKey(p string) string {
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return "."
	}
	return cleaned[1:]
}

func faultKey(op, p string) string {
	return op + "\x00" + mapKey(p)
}

// FailOn makes the given operation on path return err. Supported operations are
// stat, readdir, open, create, mkdirall, remove, rename (matched on the old path)
// and chtimes.
func (tfs *TestFileSystem) FailOn(op, p string, err error) {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	tfs.faults[faultKey(op, p)] = err
}

// ClearFaults removes every injected fault.
func (tfs *TestFileSystem) ClearFaults() {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	tfs.faults = make(map[string]error)
}

func (tfs *TestFileSystem) fault(op, p string) error {
	if err, ok := tfs.faults[faultKey(op, p)]; ok {
		return &fs.PathError{Op: op, Path: p, Err: err}
	}
	return nil
}

// WriteFile stores a file without any parent checks. Intended for test setup.
func (tfs *TestFileSystem) WriteFile(p string, data []byte, modTime time.Time) {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	tfs.files[mapKey(p)] = &fstest.MapFile{Data: data, Mode: 0644, ModTime: modTime}
}

// ReadFile returns a copy of a stored file's content.
func (tfs *TestFileSystem) ReadFile(p string) ([]byte, error) {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	return tfs.files.ReadFile(mapKey(p))
}

// Paths returns every stored entry as an absolute path, sorted.
func (tfs *TestFileSystem) Paths() []string {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	paths := make([]string, 0, len(tfs.files))
	for k := range tfs.files {
		paths = append(paths, "/"+k)
	}
	sort.Strings(paths)
	return paths
}

// Stat implements ReadFS
func (tfs *TestFileSystem) Stat(p string) (fs.FileInfo, error) {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	if err := tfs.fault("stat", p); err != nil {
		return nil, err
	}
	return tfs.files.Stat(mapKey(p))
}

// ReadDir implements ReadFS
func (tfs *TestFileSystem) ReadDir(p string) ([]fs.DirEntry, error) {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	if err := tfs.fault("readdir", p); err != nil {
		return nil, err
	}
	return tfs.files.ReadDir(mapKey(p))
}

// Open implements ReadFS. The returned reader holds a copy of the content.
func (tfs *TestFileSystem) Open(p string) (io.ReadCloser, error) {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	if err := tfs.fault("open", p); err != nil {
		return nil, err
	}
	data, err := tfs.files.ReadFile(mapKey(p))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create implements WriteFS. Content becomes visible when the writer is closed.
func (tfs *TestFileSystem) Create(p string) (io.WriteCloser, error) {
	tfs.mu.RLock()
	defer tfs.mu.RUnlock()
	if err := tfs.fault("create", p); err != nil {
		return nil, err
	}
	k := mapKey(p)
	if !tfs.isDirLocked(mapKey(path.Dir("/" + k))) {
		return nil, &fs.PathError{Op: "create", Path: p, Err: fs.ErrNotExist}
	}
	if tfs.isDirLocked(k) {
		return nil, &fs.PathError{Op: "create", Path: p, Err: syscall.EISDIR}
	}
	return &memWriter{tfs: tfs, key: k}, nil
}

// MkdirAll implements WriteFS
func (tfs *TestFileSystem) MkdirAll(p string, perm fs.FileMode) error {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	if err := tfs.fault("mkdirall", p); err != nil {
		return err
	}
	k := mapKey(p)
	for a := k; a != "."; a = mapKey(path.Dir("/" + a)) {
		if f, ok := tfs.files[a]; ok && !f.Mode.IsDir() {
			return &fs.PathError{Op: "mkdirall", Path: p, Err: syscall.ENOTDIR}
		}
	}
	if tfs.isDirLocked(k) {
		return nil
	}
	tfs.files[k] = &fstest.MapFile{Mode: fs.ModeDir | perm, ModTime: time.Now()}
	return nil
}

// Remove implements WriteFS
func (tfs *TestFileSystem) Remove(p string) error {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	if err := tfs.fault("remove", p); err != nil {
		return err
	}
	k := mapKey(p)
	if tfs.hasChildrenLocked(k) {
		return &fs.PathError{Op: "remove", Path: p, Err: syscall.ENOTEMPTY}
	}
	if _, ok := tfs.files[k]; !ok {
		return &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist}
	}
	tfs.keepParentLocked(k)
	delete(tfs.files, k)
	return nil
}

// Rename implements WriteFS. Directories move with all of their descendants.
func (tfs *TestFileSystem) Rename(oldpath, newpath string) error {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	if err := tfs.fault("rename", oldpath); err != nil {
		return err
	}
	oldKey, newKey := mapKey(oldpath), mapKey(newpath)
	_, explicit := tfs.files[oldKey]
	if !explicit && !tfs.hasChildrenLocked(oldKey) {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	if _, ok := tfs.files[newKey]; ok || tfs.hasChildrenLocked(newKey) {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrExist}
	}
	if !tfs.isDirLocked(mapKey(path.Dir("/" + newKey))) {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrNotExist}
	}

	tfs.keepParentLocked(oldKey)
	for k, f := range tfs.files {
		if k == oldKey {
			delete(tfs.files, k)
			tfs.files[newKey] = f
		} else if strings.HasPrefix(k, oldKey+"/") {
			delete(tfs.files, k)
			tfs.files[newKey+k[len(oldKey):]] = f
		}
	}
	return nil
}

// Chtimes implements WriteFS
func (tfs *TestFileSystem) Chtimes(p string, mtime time.Time) error {
	tfs.mu.Lock()
	defer tfs.mu.Unlock()
	if err := tfs.fault("chtimes", p); err != nil {
		return err
	}
	k := mapKey(p)
	if f, ok := tfs.files[k]; ok {
		updated := *f
		updated.ModTime = mtime
		tfs.files[k] = &updated
		return nil
	}
	if tfs.hasChildrenLocked(k) {
		tfs.files[k] = &fstest.MapFile{Mode: fs.ModeDir | 0755, ModTime: mtime}
		return nil
	}
	return &fs.PathError{Op: "chtimes", Path: p, Err: fs.ErrNotExist}
}

// keepParentLocked makes the parent of k explicit so that it survives losing its
// last child, as directories on disk do.
func (tfs *TestFileSystem) keepParentLocked(k string) {
	parent := mapKey(path.Dir("/" + k))
	if parent == "." {
		return
	}
	if _, ok := tfs.files[parent]; !ok {
		tfs.files[parent] = &fstest.MapFile{Mode: fs.ModeDir | 0755, ModTime: time.Now()}
	}
}

func (tfs *TestFileSystem) isDirLocked(k string) bool {
	if k == "." {
		return true
	}
	if f, ok := tfs.files[k]; ok {
		return f.Mode.IsDir()
	}
	return tfs.hasChildrenLocked(k)
}

func (tfs *TestFileSystem) hasChildrenLocked(k string) bool {
	prefix := k + "/"
	if k == "." {
		return len(tfs.files) > 0
	}
	for other := range tfs.files {
		if strings.HasPrefix(other, prefix) {
			return true
		}
	}
	return false
}

type memWriter struct {
	tfs    *TestFileSystem
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.closed {
		return fs.ErrClosed
	}
	w.closed = true
	w.tfs.mu.Lock()
	defer w.tfs.mu.Unlock()
	w.tfs.files[w.key] = &fstest.MapFile{Data: w.buf.Bytes(), Mode: 0644, ModTime: time.Now()}
	return nil
}
