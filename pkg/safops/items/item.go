// Package items holds the FileDirItem value object and its ordering.
package items

import (
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// DateFormat is used for modification dates in bubble texts.
const DateFormat = "02.01.2006 15:04"

// FileDirItem is one filesystem entry. Children and Size may be recomputed lazily;
// everything else is fixed at construction.
type FileDirItem struct {
	Path        string
	Name        string
	IsDirectory bool
	Children    int
	Size        int64
	ModTime     time.Time
}

// New creates an item for p named after its last segment.
func New(p string, isDirectory bool) FileDirItem {
	return FileDirItem{Path: p, Name: path.Base(strings.TrimRight(p, "/")), IsDirectory: isDirectory}
}

// FromFileInfo creates an item for the entry info inside dir. Children is left at
// zero for directories.
func FromFileInfo(dir string, info fs.FileInfo) FileDirItem {
	item := FileDirItem{
		Path:        storage.Join(dir, info.Name()),
		Name:        info.Name(),
		IsDirectory: info.IsDir(),
		ModTime:     info.ModTime(),
	}
	if !info.IsDir() {
		item.Size = info.Size()
	}
	return item
}

// Extension returns the extension without the dot. A directory's extension is its name.
func (f FileDirItem) Extension() string {
	if f.IsDirectory {
		return f.Name
	}
	return strings.TrimPrefix(path.Ext(f.Name), ".")
}

func (f FileDirItem) ParentPath() string {
	return storage.ParentPath(f.Path)
}

// BubbleText is the label shown for the field the list is sorted by.
func (f FileDirItem) BubbleText(key SortKey) string {
	switch {
	case key&SortBySize != 0:
		return humanize.IBytes(uint64(max(f.Size, 0)))
	case key&SortByDateModified != 0:
		return f.ModTime.Format(DateFormat)
	case key&SortByExtension != 0:
		return strings.ToLower(f.Extension())
	default:
		return f.Name
	}
}
