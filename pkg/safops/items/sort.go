package items

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// SortKey is a set of sort flags.
type SortKey int

const (
	SortByName         SortKey = 1
	SortByDateModified SortKey = 2
	SortBySize         SortKey = 4
	SortByExtension    SortKey = 16
	SortDescending     SortKey = 1024
)

var (
	sortingMu sync.RWMutex
	sorting   = SortByName
)

// SetSorting replaces the process-wide sort key.
func SetSorting(key SortKey) {
	sortingMu.Lock()
	defer sortingMu.Unlock()
	sorting = key
}

// CurrentSorting returns the process-wide sort key.
func CurrentSorting() SortKey {
	sortingMu.RLock()
	defer sortingMu.RUnlock()
	return sorting
}

// Compare orders f before other under key. Directories always come first. Within
// the same type the active field decides, inverted when SortDescending is set.
// Remaining ties are broken by path so the order is total.
func (f FileDirItem) Compare(other FileDirItem, key SortKey) int {
	if f.IsDirectory != other.IsDirectory {
		if f.IsDirectory {
			return -1
		}
		return 1
	}

	var result int
	switch {
	case key&SortByName != 0:
		result = strings.Compare(strings.ToLower(f.Name), strings.ToLower(other.Name))
	case key&SortBySize != 0:
		result = cmp.Compare(f.Size, other.Size)
	case key&SortByDateModified != 0:
		result = f.ModTime.Compare(other.ModTime)
	default:
		result = strings.Compare(strings.ToLower(f.Extension()), strings.ToLower(other.Extension()))
	}
	if key&SortDescending != 0 {
		result = -result
	}
	if result != 0 {
		return result
	}
	return strings.Compare(f.Path, other.Path)
}

// Sort orders list in place under key.
func Sort(list []FileDirItem, key SortKey) {
	slices.SortStableFunc(list, func(a, b FileDirItem) int {
		return a.Compare(b, key)
	})
}

// SortCurrent sorts under a single snapshot of the process-wide key.
func SortCurrent(list []FileDirItem) SortKey {
	key := CurrentSorting()
	Sort(list, key)
	return key
}
