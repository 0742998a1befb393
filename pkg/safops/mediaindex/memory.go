package mediaindex

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// Entry is one row of a MemoryIndex.
type Entry struct {
	Path       string
	Name       string
	Collection Collection
}

// MemoryIndex is an Index held in memory. Scans run asynchronously and report
// completions from their own goroutines, the way a platform scanner does.
type MemoryIndex struct {
	fsys filesystem.ReadFS

	mu      sync.RWMutex
	entries map[string]Entry
	scans   int
	wg      sync.WaitGroup
}

// NewMemoryIndex creates an empty index backed by fsys for scans.
func NewMemoryIndex(fsys filesystem.ReadFS) *MemoryIndex {
	return &MemoryIndex{
		fsys:    fsys,
		entries: make(map[string]Entry),
	}
}

// Put adds a row for p without checking the filesystem.
func (m *MemoryIndex) Put(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p] = m.entryFor(p)
}

// Has reports whether p has a row.
func (m *MemoryIndex) Has(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[p]
	return ok
}

// Get returns the row for p.
func (m *MemoryIndex) Get(p string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[p]
	return e, ok
}

// Paths returns every indexed path, sorted.
func (m *MemoryIndex) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Scans returns how many Scan calls were made.
func (m *MemoryIndex) Scans() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scans
}

// Wait blocks until every scan started so far has finished.
func (m *MemoryIndex) Wait() {
	m.wg.Wait()
}

// DeleteByPath implements Index
func (m *MemoryIndex) DeleteByPath(_ context.Context, p string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[p]; !ok {
		return 0, nil
	}
	delete(m.entries, p)
	return 1, nil
}

// UpdatePath implements Index
func (m *MemoryIndex) UpdatePath(_ context.Context, oldPath, newPath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[oldPath]; !ok {
		return 0, nil
	}
	delete(m.entries, oldPath)
	m.entries[newPath] = m.entryFor(newPath)
	return 1, nil
}

// Scan implements Index. Each path is scanned on its own goroutine: existing
// files gain a row, missing ones lose theirs.
func (m *MemoryIndex) Scan(_ context.Context, paths []string, onScanned func(path string)) error {
	m.mu.Lock()
	m.scans++
	m.mu.Unlock()

	for _, p := range paths {
		m.wg.Add(1)
		go func(p string) {
			defer m.wg.Done()
			info, err := m.fsys.Stat(p)
			exists := err == nil && !info.IsDir()
			var entry Entry
			if exists {
				entry = m.entryFor(p)
			}

			m.mu.Lock()
			if exists {
				m.entries[p] = entry
			} else {
				delete(m.entries, p)
			}
			m.mu.Unlock()

			if onScanned != nil {
				onScanned(p)
			}
		}(p)
	}
	return nil
}

func (m *MemoryIndex) entryFor(p string) Entry {
	return Entry{Path: p, Name: path.Base(p), Collection: CollectionFor(m.fsys, p)}
}
