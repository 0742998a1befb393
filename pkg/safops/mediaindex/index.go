// Package mediaindex keeps the platform media index consistent with the
// filesystem after deletes, renames and moves.
package mediaindex

import "context"

// Index is the platform media index.
type Index interface {
	// DeleteByPath removes the row for path and returns the affected row count.
	DeleteByPath(ctx context.Context, path string) (int, error)
	// UpdatePath points the row for oldPath at newPath and returns the affected row count.
	UpdatePath(ctx context.Context, oldPath, newPath string) (int, error)
	// Scan asks the index to rescan paths. It returns once the scan is queued and
	// calls onScanned once per path, in any order and from any goroutine.
	Scan(ctx context.Context, paths []string, onScanned func(path string)) error
}
