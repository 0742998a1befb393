package mediaindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// Synchronizer reflects filesystem changes into an Index.
type Synchronizer struct {
	index  Index
	fsys   filesystem.ReadFS
	bus    core.EventBus
	logger zerolog.Logger
}

// NewSynchronizer creates a synchronizer. bus may be nil.
func NewSynchronizer(index Index, fsys filesystem.ReadFS, bus core.EventBus, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		index:  index,
		fsys:   fsys,
		bus:    bus,
		logger: logger,
	}
}

// Remove drops the index row of a deleted path. When the direct delete does not
// affect exactly one row the path is rescanned instead.
func (s *Synchronizer) Remove(ctx context.Context, path string) error {
	n, err := s.index.DeleteByPath(ctx, path)
	if err == nil && n == 1 {
		return nil
	}
	s.logger.Debug().
		Str("path", path).
		Int("rows", n).
		Err(err).
		Msg("index delete missed, rescanning")
	return s.Rescan(ctx, []string{path})
}

// Update moves the index row of oldPath to newPath. It reports whether exactly one
// row was updated.
func (s *Synchronizer) Update(ctx context.Context, oldPath, newPath string) bool {
	n, err := s.index.UpdatePath(ctx, oldPath, newPath)
	if err != nil {
		s.logger.Debug().
			Str("path", oldPath).
			Str("new_path", newPath).
			Err(err).
			Msg("index update failed")
		return false
	}
	return n == 1
}

// Rescan expands paths to their descendant files and scans them all in one call.
// A path that no longer exists stands for itself. It returns once every file has
// reported or ctx is done.
func (s *Synchronizer) Rescan(ctx context.Context, paths []string) error {
	start := time.Now()
	files, err := s.expand(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		s.publish(ctx, 0, start)
		return nil
	}

	var mu sync.Mutex
	pending := make(map[string]struct{}, len(files))
	for _, f := range files {
		pending[f] = struct{}{}
	}
	done := make(chan struct{})
	// Only the first report of each expected file counts.
	onScanned := func(p string) {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := pending[p]; !ok {
			return
		}
		delete(pending, p)
		if len(pending) == 0 {
			close(done)
		}
	}
	if err := s.index.Scan(ctx, files, onScanned); err != nil {
		return fmt.Errorf("failed to scan %d files: %w", len(files), err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().
			Int("files", len(files)).
			Int("pending", pendingCount(&mu, pending)).
			Msg("rescan abandoned")
		return ctx.Err()
	}

	s.logger.Debug().
		Int("files", len(files)).
		Dur("duration", time.Since(start)).
		Msg("rescan completed")
	s.publish(ctx, len(files), start)
	return nil
}

// Reindex brings the index up to date for paths that were deleted, created or
// moved. Paths that are gone are deleted directly when possible and everything
// else is rescanned together.
func (s *Synchronizer) Reindex(ctx context.Context, paths []string) error {
	var rescan []string
	for _, p := range paths {
		if filesystem.Exists(s.fsys, p) {
			rescan = append(rescan, p)
			continue
		}
		if n, err := s.index.DeleteByPath(ctx, p); err == nil && n == 1 {
			continue
		}
		rescan = append(rescan, p)
	}
	return s.Rescan(ctx, rescan)
}

func (s *Synchronizer) expand(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, p := range paths {
		listed, err := filesystem.ListFiles(s.fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", p, err)
		}
		for _, f := range listed {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			files = append(files, f)
		}
	}
	return files, nil
}

func (s *Synchronizer) publish(ctx context.Context, files int, start time.Time) {
	core.PublishEvent(ctx, s.bus, core.EventIndexRescanned, core.RescanEvent{
		Files:    files,
		Duration: time.Since(start),
	})
}

func pendingCount(mu *sync.Mutex, pending map[string]struct{}) int {
	mu.Lock()
	defer mu.Unlock()
	return len(pending)
}
