package operations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/gammazero/toposort"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/items"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// TransferRequest describes a copy or move of Items from Source into Destination.
type TransferRequest struct {
	Items       []items.FileDirItem
	Source      string
	Destination string
	CopyOnly    bool
	// MediaOnly restricts the transfer to image and video files. Directories are
	// still recreated.
	MediaOnly bool
}

// Outcome summarizes a transfer for the user.
type Outcome int

const (
	OutcomeAll Outcome = iota
	OutcomePartial
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAll:
		return "all"
	case OutcomePartial:
		return "partial"
	default:
		return "failed"
	}
}

// TransferResult reports what a transfer achieved.
type TransferResult struct {
	CopyOnly bool
	Batch    BatchResult
	Outcome  Outcome
	// Err is set when the batch was aborted by an unexpected fault.
	Err error
}

// step is one unit of a transfer plan. Directory steps come before the steps of
// their contents.
type step struct {
	item   int
	parent string
	src    string
	dst    string
	dir    bool
}

// CopyMove copies or moves a batch of items. Each item succeeds or fails on its
// own and the result says which ones made it. Moves between directly writable
// locations are done by renaming in place.
func (e *Engine) CopyMove(ctx context.Context, req TransferRequest) (TransferResult, error) {
	start := time.Now()
	op := "move"
	if req.CopyOnly {
		op = "copy"
	}
	result, err := e.copyMove(ctx, req)
	return result, e.finish(ctx, op, req.Source, start, err)
}

func (e *Engine) copyMove(ctx context.Context, req TransferRequest) (TransferResult, error) {
	result := TransferResult{CopyOnly: req.CopyOnly, Outcome: OutcomeFailed}

	if strings.TrimRight(req.Source, "/") == strings.TrimRight(req.Destination, "/") {
		e.deps.Notifier.Notify(MsgSameLocation)
		return result, core.ErrSameLocation
	}
	if !e.exists(req.Destination) {
		e.deps.Notifier.Notify(MsgInvalidDestination)
		return result, fmt.Errorf("%w: %s", core.ErrInvalidDestination, req.Destination)
	}
	if len(req.Items) == 1 && e.exists(storage.Join(req.Destination, req.Items[0].Name)) {
		e.deps.Notifier.Notify(MsgNameTaken)
		return result, fmt.Errorf("%w: %s", core.ErrAlreadyExists, req.Items[0].Name)
	}

	err := e.deps.Gate.Run(ctx, e.kind(req.Destination), func() error {
		if req.CopyOnly {
			e.deps.Notifier.Notify(MsgCopying)
			result = e.transfer(ctx, req)
			return nil
		}
		if !e.deps.Classifier.NeedsCapability(req.Source) && !e.deps.Classifier.NeedsCapability(req.Destination) {
			e.deps.Notifier.Notify(MsgMoving)
			result = e.moveInPlace(ctx, req)
			return nil
		}
		return e.deps.Gate.Run(ctx, e.kind(req.Source), func() error {
			e.deps.Notifier.Notify(MsgMoving)
			result = e.transfer(ctx, req)
			return nil
		})
	})
	if err != nil {
		e.reportSecurity(err)
		return result, err
	}

	e.announce(result)
	if result.Err != nil {
		return result, result.Err
	}
	return result, result.Batch.Err()
}

func (e *Engine) announce(result TransferResult) {
	switch {
	case result.Outcome == OutcomeFailed:
		e.deps.Notifier.Error(MsgCopyMoveFailed, result.Err)
	case result.CopyOnly && result.Outcome == OutcomeAll:
		e.deps.Notifier.Notify(MsgCopySuccess)
	case result.CopyOnly:
		e.deps.Notifier.Notify(MsgCopyPartial)
	case result.Outcome == OutcomeAll:
		e.deps.Notifier.Notify(MsgMoveSuccess)
	default:
		e.deps.Notifier.Notify(MsgMovePartial)
	}
}

func outcomeOf(batch BatchResult) Outcome {
	switch {
	case batch.AllSucceeded():
		return OutcomeAll
	case batch.Count() > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

// moveInPlace renames every item into the destination and reindexes the old and
// new paths together.
func (e *Engine) moveInPlace(ctx context.Context, req TransferRequest) TransferResult {
	result := TransferResult{CopyOnly: false}
	tracker := NewTracker(len(req.Items), func(r BatchResult) {
		result.Batch = r
	})

	var touched []string
	for i, item := range req.Items {
		newPath := storage.Join(req.Destination, item.Name)
		var listed []string
		if item.IsDirectory {
			listed, _ = filesystem.ListFiles(e.deps.FS, item.Path)
		}
		var err error
		switch {
		case e.exists(newPath):
			err = fmt.Errorf("%w: %s", core.ErrAlreadyExists, newPath)
		default:
			err = e.deps.FS.Rename(item.Path, newPath)
		}
		if err == nil {
			touched = append(touched, listed...)
			touched = append(touched, item.Path, newPath)
		}
		tracker.Report(i, err)
	}

	if len(touched) > 0 {
		if err := e.deps.Index.Reindex(ctx, touched); err != nil {
			e.deps.Logger.Warn().Err(err).Int("paths", len(touched)).Msg("failed to reindex moved items")
		}
	}
	result.Outcome = outcomeOf(result.Batch)
	return result
}

// transfer copies the batch step by step and, for moves, deletes the sources of
// the items that were copied completely. A panic aborts the whole batch.
func (e *Engine) transfer(ctx context.Context, req TransferRequest) (result TransferResult) {
	result.CopyOnly = req.CopyOnly
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("%w: %v", core.ErrUnexpected, r)
			result.Outcome = OutcomeFailed
			e.deps.Logger.Error().Err(result.Err).Msg("transfer aborted")
		}
	}()

	itemErrs := make([]error, len(req.Items))
	steps, err := e.plan(ctx, req, itemErrs)
	if err != nil {
		result.Err = err
		result.Outcome = OutcomeFailed
		return result
	}

	failed := make(map[string]bool)
	var copied []string
	for _, s := range steps {
		if failed[s.parent] {
			failed[s.dst] = true
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = e.runStep(ctx, s)
		}
		if err != nil {
			failed[s.dst] = true
			itemErrs[s.item] = errors.Join(itemErrs[s.item], fmt.Errorf("%s: %w", s.src, err))
			continue
		}
		copied = append(copied, s.dst)
	}

	if !req.CopyOnly {
		e.removeSources(ctx, req, steps, itemErrs)
	}

	tracker := NewTracker(len(req.Items), func(r BatchResult) {
		result.Batch = r
	})
	for i, err := range itemErrs {
		tracker.Report(i, err)
	}

	if len(copied) > 0 {
		if err := e.deps.Index.Rescan(ctx, copied); err != nil {
			e.deps.Logger.Warn().Err(err).Int("paths", len(copied)).Msg("failed to scan transferred items")
		}
	}
	result.Outcome = outcomeOf(result.Batch)
	return result
}

// plan expands the batch into steps ordered so that every directory is created
// before its contents. Items that cannot be expanded are recorded in itemErrs.
func (e *Engine) plan(ctx context.Context, req TransferRequest, itemErrs []error) ([]step, error) {
	byDst := make(map[string]step)
	var order []string
	edges := make([]toposort.Edge, 0)

	var add func(i int, parent, src, dst string, dir bool)
	add = func(i int, parent, src, dst string, dir bool) {
		if !dir && req.MediaOnly && !mediaindex.IsMediaFast(src) {
			return
		}
		if prev, taken := byDst[dst]; taken && prev.item != i {
			// Two items of the batch share a name; the later one fails.
			itemErrs[i] = errors.Join(itemErrs[i], fmt.Errorf("%w: %s", core.ErrAlreadyExists, dst))
			return
		}
		byDst[dst] = step{item: i, parent: parent, src: src, dst: dst, dir: dir}
		order = append(order, dst)
		if parent != "" {
			// Edge is [2]interface{}: the directory comes before its content.
			edges = append(edges, toposort.Edge{parent, dst})
		}
		if !dir {
			return
		}
		children, err := e.List(ctx, src)
		if err != nil {
			itemErrs[i] = errors.Join(itemErrs[i], err)
			return
		}
		for _, child := range children {
			add(i, dst, child.Path, storage.Join(dst, child.Name), child.IsDirectory)
		}
	}
	for i, item := range req.Items {
		add(i, "", item.Path, storage.Join(req.Destination, item.Name), item.IsDirectory)
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("failed to order transfer: %w", err)
	}

	steps := make([]step, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, node := range sorted {
		dst, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected type in topological sort result: %T", node)
		}
		if s, exists := byDst[dst]; exists && !seen[dst] {
			steps = append(steps, s)
			seen[dst] = true
		}
	}
	// Items without a directory relation are not part of the graph.
	for _, dst := range order {
		if !seen[dst] {
			steps = append(steps, byDst[dst])
			seen[dst] = true
		}
	}
	return steps, nil
}

func (e *Engine) runStep(ctx context.Context, s step) error {
	if s.dir {
		return e.createDirectory(ctx, s.dst)
	}
	if e.exists(s.dst) {
		return fmt.Errorf("%w: %s", core.ErrAlreadyExists, s.dst)
	}
	return e.copyFile(ctx, s.src, s.dst)
}

func (e *Engine) copyFile(ctx context.Context, src, dst string) error {
	r, err := e.OpenReader(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := e.OpenWriter(ctx, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to copy content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}

	if e.deps.Config.KeepLastModified() && e.kind(src) != core.KindOtg && e.kind(dst) != core.KindOtg {
		if info, err := e.deps.FS.Stat(src); err == nil {
			if err := e.deps.FS.Chtimes(dst, info.ModTime()); err != nil {
				e.deps.Logger.Debug().Str("path", dst).Err(err).Msg("could not keep modification time")
			}
		}
	}
	return nil
}

// removeSources deletes the sources of fully copied items, contents before their
// directories. A directory that still holds files skipped by a media-only
// transfer is left in place.
func (e *Engine) removeSources(ctx context.Context, req TransferRequest, steps []step, itemErrs []error) {
	for _, s := range slices.Backward(steps) {
		if itemErrs[s.item] != nil {
			continue
		}
		// Directories are empty by now unless media-only left files behind.
		if s.dir && req.MediaOnly {
			if left, err := e.List(ctx, s.src); err != nil || len(left) > 0 {
				continue
			}
		}
		if err := e.deleteFile(ctx, s.src, s.dir); err != nil {
			itemErrs[s.item] = fmt.Errorf("failed to remove source %s: %w", s.src, err)
		}
	}
}
