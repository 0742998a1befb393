// Package storage decides which access strategy applies to a path.
package storage

import (
	"path"
	"strings"

	"github.com/arthur-debert/safops/pkg/safops/core"
)

// Platform describes the host's storage capabilities. It is resolved once at
// startup and never re-read.
type Platform struct {
	// ScopedRemovableAccess is set when removable media can only be written
	// through a tree grant.
	ScopedRemovableAccess bool
	// DocumentTrees is set when the host can open document trees at all.
	DocumentTrees bool
}

// Roots is the source of the runtime storage roots.
type Roots interface {
	InternalStoragePath() string
	SDCardPath() string
}

// Classify returns the storage kind of path. It does no I/O.
func Classify(path, sdCardPath string, platform Platform) core.StorageKind {
	if strings.HasPrefix(path, core.OTGPrefix) {
		return core.KindOtg
	}
	if platform.ScopedRemovableAccess && IsUnder(path, sdCardPath) {
		return core.KindSdCard
	}
	return core.KindInternal
}

// IsUnder reports whether path is root or lies below it. An empty root contains nothing.
func IsUnder(path, root string) bool {
	root = strings.TrimRight(root, "/")
	if root == "" {
		return false
	}
	return path == root || strings.HasPrefix(path, root+"/")
}

// Classifier binds Classify to the configured roots.
type Classifier struct {
	roots    Roots
	platform Platform
}

// NewClassifier creates a classifier reading roots on every call.
func NewClassifier(roots Roots, platform Platform) *Classifier {
	return &Classifier{roots: roots, platform: platform}
}

// Platform returns the capabilities the classifier was built with.
func (c *Classifier) Platform() Platform {
	return c.platform
}

// Classify implements the decision order OTG, SD card, internal.
func (c *Classifier) Classify(path string) core.StorageKind {
	return Classify(path, c.roots.SDCardPath(), c.platform)
}

// IsOnSD reports whether path is under the SD card root, independent of platform.
func (c *Classifier) IsOnSD(path string) bool {
	return IsUnder(path, c.roots.SDCardPath())
}

func (c *Classifier) IsOnOTG(path string) bool {
	return strings.HasPrefix(path, core.OTGPrefix)
}

// NeedsCapability reports whether writes to path must go through a grant.
func (c *Classifier) NeedsCapability(path string) bool {
	return c.Classify(path).NeedsCapability()
}

// RootPath returns the path prefix owning kind.
func (c *Classifier) RootPath(kind core.StorageKind) string {
	switch kind {
	case core.KindSdCard:
		return strings.TrimRight(c.roots.SDCardPath(), "/")
	case core.KindOtg:
		return core.OTGPrefix
	default:
		return strings.TrimRight(c.roots.InternalStoragePath(), "/")
	}
}

// RelativePath strips the owning root from path and any leading or trailing slash.
func (c *Classifier) RelativePath(path string) string {
	kind := c.Classify(path)
	if kind == core.KindInternal && c.IsOnSD(path) {
		kind = core.KindSdCard
	}
	root := c.RootPath(kind)
	if root != "" && strings.HasPrefix(path, root) {
		path = path[len(root):]
	}
	return strings.Trim(path, "/")
}

// IsStorageRoot reports whether path is "/" or one of the storage roots.
func (c *Classifier) IsStorageRoot(path string) bool {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return true
	}
	return trimmed == strings.TrimRight(c.roots.InternalStoragePath(), "/") ||
		trimmed == strings.TrimRight(c.roots.SDCardPath(), "/")
}

// Human readable root names.
const (
	LabelRoot     = "Root"
	LabelInternal = "Internal"
	LabelSDCard   = "SD card"
	LabelOTG      = "USB"
)

// Humanize replaces the owning root of path with a readable label.
func (c *Classifier) Humanize(path string) string {
	var base, label string
	switch {
	case c.IsOnOTG(path):
		base, label = core.OTGPrefix, LabelOTG
	case c.IsOnSD(path):
		base, label = c.RootPath(core.KindSdCard), LabelSDCard
	case IsUnder(path, c.roots.InternalStoragePath()):
		base, label = c.RootPath(core.KindInternal), LabelInternal
	default:
		return LabelRoot + path
	}
	rest := strings.TrimLeft(path[len(base):], "/")
	if rest == "" {
		return label
	}
	return label + "/" + rest
}

// ParentPath returns the directory containing p. OTG paths keep their prefix.
func ParentPath(p string) string {
	if rest, ok := strings.CutPrefix(p, core.OTGPrefix); ok {
		dir := path.Dir("/" + strings.Trim(rest, "/"))
		return core.OTGPrefix + strings.TrimPrefix(dir, "/")
	}
	return path.Dir(strings.TrimRight(p, "/"))
}

// Join appends name to the directory dir. OTG paths keep their prefix.
func Join(dir, name string) string {
	if rest, ok := strings.CutPrefix(dir, core.OTGPrefix); ok {
		joined := strings.Trim(path.Join(rest, name), "/")
		if joined == "." {
			joined = ""
		}
		return core.OTGPrefix + joined
	}
	return path.Join(dir, name)
}
