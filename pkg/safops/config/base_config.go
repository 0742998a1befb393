package config

import (
	"strconv"
	"strings"
)

// Persisted keys.
const (
	KeyInternalStoragePath = "internal_storage_path"
	KeySDCardPath          = "sd_card_path_2"
	KeyTreeURI             = "tree_uri_2"
	KeyOTGTreeURI          = "otg_tree_uri"
	KeyOTGPartition        = "otg_partition"
	KeyKeepLastModified    = "keep_last_modified"
	KeySorting             = "sorting"
)

// BaseConfig gives typed access to the persisted configuration keys.
type BaseConfig struct {
	store Store
}

// NewBaseConfig wraps a store.
func NewBaseConfig(store Store) *BaseConfig {
	return &BaseConfig{store: store}
}

// Store returns the underlying store.
func (c *BaseConfig) Store() Store {
	return c.store
}

func (c *BaseConfig) getString(key, def string) string {
	if v, ok := c.store.Get(key); ok {
		return v
	}
	return def
}

func (c *BaseConfig) getBool(key string, def bool) bool {
	v, ok := c.store.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (c *BaseConfig) getInt(key string, def int) int {
	v, ok := c.store.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c *BaseConfig) InternalStoragePath() string {
	return c.getString(KeyInternalStoragePath, "")
}

func (c *BaseConfig) SetInternalStoragePath(p string) error {
	return c.store.Set(KeyInternalStoragePath, strings.TrimRight(p, "/"))
}

// SDCardPath returns the removable storage root, or "" when none was detected.
func (c *BaseConfig) SDCardPath() string {
	return c.getString(KeySDCardPath, "")
}

func (c *BaseConfig) SetSDCardPath(p string) error {
	return c.store.Set(KeySDCardPath, strings.TrimRight(p, "/"))
}

// TreeURI returns the SD card grant token.
func (c *BaseConfig) TreeURI() string {
	return c.getString(KeyTreeURI, "")
}

func (c *BaseConfig) SetTreeURI(uri string) error {
	if uri == "" {
		return c.store.Delete(KeyTreeURI)
	}
	return c.store.Set(KeyTreeURI, uri)
}

// OTGTreeURI returns the OTG grant token.
func (c *BaseConfig) OTGTreeURI() string {
	return c.getString(KeyOTGTreeURI, "")
}

func (c *BaseConfig) SetOTGTreeURI(uri string) error {
	if uri == "" {
		return c.store.Delete(KeyOTGTreeURI)
	}
	return c.store.Set(KeyOTGTreeURI, uri)
}

// OTGPartition returns the volume id of the granted OTG device.
func (c *BaseConfig) OTGPartition() string {
	return c.getString(KeyOTGPartition, "")
}

func (c *BaseConfig) SetOTGPartition(id string) error {
	return c.store.Set(KeyOTGPartition, id)
}

// KeepLastModified reports whether renames keep the original modification time.
func (c *BaseConfig) KeepLastModified() bool {
	return c.getBool(KeyKeepLastModified, true)
}

func (c *BaseConfig) SetKeepLastModified(keep bool) error {
	return c.store.Set(KeyKeepLastModified, strconv.FormatBool(keep))
}

// Sorting returns the persisted sort flags. The zero default sorts by name.
func (c *BaseConfig) Sorting() int {
	return c.getInt(KeySorting, 1)
}

func (c *BaseConfig) SetSorting(flags int) error {
	return c.store.Set(KeySorting, strconv.Itoa(flags))
}
