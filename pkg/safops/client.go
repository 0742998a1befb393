// Package safops wires the storage-access core together: path classification,
// document grants, the media index and the file operation engine.
package safops

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
	"github.com/arthur-debert/safops/pkg/safops/metrics"
	"github.com/arthur-debert/safops/pkg/safops/operations"
	"github.com/arthur-debert/safops/pkg/safops/permission"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// Options configures a Client. Provider and Requester are required.
type Options struct {
	// Settings defaults to config.DefaultSettings().
	Settings *config.Settings
	// Store defaults to a FileStore at Settings.ConfigPath, or memory when unset.
	Store config.Store
	// FS is the direct file API. Defaults to the OS filesystem.
	FS        filesystem.FileSystem
	Provider  document.Provider
	Requester permission.Requester
	// Index defaults to an in-memory index over FS.
	Index    mediaindex.Index
	Notifier operations.Notifier
	// Registerer receives the safops metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Env is consulted to detect the SD card when none is configured.
	Env    storage.Env
	Logger *zerolog.Logger
}

// Client holds the wired components.
type Client struct {
	Settings   *config.Settings
	Config     *config.BaseConfig
	Classifier *storage.Classifier
	Resolver   *document.Resolver
	Grants     *permission.ConfigGrants
	Gate       *permission.Gate
	Index      *mediaindex.Synchronizer
	Engine     *operations.Engine
	Bus        *core.MemoryEventBus
	Metrics    *metrics.Collector
}

// New builds a Client. The platform capabilities are resolved here, once.
func New(opts Options) (*Client, error) {
	if opts.Provider == nil {
		return nil, errors.New("a document provider is required")
	}
	if opts.Requester == nil {
		return nil, errors.New("a grant requester is required")
	}

	settings := opts.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}
	logger := Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	store := opts.Store
	if store == nil {
		if settings.ConfigPath != "" {
			fileStore, err := config.OpenFileStore(settings.ConfigPath)
			if err != nil {
				return nil, err
			}
			store = fileStore
		} else {
			store = config.NewMemoryStore()
		}
	}
	cfg := config.NewBaseConfig(store)

	fsys := opts.FS
	if fsys == nil {
		fsys = filesystem.NewOSFileSystem()
	}

	if cfg.SDCardPath() == "" {
		internal := cfg.InternalStoragePath()
		candidates := storage.CandidatesFromEnv(opts.Env, internal)
		if sd := storage.SDCardFromCandidates(fsys, candidates, internal); sd != "" {
			if err := cfg.SetSDCardPath(sd); err != nil {
				return nil, fmt.Errorf("failed to save sd card path: %w", err)
			}
			logger.Debug().Str("path", sd).Msg("detected sd card")
		}
	}

	platform := storage.Platform{
		ScopedRemovableAccess: settings.ScopedRemovable,
		DocumentTrees:         settings.DocumentTrees,
	}
	classifier := storage.NewClassifier(cfg, platform)
	bus := core.NewMemoryEventBus(logger)
	grants := permission.NewConfigGrants(cfg)
	keeper, _ := opts.Provider.(document.GrantKeeper)

	gate := permission.NewGate(permission.Options{
		Grants:    grants,
		Requester: opts.Requester,
		Roots:     classifier,
		Keeper:    keeper,
		Strict:    settings.StrictRootCheck,
		Bus:       bus,
		Logger:    logger,
	})

	index := opts.Index
	if index == nil {
		index = mediaindex.NewMemoryIndex(fsys)
	}
	synchronizer := mediaindex.NewSynchronizer(index, fsys, bus, logger)
	resolver := document.NewResolver(classifier, grants, opts.Provider, logger)

	engine := operations.NewEngine(operations.Deps{
		FS:         fsys,
		Classifier: classifier,
		Resolver:   resolver,
		Provider:   opts.Provider,
		Gate:       gate,
		Index:      synchronizer,
		Config:     cfg,
		Notifier:   opts.Notifier,
		Bus:        bus,
		Workers:    settings.Workers,
		Logger:     logger,
	})

	var collector *metrics.Collector
	if opts.Registerer != nil {
		collector = metrics.NewCollector(opts.Registerer)
		collector.Subscribe(bus)
	}

	logger.Debug().
		Bool("scoped_removable", platform.ScopedRemovableAccess).
		Bool("document_trees", platform.DocumentTrees).
		Int("workers", settings.Workers).
		Str("sd_card", cfg.SDCardPath()).
		Msg("safops client ready")

	return &Client{
		Settings:   settings,
		Config:     cfg,
		Classifier: classifier,
		Resolver:   resolver,
		Grants:     grants,
		Gate:       gate,
		Index:      synchronizer,
		Engine:     engine,
		Bus:        bus,
		Metrics:    collector,
	}, nil
}

// Wait blocks until every background operation has finished.
func (c *Client) Wait() {
	c.Engine.Wait()
}
