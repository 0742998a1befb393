package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/safops/pkg/safops"
	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/items"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
	"github.com/arthur-debert/safops/pkg/safops/permission"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// otgVolume is the volume id the --otg directory is mounted under.
const otgVolume = "OTG"

// host plays the platform around the library: the SD card is only writable
// through its document tree, grants are asked for on the terminal and the media
// index lives in memory.
type host struct {
	client   *safops.Client
	fs       filesystem.FileSystem
	provider *document.LocalProvider
	trees    map[core.StorageKind]string

	in        *bufio.Reader
	prompt    io.Writer
	autoGrant bool
}

func newHost(cmd *cobra.Command, flags *globalFlags) (*host, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	if flags.configPath != "" {
		settings.ConfigPath = flags.configPath
	}
	levelName := settings.LogLevel
	if flags.logLevel != "" {
		levelName = flags.logLevel
	}
	level, err := safops.LogLevelFromString(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	logger := safops.NewLogger(cmd.ErrOrStderr(), level)

	var store config.Store = config.NewMemoryStore()
	if settings.ConfigPath != "" {
		fileStore, err := config.OpenFileStore(settings.ConfigPath)
		if err != nil {
			return nil, err
		}
		store = fileStore
	}
	cfg := config.NewBaseConfig(store)

	internal, err := internalRoot(flags.internal, cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetInternalStoragePath(internal); err != nil {
		return nil, err
	}

	osfs := filesystem.NewOSFileSystem()
	sd := flags.sdCard
	if sd != "" {
		if sd, err = filepath.Abs(sd); err != nil {
			return nil, err
		}
	} else if sd = cfg.SDCardPath(); sd == "" {
		sd = storage.SDCardFromCandidates(osfs, storage.CandidatesFromEnv(nil, internal), internal)
	}
	if err := cfg.SetSDCardPath(sd); err != nil {
		return nil, err
	}

	h := &host{
		provider:  document.NewLocalProvider(osfs),
		trees:     make(map[core.StorageKind]string),
		in:        bufio.NewReader(cmd.InOrStdin()),
		prompt:    cmd.ErrOrStderr(),
		autoGrant: flags.yes,
	}
	h.fs = osfs
	if sd != "" {
		h.fs = filesystem.NewRestricted(osfs, sd)
		h.trees[core.KindSdCard] = h.provider.Mount(sdVolume(sd), sd)
	}
	if flags.otg != "" {
		otg, err := filepath.Abs(flags.otg)
		if err != nil {
			return nil, err
		}
		h.trees[core.KindOtg] = h.provider.Mount(otgVolume, otg)
	}

	// The platform remembers persisted permissions across runs.
	grants := permission.NewConfigGrants(cfg)
	for kind, tree := range h.trees {
		if grant, ok := grants.Grant(kind); ok && grant.TreeURI == tree {
			if err := h.provider.TakePersistable(tree); err != nil {
				logger.Warn().Err(err).Str("kind", kind.String()).Msg("failed to restore grant")
			}
		}
	}

	client, err := safops.New(safops.Options{
		Settings:  settings,
		Store:     store,
		FS:        h.fs,
		Provider:  h.provider,
		Requester: permission.RequesterFunc(h.requestGrant),
		Index:     mediaindex.NewMemoryIndex(osfs),
		Notifier:  &stderrNotifier{w: cmd.ErrOrStderr()},
		Logger:    &logger,
	})
	if err != nil {
		return nil, err
	}
	h.client = client
	return h, nil
}

func internalRoot(flag string, cfg *config.BaseConfig) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if p := cfg.InternalStoragePath(); p != "" {
		return p, nil
	}
	return os.UserHomeDir()
}

// sdVolume names the SD volume after its mount directory, like the platform
// names volumes after their filesystem id.
func sdVolume(root string) string {
	name := filepath.Base(root)
	if name == "/" || name == "." || strings.Contains(name, "primary") || strings.Contains(name, ":") {
		return "SDCARD"
	}
	return name
}

func (h *host) requestGrant(_ context.Context, req permission.Request) error {
	resp := permission.Response{Declined: true}
	if tree, ok := h.trees[req.Kind]; ok {
		resp = permission.Response{TreeURI: tree}
		if !h.autoGrant && !h.confirm(req) {
			resp = permission.Response{Declined: true}
		}
	}
	return h.client.Gate.Deliver(req.ID, resp)
}

func (h *host) confirm(req permission.Request) bool {
	fmt.Fprintf(h.prompt, "Allow access to %s storage at %s? [y/N] ", req.Kind, req.RootPath)
	line, err := h.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// path makes a command line argument absolute. OTG paths are kept as they are.
func (h *host) path(arg string) (string, error) {
	if strings.HasPrefix(arg, core.OTGPrefix) {
		return arg, nil
	}
	return filepath.Abs(arg)
}

// item looks p up, going through the document tree for OTG paths.
func (h *host) item(ctx context.Context, p string) (items.FileDirItem, error) {
	if !h.client.Classifier.IsOnOTG(p) {
		info, err := h.fs.Stat(p)
		if err != nil {
			return items.FileDirItem{}, err
		}
		return items.FromFileInfo(filepath.Dir(p), info), nil
	}

	if strings.TrimRight(p, "/")+"/" == core.OTGPrefix {
		return items.New(core.OTGPrefix, true), nil
	}
	list, err := h.client.Engine.List(ctx, storage.ParentPath(p))
	if err != nil {
		return items.FileDirItem{}, err
	}
	for _, it := range list {
		if it.Path == strings.TrimRight(p, "/") {
			return it, nil
		}
	}
	return items.FileDirItem{}, fmt.Errorf("%w: %s", core.ErrNotFound, p)
}

// lookupAll resolves every argument, keeping missing paths so deletes stay idempotent.
func (h *host) lookupAll(ctx context.Context, args []string) ([]items.FileDirItem, error) {
	list := make([]items.FileDirItem, 0, len(args))
	for _, arg := range args {
		p, err := h.path(arg)
		if err != nil {
			return nil, err
		}
		it, err := h.item(ctx, p)
		if err != nil {
			if !filesystem.IsNotExist(err) && !errors.Is(err, core.ErrNotFound) {
				return nil, err
			}
			it = items.New(p, false)
		}
		list = append(list, it)
	}
	return list, nil
}

// stderrNotifier prints user-facing messages on the terminal.
type stderrNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (n *stderrNotifier) Notify(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, msg)
}

func (n *stderrNotifier) Error(msg string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil && !strings.Contains(msg, err.Error()) {
		fmt.Fprintf(n.w, "%s: %v\n", msg, err)
		return
	}
	fmt.Fprintln(n.w, msg)
}
