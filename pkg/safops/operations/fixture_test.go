package operations_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/safops/pkg/safops/config"
	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/document"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
	"github.com/arthur-debert/safops/pkg/safops/mediaindex"
	"github.com/arthur-debert/safops/pkg/safops/operations"
	"github.com/arthur-debert/safops/pkg/safops/permission"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

const (
	internalRoot = "/storage/emulated/0"
	sdRoot       = "/storage/1234-5678"
	sdVolume     = "1234-5678"
	otgDir       = "/mnt/otg"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// user answers every grant request with the tree URI of the requested kind, or
// declines when told to.
type user struct {
	gate    *permission.Gate
	trees   map[core.StorageKind]string
	decline bool

	mu       sync.Mutex
	requests []permission.Request
}

func (u *user) RequestGrant(_ context.Context, req permission.Request) error {
	u.mu.Lock()
	u.requests = append(u.requests, req)
	resp := permission.Response{TreeURI: u.trees[req.Kind], Declined: u.decline}
	u.mu.Unlock()

	go func() {
		_ = u.gate.Deliver(req.ID, resp)
	}()
	return nil
}

func (u *user) asked() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

type message struct {
	text  string
	isErr bool
}

type recorder struct {
	mu   sync.Mutex
	msgs []message
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{text: msg})
}

func (r *recorder) Error(msg string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message{text: msg, isErr: true})
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.text
	}
	return out
}

func (r *recorder) errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.isErr {
			n++
		}
	}
	return n
}

type env struct {
	fs       *filesystem.TestFileSystem
	provider *document.LocalProvider
	cfg      *config.BaseConfig
	grants   *permission.ConfigGrants
	user     *user
	index    *mediaindex.MemoryIndex
	notes    *recorder
	bus      *core.MemoryEventBus
	engine   *operations.Engine
	sdTree   string
	otgTree  string
}

type envOption func(*operations.Deps)

func wrapFS(wrap func(filesystem.FileSystem) filesystem.FileSystem) envOption {
	return func(d *operations.Deps) { d.FS = wrap(d.FS) }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	tfs := filesystem.NewTestFileSystem()
	tfs.WriteFile(internalRoot+"/Download/a.txt", []byte("aaaa"), baseTime)
	tfs.WriteFile(internalRoot+"/Download/b.txt", []byte("bb"), baseTime)
	tfs.WriteFile(internalRoot+"/Download/c.jpg", []byte("cccccc"), baseTime)
	tfs.WriteFile(internalRoot+"/Pictures/Trip/1.jpg", []byte("111"), baseTime)
	tfs.WriteFile(internalRoot+"/Pictures/Trip/notes/2.txt", []byte("22"), baseTime)
	require.NoError(t, tfs.MkdirAll(internalRoot+"/Backup", 0755))
	tfs.WriteFile(sdRoot+"/DCIM/b.txt", []byte("hello"), baseTime)
	tfs.WriteFile(sdRoot+"/DCIM/Camera/x.jpg", []byte("jpeg"), baseTime)
	tfs.WriteFile(otgDir+"/Music/x.mp3", []byte("mp3!"), baseTime)
	tfs.WriteFile(otgDir+"/Music/.cover.jpg", []byte("0123456789"), baseTime)

	cfg := config.NewBaseConfig(config.NewMemoryStore())
	require.NoError(t, cfg.SetInternalStoragePath(internalRoot))
	require.NoError(t, cfg.SetSDCardPath(sdRoot))

	provider := document.NewLocalProvider(tfs)
	sdTree := provider.Mount(sdVolume, sdRoot)
	otgTree := provider.Mount("ABCD", otgDir)

	classifier := storage.NewClassifier(cfg, storage.Platform{ScopedRemovableAccess: true, DocumentTrees: true})
	grants := permission.NewConfigGrants(cfg)
	bus := core.NewMemoryEventBus(zerolog.Nop())
	u := &user{trees: map[core.StorageKind]string{core.KindSdCard: sdTree, core.KindOtg: otgTree}}
	gate := permission.NewGate(permission.Options{
		Grants:    grants,
		Requester: u,
		Roots:     classifier,
		Keeper:    provider,
		Bus:       bus,
		Logger:    zerolog.Nop(),
	})
	u.gate = gate

	index := mediaindex.NewMemoryIndex(tfs)
	notes := &recorder{}
	deps := operations.Deps{
		FS:         filesystem.NewRestricted(tfs, sdRoot),
		Classifier: classifier,
		Resolver:   document.NewResolver(classifier, grants, provider, zerolog.Nop()),
		Provider:   provider,
		Gate:       gate,
		Index:      mediaindex.NewSynchronizer(index, tfs, bus, zerolog.Nop()),
		Config:     cfg,
		Notifier:   notes,
		Bus:        bus,
		Workers:    4,
		Logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &env{
		fs:       tfs,
		provider: provider,
		cfg:      cfg,
		grants:   grants,
		user:     u,
		index:    index,
		notes:    notes,
		bus:      bus,
		engine:   operations.NewEngine(deps),
		sdTree:   sdTree,
		otgTree:  otgTree,
	}
}

// grant stores a live grant so no request is needed.
func (e *env) grant(t *testing.T, kind core.StorageKind) {
	t.Helper()
	tree := e.user.trees[kind]
	require.NoError(t, e.provider.TakePersistable(tree))
	root := sdRoot
	if kind == core.KindOtg {
		root = core.OTGPrefix
	}
	require.NoError(t, e.grants.SaveGrant(core.AccessGrant{Kind: kind, RootPath: root, TreeURI: tree}))
}

func (e *env) exists(p string) bool {
	return filesystem.Exists(e.fs, p)
}
