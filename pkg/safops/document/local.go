package document

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/filesystem"
)

// LocalProvider serves document trees from directories of a FileSystem. Each
// mounted volume id maps to one directory. It stands in for the platform provider
// in the CLI and in tests.
type LocalProvider struct {
	fsys      filesystem.FileSystem
	authority string

	mu        sync.RWMutex
	volumes   map[string]string
	persisted map[string]bool
	faults    map[string]error
	silent    map[string]bool
}

// NewLocalProvider creates a provider with no mounted volumes.
func NewLocalProvider(fsys filesystem.FileSystem) *LocalProvider {
	return &LocalProvider{
		fsys:      fsys,
		authority: ExternalStorageAuthority,
		volumes:   make(map[string]string),
		persisted: make(map[string]bool),
		faults:    make(map[string]error),
		silent:    make(map[string]bool),
	}
}

// Mount exposes dir as volumeID and returns the tree URI of its root.
func (p *LocalProvider) Mount(volumeID, dir string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volumes[volumeID] = strings.TrimRight(dir, "/")
	return TreeURI(p.authority, volumeID)
}

// FailOn makes every document call on documentID return err. Document ids have
// the form "<volume>:<relative path>".
func (p *LocalProvider) FailOn(documentID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults[documentID] = err
}

// IgnoreRenames makes renames of documentID succeed without doing anything.
func (p *LocalProvider) IgnoreRenames(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.silent[documentID] = true
}

// TakePersistable implements GrantKeeper
func (p *LocalProvider) TakePersistable(treeURI string) error {
	if _, err := p.tree(treeURI); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persisted[treeURI] = true
	return nil
}

// IsPersisted implements GrantKeeper
func (p *LocalProvider) IsPersisted(treeURI string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.persisted[treeURI]
}

// Revoke drops a persisted permission, the way the platform does when the user
// removes access in system settings.
func (p *LocalProvider) Revoke(treeURI string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.persisted, treeURI)
}

// FromTreeURI implements Provider
func (p *LocalProvider) FromTreeURI(treeURI string) (Document, error) {
	ref, err := p.tree(treeURI)
	if err != nil {
		return nil, err
	}
	if err := p.fault(ref.TreeID); err != nil {
		return nil, err
	}
	base := strings.TrimRight(treeURI, "/")
	if i := strings.Index(base, "/document/"); i >= 0 {
		base = base[:i]
	}
	return &localDocument{p: p, treeURI: base, id: ref.TreeID}, nil
}

// FromSingleURI implements Provider
func (p *LocalProvider) FromSingleURI(uri string) (Document, error) {
	ref, err := p.tree(uri)
	if err != nil {
		return nil, err
	}
	if ref.DocumentID == "" {
		return nil, fmt.Errorf("not a document uri: %q", uri)
	}
	base := uri[:strings.Index(uri, "/document/")]
	return &localDocument{p: p, treeURI: base, id: ref.DocumentID}, nil
}

// RenameDocument implements Provider
func (p *LocalProvider) RenameDocument(uri, displayName string) (string, error) {
	doc, err := p.FromSingleURI(uri)
	if err != nil {
		return "", err
	}
	d := doc.(*localDocument)
	if err := p.fault(d.id); err != nil {
		return "", err
	}
	p.mu.RLock()
	silent := p.silent[d.id]
	p.mu.RUnlock()
	if silent || displayName == d.Name() {
		return uri, nil
	}
	if strings.ContainsRune(displayName, '/') {
		return "", fmt.Errorf("invalid display name %q", displayName)
	}

	from, err := d.path()
	if err != nil {
		return "", err
	}
	if !filesystem.Exists(p.fsys, from) {
		return "", fmt.Errorf("rename %s: %w", d.id, core.ErrNotFound)
	}
	to := path.Join(path.Dir(from), displayName)
	if filesystem.Exists(p.fsys, to) {
		return "", fmt.Errorf("rename %s: %w", d.id, core.ErrAlreadyExists)
	}
	if err := p.fsys.Rename(from, to); err != nil {
		return "", err
	}
	renamed := d.sibling(displayName)
	return renamed.URI(), nil
}

func (p *LocalProvider) tree(uri string) (Ref, error) {
	ref, err := ParseTreeURI(uri)
	if err != nil {
		return Ref{}, err
	}
	if ref.Authority != p.authority {
		return Ref{}, fmt.Errorf("%w: unknown authority %s", core.ErrSecurityRejected, ref.Authority)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.volumes[ref.Volume()]; !ok {
		return Ref{}, fmt.Errorf("%w: volume %s is not mounted", core.ErrSecurityRejected, ref.Volume())
	}
	return ref, nil
}

func (p *LocalProvider) fault(id string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.faults[id]
}

func (p *LocalProvider) resolve(id string) (string, error) {
	vol, rel, _ := strings.Cut(id, ":")
	p.mu.RLock()
	root, ok := p.volumes[vol]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: volume %s is not mounted", core.ErrSecurityRejected, vol)
	}
	rel = path.Clean("/" + rel)
	if rel == "/" {
		return root, nil
	}
	return root + rel, nil
}

type localDocument struct {
	p       *LocalProvider
	treeURI string
	id      string
}

func (d *localDocument) path() (string, error) {
	return d.p.resolve(d.id)
}

func (d *localDocument) child(name string) *localDocument {
	id := d.id
	if !strings.HasSuffix(id, ":") {
		id += "/"
	}
	return &localDocument{p: d.p, treeURI: d.treeURI, id: id + name}
}

func (d *localDocument) sibling(name string) *localDocument {
	vol, rel, _ := strings.Cut(d.id, ":")
	dir := path.Dir("/" + rel)
	return &localDocument{p: d.p, treeURI: d.treeURI, id: vol + ":" + strings.TrimPrefix(path.Join(dir, name), "/")}
}

func (d *localDocument) URI() string {
	return d.treeURI + "/document/" + Encode(d.id)
}

func (d *localDocument) Name() string {
	_, rel, _ := strings.Cut(d.id, ":")
	if rel == "" {
		return ""
	}
	return path.Base(rel)
}

func (d *localDocument) stat() (time.Time, int64, bool, bool) {
	p, err := d.path()
	if err != nil {
		return time.Time{}, 0, false, false
	}
	info, err := d.p.fsys.Stat(p)
	if err != nil {
		return time.Time{}, 0, false, false
	}
	return info.ModTime(), info.Size(), info.IsDir(), true
}

func (d *localDocument) IsDirectory() bool {
	_, _, dir, ok := d.stat()
	return ok && dir
}

func (d *localDocument) IsFile() bool {
	_, _, dir, ok := d.stat()
	return ok && !dir
}

func (d *localDocument) Exists() bool {
	_, _, _, ok := d.stat()
	return ok
}

func (d *localDocument) Size() int64 {
	_, size, dir, _ := d.stat()
	if dir {
		return 0
	}
	return size
}

func (d *localDocument) LastModified() time.Time {
	mtime, _, _, _ := d.stat()
	return mtime
}

func (d *localDocument) Delete() error {
	if err := d.p.fault(d.id); err != nil {
		return err
	}
	p, err := d.path()
	if err != nil {
		return err
	}
	if !filesystem.Exists(d.p.fsys, p) {
		return fmt.Errorf("delete %s: %w", d.id, core.ErrNotFound)
	}
	return removeAll(d.p.fsys, p)
}

func (d *localDocument) FindFile(name string) (Document, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	c := d.child(name)
	if !c.Exists() {
		return nil, fmt.Errorf("find %s in %s: %w", name, d.id, core.ErrNotFound)
	}
	return c, nil
}

func (d *localDocument) ListFiles() ([]Document, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	p, err := d.path()
	if err != nil {
		return nil, err
	}
	entries, err := d.p.fsys.ReadDir(p)
	if err != nil {
		if filesystem.IsNotExist(err) {
			return nil, fmt.Errorf("list %s: %w", d.id, core.ErrNotFound)
		}
		return nil, err
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, d.child(e.Name()))
	}
	return docs, nil
}

func (d *localDocument) CreateFile(mimeType, name string) (Document, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	c := d.child(name)
	if c.Exists() {
		return nil, fmt.Errorf("create %s in %s: %w", name, d.id, core.ErrAlreadyExists)
	}
	p, err := c.path()
	if err != nil {
		return nil, err
	}
	w, err := d.p.fsys.Create(p)
	if err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *localDocument) CreateDirectory(name string) (Document, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	c := d.child(name)
	if c.IsFile() {
		return nil, fmt.Errorf("mkdir %s in %s: %w", name, d.id, core.ErrAlreadyExists)
	}
	p, err := c.path()
	if err != nil {
		return nil, err
	}
	if err := d.p.fsys.MkdirAll(p, 0755); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *localDocument) OpenReader() (io.ReadCloser, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	p, err := d.path()
	if err != nil {
		return nil, err
	}
	return d.p.fsys.Open(p)
}

func (d *localDocument) OpenWriter() (io.WriteCloser, error) {
	if err := d.p.fault(d.id); err != nil {
		return nil, err
	}
	p, err := d.path()
	if err != nil {
		return nil, err
	}
	return d.p.fsys.Create(p)
}

// removeAll deletes p and, for directories, everything below it, deepest first.
func removeAll(fsys filesystem.FileSystem, p string) error {
	info, err := fsys.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := fsys.ReadDir(p)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, name := range names {
			if err := removeAll(fsys, path.Join(p, name)); err != nil {
				return err
			}
		}
	}
	return fsys.Remove(p)
}
