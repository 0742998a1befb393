package document

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/safops/pkg/safops/core"
	"github.com/arthur-debert/safops/pkg/safops/storage"
)

// GrantSource returns the live grant for a storage kind.
type GrantSource interface {
	Grant(kind core.StorageKind) (core.AccessGrant, bool)
}

// Resolver maps paths on capability-gated roots to documents.
type Resolver struct {
	classifier *storage.Classifier
	grants     GrantSource
	provider   Provider
	logger     zerolog.Logger
}

// NewResolver creates a resolver.
func NewResolver(classifier *storage.Classifier, grants GrantSource, provider Provider, logger zerolog.Logger) *Resolver {
	return &Resolver{
		classifier: classifier,
		grants:     grants,
		provider:   provider,
		logger:     logger,
	}
}

// Resolve walks from the granted tree root to path one segment at a time. It fails
// on the first segment that cannot be found.
func (r *Resolver) Resolve(p string) (Document, error) {
	kind, grant, err := r.grantFor(p)
	if err != nil {
		return nil, err
	}

	doc, err := r.provider.FromTreeURI(grant.TreeURI)
	if err != nil {
		return nil, core.WrapOperationError("resolve", p, kind, err)
	}
	rel := r.classifier.RelativePath(p)
	if rel == "" {
		return doc, nil
	}
	for _, segment := range strings.Split(rel, "/") {
		if segment == "" {
			continue
		}
		child, err := doc.FindFile(segment)
		if err != nil {
			r.logger.Debug().
				Str("path", p).
				Str("segment", segment).
				Err(err).
				Msg("document lookup failed")
			return nil, core.WrapOperationError("resolve", p, kind, err)
		}
		doc = child
	}
	return doc, nil
}

// ResolveFast builds a single-document handle from the grant and the escaped
// relative path without walking the tree. The document may not exist.
func (r *Resolver) ResolveFast(p string) (Document, error) {
	kind, grant, err := r.grantFor(p)
	if err != nil {
		return nil, err
	}
	uri := SingleDocumentURI(grant.TreeURI, VolumeID(grant), r.classifier.RelativePath(p))
	doc, err := r.provider.FromSingleURI(uri)
	if err != nil {
		return nil, core.WrapOperationError("resolve", p, kind, err)
	}
	return doc, nil
}

// ResolveParent resolves the directory containing p.
func (r *Resolver) ResolveParent(p string) (Document, error) {
	return r.Resolve(storage.ParentPath(p))
}

func (r *Resolver) grantFor(p string) (core.StorageKind, core.AccessGrant, error) {
	kind := r.classifier.Classify(p)
	if !kind.NeedsCapability() {
		return kind, core.AccessGrant{}, core.WrapOperationError("resolve", p, kind,
			fmt.Errorf("%w: path is directly accessible", core.ErrUnsupported))
	}
	if !r.classifier.Platform().DocumentTrees {
		return kind, core.AccessGrant{}, core.WrapOperationError("resolve", p, kind, core.ErrUnsupported)
	}
	grant, ok := r.grants.Grant(kind)
	if !ok || grant.IsZero() {
		return kind, core.AccessGrant{}, core.WrapOperationError("resolve", p, kind, core.ErrPermissionDenied)
	}
	if keeper, ok := r.provider.(GrantKeeper); ok && !keeper.IsPersisted(grant.TreeURI) {
		r.logger.Warn().
			Str("kind", kind.String()).
			Str("tree_uri", grant.TreeURI).
			Msg("grant was revoked externally")
		return kind, core.AccessGrant{}, core.WrapOperationError("resolve", p, kind,
			fmt.Errorf("%w: grant revoked", core.ErrPermissionDenied))
	}
	return kind, grant, nil
}

// VolumeID returns the volume a grant points at. It prefers the tree id of the
// grant and falls back to the last segment of the root path.
func VolumeID(grant core.AccessGrant) string {
	if ref, err := ParseTreeURI(grant.TreeURI); err == nil && ref.Volume() != "" {
		return ref.Volume()
	}
	root := strings.Trim(strings.TrimPrefix(grant.RootPath, core.OTGPrefix), "/")
	if root == "" {
		return ""
	}
	return path.Base(root)
}

// IsNotFound reports whether err means a document is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
