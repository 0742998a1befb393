package document

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/arthur-debert/safops/pkg/safops/core"
)

// ExternalStorageAuthority is the document provider serving removable volumes.
const ExternalStorageAuthority = "com.android.externalstorage.documents"

const (
	contentScheme = "content://"
	primaryVolume = "primary"
)

// Ref is a parsed document URI.
type Ref struct {
	Authority string
	// TreeID is the decoded tree document id, e.g. "1234-5678:".
	TreeID string
	// DocumentID is the decoded document id of a single-document URI. It is empty
	// for a bare tree URI.
	DocumentID string
}

// Volume returns the volume part of the tree id.
func (r Ref) Volume() string {
	vol, _, _ := strings.Cut(r.TreeID, ":")
	return vol
}

// IsRoot reports whether the tree id names a whole volume.
func (r Ref) IsRoot() bool {
	return strings.HasSuffix(r.TreeID, ":")
}

// Encode escapes s the way document ids are escaped in content URIs: every byte
// outside the unreserved set is percent-encoded, including '/' and ':'.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// TreeURI builds the tree URI for the root of a volume.
func TreeURI(authority, volumeID string) string {
	return contentScheme + authority + "/tree/" + Encode(volumeID+":")
}

// SingleDocumentURI addresses one document below a tree without walking to it.
func SingleDocumentURI(treeURI, volumeID, relativePath string) string {
	return strings.TrimRight(treeURI, "/") + "/document/" + Encode(volumeID+":"+strings.Trim(relativePath, "/"))
}

// ParseTreeURI parses content://<authority>/tree/<id>[/document/<id>].
func ParseTreeURI(uri string) (Ref, error) {
	rest, ok := strings.CutPrefix(uri, contentScheme)
	if !ok {
		return Ref{}, fmt.Errorf("not a content uri: %q", uri)
	}
	authority, rest, _ := strings.Cut(rest, "/")
	if authority == "" {
		return Ref{}, fmt.Errorf("missing authority in %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] != "tree" || parts[1] == "" {
		return Ref{}, fmt.Errorf("not a tree uri: %q", uri)
	}

	ref := Ref{Authority: authority}
	var err error
	if ref.TreeID, err = url.PathUnescape(parts[1]); err != nil {
		return Ref{}, fmt.Errorf("bad tree id in %q: %w", uri, err)
	}
	switch {
	case len(parts) == 2:
	case len(parts) == 4 && parts[2] == "document":
		if ref.DocumentID, err = url.PathUnescape(parts[3]); err != nil {
			return Ref{}, fmt.Errorf("bad document id in %q: %w", uri, err)
		}
	default:
		return Ref{}, fmt.Errorf("unexpected segments in %q", uri)
	}
	return ref, nil
}

// ValidateRootTree checks that a tree granted by the user is the root of a
// removable volume. OTG providers are not required to be the external storage
// provider.
func ValidateRootTree(uri string, kind core.StorageKind) error {
	ref, err := ParseTreeURI(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrWrongRoot, err)
	}
	if kind != core.KindOtg && ref.Authority != ExternalStorageAuthority {
		return fmt.Errorf("%w: authority %s", core.ErrWrongRoot, ref.Authority)
	}
	if !ref.IsRoot() {
		return fmt.Errorf("%w: %s is not a volume root", core.ErrWrongRoot, ref.TreeID)
	}
	if ref.Authority == ExternalStorageAuthority && strings.Contains(ref.TreeID, primaryVolume) {
		return fmt.Errorf("%w: internal storage selected", core.ErrWrongRoot)
	}
	return nil
}
