// Package document maps filesystem paths to capability-scoped document handles
// for storage that cannot be written through the direct file API.
package document

import (
	"errors"
	"io"
	"strings"
	"time"
)

// Document is a handle obtained through a tree grant. It supports a narrower
// operation set than a direct path.
type Document interface {
	URI() string
	Name() string
	IsDirectory() bool
	IsFile() bool
	Exists() bool
	Size() int64
	LastModified() time.Time

	// Delete removes the document. Directories are removed with their contents.
	Delete() error
	// FindFile returns the direct child called name or an error wrapping core.ErrNotFound.
	FindFile(name string) (Document, error)
	ListFiles() ([]Document, error)
	CreateFile(mimeType, name string) (Document, error)
	CreateDirectory(name string) (Document, error)

	OpenReader() (io.ReadCloser, error)
	OpenWriter() (io.WriteCloser, error)
}

// Provider is the host's document API.
type Provider interface {
	// FromTreeURI returns the root document of a granted tree.
	FromTreeURI(treeURI string) (Document, error)
	// FromSingleURI returns a handle for a document URI without checking that
	// the document exists.
	FromSingleURI(uri string) (Document, error)
	// RenameDocument renames uri in place and returns the URI of the result.
	// A provider that silently ignores the request returns uri unchanged.
	RenameDocument(uri, displayName string) (string, error)
}

// GrantKeeper is implemented by providers that track persisted tree permissions.
type GrantKeeper interface {
	TakePersistable(treeURI string) error
	IsPersisted(treeURI string) bool
}

// TreeSize sums the sizes of every file below doc. Hidden entries are skipped
// unless countHidden is set.
func TreeSize(doc Document, countHidden bool) (int64, error) {
	if doc == nil || !doc.Exists() {
		return 0, nil
	}
	if !doc.IsDirectory() {
		return doc.Size(), nil
	}

	children, err := doc.ListFiles()
	if err != nil {
		return 0, err
	}
	var total int64
	var errs []error
	for _, child := range children {
		if !countHidden && strings.HasPrefix(child.Name(), ".") {
			continue
		}
		n, err := TreeSize(child, countHidden)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}
