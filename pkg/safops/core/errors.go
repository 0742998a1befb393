package core

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means a grant is missing or the user declined it.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrSecurityRejected means the platform raised a security fault during a document call.
	ErrSecurityRejected = errors.New("security rejected")
	// ErrNotFound means the path no longer exists.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists means the destination name is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrIdentityMismatch means a rename returned the original document, i.e. a silent no-op.
	ErrIdentityMismatch = errors.New("rename returned the original document")
	// ErrUnexpected wraps any other runtime fault during a bulk transfer.
	ErrUnexpected = errors.New("unexpected failure")
	// ErrSameLocation means source and destination are the same directory.
	ErrSameLocation = errors.New("source and destination are the same")
	// ErrInvalidDestination means the destination directory does not exist.
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrWrongRoot means the user authorized a tree that is not a storage root.
	ErrWrongRoot = errors.New("wrong root selected")
	// ErrUnsupported means the platform cannot serve document trees.
	ErrUnsupported = errors.New("document trees unsupported")
	// ErrUnknownRequest means a grant response does not match the pending request.
	ErrUnknownRequest = errors.New("unknown grant request")
)

// OperationError provides context about a failed file operation.
type OperationError struct {
	Op   string      // delete, rename, copy, move, mkdir, open
	Path string      // primary path being operated on
	Kind StorageKind // access strategy in effect
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s '%s' (%s): %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// WrapOperationError wraps err with operation context. A nil err stays nil and an
// existing OperationError is returned unchanged.
func WrapOperationError(op, path string, kind StorageKind, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return err
	}
	return &OperationError{Op: op, Path: path, Kind: kind, Err: err}
}
