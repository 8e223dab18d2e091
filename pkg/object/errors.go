package object

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned when no object is stored under an oid.
	ErrObjectNotFound = errors.New("object not found")

	// ErrCorruptObject is returned when a stored object cannot be decoded
	// or its declared length does not match its payload.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrTypeMismatch is returned when an object has a different kind than
	// the caller expected.
	ErrTypeMismatch = errors.New("object type mismatch")

	// ErrObjectDirectoryMissing is returned when the objects/ directory of
	// the store does not exist.
	ErrObjectDirectoryMissing = errors.New("object directory missing")

	// ErrMalformedTree is returned when a tree entry is not exactly three
	// whitespace-separated tokens of a known kind.
	ErrMalformedTree = errors.New("malformed tree")

	// ErrInvalidArgument is returned for caller mistakes such as a commit
	// with no tree or an oid that is not 40 hex characters.
	ErrInvalidArgument = errors.New("invalid argument")
)

func kindMismatch(got, want Kind) error {
	return fmt.Errorf("%w: got %q, want %q", ErrTypeMismatch, got, want)
}
