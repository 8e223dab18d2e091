package repo

import (
	"errors"

	"github.com/vctrl/vctrl/pkg/object"
)

var (
	// ErrNotInitialized is returned when no repository is found.
	ErrNotInitialized = errors.New("not a vctrl repository")

	// ErrAlreadyInitialized is returned by Init when the metadata
	// directory already exists.
	ErrAlreadyInitialized = errors.New("repository already exists")

	// ErrRefNotFound is returned when a ref file does not exist.
	ErrRefNotFound = errors.New("reference not found")

	// ErrRefCycle is returned when a chain of symbolic refs loops or
	// exceeds the maximum depth.
	ErrRefCycle = errors.New("symbolic reference cycle")

	// ErrRefExists is returned when creating a branch that already exists.
	ErrRefExists = errors.New("reference already exists")

	// ErrLocked is returned when the repository lock cannot be acquired.
	ErrLocked = errors.New("repository is locked")
)

// Object-level errors, re-exported so callers of this package can match
// the whole taxonomy without importing pkg/object.
var (
	ErrObjectNotFound  = object.ErrObjectNotFound
	ErrCorruptObject   = object.ErrCorruptObject
	ErrTypeMismatch    = object.ErrTypeMismatch
	ErrMalformedTree   = object.ErrMalformedTree
	ErrInvalidArgument = object.ErrInvalidArgument
)
