package dao

import "errors"

// Store errors; check them with errors.Is.
var (
	// ErrNotFound reports a definition missing from the store.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID reports an empty definition id.
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity reports an attempt to save a nil document.
	ErrNilEntity = errors.New("dao: nil entity")
)

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
