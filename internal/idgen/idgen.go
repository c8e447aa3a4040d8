// Package idgen issues process definition GUIDs.
package idgen

import "github.com/google/uuid"

// NewFunc generates a GUID; tests may stub it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new definition GUID.
func New() string { return NewFunc() }

// Valid reports whether guid is a well formed UUID.
func Valid(guid string) bool {
	_, err := uuid.Parse(guid)
	return err == nil
}
