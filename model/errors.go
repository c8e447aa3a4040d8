package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSealed is returned when a declaration or handler is attached after the
	// owning process has been sealed.
	ErrSealed = errors.New("model: process is sealed")

	// ErrDuplicate is returned when a name or slot has already been taken; the
	// first registration wins.
	ErrDuplicate = errors.New("model: duplicate declaration")

	// ErrForeignOwner is returned when nodes of two different processes are
	// linked together.
	ErrForeignOwner = errors.New("model: node belongs to another process")

	// ErrDehydrated is returned when a durable form is requested for a
	// process whose scopes have been released.
	ErrDehydrated = errors.New("model: process is dehydrated")

	// ErrNoRoot is returned when a process is sealed or decoded without a root scope.
	ErrNoRoot = errors.New("model: process has no root scope")

	// ErrInvalidDocument is returned when a durable form fails validation.
	ErrInvalidDocument = errors.New("model: invalid document")
)

// ConsistencyError describes a structural defect in a compiled tree, for
// example a constant literal that no longer parses. It is raised with panic:
// the tree was produced by the compiler or the store and cannot be repaired
// by the caller.
type ConsistencyError struct {
	Node   ID
	Reason string
	Err    error
}

func (e *ConsistencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model: node %d: %s: %v", e.Node, e.Reason, e.Err)
	}
	return fmt.Sprintf("model: node %d: %s", e.Node, e.Reason)
}

func (e *ConsistencyError) Unwrap() error {
	return e.Err
}
