package core

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrStoreClosed is returned when trying to use a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidGeometry is returned when a feature has no usable envelope during an index build
	ErrInvalidGeometry = errors.New("invalid geometry envelope")

	// ErrTypeMismatch is returned when the key field of an index build is not integer typed
	ErrTypeMismatch = errors.New("key field type mismatch")

	// ErrCatalog is returned when a catalog or table query fails
	ErrCatalog = errors.New("catalog query failed")

	// ErrCast is returned when an extent value cannot be read as a number
	ErrCast = errors.New("value is not numeric")

	// ErrNoKeyField is returned when an operation needs a key field and none is known
	ErrNoKeyField = errors.New("no key field")

	// ErrNoGeometryField is returned when an operation needs a geometry field and none is known
	ErrNoGeometryField = errors.New("no geometry field")

	// ErrTableNotFound is returned when neither introspection pass found the table
	ErrTableNotFound = errors.New("table not found")
)

// StoreError wraps errors with operation context
type StoreError struct {
	Op  string // Operation name
	Err error  // Underlying error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("sqgeo: %v", e.Err)
	}
	return fmt.Sprintf("sqgeo: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *StoreError) Unwrap() error {
	return e.Err
}

// wrapError wraps an error with operation context
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// InvalidGeometryError reports a feature whose envelope is invalid while
// building a spatial index. It aborts the build.
type InvalidGeometryError struct {
	IndexTable string
	KeyField   string
	Key        any
}

func (e *InvalidGeometryError) Error() string {
	return fmt.Sprintf("invalid bounding box at %s = %v while building %s", e.KeyField, e.Key, e.IndexTable)
}

// Is reports whether target is ErrInvalidGeometry
func (e *InvalidGeometryError) Is(target error) bool {
	return target == ErrInvalidGeometry
}

// TypeMismatchError reports a non-integer key value while building a
// spatial index. It aborts the build.
type TypeMismatchError struct {
	IndexTable string
	KeyField   string
	Kind       ValueKind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("invalid type for key field '%s' when creating index %s: type was %s",
		e.KeyField, e.IndexTable, e.Kind)
}

// Is reports whether target is ErrTypeMismatch
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// CastError reports an aggregate value that could not be parsed as a number
type CastError struct {
	Query string
	Value any
	Err   error
}

func (e *CastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not determine extent from query '%s': value %v: %v", e.Query, e.Value, e.Err)
	}
	return fmt.Sprintf("could not determine extent from query '%s': value %v", e.Query, e.Value)
}

// Unwrap returns the parse error, if any
func (e *CastError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCast
func (e *CastError) Is(target error) bool {
	return target == ErrCast
}

func catalogError(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCatalog, what, err)
}
