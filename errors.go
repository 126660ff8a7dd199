package sqgeo

import (
	"github.com/liliang-cn/sqgeo/pkg/core"
)

// Common errors, shared with package core so errors.Is works across both
var (
	// ErrStoreClosed is returned when trying to use a closed database
	ErrStoreClosed = core.ErrStoreClosed

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = core.ErrInvalidConfig

	// ErrInvalidGeometry is returned when an index build meets an unusable envelope
	ErrInvalidGeometry = core.ErrInvalidGeometry

	// ErrTypeMismatch is returned when an index key column is not integer typed
	ErrTypeMismatch = core.ErrTypeMismatch

	// ErrCatalog is returned when a catalog or table query fails
	ErrCatalog = core.ErrCatalog

	// ErrCast is returned when an extent value is not numeric
	ErrCast = core.ErrCast

	// ErrNoKeyField is returned when a layer needs a key field and none is known
	ErrNoKeyField = core.ErrNoKeyField

	// ErrNoGeometryField is returned when a layer has no geometry column
	ErrNoGeometryField = core.ErrNoGeometryField

	// ErrTableNotFound is returned when a layer's table does not exist
	ErrTableNotFound = core.ErrTableNotFound
)
