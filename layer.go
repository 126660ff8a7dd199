package sqgeo

import (
	"context"
	"fmt"

	"github.com/liliang-cn/sqgeo/pkg/core"
	"github.com/liliang-cn/sqgeo/pkg/geo"
)

// LayerOptions selects a geometry table and how it is bound
type LayerOptions struct {
	// Table is a table name or a SELECT statement
	Table string
	// GeometryTable names the table the geometry comes from when Table is
	// a SELECT. Defaults to the table of its last FROM clause.
	GeometryTable string
	// GeometryField and KeyField skip detection when set
	GeometryField string
	KeyField      string
	// AutoIndex builds the spatial index when none exists yet
	AutoIndex bool
	// Extent, when set, is used instead of resolving one
	Extent *geo.Envelope
	// NoExtent leaves Layer.Extent unknown without resolving it
	NoExtent bool
}

// Layer is a geometry table bound to its geometry and key columns
type Layer struct {
	Table         string                `json:"table"`
	GeometryTable string                `json:"geometry_table"`
	GeometryField string                `json:"geometry_field"`
	KeyField      string                `json:"key_field,omitempty"`
	Descriptor    *core.TableDescriptor `json:"descriptor"`
	Index         *core.BuildResult     `json:"index,omitempty"`
	Extent        core.ExtentResult     `json:"extent"`
}

// Indexed reports whether Layer built a spatial index while binding
func (l *Layer) Indexed() bool {
	return l.Index != nil && l.Index.Built
}

// Layer introspects a table, picks its geometry and key columns, optionally
// builds the spatial index and determines the extent. Ordinary tables
// without a primary key are keyed by rowid; views are not. An unknown extent is not an error.
func (db *DB) Layer(ctx context.Context, opts LayerOptions) (*Layer, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("%w: table is required", ErrInvalidConfig)
	}

	geometryTable := opts.GeometryTable
	if geometryTable == "" {
		geometryTable = core.TableFromSQL(opts.Table)
	}
	log := db.store.Logger().With("table", core.Dequote(geometryTable))

	desc, err := db.store.Introspect(ctx, core.IntrospectRequest{
		Query:         opts.Table,
		Table:         geometryTable,
		GeometryField: opts.GeometryField,
		KeyField:      opts.KeyField,
	})
	if err != nil {
		return nil, err
	}
	if !desc.Found && !desc.FoundTable {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, core.Dequote(geometryTable))
	}
	if desc.GeometryField == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoGeometryField, core.Dequote(geometryTable))
	}

	layer := &Layer{
		Table:         opts.Table,
		GeometryTable: core.Dequote(geometryTable),
		GeometryField: desc.GeometryField,
		KeyField:      desc.KeyField,
		Descriptor:    desc,
	}
	if layer.KeyField == "" && !core.IsSubquery(opts.Table) {
		isTable, err := db.store.IsTable(ctx, opts.Table)
		if err != nil {
			return nil, err
		}
		if isTable {
			layer.KeyField = "rowid"
			log.Debug("no key field detected, using rowid")
		}
	}

	if opts.AutoIndex {
		if layer.KeyField == "" {
			return nil, fmt.Errorf("%w: cannot index %s", ErrNoKeyField, layer.GeometryTable)
		}
		if err := db.ensureIndex(ctx, layer); err != nil {
			return nil, err
		}
	}

	if opts.Extent != nil {
		if !opts.Extent.Valid() {
			return nil, fmt.Errorf("%w: provided extent %v is invalid", ErrInvalidConfig, *opts.Extent)
		}
		layer.Extent = core.ExtentResult{Extent: *opts.Extent, Source: core.ExtentProvided}
		return layer, nil
	}
	if opts.NoExtent {
		return layer, nil
	}

	layer.Extent, err = db.store.ResolveExtent(ctx, core.ExtentRequest{
		Table:         opts.Table,
		GeometryTable: geometryTable,
		GeometryField: layer.GeometryField,
		KeyField:      layer.KeyField,
	})
	if err != nil {
		return nil, err
	}
	if !layer.Extent.Known() {
		log.Warn("extent could not be determined", "geometry_field", layer.GeometryField)
	}

	return layer, nil
}

func (db *DB) ensureIndex(ctx context.Context, layer *Layer) error {
	has, err := db.store.HasSpatialIndex(ctx, layer.GeometryTable, layer.GeometryField)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	res, err := db.store.BuildSpatialIndex(ctx, core.BuildRequest{
		Table:         layer.Table,
		GeometryTable: layer.GeometryTable,
		GeometryField: layer.GeometryField,
		KeyField:      layer.KeyField,
	})
	if err != nil {
		return err
	}
	layer.Index = &res
	return nil
}
