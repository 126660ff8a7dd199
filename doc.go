// Package sqgeo reads geometry tables stored in SQLite databases.
//
// sqgeo is pure Go, built on modernc.org/sqlite (no cgo). It lists the
// tables of a database, works out which column holds geometry and which one
// is the row key, maintains R*Tree spatial indexes and determines the
// overall extent of a table. Geometry may be stored as WKB, EWKB,
// GeoPackage or SpatiaLite blobs.
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/liliang-cn/sqgeo"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    db, err := sqgeo.OpenPath(ctx, "world.sqlite")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer db.Close()
//
//	    // Bind a layer: detect fields, build the spatial index, resolve the extent
//	    layer, err := db.Layer(ctx, sqgeo.LayerOptions{Table: "countries", AutoIndex: true})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(layer.GeometryField, layer.Extent.Extent)
//	}
//
// # Spatial Indexes
//
// Indexes are R*Tree tables named "idx_<table>_<field>". By default they
// live in a separate "<path>.index" database; set core.Config.IndexInStore
// to keep them inside the source database:
//
//	import "github.com/liliang-cn/sqgeo/pkg/core"
//
//	cfg := core.DefaultConfig()
//	cfg.Path = "world.sqlite"
//	cfg.IndexInStore = true
//	db, err := sqgeo.Open(ctx, cfg)
//
// # Extents
//
// Layer and core.Store.ResolveExtent take the first available source: the
// spatial index, a metadata table (core.Config.MetadataTable) holding
// f_table_name/xmin/ymin/xmax/ymax rows, or a scan of every geometry.
//
// For lower level access use package core directly.
package sqgeo
