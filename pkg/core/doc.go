// Package core provides the geometry table engine for sqgeo.
//
// It works on SQLite databases whose tables carry binary geometry columns
// and keeps R*Tree spatial indexes for them, either in a separate
// "<path>.index" database or inside the source database.
//
// # Key Components
//
//   - Store: owns the source database connection and exposes every operation.
//   - Catalog listing: ListTables returns user tables and views, hiding system, index and spatial registry tables.
//   - Schema introspection: Introspect merges a sampled row with PRAGMA table_info into a TableDescriptor.
//   - Spatial index builds: BuildSpatialIndex writes one R*Tree record per decoded shape inside a single transaction.
//   - Extent resolution: ResolveExtent tries the spatial index, a metadata table, then a full scan.
//   - Identifiers: QuoteIdentifier and friends make table and column names safe to splice into SQL.
//
// # Observability
//
// Logging goes through the Logger interface. Config.Logger defaults to a
// no-op logger.
package core
