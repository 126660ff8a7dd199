package core

import (
	"context"
	"database/sql"
	"fmt"
)

// BuildRequest names the table and fields an index is built from
type BuildRequest struct {
	Table         string // table name or defining SELECT
	GeometryTable string // table the index is named after, default TableFromSQL(Table)
	GeometryField string
	KeyField      string
}

// queryer is the read surface shared by *sql.DB and *sql.Conn
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BuildSpatialIndex (re)builds the spatial index for a geometry field.
// A source without any indexable row returns Built == false and no error.
func (s *Store) BuildSpatialIndex(ctx context.Context, req BuildRequest) (BuildResult, error) {
	db, err := s.ready("build_index")
	if err != nil {
		return BuildResult{}, err
	}

	switch {
	case req.Table == "":
		return BuildResult{}, wrapError("build_index", fmt.Errorf("%w: table is required", ErrInvalidConfig))
	case req.GeometryField == "":
		return BuildResult{}, wrapError("build_index", ErrNoGeometryField)
	case req.KeyField == "":
		return BuildResult{}, wrapError("build_index", ErrNoKeyField)
	case s.config.ReadOnly && s.config.IndexInStore:
		return BuildResult{}, wrapError("build_index", fmt.Errorf("%w: store is read-only", ErrInvalidConfig))
	}

	indexTable := s.indexTableFor(req.Table, req.GeometryTable, req.GeometryField)
	query := featureQuery(req.Table, req.GeometryField, req.KeyField)

	var artifact IndexArtifact
	var source RowSource
	if s.config.IndexInStore {
		artifact = &TableArtifact{DB: db, Table: indexTable}
		source = func(ctx context.Context, conn *sql.Conn) (FeatureRows, error) {
			return openRows(conn.QueryContext(ctx, query))
		}
	} else {
		artifact = &FileArtifact{Path: s.IndexPath(), BusyTimeout: s.config.busyTimeout()}
		source = func(ctx context.Context, _ *sql.Conn) (FeatureRows, error) {
			return openRows(db.QueryContext(ctx, query))
		}
	}

	res, err := s.builder.Build(ctx, artifact, indexTable, source)
	return res, wrapError("build_index", err)
}

// HasSpatialIndex reports whether the index for table's geometry field
// exists and holds at least one record.
func (s *Store) HasSpatialIndex(ctx context.Context, table, field string) (bool, error) {
	db, err := s.ready("has_index")
	if err != nil {
		return false, err
	}

	indexTable := s.indexTableFor(table, "", field)
	q, done, ok, err := s.indexReader(ctx, db)
	if err != nil || !ok {
		return false, wrapError("has_index", err)
	}
	defer done()

	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT pkid, xmin, xmax, ymin, ymax FROM %s LIMIT 1", indexTable))
	if err != nil {
		s.logger.Debug("no spatial index", "index", indexTable, "error", err)
		return false, nil
	}
	defer rows.Close()

	return rows.Next(), nil
}

// DropSpatialIndex removes the index for table's geometry field if present
func (s *Store) DropSpatialIndex(ctx context.Context, table, field string) error {
	db, err := s.ready("drop_index")
	if err != nil {
		return err
	}

	indexTable := s.indexTableFor(table, "", field)
	if s.config.IndexInStore {
		_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+indexTable)
		return wrapError("drop_index", err)
	}

	artifact := &FileArtifact{Path: s.IndexPath(), BusyTimeout: s.config.busyTimeout()}
	exists, err := artifact.Exists(ctx)
	if err != nil || !exists {
		return wrapError("drop_index", err)
	}
	conn, release, err := artifact.Connect(ctx)
	if err != nil {
		return wrapError("drop_index", err)
	}
	_, err = conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+indexTable)
	if relErr := release(); err == nil {
		err = relErr
	}
	return wrapError("drop_index", err)
}

// indexReader returns a handle that can read index tables. ok is false when
// a file-backed index does not exist yet.
func (s *Store) indexReader(ctx context.Context, db *sql.DB) (q queryer, done func(), ok bool, err error) {
	if s.config.IndexInStore {
		return db, func() {}, true, nil
	}

	artifact := &FileArtifact{Path: s.IndexPath()}
	exists, err := artifact.Exists(ctx)
	if err != nil || !exists {
		return nil, nil, false, err
	}

	idx, err := sql.Open("sqlite", indexDSN(s.IndexPath(), s.config.busyTimeout(), true))
	if err != nil {
		return nil, nil, false, err
	}
	return idx, func() { idx.Close() }, true, nil
}

func (s *Store) indexTableFor(table, geometryTable, field string) string {
	if geometryTable == "" {
		geometryTable = TableFromSQL(table)
	}
	return IndexTableName(geometryTable, field)
}

// featureQuery selects the (geometry, key) pairs of a table or subquery
func featureQuery(table, geometryField, keyField string) string {
	return fmt.Sprintf("SELECT %s, %s FROM %s",
		QuoteIdentifier(geometryField), QuoteIdentifier(keyField), sourceExpr(table))
}

// openRows avoids handing a typed nil *sql.Rows to a FeatureRows caller
func openRows(rows *sql.Rows, err error) (FeatureRows, error) {
	if err != nil {
		return nil, err
	}
	return rows, nil
}
