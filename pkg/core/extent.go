package core

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/liliang-cn/sqgeo/pkg/geo"
)

// ExtentSource names the strategy that produced an extent
type ExtentSource int

const (
	ExtentUnknown ExtentSource = iota
	ExtentFromIndex
	ExtentFromMetadata
	ExtentFromScan
	ExtentProvided
)

var extentSourceNames = map[ExtentSource]string{
	ExtentUnknown:      "unknown",
	ExtentFromIndex:    "index",
	ExtentFromMetadata: "metadata",
	ExtentFromScan:     "scan",
	ExtentProvided:     "provided",
}

func (s ExtentSource) String() string {
	if name, ok := extentSourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler
func (s ExtentSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExtentRequest describes the table whose extent is resolved
type ExtentRequest struct {
	Table         string // table name or defining SELECT
	GeometryTable string // default TableFromSQL(Table)
	GeometryField string
	KeyField      string // required for the scan strategy
}

// ExtentResult is the outcome of ResolveExtent
type ExtentResult struct {
	Extent geo.Envelope `json:"extent"`
	Source ExtentSource `json:"source"`
}

// Known reports whether any strategy produced an extent
func (r ExtentResult) Known() bool {
	return r.Source != ExtentUnknown
}

// ResolveExtent determines the overall extent of a table. Strategies are
// tried in order and the first applicable one wins: the spatial index, the
// configured metadata table, then a full scan of the geometry column. An
// unknown extent is returned without error.
func (s *Store) ResolveExtent(ctx context.Context, req ExtentRequest) (ExtentResult, error) {
	db, err := s.ready("extent")
	if err != nil {
		return ExtentResult{}, err
	}

	geometryTable := req.GeometryTable
	if geometryTable == "" {
		geometryTable = TableFromSQL(req.Table)
	}

	if s.config.UseSpatialIndex && req.GeometryField != "" {
		if e, ok := s.indexExtent(ctx, db, geometryTable, req.GeometryField); ok {
			return ExtentResult{Extent: e, Source: ExtentFromIndex}, nil
		}
	}

	if s.config.MetadataTable != "" {
		e, ok, err := s.metadataExtent(ctx, db, geometryTable)
		if err != nil {
			return ExtentResult{}, wrapError("extent", err)
		}
		if ok {
			return ExtentResult{Extent: e, Source: ExtentFromMetadata}, nil
		}
	}

	if req.KeyField != "" && req.GeometryField != "" {
		e, ok, err := s.scanExtent(ctx, db, req.Table, req.GeometryField, req.KeyField)
		if err != nil {
			return ExtentResult{}, wrapError("extent", err)
		}
		if ok {
			return ExtentResult{Extent: e, Source: ExtentFromScan}, nil
		}
	}

	return ExtentResult{}, nil
}

// indexExtent aggregates the bounds stored in the spatial index. Any
// problem makes the strategy inapplicable.
func (s *Store) indexExtent(ctx context.Context, db *sql.DB, table, field string) (geo.Envelope, bool) {
	has, err := s.HasSpatialIndex(ctx, table, field)
	if err != nil || !has {
		return geo.Envelope{}, false
	}

	q, done, ok, err := s.indexReader(ctx, db)
	if err != nil || !ok {
		return geo.Envelope{}, false
	}
	defer done()

	query := fmt.Sprintf("SELECT MIN(xmin), MIN(ymin), MAX(xmax), MAX(ymax) FROM %s",
		IndexTableName(table, field))

	var vals [4]any
	if err := q.QueryRowContext(ctx, query).Scan(&vals[0], &vals[1], &vals[2], &vals[3]); err != nil {
		s.logger.Warn("could not determine extent from index", "query", query, "error", err)
		return geo.Envelope{}, false
	}
	if vals[0] == nil {
		return geo.Envelope{}, false
	}

	e, err := envelopeFromValues(query, vals)
	if err != nil {
		s.logger.Warn("could not determine extent from index", "query", query, "error", err)
		return geo.Envelope{}, false
	}
	return e, true
}

// metadataExtent looks the table up in the configured metadata table
func (s *Store) metadataExtent(ctx context.Context, db *sql.DB, table string) (geo.Envelope, bool, error) {
	query := fmt.Sprintf(
		"SELECT xmin, ymin, xmax, ymax FROM %s WHERE LOWER(f_table_name) = LOWER(?)",
		QuoteIdentifier(s.config.MetadataTable))

	var vals [4]any
	err := db.QueryRowContext(ctx, query, Dequote(table)).Scan(&vals[0], &vals[1], &vals[2], &vals[3])
	switch {
	case err == sql.ErrNoRows:
		return geo.Envelope{}, false, nil
	case err != nil:
		return geo.Envelope{}, false, catalogError("query metadata extent", err)
	}

	e, err := envelopeFromValues(query, vals)
	if err != nil {
		s.logger.Warn("could not determine extent from metadata", "table", table, "error", err)
		return geo.Envelope{}, false, nil
	}
	return e, true, nil
}

// scanExtent folds the envelope of every decodable geometry in the table
func (s *Store) scanExtent(ctx context.Context, db *sql.DB, table, geometryField, keyField string) (geo.Envelope, bool, error) {
	query := featureQuery(table, geometryField, keyField)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return geo.Envelope{}, false, catalogError("scan extent", err)
	}
	defer rows.Close()

	var agg geo.Aggregator
	for rows.Next() {
		var blob, key any
		if err := rows.Scan(&blob, &key); err != nil {
			return geo.Envelope{}, false, catalogError("scan extent", err)
		}
		data, ok := geometryBytes(blob)
		if !ok {
			continue
		}
		shapes, err := s.decoder.Decode(data)
		if err != nil {
			continue
		}
		agg.AddShapes(shapes)
	}
	if err := rows.Err(); err != nil {
		return geo.Envelope{}, false, catalogError("scan extent", err)
	}

	e, ok := agg.Extent()
	return e, ok, nil
}

// envelopeFromValues converts four aggregate values (xmin, ymin, xmax, ymax)
func envelopeFromValues(query string, vals [4]any) (geo.Envelope, error) {
	var f [4]float64
	for i, v := range vals {
		n, err := toFloat(v)
		if err != nil {
			return geo.Envelope{}, &CastError{Query: query, Value: v, Err: err}
		}
		f[i] = n
	}
	e := geo.NewEnvelope(f[0], f[1], f[2], f[3])
	if !e.Valid() {
		return geo.Envelope{}, &CastError{Query: query, Value: f}
	}
	return e, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
