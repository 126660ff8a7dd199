package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/sqgeo/pkg/geo"
)

// FeatureRows is a stream of (geometry, key) rows. *sql.Rows satisfies it.
type FeatureRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// RowSource opens the feature stream once the build transaction has begun.
// conn is the build connection; sources reading another database ignore it.
type RowSource func(ctx context.Context, conn *sql.Conn) (FeatureRows, error)

// BuildResult describes one spatial index build
type BuildResult struct {
	ID         string        `json:"id"`
	IndexTable string        `json:"index_table"`
	Built      bool          `json:"built"`
	Records    int64         `json:"records"`
	Skipped    int64         `json:"skipped"`
	Duration   time.Duration `json:"duration"`
}

// SpatialIndexBuilder writes R*Tree index tables from feature streams
type SpatialIndexBuilder struct {
	decoder *geo.Decoder
	logger  Logger
}

// NewSpatialIndexBuilder creates a builder decoding blobs with decoder
func NewSpatialIndexBuilder(decoder *geo.Decoder, logger Logger) *SpatialIndexBuilder {
	if logger == nil {
		logger = NopLogger()
	}
	return &SpatialIndexBuilder{decoder: decoder, logger: logger}
}

type rowOutcome int

const (
	rowOK rowOutcome = iota
	rowSkip
	rowFatal
)

// rowResult is the verdict for one source row. Only rowFatal aborts a build.
type rowResult struct {
	outcome rowOutcome
	records []IndexRecord
	reason  string
	err     error
}

// Build replaces indexTable inside artifact with one record per decoded
// shape of source. Everything happens in a single BEGIN IMMEDIATE
// transaction. On failure, or when no record was written, the transaction
// is rolled back and an artifact that did not exist beforehand is removed.
// An empty source is not an error: the result has Built == false.
func (b *SpatialIndexBuilder) Build(ctx context.Context, artifact IndexArtifact, indexTable string, source RowSource) (BuildResult, error) {
	start := time.Now()
	res := BuildResult{ID: uuid.NewString(), IndexTable: indexTable}
	log := b.logger.With("build_id", res.ID, "index", indexTable, "artifact", artifact.String())

	existed, err := artifact.Exists(ctx)
	if err != nil {
		return res, fmt.Errorf("check index artifact: %w", err)
	}

	conn, release, err := artifact.Connect(ctx)
	if err != nil {
		b.cleanup(ctx, artifact, existed, log)
		return res, fmt.Errorf("open index artifact: %w", err)
	}

	// Unwinding has to run even when ctx is already cancelled.
	bg := context.WithoutCancel(ctx)
	releaseConn := func() {
		if err := release(); err != nil {
			log.Warn("failed to release index connection", "error", err)
		}
	}
	abort := func() {
		if _, err := conn.ExecContext(bg, "ROLLBACK"); err != nil {
			log.Warn("rollback failed", "error", err)
		}
		releaseConn()
		b.cleanup(bg, artifact, existed, log)
	}

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		releaseConn()
		b.cleanup(bg, artifact, existed, log)
		return res, fmt.Errorf("begin index transaction: %w", err)
	}

	records, skipped, err := b.populate(ctx, conn, indexTable, source, log)
	res.Records, res.Skipped = records, skipped
	if err != nil {
		abort()
		res.Duration = time.Since(start)
		log.Error("spatial index build failed", "error", err, "records", records)
		return res, err
	}

	if records == 0 {
		abort()
		res.Duration = time.Since(start)
		log.Info("no spatial index built: source produced no records", "skipped", skipped)
		return res, nil
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		abort()
		return res, fmt.Errorf("commit index transaction: %w", err)
	}
	releaseConn()

	res.Built = true
	res.Duration = time.Since(start)
	log.Info("spatial index built", "records", records, "skipped", skipped, "duration", res.Duration)

	return res, nil
}

// populate runs the drop/create/insert steps inside the open transaction
func (b *SpatialIndexBuilder) populate(ctx context.Context, conn *sql.Conn, indexTable string, source RowSource, log Logger) (records, skipped int64, err error) {
	if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+indexTable); err != nil {
		return 0, 0, fmt.Errorf("drop existing index %s: %w", indexTable, err)
	}
	if _, err := conn.ExecContext(ctx, createIndexSQL(indexTable, b.decoder.AllowMultiple())); err != nil {
		return 0, 0, fmt.Errorf("create index %s: %w", indexTable, err)
	}

	stmt, err := conn.PrepareContext(ctx, insertIndexSQL(indexTable))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare index insert: %w", err)
	}
	defer stmt.Close()

	rows, err := source(ctx, conn)
	if err != nil {
		return 0, 0, catalogError("query features", err)
	}
	defer rows.Close()

	keyField := "key"
	if c, ok := rows.(interface{ Columns() ([]string, error) }); ok {
		if cols, err := c.Columns(); err == nil && len(cols) > 1 {
			keyField = cols[1]
		}
	}

	for rows.Next() {
		var blob, key any
		if err := rows.Scan(&blob, &key); err != nil {
			return records, skipped, catalogError("read feature row", err)
		}

		row := b.classify(blob, key, indexTable, keyField)
		switch row.outcome {
		case rowSkip:
			skipped++
			log.Debug("skipping feature", keyField, key, "reason", row.reason)
		case rowFatal:
			return records, skipped, row.err
		case rowOK:
			for _, rec := range row.records {
				e := rec.Envelope
				if _, err := stmt.ExecContext(ctx, rec.Key, e.MinX, e.MaxX, e.MinY, e.MaxY); err != nil {
					return records, skipped, fmt.Errorf("insert index record %s = %d: %w", keyField, rec.Key, err)
				}
				records++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return records, skipped, catalogError("read features", err)
	}
	// The cursor must be closed before COMMIT.
	if err := rows.Close(); err != nil {
		return records, skipped, catalogError("close feature cursor", err)
	}

	return records, skipped, nil
}

// classify decodes one row. Undecodable geometry skips the row; an invalid
// envelope or a non-integer key is fatal.
func (b *SpatialIndexBuilder) classify(blob, key any, indexTable, keyField string) rowResult {
	data, ok := geometryBytes(blob)
	switch {
	case blob == nil:
		return rowResult{outcome: rowSkip, reason: "null geometry"}
	case !ok:
		return rowResult{outcome: rowSkip, reason: "geometry column holds " + KindOf(blob).String()}
	}

	shapes, err := b.decoder.Decode(data)
	if err != nil {
		return rowResult{outcome: rowSkip, reason: err.Error()}
	}
	if len(shapes) == 0 {
		return rowResult{outcome: rowSkip, reason: "geometry has no members"}
	}

	records := make([]IndexRecord, 0, len(shapes))
	for _, shape := range shapes {
		if !shape.Envelope.Valid() {
			return rowResult{outcome: rowFatal, err: &InvalidGeometryError{
				IndexTable: indexTable, KeyField: keyField, Key: key,
			}}
		}
		k, ok := key.(int64)
		if !ok {
			return rowResult{outcome: rowFatal, err: &TypeMismatchError{
				IndexTable: indexTable, KeyField: keyField, Kind: KindOf(key),
			}}
		}
		records = append(records, IndexRecord{Key: k, Envelope: shape.Envelope})
	}

	return rowResult{outcome: rowOK, records: records}
}

// geometryBytes returns the raw bytes of a geometry column value. Blobs
// stored with text affinity come back as strings.
func geometryBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	default:
		return nil, false
	}
}

// cleanup removes an artifact that this build created. Errors are logged
// and otherwise ignored.
func (b *SpatialIndexBuilder) cleanup(ctx context.Context, artifact IndexArtifact, existed bool, log Logger) {
	if existed {
		return
	}
	if err := artifact.Remove(ctx); err != nil {
		log.Warn("failed to remove index artifact", "error", err)
	}
}

// createIndexSQL returns the R*Tree DDL. When several shapes may share a key
// the key moves to an auxiliary column and the rtree id is auto-assigned.
func createIndexSQL(indexTable string, multiple bool) string {
	if multiple {
		return fmt.Sprintf("CREATE VIRTUAL TABLE %s USING rtree(id, xmin, xmax, ymin, ymax, +pkid)", indexTable)
	}
	return fmt.Sprintf("CREATE VIRTUAL TABLE %s USING rtree(pkid, xmin, xmax, ymin, ymax)", indexTable)
}

func insertIndexSQL(indexTable string) string {
	return fmt.Sprintf("INSERT INTO %s (pkid, xmin, xmax, ymin, ymax) VALUES (?, ?, ?, ?, ?)", indexTable)
}
