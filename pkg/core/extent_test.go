package core

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/liliang-cn/sqgeo/pkg/geo"
)

func createMetadata(t *testing.T, s *Store, table string, e geo.Envelope) {
	t.Helper()
	mustExec(t, s.DB(), `CREATE TABLE IF NOT EXISTS layer_extents (f_table_name TEXT, xmin REAL, ymin REAL, xmax REAL, ymax REAL)`)
	mustExec(t, s.DB(), `INSERT INTO layer_extents VALUES (?, ?, ?, ?, ?)`, table, e.MinX, e.MinY, e.MaxX, e.MaxY)
}

func TestResolveExtent(t *testing.T) {
	req := ExtentRequest{Table: "features", GeometryField: "geom", KeyField: "id"}
	scanned := geo.NewEnvelope(0, 0, 10, 20)
	catalogued := geo.NewEnvelope(-180, -90, 180, 90)

	tests := []struct {
		name       string
		mutate     func(*Config)
		metadata   bool
		buildIndex bool
		req        ExtentRequest
		want       ExtentResult
	}{
		{
			name:       "index wins over metadata",
			mutate:     func(c *Config) { c.MetadataTable = "layer_extents" },
			metadata:   true,
			buildIndex: true,
			req:        req,
			want:       ExtentResult{Extent: scanned, Source: ExtentFromIndex},
		},
		{
			name:       "in-store index",
			mutate:     func(c *Config) { c.IndexInStore = true },
			buildIndex: true,
			req:        req,
			want:       ExtentResult{Extent: scanned, Source: ExtentFromIndex},
		},
		{
			name:     "metadata without index",
			mutate:   func(c *Config) { c.MetadataTable = "layer_extents" },
			metadata: true,
			req:      req,
			want:     ExtentResult{Extent: catalogued, Source: ExtentFromMetadata},
		},
		{
			name: "index ignored when disabled",
			mutate: func(c *Config) {
				c.UseSpatialIndex = false
				c.MetadataTable = "layer_extents"
			},
			metadata:   true,
			buildIndex: true,
			req:        req,
			want:       ExtentResult{Extent: catalogued, Source: ExtentFromMetadata},
		},
		{
			name: "metadata miss falls back to scan",
			mutate: func(c *Config) {
				c.MetadataTable = "layer_extents"
			},
			req:  req,
			want: ExtentResult{Extent: scanned, Source: ExtentFromScan},
		},
		{
			name: "scan",
			req:  req,
			want: ExtentResult{Extent: scanned, Source: ExtentFromScan},
		},
		{
			name: "unknown without key",
			req:  ExtentRequest{Table: "features", GeometryField: "geom"},
			want: ExtentResult{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, tt.mutate)
			ctx := context.Background()
			createFeatures(t, s.DB(),
				mustWKB(t, orb.Point{10, 20}),
				malformed,
				mustWKB(t, orb.Polygon{{{0, 0}, {5, 0}, {5, 5}, {0, 0}}}),
			)
			if s.Config().MetadataTable != "" {
				mustExec(t, s.DB(), `CREATE TABLE layer_extents (f_table_name TEXT, xmin REAL, ymin REAL, xmax REAL, ymax REAL)`)
			}
			if tt.metadata {
				createMetadata(t, s, "FEATURES", catalogued)
			}
			if tt.buildIndex {
				if _, err := s.BuildSpatialIndex(ctx, featureIndexRequest()); err != nil {
					t.Fatalf("BuildSpatialIndex() error = %v", err)
				}
			}

			got, err := s.ResolveExtent(ctx, tt.req)
			if err != nil {
				t.Fatalf("ResolveExtent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveExtent() = %+v (%s), want %+v (%s)", got, got.Source, tt.want, tt.want.Source)
			}
			if got.Known() != (tt.want.Source != ExtentUnknown) {
				t.Errorf("Known() = %v", got.Known())
			}
		})
	}
}

func TestResolveExtentEmptyTableIsUnknown(t *testing.T) {
	s := newTestStore(t, nil)
	createFeatures(t, s.DB(), malformed)

	got, err := s.ResolveExtent(context.Background(), ExtentRequest{Table: "features", GeometryField: "geom", KeyField: "id"})
	if err != nil {
		t.Fatalf("ResolveExtent() error = %v", err)
	}
	if got.Known() {
		t.Errorf("ResolveExtent() = %+v, want unknown", got)
	}
}

func TestResolveExtentTextGeometryMatchesIndex(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	db := s.DB()
	mustExec(t, db, `CREATE TABLE features (id INTEGER PRIMARY KEY, geom TEXT)`)
	for i, p := range []orb.Point{{-3, 4}, {7, -1}} {
		mustExec(t, db, `INSERT INTO features VALUES (?, CAST(? AS TEXT))`, i+1, mustWKB(t, p))
	}
	req := ExtentRequest{Table: "features", GeometryField: "geom", KeyField: "id"}
	want := geo.NewEnvelope(-3, -1, 7, 4)

	scanned, err := s.ResolveExtent(ctx, req)
	if err != nil {
		t.Fatalf("ResolveExtent() error = %v", err)
	}
	if scanned.Source != ExtentFromScan || scanned.Extent != want {
		t.Errorf("scan = %+v, want %v from scan", scanned, want)
	}

	if _, err := s.BuildSpatialIndex(ctx, featureIndexRequest()); err != nil {
		t.Fatalf("BuildSpatialIndex() error = %v", err)
	}
	indexed, err := s.ResolveExtent(ctx, req)
	if err != nil {
		t.Fatalf("ResolveExtent() error = %v", err)
	}
	if indexed.Source != ExtentFromIndex || indexed.Extent != scanned.Extent {
		t.Errorf("index = %+v, want %v from index", indexed, scanned.Extent)
	}
}

func TestResolveExtentMetadataUnparsable(t *testing.T) {
	s := newTestStore(t, func(c *Config) { c.MetadataTable = "layer_extents" })
	createFeatures(t, s.DB(), mustWKB(t, orb.Point{1, 1}))
	mustExec(t, s.DB(), `CREATE TABLE layer_extents (f_table_name TEXT, xmin, ymin, xmax, ymax)`)
	mustExec(t, s.DB(), `INSERT INTO layer_extents VALUES ('features', 'west', 0, 1, 1)`)

	got, err := s.ResolveExtent(context.Background(), ExtentRequest{Table: "features", GeometryField: "geom", KeyField: "id"})
	if err != nil {
		t.Fatalf("ResolveExtent() error = %v", err)
	}
	if got.Source != ExtentFromScan {
		t.Errorf("Source = %s, want scan after unparsable metadata", got.Source)
	}
}

func TestResolveExtentMetadataQueryFails(t *testing.T) {
	s := newTestStore(t, func(c *Config) { c.MetadataTable = "no_such_table" })
	createFeatures(t, s.DB(), mustWKB(t, orb.Point{1, 1}))

	_, err := s.ResolveExtent(context.Background(), ExtentRequest{Table: "features", GeometryField: "geom", KeyField: "id"})
	if !errors.Is(err, ErrCatalog) {
		t.Errorf("ResolveExtent() error = %v, want ErrCatalog", err)
	}
}

func TestEnvelopeFromValues(t *testing.T) {
	e, err := envelopeFromValues("q", [4]any{int64(1), "2.5", []byte(" 3 "), 4.0})
	if err != nil {
		t.Fatalf("envelopeFromValues() error = %v", err)
	}
	if want := geo.NewEnvelope(1, 2.5, 3, 4); e != want {
		t.Errorf("envelopeFromValues() = %v, want %v", e, want)
	}

	_, err = envelopeFromValues("q", [4]any{"x", 0.0, 1.0, 1.0})
	var ce *CastError
	if !errors.As(err, &ce) || !errors.Is(err, ErrCast) {
		t.Fatalf("error = %v, want *CastError", err)
	}
	if ce.Query != "q" || ce.Value != "x" {
		t.Errorf("CastError = %+v", ce)
	}
}

func TestExtentSourceText(t *testing.T) {
	for src, want := range map[ExtentSource]string{
		ExtentUnknown:      "unknown",
		ExtentFromIndex:    "index",
		ExtentFromMetadata: "metadata",
		ExtentFromScan:     "scan",
		ExtentProvided:     "provided",
	} {
		b, err := src.MarshalText()
		if err != nil || string(b) != want {
			t.Errorf("MarshalText(%d) = %q, %v; want %q", int(src), b, err, want)
		}
	}
}
