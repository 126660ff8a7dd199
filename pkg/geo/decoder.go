package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/liliang-cn/sqgeo/internal/encoding"
)

var (
	// ErrEmptyBlob is returned when a geometry column holds no bytes
	ErrEmptyBlob = errors.New("empty geometry blob")

	// ErrFormatDisabled is returned when a blob uses a format the decoder rejects
	ErrFormatDisabled = errors.New("geometry format disabled")
)

// DecodeError reports a malformed or unparsable geometry blob.
// It is a per-row condition; callers skip the row.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("geo: decode: %v", e.Err)
	}
	return fmt.Sprintf("geo: decode %s blob: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Format is a bit set of accepted blob encodings
type Format uint8

const (
	FormatWKB Format = 1 << iota
	FormatEWKB
	FormatGeoPackage
	FormatSpatiaLite

	// FormatAuto accepts every supported encoding
	FormatAuto = FormatWKB | FormatEWKB | FormatGeoPackage | FormatSpatiaLite
)

var formatOf = map[encoding.Variant]Format{
	encoding.VariantWKB:        FormatWKB,
	encoding.VariantEWKB:       FormatEWKB,
	encoding.VariantGeoPackage: FormatGeoPackage,
	encoding.VariantSpatiaLite: FormatSpatiaLite,
}

// DecoderOptions configures a Decoder
type DecoderOptions struct {
	// AllowMultiple splits multi-geometries and collections into one shape
	// per member. When false every non-empty blob yields exactly one shape.
	AllowMultiple bool

	// Formats restricts accepted encodings; zero means FormatAuto
	Formats Format
}

// Shape is one decoded geometry with its envelope
type Shape struct {
	Geometry orb.Geometry
	Envelope Envelope
}

// Decoder parses geometry blobs. It holds no mutable state and is safe to
// share between goroutines.
type Decoder struct {
	allowMultiple bool
	formats       Format
}

// NewDecoder creates a decoder with the given options
func NewDecoder(opts DecoderOptions) *Decoder {
	formats := opts.Formats
	if formats == 0 {
		formats = FormatAuto
	}
	return &Decoder{
		allowMultiple: opts.AllowMultiple,
		formats:       formats,
	}
}

// AllowMultiple reports whether one blob may produce several shapes
func (d *Decoder) AllowMultiple() bool {
	return d.allowMultiple
}

// Decode parses blob into shapes. Malformed input returns an empty slice
// and a *DecodeError. A GeoPackage blob flagged empty and a multi-geometry
// or collection without members decode to no shapes and no error.
func (d *Decoder) Decode(blob []byte) ([]Shape, error) {
	if len(blob) == 0 {
		return nil, &DecodeError{Err: ErrEmptyBlob}
	}

	variant, payload, err := encoding.Unwrap(blob)
	if errors.Is(err, encoding.ErrEmptyGeometry) {
		if d.formats&formatOf[variant] == 0 {
			return nil, &DecodeError{Format: variant.String(), Err: ErrFormatDisabled}
		}
		return nil, nil
	}
	if err != nil {
		return nil, &DecodeError{Format: variant.String(), Err: err}
	}
	if d.formats&formatOf[variant] == 0 {
		return nil, &DecodeError{Format: variant.String(), Err: ErrFormatDisabled}
	}

	var geom orb.Geometry
	if encoding.Detect(payload) == encoding.VariantEWKB {
		geom, _, err = ewkb.Unmarshal(payload)
	} else {
		geom, err = wkb.Unmarshal(payload)
	}
	if err != nil {
		return nil, &DecodeError{Format: variant.String(), Err: err}
	}
	if geom == nil {
		return nil, &DecodeError{Format: variant.String(), Err: ErrEmptyBlob}
	}

	members := flatten(geom, nil)
	if len(members) == 0 {
		return nil, nil
	}
	if !d.allowMultiple {
		return []Shape{newShape(geom)}, nil
	}

	shapes := make([]Shape, 0, len(members))
	for _, m := range members {
		shapes = append(shapes, newShape(m))
	}
	return shapes, nil
}

// Envelope decodes blob and returns the envelope covering all its shapes.
// The result is invalid when the blob is malformed or empty.
func (d *Decoder) Envelope(blob []byte) Envelope {
	shapes, err := d.Decode(blob)
	if err != nil {
		return Envelope{}
	}
	var agg Aggregator
	agg.AddShapes(shapes)
	e, _ := agg.Extent()
	return e
}

func newShape(g orb.Geometry) Shape {
	return Shape{Geometry: g, Envelope: EnvelopeFromBound(g.Bound())}
}

func flatten(g orb.Geometry, out []orb.Geometry) []orb.Geometry {
	switch v := g.(type) {
	case nil:
	case orb.MultiPoint:
		for _, p := range v {
			out = append(out, p)
		}
	case orb.MultiLineString:
		for _, ls := range v {
			out = append(out, ls)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			out = append(out, p)
		}
	case orb.Collection:
		for _, m := range v {
			out = flatten(m, out)
		}
	default:
		out = append(out, g)
	}
	return out
}
