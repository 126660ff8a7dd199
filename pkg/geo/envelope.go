// Package geo decodes binary geometry blobs and folds their bounding boxes
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Envelope is an axis-aligned bounding box. The zero value is invalid and
// carries no meaningful bounds.
type Envelope struct {
	MinX  float64 `json:"minx"`
	MinY  float64 `json:"miny"`
	MaxX  float64 `json:"maxx"`
	MaxY  float64 `json:"maxy"`
	valid bool
}

// NewEnvelope creates an envelope from two corners in any order.
// The result is invalid if any ordinate is NaN or infinite.
func NewEnvelope(x0, y0, x1, y1 float64) Envelope {
	e := Envelope{
		MinX: math.Min(x0, x1),
		MinY: math.Min(y0, y1),
		MaxX: math.Max(x0, x1),
		MaxY: math.Max(y0, y1),
	}
	e.valid = isFinite(x0) && isFinite(y0) && isFinite(x1) && isFinite(y1)
	return e
}

// EnvelopeFromBound converts an orb bound, treating empty bounds as invalid
func EnvelopeFromBound(b orb.Bound) Envelope {
	if b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] {
		return Envelope{}
	}
	return NewEnvelope(b.Min[0], b.Min[1], b.Max[0], b.Max[1])
}

// Valid reports whether the envelope has finite, ordered bounds
func (e Envelope) Valid() bool {
	return e.valid && e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

// Union returns the smallest envelope covering both e and other.
// An invalid side is ignored.
func (e Envelope) Union(other Envelope) Envelope {
	switch {
	case !other.Valid():
		return e
	case !e.Valid():
		return other
	}
	return Envelope{
		MinX:  math.Min(e.MinX, other.MinX),
		MinY:  math.Min(e.MinY, other.MinY),
		MaxX:  math.Max(e.MaxX, other.MaxX),
		MaxY:  math.Max(e.MaxY, other.MaxY),
		valid: true,
	}
}

// Width returns MaxX - MinX, or 0 for invalid envelopes
func (e Envelope) Width() float64 {
	if !e.Valid() {
		return 0
	}
	return e.MaxX - e.MinX
}

// Height returns MaxY - MinY, or 0 for invalid envelopes
func (e Envelope) Height() float64 {
	if !e.Valid() {
		return 0
	}
	return e.MaxY - e.MinY
}

// Bound converts the envelope back into an orb bound
func (e Envelope) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.MinX, e.MinY},
		Max: orb.Point{e.MaxX, e.MaxY},
	}
}

func (e Envelope) String() string {
	if !e.Valid() {
		return "envelope(invalid)"
	}
	return fmt.Sprintf("envelope(%g %g, %g %g)", e.MinX, e.MinY, e.MaxX, e.MaxY)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
