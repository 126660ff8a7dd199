package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Errors returned while unwrapping geometry blobs
var (
	// ErrUnknownVariant is returned when a blob matches no supported container
	ErrUnknownVariant = errors.New("unknown geometry blob variant")

	// ErrTruncated is returned when a blob ends before its declared content
	ErrTruncated = errors.New("truncated geometry blob")

	// ErrUnsupportedClass is returned for SpatiaLite classes we cannot convert
	ErrUnsupportedClass = errors.New("unsupported spatialite geometry class")

	// ErrExtendedGeoPackage is returned for GeoPackage extended geometry types
	ErrExtendedGeoPackage = errors.New("extended geopackage geometry not supported")

	// ErrEmptyGeometry is returned when the container marks its geometry empty
	ErrEmptyGeometry = errors.New("empty geometry")
)

// Variant identifies the container format of a geometry blob
type Variant int

const (
	VariantUnknown Variant = iota
	VariantWKB
	VariantEWKB
	VariantGeoPackage
	VariantSpatiaLite
)

var variantNames = map[Variant]string{
	VariantUnknown:    "unknown",
	VariantWKB:        "wkb",
	VariantEWKB:       "ewkb",
	VariantGeoPackage: "geopackage",
	VariantSpatiaLite: "spatialite",
}

var variantsByName = map[string]Variant{
	"unknown":    VariantUnknown,
	"wkb":        VariantWKB,
	"ewkb":       VariantEWKB,
	"geopackage": VariantGeoPackage,
	"spatialite": VariantSpatiaLite,
}

// String returns the string representation of the variant
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", int(v))
}

// ParseVariant maps a variant name back to its value
func ParseVariant(name string) (Variant, error) {
	v, ok := variantsByName[name]
	if !ok {
		return VariantUnknown, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}

const (
	ewkbFlagMask = 0xE0000000

	gpkgHeaderLen = 8

	splStart       = 0x00
	splMBREnd      = 0x7C
	splEntity      = 0x69
	splEnd         = 0xFE
	splHeaderLen   = 39
	splMinBlobSize = splHeaderLen + 4 + 1
)

// Detect inspects the leading bytes of a blob and reports its container
func Detect(blob []byte) Variant {
	switch {
	case len(blob) >= gpkgHeaderLen && blob[0] == 'G' && blob[1] == 'P':
		return VariantGeoPackage
	case isSpatiaLite(blob):
		return VariantSpatiaLite
	case len(blob) >= 5 && (blob[0] == 0 || blob[0] == 1):
		typ := byteOrder(blob[0]).Uint32(blob[1:5])
		if typ&ewkbFlagMask != 0 {
			return VariantEWKB
		}
		return VariantWKB
	default:
		return VariantUnknown
	}
}

func isSpatiaLite(blob []byte) bool {
	if len(blob) < splMinBlobSize {
		return false
	}
	return blob[0] == splStart &&
		(blob[1] == 0 || blob[1] == 1) &&
		blob[38] == splMBREnd &&
		blob[len(blob)-1] == splEnd
}

// byteOrder maps a WKB/SpatiaLite endianness marker to a binary.ByteOrder
func byteOrder(marker byte) binary.ByteOrder {
	if marker == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Unwrap strips container headers and returns a payload in (E)WKB form.
// The returned variant is VariantWKB or VariantEWKB for the payload itself
// when the blob was already plain, else the container that was removed.
func Unwrap(blob []byte) (Variant, []byte, error) {
	v := Detect(blob)
	switch v {
	case VariantWKB, VariantEWKB:
		return v, blob, nil
	case VariantGeoPackage:
		payload, err := unwrapGeoPackage(blob)
		return v, payload, err
	case VariantSpatiaLite:
		payload, err := spatialiteToWKB(blob)
		return v, payload, err
	default:
		return v, nil, ErrUnknownVariant
	}
}

// unwrapGeoPackage removes the GeoPackageBinary header described in
// the OGC GeoPackage encoding standard, section 2.1.3.
func unwrapGeoPackage(blob []byte) ([]byte, error) {
	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, ErrExtendedGeoPackage
	}
	if flags&0x10 != 0 {
		return nil, ErrEmptyGeometry
	}

	var envLen int
	switch (flags >> 1) & 0x07 {
	case 0:
		envLen = 0
	case 1:
		envLen = 32
	case 2, 3:
		envLen = 48
	case 4:
		envLen = 64
	default:
		return nil, fmt.Errorf("invalid geopackage envelope indicator %d", (flags>>1)&0x07)
	}

	start := gpkgHeaderLen + envLen
	if len(blob) <= start {
		return nil, ErrTruncated
	}
	return blob[start:], nil
}

// spatialiteToWKB converts an uncompressed SpatiaLite BLOB into 2D
// little-endian WKB. Z and M ordinates are dropped.
func spatialiteToWKB(blob []byte) ([]byte, error) {
	r := &splReader{
		buf:   blob[splHeaderLen : len(blob)-1],
		order: byteOrder(blob[1]),
	}
	out := make([]byte, 0, len(blob))
	out = r.geometry(out)
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(r.buf) {
		return nil, fmt.Errorf("%d trailing bytes in spatialite blob", len(r.buf)-r.off)
	}
	return out, nil
}

type splReader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
	err   error
}

func (r *splReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = ErrTruncated
		return false
	}
	return true
}

func (r *splReader) uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := r.order.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *splReader) float64() float64 {
	if !r.need(8) {
		return 0
	}
	v := math.Float64frombits(r.order.Uint64(r.buf[r.off:]))
	r.off += 8
	return v
}

func (r *splReader) byte() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

// point copies one coordinate, keeping x and y only
func (r *splReader) point(out []byte, dims int) []byte {
	x, y := r.float64(), r.float64()
	for i := 2; i < dims; i++ {
		r.float64()
	}
	out = binary.LittleEndian.AppendUint64(out, math.Float64bits(x))
	return binary.LittleEndian.AppendUint64(out, math.Float64bits(y))
}

func (r *splReader) points(out []byte, dims int) []byte {
	n := r.uint32()
	if r.err == nil && uint64(n)*uint64(dims)*8 > uint64(len(r.buf)-r.off) {
		r.err = ErrTruncated
		return out
	}
	out = binary.LittleEndian.AppendUint32(out, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		out = r.point(out, dims)
	}
	return out
}

func (r *splReader) geometry(out []byte) []byte {
	class := r.uint32()
	if r.err != nil {
		return out
	}
	// 1000 is Z, 2000 is M, 3000 is ZM; compressed classes start at 1000000.
	base, dims := class%1000, 2
	switch class / 1000 {
	case 0:
	case 1, 2:
		dims = 3
	case 3:
		dims = 4
	default:
		r.err = fmt.Errorf("%w: %d", ErrUnsupportedClass, class)
		return out
	}
	if base < 1 || base > 7 {
		r.err = fmt.Errorf("%w: %d", ErrUnsupportedClass, class)
		return out
	}

	out = append(out, 1)
	out = binary.LittleEndian.AppendUint32(out, base)

	switch base {
	case 1:
		out = r.point(out, dims)
	case 2:
		out = r.points(out, dims)
	case 3:
		rings := r.uint32()
		out = binary.LittleEndian.AppendUint32(out, rings)
		for i := uint32(0); i < rings && r.err == nil; i++ {
			out = r.points(out, dims)
		}
	default:
		n := r.uint32()
		out = binary.LittleEndian.AppendUint32(out, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			if marker := r.byte(); r.err == nil && marker != splEntity {
				r.err = fmt.Errorf("bad spatialite entity marker 0x%02x", marker)
				break
			}
			out = r.geometry(out)
		}
	}
	return out
}
