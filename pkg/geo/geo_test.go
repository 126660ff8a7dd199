package geo

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWKB(t *testing.T, g orb.Geometry, order ...binary.ByteOrder) []byte {
	t.Helper()
	data, err := wkb.Marshal(g, order...)
	require.NoError(t, err)
	return data
}

func TestDecodePoint(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	shapes, err := d.Decode(mustWKB(t, orb.Point{10, 20}))
	require.NoError(t, err)
	require.Len(t, shapes, 1)

	e := shapes[0].Envelope
	assert.True(t, e.Valid())
	assert.Equal(t, NewEnvelope(10, 20, 10, 20), e)
}

func TestDecodeBigEndian(t *testing.T) {
	d := NewDecoder(DecoderOptions{})
	line := orb.LineString{{0, 0}, {3, -4}, {1, 7}}

	shapes, err := d.Decode(mustWKB(t, line, binary.BigEndian))
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, NewEnvelope(0, -4, 3, 7), shapes[0].Envelope)
}

func TestDecodeEWKB(t *testing.T) {
	d := NewDecoder(DecoderOptions{})
	data, err := ewkb.Marshal(orb.Point{1.5, -2.5}, 4326)
	require.NoError(t, err)

	shapes, err := d.Decode(data)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, NewEnvelope(1.5, -2.5, 1.5, -2.5), shapes[0].Envelope)
}

func TestDecodeGeoPackage(t *testing.T) {
	d := NewDecoder(DecoderOptions{})
	header := []byte{'G', 'P', 0, 0x01, 0xE6, 0x10, 0, 0}
	blob := append(header, mustWKB(t, orb.Polygon{{{0, 0}, {4, 0}, {4, 2}, {0, 0}}})...)

	shapes, err := d.Decode(blob)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, NewEnvelope(0, 0, 4, 2), shapes[0].Envelope)
}

func TestDecodeMalformed(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	for name, blob := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("definitely not wkb"),
		"truncated": mustWKB(t, orb.Point{1, 2})[:9],
	} {
		t.Run(name, func(t *testing.T) {
			shapes, err := d.Decode(blob)
			assert.Empty(t, shapes)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecodeFormatDisabled(t *testing.T) {
	d := NewDecoder(DecoderOptions{Formats: FormatGeoPackage})

	shapes, err := d.Decode(mustWKB(t, orb.Point{1, 2}))
	assert.Empty(t, shapes)
	assert.ErrorIs(t, err, ErrFormatDisabled)
}

func TestDecodeMultiple(t *testing.T) {
	collection := orb.Collection{
		orb.Point{10, 10},
		orb.MultiPoint{{-1, -1}, {2, 3}},
		orb.LineString{{5, 5}, {6, 8}},
	}
	blob := mustWKB(t, collection)

	single := NewDecoder(DecoderOptions{AllowMultiple: false})
	shapes, err := single.Decode(blob)
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.Equal(t, NewEnvelope(-1, -1, 10, 10), shapes[0].Envelope)

	multi := NewDecoder(DecoderOptions{AllowMultiple: true})
	shapes, err = multi.Decode(blob)
	require.NoError(t, err)
	require.Len(t, shapes, 4)
	assert.Equal(t, NewEnvelope(10, 10, 10, 10), shapes[0].Envelope)
	assert.Equal(t, NewEnvelope(-1, -1, -1, -1), shapes[1].Envelope)
	assert.Equal(t, NewEnvelope(2, 3, 2, 3), shapes[2].Envelope)
	assert.Equal(t, NewEnvelope(5, 5, 6, 8), shapes[3].Envelope)

	assert.Equal(t, NewEnvelope(-1, -1, 10, 10), multi.Envelope(blob))
}

func TestDecodeEmptyGeometryIsInvalid(t *testing.T) {
	d := NewDecoder(DecoderOptions{})

	shapes, err := d.Decode(mustWKB(t, orb.LineString{}))
	require.NoError(t, err)
	require.Len(t, shapes, 1)
	assert.False(t, shapes[0].Envelope.Valid())
}

func TestDecodeEmptyContainersYieldNoShapes(t *testing.T) {
	gpkgEmpty := append([]byte{'G', 'P', 0, 0x01 | 0x10, 0, 0, 0, 0},
		mustWKB(t, orb.Point{math.NaN(), math.NaN()})...)

	blobs := map[string][]byte{
		"geopackage empty flag": gpkgEmpty,
		"empty multipolygon":    mustWKB(t, orb.MultiPolygon{}),
		"empty collection":      mustWKB(t, orb.Collection{}),
		"nested empty members":  mustWKB(t, orb.Collection{orb.MultiPoint{}, orb.Collection{}}),
	}

	for _, allowMultiple := range []bool{false, true} {
		d := NewDecoder(DecoderOptions{AllowMultiple: allowMultiple})
		for name, blob := range blobs {
			t.Run(name, func(t *testing.T) {
				shapes, err := d.Decode(blob)
				require.NoError(t, err, "allowMultiple=%v", allowMultiple)
				assert.Empty(t, shapes, "allowMultiple=%v", allowMultiple)
				assert.False(t, d.Envelope(blob).Valid())
			})
		}
	}
}

func TestEnvelope(t *testing.T) {
	e := NewEnvelope(5, 6, 1, 2)
	assert.Equal(t, 1.0, e.MinX)
	assert.Equal(t, 2.0, e.MinY)
	assert.Equal(t, 5.0, e.MaxX)
	assert.Equal(t, 6.0, e.MaxY)
	assert.Equal(t, 4.0, e.Width())
	assert.Equal(t, 4.0, e.Height())

	assert.False(t, Envelope{}.Valid())
	assert.False(t, NewEnvelope(math.NaN(), 0, 1, 1).Valid())
	assert.False(t, NewEnvelope(0, 0, math.Inf(1), 1).Valid())

	emptyBound := orb.MultiPoint{}.Bound()
	assert.False(t, EnvelopeFromBound(emptyBound).Valid())

	assert.Equal(t, e, e.Union(Envelope{}))
	assert.Equal(t, e, Envelope{}.Union(e))
}

func TestAggregatorScenario(t *testing.T) {
	d := NewDecoder(DecoderOptions{})
	shapes, err := d.Decode(mustWKB(t, orb.Point{10, 20}))
	require.NoError(t, err)

	var agg Aggregator
	agg.AddShapes(shapes)
	agg.Add(NewEnvelope(0, 0, 5, 5))

	extent, ok := agg.Extent()
	require.True(t, ok)
	assert.Equal(t, NewEnvelope(0, 0, 10, 20), extent)
	assert.Equal(t, 2, agg.Count())
}

func TestAggregatorEmpty(t *testing.T) {
	var agg Aggregator
	_, ok := agg.Extent()
	assert.False(t, ok)

	assert.False(t, agg.Add(Envelope{}))
	assert.False(t, agg.Add(NewEnvelope(math.NaN(), 0, 0, 0)))
	_, ok = agg.Extent()
	assert.False(t, ok, "invalid envelopes must not produce an extent")
}

func TestAggregatorMatchesComponentwiseFold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var agg Aggregator
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)

		n := 1 + rng.Intn(20)
		for i := 0; i < n; i++ {
			e := NewEnvelope(rng.Float64()*200-100, rng.Float64()*200-100,
				rng.Float64()*200-100, rng.Float64()*200-100)
			agg.Add(e)
			if rng.Intn(4) == 0 {
				agg.Add(Envelope{})
			}
			minX, minY = math.Min(minX, e.MinX), math.Min(minY, e.MinY)
			maxX, maxY = math.Max(maxX, e.MaxX), math.Max(maxY, e.MaxY)
		}

		extent, ok := agg.Extent()
		require.True(t, ok)
		assert.Equal(t, NewEnvelope(minX, minY, maxX, maxY), extent)
		assert.Equal(t, n, agg.Count())
	}

	var agg Aggregator
	agg.Add(NewEnvelope(0, 0, 1, 1))
	agg.Reset()
	_, ok := agg.Extent()
	assert.False(t, ok)
}
