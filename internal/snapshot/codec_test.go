package snapshot

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/schemarecall/internal/ledger"
)

func sampleVectors(dim, count int) [][]float32 {
	out := make([][]float32, count)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			// Repetitive enough to compress.
			v[j] = float32((i+j)%7) * 0.125
		}
		out[i] = v
	}
	return out
}

func TestVectorCodecRoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			in := sampleVectors(64, 50)
			data, err := EncodeVectors(64, in, c)
			require.NoError(t, err)

			dim, out, err := DecodeVectors(data)
			require.NoError(t, err)
			assert.Equal(t, 64, dim)
			assert.Equal(t, in, out)
		})
	}
}

func TestVectorCodecPreservesBits(t *testing.T) {
	in := [][]float32{{float32(math.Pi), -0.0, math.MaxFloat32, math.SmallestNonzeroFloat32}}
	data, err := EncodeVectors(4, in, CompressionZSTD)
	require.NoError(t, err)

	_, out, err := DecodeVectors(data)
	require.NoError(t, err)
	for i := range in[0] {
		assert.Equal(t, math.Float32bits(in[0][i]), math.Float32bits(out[0][i]))
	}
}

func TestVectorCodecEmpty(t *testing.T) {
	data, err := EncodeVectors(8, nil, CompressionLZ4)
	require.NoError(t, err)

	dim, out, err := DecodeVectors(data)
	require.NoError(t, err)
	assert.Equal(t, 8, dim)
	assert.Empty(t, out)
}

func TestVectorCodecRejectsBadInput(t *testing.T) {
	_, err := EncodeVectors(3, [][]float32{{1, 2}}, CompressionNone)
	assert.Error(t, err)

	good, err := EncodeVectors(2, [][]float32{{1, 2}}, CompressionNone)
	require.NoError(t, err)

	_, _, err = DecodeVectors(good[:10])
	assert.Error(t, err)

	bad := append([]byte(nil), good...)
	copy(bad, "XXXX")
	_, _, err = DecodeVectors(bad)
	assert.ErrorIs(t, err, ErrBadMagic)

	future := append([]byte(nil), good...)
	future[4] = 9
	_, _, err = DecodeVectors(future)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, _, err = DecodeVectors(good[:len(good)-1])
	assert.Error(t, err)
}

func TestLedgerCodecRoundTrip(t *testing.T) {
	in := []ledger.Record{
		{ID: "a", Kind: ledger.KindDDL, Content: "CREATE TABLE t(id INT)"},
		{ID: "b", Kind: ledger.KindDocumentation, Content: "t stores widgets"},
		{ID: "c", Kind: ledger.KindQuestionSQL, Question: "how many rows", SQL: "SELECT COUNT(*) FROM t"},
	}
	data, err := EncodeLedger(in)
	require.NoError(t, err)

	out, err := DecodeLedger(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeLedger([]byte{0xc1})
	assert.Error(t, err)
}

func TestDimensionCodec(t *testing.T) {
	dim, err := DecodeDimension(EncodeDimension(1024))
	require.NoError(t, err)
	assert.Equal(t, 1024, dim)

	_, err = DecodeDimension([]byte("wide"))
	assert.Error(t, err)
	_, err = DecodeDimension([]byte("-1"))
	assert.Error(t, err)
}

func TestParseCompression(t *testing.T) {
	for in, want := range map[string]Compression{"": CompressionNone, "none": CompressionNone, "LZ4": CompressionLZ4, "zstd": CompressionZSTD} {
		got, err := ParseCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCompression("gzip")
	assert.Error(t, err)
}

func TestDecodeVectorsRejectsZeroDimensionRows(t *testing.T) {
	empty, err := EncodeVectors(0, nil, CompressionNone)
	require.NoError(t, err)

	forged := append([]byte(nil), empty...)
	binary.LittleEndian.PutUint32(forged[12:], 0xFFFFFFFF)
	_, _, err = DecodeVectors(forged)
	assert.Error(t, err)

	dim, vectors, err := DecodeVectors(empty)
	require.NoError(t, err)
	assert.Zero(t, dim)
	assert.Empty(t, vectors)
}
