package snapshot

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/raggo/corpus"
	"github.com/hupe1980/raggo/model"
)

func testState() *corpus.State {
	return &corpus.State{
		Version:    7,
		MaxChunkID: 3,
		Chunks: []model.Chunk{
			{
				ID:         1,
				DocumentID: "a",
				Text:       "the first chunk carries enough text to compress",
				Range:      model.CharRange{Start: 0, End: 47},
				TokenCount: 8,
				Embedding:  []float32{0.1, 0.2, 0.3},
				Collection: "contracts",
			},
			{
				ID:         3,
				DocumentID: "b",
				Text:       "the deleted one",
				Range:      model.CharRange{Start: 0, End: 15},
				TokenCount: 3,
			},
		},
		Tombstones: []uint64{3},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(string(compression), func(t *testing.T) {
			var buf bytes.Buffer
			st := testState()

			err := Save(&buf, st, func(o *Options) {
				o.Compression = compression
			})
			require.NoError(t, err)

			got, err := Load(&buf)
			require.NoError(t, err)
			assert.Equal(t, st, got)
		})
	}
}

func TestLoad_InvalidMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(0xdeadbeef)))
	buf.Write(make([]byte, 32))

	_, err := Load(&buf)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testState()))

	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[4:], 99)

	_, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidVersion)
}

func TestLoad_CorruptedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testState(), func(o *Options) {
		o.Compression = CompressionNone
	}))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestLoad_OversizedPayloadLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testState(), func(o *Options) {
		o.Compression = CompressionNone
	}))

	// Rewrite the length field: magic, version, codec name, compression
	// name, checksum precede it.
	data := buf.Bytes()
	off := 8 + 1 + len("json") + 1 + len("none") + 4
	binary.LittleEndian.PutUint64(data[off:], math.MaxUint64)

	_, err := Load(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrInvalidPayloadLen)
}

func TestLoad_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, testState()))

	data := buf.Bytes()
	_, err := Load(bytes.NewReader(data[:len(data)-8]))
	assert.Error(t, err)
}

func TestSave_UnknownCompression(t *testing.T) {
	var buf bytes.Buffer
	err := Save(&buf, testState(), func(o *Options) {
		o.Compression = Compression("snappy")
	})
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
