package kmercodebook

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(">proto_1 size=4\nmkvl\n"), 100)

	for _, compression := range []Compression{CompressionNone, CompressionGzip, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			var buf bytes.Buffer

			w, err := compressWriter(&buf, compression)
			require.NoError(t, err)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			r, err := decompressReader(&buf)
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)

			assert.Equal(t, payload, out)
		})
	}
}

func TestCompressionUnknown(t *testing.T) {
	var buf bytes.Buffer
	_, err := compressWriter(&buf, Compression(99))

	var cerr *ErrUnknownCompression
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, Compression(99), cerr.Compression)
}

func TestDecompressReaderShortInput(t *testing.T) {
	r, err := decompressReader(bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "x", string(out))
}
