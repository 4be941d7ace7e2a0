package fasta

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `>seq1 some description
ACGTACGT
ACGT
>proto_3 size=12
MKVLAA

>seq3
TTTT
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "seq1", records[0].ID)
	assert.Equal(t, "seq1 some description", records[0].Defline)
	assert.Equal(t, "ACGTACGTACGT", string(records[0].Residues), "continuation lines concatenate")

	assert.Equal(t, "proto_3", records[1].ID)
	assert.Equal(t, "MKVLAA", string(records[1].Residues))

	assert.Equal(t, "TTTT", string(records[2].Residues))
}

func TestParseNoHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("ACGT\n"))
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestWriteRoundTrip(t *testing.T) {
	in := []Record{
		{ID: "a", Defline: "a first", Residues: []byte("ACGT")},
		{ID: "b", Residues: []byte("TTTT")},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	out, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, in[0].Defline, out[0].Defline)
	assert.Equal(t, in[0].Residues, out[0].Residues)
	assert.Equal(t, "b", out[1].Defline, "missing defline falls back to the ID")
}

func TestFileGzipRoundTrip(t *testing.T) {
	dir := t.TempDir()
	records := []Record{{ID: "s1", Residues: []byte("ACGTACGT")}}

	path := filepath.Join(dir, "db.fasta.gz")
	require.NoError(t, WriteFile(path, records))

	out, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, records[0].Residues, out[0].Residues)
}

func TestReadFileDetectsGzipWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.fasta")

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(">s1\nACGT\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	out, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ACGT", string(out[0].Residues))
}
