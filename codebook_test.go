package kmercodebook

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmercodebook/cluster"
	"github.com/hupe1980/kmercodebook/kmedoids"
	"github.com/hupe1980/kmercodebook/sequence"
)

func proteinSeqs() []*sequence.Sequence {
	return []*sequence.Sequence{
		sequence.New("s1", []byte("mkvlaatgllvkvm")),
		sequence.New("s2", []byte("mkvlaatgllvkvm")),
		sequence.New("s3", []byte("gttkalvmklavgt")),
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(0, 10)
	assert.ErrorIs(t, err, ErrInvalidKmerLength)
}

func TestBuildEmptyInput(t *testing.T) {
	cb, err := New(4, 30)
	require.NoError(t, err)

	_, err = cb.Build(context.Background(), nil, 5)
	assert.ErrorIs(t, err, ErrNoSequences)
}

func TestBuildAssignsEverything(t *testing.T) {
	// Threshold 30 exceeds the worst self-distance of these residues, so
	// every k-mer is clusterable.
	cb, err := New(4, 30, WithSeed(17), WithWorkers(2))
	require.NoError(t, err)

	res, err := cb.Build(context.Background(), proteinSeqs(), 3)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Unassigned)
	assert.NotEmpty(t, cb.Clusters())
	assert.Greater(t, res.AssignedInstances, 0)

	for _, c := range cb.Clusters() {
		idx := c.Index()
		for _, id := range c.Members() {
			d := cb.table.Distance(idx.Kmer(id).Code(), c.Prototype().Kmer().Code(), 4)
			assert.LessOrEqual(t, d, cb.threshold)
		}
	}
}

func TestPrototypePersistenceRoundTrip(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionGzip, CompressionLZ4} {
		t.Run(compression.String(), func(t *testing.T) {
			cb, err := New(4, 30, WithSeed(5), WithCompression(compression))
			require.NoError(t, err)

			res, err := cb.Build(context.Background(), proteinSeqs(), 4)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, cb.SavePrototypes(&buf))

			// A fresh codebook restores the prototypes and extends them
			// without seeding: coverage can only stay or improve.
			cb2, err := New(4, 30, WithSeed(5))
			require.NoError(t, err)
			require.NoError(t, cb2.LoadPrototypes(&buf))

			// Only prototypes that attracted members are persisted.
			var saved []*cluster.Prototype
			for _, p := range cb.Prototypes() {
				if p.Size() > 0 {
					saved = append(saved, p)
				}
			}
			require.NotEmpty(t, saved)
			require.Len(t, cb2.Prototypes(), len(saved))
			for i, p := range cb2.Prototypes() {
				assert.Equal(t, saved[i].ID(), p.ID())
				assert.Equal(t, saved[i].Kmer().Word(), p.Kmer().Word())
				assert.Equal(t, saved[i].Size(), p.Size())
			}
			assert.Equal(t, saved[len(saved)-1].Serial()+1, cb2.nextSerial)

			res2, err := cb2.Build(context.Background(), proteinSeqs(), 0)
			require.NoError(t, err)
			assert.LessOrEqual(t, res2.Unassigned, res.Unassigned)
		})
	}
}

func TestLoadPrototypesRejectsForeignRecords(t *testing.T) {
	cb, err := New(4, 30)
	require.NoError(t, err)

	err = cb.LoadPrototypes(strings.NewReader(">seq1 size=3\nmkvl\n"))
	var perr *ErrInvalidPrototype
	assert.ErrorAs(t, err, &perr)
}

func TestLoadPrototypesRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no residues", input: ">proto_1 size=3\n>proto_2 size=4\nmkvl\n"},
		{name: "short residues", input: ">proto_1 size=3\nmk\n"},
		{name: "long residues", input: ">proto_1 size=3\nmkvlaa\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := New(4, 30)
			require.NoError(t, err)

			err = cb.LoadPrototypes(strings.NewReader(tt.input))
			var perr *ErrInvalidPrototype
			require.ErrorAs(t, err, &perr)
			assert.Empty(t, cb.Prototypes(), "malformed input loads nothing")
		})
	}
}

func TestSaveClustersFormat(t *testing.T) {
	cb, err := New(4, 30, WithSeed(2))
	require.NoError(t, err)

	_, err = cb.Build(context.Background(), proteinSeqs(), 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cb.SaveClusters(&buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := 0
	for _, c := range cb.Clusters() {
		want += 1 + c.Size()
	}
	assert.Len(t, lines, want)
	assert.True(t, strings.HasPrefix(lines[0], "Cluster,"))
}

func TestRefine(t *testing.T) {
	cb, err := New(4, 30, WithSeed(9))
	require.NoError(t, err)

	seqs := proteinSeqs()
	windows := make([]sequence.Window, len(seqs))
	for i, s := range seqs {
		windows[i] = sequence.Window{Seq: s, Start: 0, Length: s.Len()}
	}

	clusters, err := cb.Refine(context.Background(), windows, kmedoids.DefaultConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, clusters)
	assert.Equal(t, cb.Clusters(), clusters)
	for _, c := range clusters {
		assert.True(t, strings.HasPrefix(c.Prototype().ID(), "proto_"))
		assert.Greater(t, c.Prototype().Size(), 0)
	}
}

func TestSizeFromDefline(t *testing.T) {
	assert.Equal(t, 12, sizeFromDefline("proto_3 size=12"))
	assert.Equal(t, 7, sizeFromDefline("proto_9|size=7;other=1"))
	assert.Equal(t, 0, sizeFromDefline("proto_9"))
	assert.Equal(t, 0, sizeFromDefline("proto_9 size=abc"))
}
