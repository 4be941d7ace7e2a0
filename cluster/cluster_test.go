package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/kmer"
	"github.com/hupe1980/kmercodebook/sequence"
)

func buildIndex(t *testing.T, kmerLength, charsPerWord int, residues ...string) *kmer.Index {
	t.Helper()
	a := alphabet.DNA()
	seqs := make([]*sequence.Sequence, len(residues))
	for i, r := range residues {
		seqs[i] = sequence.New(string(rune('a'+i)), []byte(r))
		if seqs[i].KmerCount(kmerLength) > 0 {
			require.NoError(t, seqs[i].Encode(a, kmerLength, charsPerWord))
		}
	}
	idx, err := kmer.NewIndex(seqs, kmerLength)
	require.NoError(t, err)
	return idx
}

func TestSerialFactory(t *testing.T) {
	idx := buildIndex(t, 4, 2, "acgtacgt")
	factory := NewSerialFactory(7)

	id, ok := idx.Lookup("acgt")
	require.True(t, ok)

	p1 := factory(idx.Kmer(id))
	p2 := factory(idx.Kmer(id))

	assert.Equal(t, "proto_7", p1.ID())
	assert.Equal(t, 7, p1.Serial())
	assert.Equal(t, "proto_8", p2.ID())
	assert.Equal(t, "acgt", p1.Kmer().Word())

	// The prototype owns its code, detached from the index arena.
	assert.Equal(t, idx.Kmer(id).Code(), p1.Kmer().Code())
	assert.NotSame(t, &idx.Kmer(id).Code()[0], &p1.Kmer().Code()[0])
}

func TestClusterCounts(t *testing.T) {
	idx := buildIndex(t, 4, 2, "acgtacgt", "acgtacgt")
	factory := NewSerialFactory(0)

	id, ok := idx.Lookup("acgt")
	require.True(t, ok)

	c := New(factory(idx.Kmer(id)), idx)
	assert.Equal(t, 0, c.Size())

	c.Add(id)
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, 4, c.InstanceCount(), "acgt occurs twice per copy of the sequence")

	other, ok := idx.Lookup("cgta")
	require.True(t, ok)
	c.Add(other)
	assert.Equal(t, 2, c.Size())
	assert.Equal(t, 6, c.InstanceCount())
	assert.Equal(t, []kmer.ID{id, other}, c.Members())
}
