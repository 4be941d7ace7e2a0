package kmer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/sequence"
)

func encodedSeqs(t *testing.T, kmerLength, charsPerWord int, residues ...string) []*sequence.Sequence {
	t.Helper()
	a := alphabet.DNA()
	seqs := make([]*sequence.Sequence, len(residues))
	for i, r := range residues {
		seqs[i] = sequence.New(string(rune('a'+i)), []byte(r))
		if seqs[i].KmerCount(kmerLength) > 0 {
			require.NoError(t, seqs[i].Encode(a, kmerLength, charsPerWord))
		}
	}
	return seqs
}

func TestIndexDeduplicates(t *testing.T) {
	seqs := encodedSeqs(t, 4, 2, "acgtacgt")

	idx, err := NewIndex(seqs, 4)
	require.NoError(t, err)

	// acgt, cgta, gtac, tacg, acgt -> 4 distinct, 5 instances.
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 5, idx.InstanceCount())

	id, ok := idx.Lookup("acgt")
	require.True(t, ok)
	assert.Equal(t, 2, idx.Kmer(id).InstanceCount())
}

func TestIndexCompleteness(t *testing.T) {
	inputs := []string{"acgtacgtacgtacgt", "ttttttttt", "acgt", "gg", "cacacacacacac"}
	k := 4

	seqs := encodedSeqs(t, k, 2, inputs...)
	idx, err := NewIndex(seqs, k)
	require.NoError(t, err)

	naive := 0
	for _, in := range inputs {
		if len(in) >= k {
			naive += len(in) - k + 1
		}
	}
	assert.Equal(t, naive, idx.InstanceCount(), "sum of instances equals sliding-window total")
}

func TestIndexShortSequences(t *testing.T) {
	seqs := encodedSeqs(t, 4, 2, "acg")

	idx, err := NewIndex(seqs, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestIndexCachesPackedCode(t *testing.T) {
	seqs := encodedSeqs(t, 4, 2, "acgtacgt")
	a := alphabet.DNA()

	idx, err := NewIndex(seqs, 4)
	require.NoError(t, err)

	for _, id := range idx.IDs() {
		km := idx.Kmer(id)
		want := a.EncodeKmer([]byte(km.Word()), 2)
		assert.Equal(t, want, []alphabet.Word(km.Code()), "kmer %s", km.Word())
	}
}

func TestIndexDeterministicIDs(t *testing.T) {
	inputs := []string{"acgtacgtacgt", "tgcatgcatgca"}

	build := func() map[string]ID {
		idx, err := NewIndex(encodedSeqs(t, 4, 2, inputs...), 4, WithShards(4))
		require.NoError(t, err)
		m := map[string]ID{}
		for _, id := range idx.IDs() {
			m[idx.Kmer(id).Word()] = id
		}
		return m
	}

	assert.Equal(t, build(), build())
}

func TestWindowIndex(t *testing.T) {
	seqs := encodedSeqs(t, 3, 3, "acgtacgtac")

	idx, err := NewWindowIndex([]sequence.Window{
		{Seq: seqs[0], Start: 2, Length: 5}, // "gtacg": gta, tac, acg
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	_, ok := idx.Lookup("cgt")
	assert.False(t, ok, "k-mers outside the window are not indexed")
}

func TestNewIndexErrors(t *testing.T) {
	_, err := NewIndex(nil, 0)
	assert.Error(t, err)

	// Unencoded sequence surfaces as an error during construction.
	s := sequence.New("s1", []byte("acgtacgt"))
	_, err = NewIndex([]*sequence.Sequence{s}, 4)
	assert.ErrorIs(t, err, sequence.ErrNotEncoded)
}
