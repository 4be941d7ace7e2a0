package cluster

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/kmercodebook/alphabet"
	"github.com/hupe1980/kmercodebook/distance"
	"github.com/hupe1980/kmercodebook/kmer"
)

func hammingTable(t *testing.T) *distance.PackedTable {
	t.Helper()
	table, err := distance.NewPackedTable(alphabet.DNA(), distance.UngappedEdit(), 2)
	require.NoError(t, err)
	return table
}

func newTestEngine(t *testing.T, idx *kmer.Index, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(idx, hammingTable(t), NewSerialFactory(0), cfg)
	require.NoError(t, err)
	return e
}

func TestEngineNoSeeds(t *testing.T) {
	idx := buildIndex(t, 4, 2, "acgtacgt")
	e := newTestEngine(t, idx, Config{Threshold: 0, ClusterIncrement: 0, Workers: 1})

	_, err := e.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoSeeds)
}

func TestEngineIdenticalSequences(t *testing.T) {
	// Three copies of the same sequence: 4 distinct k-mers, 15 instances.
	idx := buildIndex(t, 4, 2, "acgtacgt", "acgtacgt", "acgtacgt")
	e := newTestEngine(t, idx, Config{Threshold: 0, ClusterIncrement: 1, Workers: 2, Seed: 1})

	res, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	// Hamming threshold 0: each distinct k-mer is its own cluster.
	assert.Len(t, res.Clusters, 4)
	assert.Equal(t, 0, res.Unassigned)
	assert.Equal(t, uint64(4), res.Assigned.GetCardinality())
	assert.Equal(t, 15, res.AssignedInstances)

	for _, c := range res.Clusters {
		assert.Equal(t, 1, c.Size())
		assert.Equal(t, c.Prototype().Kmer().Word(), idx.Kmer(c.Members()[0]).Word())
	}
}

func TestEngineHomopolymer(t *testing.T) {
	for _, variant := range []Variant{VariantGlobal, VariantBanded} {
		t.Run(variant.String(), func(t *testing.T) {
			// Byte-identical k-mers collapse to a single distinct entry, so
			// exactly one cluster holds every instance.
			idx := buildIndex(t, 4, 2, "aaaaaaaa", "aaaaaaaa", "aaaaaaaa")
			e := newTestEngine(t, idx, Config{Threshold: 0, ClusterIncrement: 2, Workers: 2, Variant: variant, Seed: 1})

			res, err := e.Run(context.Background(), nil)
			require.NoError(t, err)

			require.Len(t, res.Clusters, 1)
			assert.Equal(t, 1, res.Clusters[0].Size())
			assert.Equal(t, 15, res.Clusters[0].InstanceCount())
			assert.Equal(t, 15, res.AssignedInstances)
			assert.Equal(t, 0, res.Unassigned)
		})
	}
}

// membershipWithin checks the core invariant: every member sits within the
// threshold of its cluster's prototype, per the same table the engine used.
func membershipWithin(t *testing.T, idx *kmer.Index, table *distance.PackedTable, res *Result, threshold distance.Dist) {
	t.Helper()
	k := idx.KmerLength()
	for _, c := range res.Clusters {
		for _, id := range c.Members() {
			d := table.Distance(idx.Kmer(id).Code(), c.Prototype().Kmer().Code(), k)
			assert.LessOrEqual(t, d, threshold, "kmer %s vs %s", idx.Kmer(id).Word(), c.Prototype().ID())
			assert.Equal(t, d, idx.Kmer(id).DistanceFromPrototype())
		}
	}
}

func testCorpus() []string {
	return []string{
		"acgtacgtacgtacgtacgt",
		"acgtacctacgtaggtacgt",
		"ttttggggccccaaaattgg",
		"cacacacacacacacacaca",
		"gtcagtcagtcagtcagtca",
	}
}

func TestEngineInvariants(t *testing.T) {
	for _, variant := range []Variant{VariantGlobal, VariantBanded} {
		t.Run(variant.String(), func(t *testing.T) {
			idx := buildIndex(t, 4, 2, testCorpus()...)
			table := hammingTable(t)
			cfg := Config{Threshold: 1, ClusterIncrement: 3, Workers: 3, Variant: variant, Seed: 42}
			e, err := NewEngine(idx, table, NewSerialFactory(0), cfg)
			require.NoError(t, err)

			res, err := e.Run(context.Background(), nil)
			require.NoError(t, err)

			membershipWithin(t, idx, table, res, cfg.Threshold)

			// Hamming self-distance is zero, so everything clusters.
			assert.Equal(t, 0, res.Unassigned)

			// No k-mer belongs to two clusters.
			total := 0
			for _, c := range res.Clusters {
				total += c.Size()
			}
			assert.Equal(t, total, int(res.Assigned.GetCardinality()))
			assert.Equal(t, idx.Len(), total)
		})
	}
}

// membershipSets flattens a result into sorted "proto-word:member-words"
// strings, insensitive to member ordering inside a cluster.
func membershipSets(idx *kmer.Index, res *Result) []string {
	var sets []string
	for _, c := range res.Clusters {
		words := make([]string, 0, c.Size())
		for _, id := range c.Members() {
			words = append(words, idx.Kmer(id).Word())
		}
		sort.Strings(words)
		sets = append(sets, c.Prototype().Kmer().Word()+":"+strings.Join(words, ","))
	}
	sort.Strings(sets)
	return sets
}

func TestEngineDeterminism(t *testing.T) {
	for _, variant := range []Variant{VariantGlobal, VariantBanded} {
		t.Run(variant.String(), func(t *testing.T) {
			run := func() []string {
				idx := buildIndex(t, 4, 2, testCorpus()...)
				cfg := Config{Threshold: 1, ClusterIncrement: 2, Workers: 4, Variant: variant, Seed: 7}
				e, err := NewEngine(idx, hammingTable(t), NewSerialFactory(0), cfg)
				require.NoError(t, err)
				res, err := e.Run(context.Background(), nil)
				require.NoError(t, err)
				return membershipSets(idx, res)
			}

			assert.Equal(t, run(), run())
		})
	}
}

func TestEngineExtendsExistingClusters(t *testing.T) {
	idx := buildIndex(t, 4, 2, "acgtacgt")
	table := hammingTable(t)

	// A pre-existing cluster around "acgt" with increment 0: only k-mers
	// within the threshold join; the rest stays unassigned, which ends the
	// run after one fruitless pass.
	factory := NewSerialFactory(0)
	id, ok := idx.Lookup("acgt")
	require.True(t, ok)
	existing := New(factory(idx.Kmer(id)), idx)

	e, err := NewEngine(idx, table, factory, Config{Threshold: 1, ClusterIncrement: 0, Workers: 2, Seed: 3})
	require.NoError(t, err)

	res, err := e.Run(context.Background(), []*Cluster{existing})
	require.NoError(t, err)

	require.Len(t, res.Clusters, 1)
	assert.Equal(t, 1, res.Clusters[0].Size(), "only acgt itself is within Hamming 1")
	assert.Equal(t, 3, res.Unassigned)
	membershipWithin(t, idx, table, res, 1)
}

func TestEngineContextCancelled(t *testing.T) {
	idx := buildIndex(t, 4, 2, testCorpus()...)
	e := newTestEngine(t, idx, Config{Threshold: 1, ClusterIncrement: 1, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
