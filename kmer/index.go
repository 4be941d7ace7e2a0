package kmer

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/kmercodebook/sequence"
)

const defaultShards = 8

// Option configures index construction.
type Option func(*indexOptions)

type indexOptions struct {
	shards int
}

// WithShards sets the number of dedup shards built in parallel. Rounded up
// to a power of two; 1 disables parallel construction.
func WithShards(n int) Option {
	return func(o *indexOptions) {
		if n < 1 {
			n = 1
		}
		shards := 1
		for shards < n {
			shards <<= 1
		}
		o.shards = shards
	}
}

// Index deduplicates every k-mer occurrence of a sequence collection into
// one record per distinct content. The index exclusively owns its arena of
// Kmer records; consumers address records by ID.
//
// Construction routes occurrences to shards by content hash and builds the
// per-shard dedup maps concurrently; the arena concatenates the shards, so
// IDs are deterministic for a fixed input and shard count.
type Index struct {
	kmerLength int
	arena      []Kmer
	lookup     map[string]ID
}

type occurrence struct {
	word string
	seq  *sequence.Sequence
	pos  int
}

// NewIndex builds an index over every k-mer of every sequence. Sequences
// shorter than kmerLength contribute nothing. All sequences must already
// carry their packed encoding.
func NewIndex(seqs []*sequence.Sequence, kmerLength int, opts ...Option) (*Index, error) {
	windows := make([]sequence.Window, 0, len(seqs))
	for _, s := range seqs {
		windows = append(windows, sequence.Window{Seq: s, Start: 0, Length: s.Len()})
	}
	return NewWindowIndex(windows, kmerLength, opts...)
}

// NewWindowIndex builds an index over the k-mers of bounded sequence
// windows. K-mer start positions are confined to each window's range.
func NewWindowIndex(windows []sequence.Window, kmerLength int, opts ...Option) (*Index, error) {
	if kmerLength < 1 {
		return nil, fmt.Errorf("kmer: invalid k-mer length %d", kmerLength)
	}

	o := indexOptions{shards: defaultShards}
	for _, opt := range opts {
		opt(&o)
	}

	// Route occurrences to shards by content hash. Serial: cheap relative
	// to dedup, and it keeps shard insertion order deterministic.
	buckets := make([][]occurrence, o.shards)
	mask := uint64(o.shards - 1)
	for _, w := range windows {
		residues := w.Seq.Residues()
		start, end := w.KmerRange(kmerLength)
		for pos := start; pos < end; pos++ {
			word := residues[pos : pos+kmerLength]
			b := xxhash.Sum64String(word) & mask
			buckets[b] = append(buckets[b], occurrence{word: word, seq: w.Seq, pos: pos})
		}
	}

	// Dedup each shard independently.
	shardArenas := make([][]Kmer, o.shards)
	var g errgroup.Group
	for b := range buckets {
		g.Go(func() error {
			local := make(map[string]int32)
			arena := make([]Kmer, 0, len(buckets[b])/2+1)

			for _, occ := range buckets[b] {
				if i, ok := local[occ.word]; ok {
					arena[i].add(occ.seq, occ.pos)
					continue
				}
				code, err := occ.seq.PackedKmer(occ.pos)
				if err != nil {
					return err
				}
				local[occ.word] = int32(len(arena))
				arena = append(arena, *New(occ.word, code))
				arena[len(arena)-1].add(occ.seq, occ.pos)
			}

			shardArenas[b] = arena
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{kmerLength: kmerLength}
	total := 0
	for _, a := range shardArenas {
		total += len(a)
	}
	idx.arena = make([]Kmer, 0, total)
	idx.lookup = make(map[string]ID, total)
	for _, a := range shardArenas {
		for i := range a {
			idx.lookup[a[i].word] = ID(len(idx.arena))
			idx.arena = append(idx.arena, a[i])
		}
	}

	return idx, nil
}

// KmerLength returns the indexed k-mer length.
func (x *Index) KmerLength() int { return x.kmerLength }

// Len returns the number of distinct k-mers.
func (x *Index) Len() int { return len(x.arena) }

// Kmer returns the record for an ID. The pointer stays valid for the
// index's lifetime; the arena never reallocates after construction.
func (x *Index) Kmer(id ID) *Kmer { return &x.arena[id] }

// IDs returns all k-mer IDs in arena order.
func (x *Index) IDs() []ID {
	ids := make([]ID, len(x.arena))
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Lookup returns the ID holding the given content.
func (x *Index) Lookup(word string) (ID, bool) {
	id, ok := x.lookup[word]
	return id, ok
}

// InstanceCount returns the total occurrence count over all records.
func (x *Index) InstanceCount() int {
	total := 0
	for i := range x.arena {
		total += len(x.arena[i].instances)
	}
	return total
}
