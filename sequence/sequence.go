package sequence

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kmercodebook/alphabet"
)

// ErrNotEncoded is returned when packed k-mer access precedes Encode.
var ErrNotEncoded = errors.New("sequence not encoded")

// Sequence is one biological sequence with an optional staggered packed
// encoding. A sequence is encoded once, after which packed k-mer access is
// read-only and safe for concurrent use.
type Sequence struct {
	id       string
	residues string

	words        [][]alphabet.Word
	kmerLength   int
	charsPerWord int
}

// New creates an unencoded sequence.
func New(id string, residues []byte) *Sequence {
	return &Sequence{id: id, residues: string(residues)}
}

// ID returns the sequence identifier.
func (s *Sequence) ID() string { return s.id }

// Len returns the residue count.
func (s *Sequence) Len() int { return len(s.residues) }

// Residues returns the raw character content.
func (s *Sequence) Residues() string { return s.residues }

// KmerCount returns the number of k-mer start positions, zero when the
// sequence is shorter than one k-mer.
func (s *Sequence) KmerCount(kmerLength int) int {
	if len(s.residues) < kmerLength {
		return 0
	}
	return len(s.residues) - kmerLength + 1
}

// KmerAt returns the character content of the k-mer starting at pos.
// The returned string shares the sequence's backing storage.
func (s *Sequence) KmerAt(pos, kmerLength int) string {
	return s.residues[pos : pos+kmerLength]
}

// Encode computes the staggered packed encoding used for packed k-mer
// access during clustering. Must be called before PackedKmer.
func (s *Sequence) Encode(a *alphabet.Alphabet, kmerLength, charsPerWord int) error {
	words, err := a.EncodeSequence([]byte(s.residues), kmerLength, charsPerWord)
	if err != nil {
		return fmt.Errorf("sequence %s: %w", s.id, err)
	}
	s.words = words
	s.kmerLength = kmerLength
	s.charsPerWord = charsPerWord
	return nil
}

// PackedKmer returns the packed words of the k-mer starting at pos. The
// slice aliases the encoding; callers must not mutate it.
func (s *Sequence) PackedKmer(pos int) ([]alphabet.Word, error) {
	if s.words == nil {
		return nil, fmt.Errorf("sequence %s: %w", s.id, ErrNotEncoded)
	}

	if s.kmerLength <= s.charsPerWord {
		return s.words[0][pos : pos+1], nil
	}

	row := pos % s.charsPerWord
	col := pos / s.charsPerWord
	return s.words[row][col : col+s.kmerLength/s.charsPerWord], nil
}

// Window is a bounded view [Start, Start+Length) of a source sequence,
// used to restrict k-mer extraction to one domain instance.
type Window struct {
	Seq    *Sequence
	Start  int
	Length int
}

// KmerRange returns the half-open range of k-mer start positions inside
// the window, clamped to the source sequence.
func (w Window) KmerRange(kmerLength int) (int, int) {
	end := w.Start + w.Length - kmerLength + 1
	if max := w.Seq.KmerCount(kmerLength); end > max {
		end = max
	}
	if end < w.Start {
		end = w.Start
	}
	return w.Start, end
}
