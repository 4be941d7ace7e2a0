package distance

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/kmercodebook/alphabet"
)

var (
	// ErrNilMatrix is returned when a matrix-backed kind has no matrix.
	ErrNilMatrix = errors.New("similarity matrix required")

	// ErrInvalidCharsPerWord is returned for a word size outside 1..3.
	ErrInvalidCharsPerWord = errors.New("chars per word must be 1, 2 or 3")
)

// ErrUnsupportedKind indicates an unknown distance kind.
type ErrUnsupportedKind struct {
	Kind Kind
}

func (e *ErrUnsupportedKind) Error() string {
	return fmt.Sprintf("unsupported distance kind: %d", int(e.Kind))
}

// ErrVocabularyOverflow indicates the packed vocabulary exceeds what a
// packed word (or a table entry) can represent. This is a fatal
// configuration error: pick a smaller alphabet or word size.
type ErrVocabularyOverflow struct {
	AlphabetSize int
	CharsPerWord int
	Vocabulary   int
}

func (e *ErrVocabularyOverflow) Error() string {
	return fmt.Sprintf("packed vocabulary overflow: %d^%d = %d", e.AlphabetSize, e.CharsPerWord, e.Vocabulary)
}

// PackedTable answers k-mer distance queries of arbitrary length from
// precomputed tables over all pairs of packed symbol tuples. A query over
// packed words costs one table lookup per word instead of a matrix probe
// per symbol.
//
// Read-only after construction and safe for concurrent use.
type PackedTable struct {
	alpha        *alphabet.Alphabet
	charsPerWord int
	tables       [3][]uint8 // tables[l-1]: flattened vocab x vocab for tuple length l+0
	vocab        [3]int
}

// NewPackedTable precomputes distance tables for tuple lengths 1..charsPerWord
// over the alphabet, using raw for every tuple pair. Construction is O(V^2)
// in the vocabulary size V = alphabetSize^charsPerWord.
func NewPackedTable(a *alphabet.Alphabet, raw RawFunc, charsPerWord int) (*PackedTable, error) {
	if charsPerWord < 1 || charsPerWord > 3 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCharsPerWord, charsPerWord)
	}

	t := &PackedTable{alpha: a, charsPerWord: charsPerWord}
	for l := 1; l <= charsPerWord; l++ {
		if err := t.precompute(l, raw); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *PackedTable) precompute(tupleLen int, raw RawFunc) error {
	size := t.alpha.Size()
	vocab := 1
	for i := 0; i < tupleLen; i++ {
		vocab *= size
	}
	if vocab > alphabet.MaxWordValue+1 {
		return &ErrVocabularyOverflow{AlphabetSize: size, CharsPerWord: tupleLen, Vocabulary: vocab}
	}

	// Decode the whole tuple vocabulary once.
	tuples := make([]byte, vocab*tupleLen)
	for v := 0; v < vocab; v++ {
		t.alpha.DecodeWord(alphabet.Word(v), tupleLen, tuples[v*tupleLen:(v+1)*tupleLen])
	}

	table := make([]uint8, vocab*vocab)
	for i := 0; i < vocab; i++ {
		x := tuples[i*tupleLen : (i+1)*tupleLen]
		for j := 0; j <= i; j++ {
			y := tuples[j*tupleLen : (j+1)*tupleLen]
			d := raw(x, y)
			if d > math.MaxUint8 {
				return &ErrVocabularyOverflow{AlphabetSize: size, CharsPerWord: tupleLen, Vocabulary: vocab}
			}
			table[i*vocab+j] = uint8(d)
			table[j*vocab+i] = uint8(d)
		}
	}

	t.tables[tupleLen-1] = table
	t.vocab[tupleLen-1] = vocab
	return nil
}

// CharsPerWord returns the number of symbols packed per word.
func (t *PackedTable) CharsPerWord() int { return t.charsPerWord }

// Alphabet returns the alphabet the table was built over.
func (t *PackedTable) Alphabet() *alphabet.Alphabet { return t.alpha }

// Lookup returns the precomputed distance of two packed tuples of the given
// length.
func (t *PackedTable) Lookup(x, y alphabet.Word, tupleLen int) Dist {
	v := t.vocab[tupleLen-1]
	return Dist(t.tables[tupleLen-1][int(x)*v+int(y)])
}

// Distance computes the distance of two k-mers of length kmerLength from
// their packed word encodings, one table lookup per word.
func (t *PackedTable) Distance(s, u []alphabet.Word, kmerLength int) Dist {
	whole := kmerLength / t.charsPerWord
	rem := kmerLength % t.charsPerWord

	full := t.tables[t.charsPerWord-1]
	v := t.vocab[t.charsPerWord-1]

	var dist Dist
	for i := 0; i < whole; i++ {
		dist += Dist(full[int(s[i])*v+int(u[i])])
	}
	if rem > 0 {
		tail := t.tables[rem-1]
		vr := t.vocab[rem-1]
		dist += Dist(tail[int(s[whole])*vr+int(u[whole])])
	}

	return dist
}

// IsWithin reports whether the distance of two k-mers is at most threshold,
// short-circuiting as soon as the running sum exceeds it. When it returns
// true the returned distance equals Distance(s, u, kmerLength); when false
// the distance value is meaningless.
func (t *PackedTable) IsWithin(s, u []alphabet.Word, kmerLength int, threshold Dist) (Dist, bool) {
	whole := kmerLength / t.charsPerWord
	rem := kmerLength % t.charsPerWord

	full := t.tables[t.charsPerWord-1]
	v := t.vocab[t.charsPerWord-1]

	var dist Dist
	for i := 0; i < whole; i++ {
		dist += Dist(full[int(s[i])*v+int(u[i])])
		if dist > threshold {
			return dist, false
		}
	}
	if rem > 0 {
		tail := t.tables[rem-1]
		vr := t.vocab[rem-1]
		dist += Dist(tail[int(s[whole])*vr+int(u[whole])])
		if dist > threshold {
			return dist, false
		}
	}

	return dist, true
}
