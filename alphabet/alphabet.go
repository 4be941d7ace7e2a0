package alphabet

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/kmercodebook/matrix"
)

// Word is a packed tuple of consecutive symbol codes, combined as a
// mixed-radix number with the alphabet size as radix. The first symbol of
// the tuple occupies the most significant position.
type Word uint16

// MaxWordValue is the largest packed value a Word can carry.
const MaxWordValue = math.MaxUint16

var (
	// ErrInvalidSymbols is returned for an empty or duplicated symbol set.
	ErrInvalidSymbols = errors.New("invalid alphabet symbols")

	// ErrShortSequence is returned when a sequence cannot hold one k-mer.
	ErrShortSequence = errors.New("sequence shorter than one k-mer")

	// ErrIndivisibleKmerLength is returned when staggered encoding is
	// requested for a k-mer length that is not a multiple of the word size.
	ErrIndivisibleKmerLength = errors.New("k-mer length not divisible by chars per word")
)

// Alphabet maps a fixed finite symbol set to small integer codes.
// It is immutable after construction and safe for concurrent use.
type Alphabet struct {
	symbols string
	inverse [128]uint8
}

// New builds an Alphabet from a symbol string. Mapping is case-insensitive;
// symbols must be distinct ASCII characters.
func New(symbols string) (*Alphabet, error) {
	if len(symbols) == 0 || len(symbols) > 128 {
		return nil, fmt.Errorf("%w: %d symbols", ErrInvalidSymbols, len(symbols))
	}

	a := &Alphabet{symbols: symbols}
	seen := map[byte]bool{}
	for i := 0; i < len(symbols); i++ {
		ch := symbols[i]
		if ch >= 128 {
			return nil, fmt.Errorf("%w: non-ASCII symbol %q", ErrInvalidSymbols, ch)
		}
		lo, up := lower(ch), upper(ch)
		if seen[lo] {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ErrInvalidSymbols, ch)
		}
		seen[lo] = true
		a.inverse[lo] = uint8(i)
		a.inverse[up] = uint8(i)
	}

	return a, nil
}

// FromMatrix builds the Alphabet over a similarity matrix's symbol set.
func FromMatrix(m *matrix.Matrix) (*Alphabet, error) {
	return New(m.Symbols())
}

// AA returns the amino-acid alphabet derived from BLOSUM62.
func AA() *Alphabet {
	a, err := New(matrix.Blosum62().Symbols())
	if err != nil {
		panic(err) // BLOSUM62 symbols are a compile-time constant
	}
	return a
}

// DNA returns the nucleotide alphabet.
func DNA() *Alphabet {
	a, err := New("acgt")
	if err != nil {
		panic(err)
	}
	return a
}

// Size returns the number of symbols in the alphabet.
func (a *Alphabet) Size() int { return len(a.symbols) }

// Symbols returns the symbol set in code order.
func (a *Alphabet) Symbols() string { return a.symbols }

// BitsPerSymbol returns ceil(log2(Size)).
func (a *Alphabet) BitsPerSymbol() int {
	bits := 1
	for 1<<bits < len(a.symbols) {
		bits++
	}
	return bits
}

// Code returns the integer code of a symbol. Unknown symbols map to code 0,
// matching the forgiving behaviour expected of raw database content.
func (a *Alphabet) Code(ch byte) uint8 { return a.inverse[ch&0x7f] }

// Symbol returns the canonical symbol for a code.
func (a *Alphabet) Symbol(code int) byte { return a.symbols[code] }

// WordsPerKmer returns the number of packed words required to hold a k-mer.
func WordsPerKmer(kmerLength, charsPerWord int) int {
	return (kmerLength + charsPerWord - 1) / charsPerWord
}

// EncodeKmer packs a k-mer into mixed-radix words of charsPerWord symbols.
// The final word holds the remainder when the length is not a multiple of
// charsPerWord.
func (a *Alphabet) EncodeKmer(s []byte, charsPerWord int) []Word {
	code := make([]Word, WordsPerKmer(len(s), charsPerWord))
	a.EncodeKmerInto(s, charsPerWord, code)
	return code
}

// EncodeKmerInto is EncodeKmer writing into a caller-provided slice.
// Empty input leaves code untouched.
func (a *Alphabet) EncodeKmerInto(s []byte, charsPerWord int, code []Word) {
	if len(s) == 0 {
		return
	}
	size := Word(len(a.symbols))
	w := 0
	code[0] = 0
	for i := 0; i < len(s); i++ {
		code[w] = code[w]*size + Word(a.inverse[s[i]&0x7f])
		if (i+1)%charsPerWord == 0 {
			w++
			if w < len(code) {
				code[w] = 0
			}
		}
	}
}

// DecodeWord expands a packed word back into n symbols.
func (a *Alphabet) DecodeWord(w Word, n int, dst []byte) {
	size := Word(len(a.symbols))
	for i := n - 1; i >= 0; i-- {
		dst[i] = a.symbols[w%size]
		w /= size
	}
}

// DecodeKmer reverses EncodeKmer for a k-mer of the given length.
func (a *Alphabet) DecodeKmer(code []Word, kmerLength, charsPerWord int) []byte {
	dst := make([]byte, kmerLength)
	for i, w := 0, 0; i < kmerLength; i, w = i+charsPerWord, w+1 {
		n := charsPerWord
		if kmerLength-i < n {
			n = kmerLength - i
		}
		a.DecodeWord(code[w], n, dst[i:i+n])
	}
	return dst
}

// EncodeSequence computes the staggered packed encoding of a whole sequence:
// row r holds the words of tuples starting at positions r, r+charsPerWord,
// r+2*charsPerWord, ... so that any k-mer's words occupy contiguous slots of
// a single row. When kmerLength <= charsPerWord a single row holds one whole
// k-mer per position (the DNA layout).
func (a *Alphabet) EncodeSequence(s []byte, kmerLength, charsPerWord int) ([][]Word, error) {
	if len(s) < kmerLength {
		return nil, fmt.Errorf("%w: len %d, k %d", ErrShortSequence, len(s), kmerLength)
	}

	if kmerLength <= charsPerWord {
		row := make([]Word, len(s)-kmerLength+1)
		var buf [1]Word
		for i := range row {
			a.EncodeKmerInto(s[i:i+kmerLength], kmerLength, buf[:])
			row[i] = buf[0]
		}
		return [][]Word{row}, nil
	}

	if kmerLength%charsPerWord != 0 {
		return nil, fmt.Errorf("%w: k %d, chars per word %d", ErrIndivisibleKmerLength, kmerLength, charsPerWord)
	}

	code := make([][]Word, charsPerWord)
	for r := range code {
		code[r] = make([]Word, 0, len(s)/charsPerWord)
	}

	var buf [1]Word
	for i := 0; i+charsPerWord <= len(s); i++ {
		a.EncodeKmerInto(s[i:i+charsPerWord], charsPerWord, buf[:])
		code[i%charsPerWord] = append(code[i%charsPerWord], buf[0])
	}

	return code, nil
}

func lower(ch byte) byte {
	if ch >= 'A' && ch <= 'Z' {
		return ch + 'a' - 'A'
	}
	return ch
}

func upper(ch byte) byte {
	if ch >= 'a' && ch <= 'z' {
		return ch - ('a' - 'A')
	}
	return ch
}
