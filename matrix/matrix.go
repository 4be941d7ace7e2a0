package matrix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrUnknownMatrix is returned when no built-in matrix exists for an ID.
var ErrUnknownMatrix = errors.New("unknown similarity matrix")

// Matrix is an immutable symbol-pair similarity table such as BLOSUM62.
//
// Lookups are case-insensitive: symbols are folded to lower case at parse
// time and again on every lookup. Scores for symbol pairs that never appear
// in the source table fall back to the worst score seen during parsing.
type Matrix struct {
	symbols  string
	scores   [128][128]int8
	defined  [128]bool
	maxScore int8
	minScore int8
}

// Parse reads a similarity matrix in the standard whitespace-delimited text
// format (as distributed with BLAST): '#' comment lines, a header row of
// single-character column labels, then one score row per symbol.
func Parse(r io.Reader) (*Matrix, error) {
	m := &Matrix{
		maxScore: math.MinInt8,
		minScore: math.MaxInt8,
	}
	for i := range m.scores {
		for j := range m.scores[i] {
			m.scores[i][j] = math.MinInt8
		}
	}

	worst := int8(math.MaxInt8)
	row := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		if isLetter(fields[0][0]) && len(fields[0]) == 1 && m.symbols == "" {
			for _, f := range fields {
				ch := lower(f[0])
				m.symbols += string(ch)
				m.defined[ch] = true
				m.defined[upper(ch)] = true
			}
			continue
		}

		if row >= len(m.symbols) {
			return nil, fmt.Errorf("matrix: more data rows than symbols (%d)", len(m.symbols))
		}
		if len(fields) != len(m.symbols) {
			return nil, fmt.Errorf("matrix: row %d has %d entries, want %d", row, len(fields), len(m.symbols))
		}
		for col, f := range fields {
			v, err := strconv.ParseInt(f, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("matrix: row %d col %d: %w", row, col, err)
			}
			m.set(m.symbols[row], m.symbols[col], int8(v))
			if int8(v) < worst {
				worst = int8(v)
			}
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	if row != len(m.symbols) || row == 0 {
		return nil, fmt.Errorf("matrix: parsed %d rows for %d symbols", row, len(m.symbols))
	}

	// Undefined pairs score as badly as the worst defined pair.
	for i := range m.scores {
		for j := range m.scores[i] {
			if m.scores[i][j] == math.MinInt8 {
				m.scores[i][j] = worst
			}
		}
	}

	return m, nil
}

func (m *Matrix) set(s, t byte, v int8) {
	m.scores[lower(s)][lower(t)] = v
	m.scores[lower(s)][upper(t)] = v
	m.scores[upper(s)][lower(t)] = v
	m.scores[upper(s)][upper(t)] = v
	if v > m.maxScore {
		m.maxScore = v
	}
	if v < m.minScore {
		m.minScore = v
	}
}

// Symbols returns the matrix alphabet in table order, lower-cased.
func (m *Matrix) Symbols() string { return m.symbols }

// IsDefined reports whether ch appears in the matrix alphabet.
func (m *Matrix) IsDefined(ch byte) bool { return ch < 128 && m.defined[ch] }

// MaxScore returns the largest pairwise score in the table.
func (m *Matrix) MaxScore() int8 { return m.maxScore }

// MinScore returns the smallest pairwise score in the table.
func (m *Matrix) MinScore() int8 { return m.minScore }

// Score returns the similarity score for a single symbol pair.
func (m *Matrix) Score(s, t byte) int8 {
	return m.scores[s&0x7f][t&0x7f]
}

// Similarity sums pairwise scores over two equal-length symbol windows.
func (m *Matrix) Similarity(x, y []byte) int {
	score := 0
	for i := range x {
		score += int(m.Score(x[i], y[i]))
	}
	return score
}

// SelfSimilarity sums the diagonal scores over a symbol window.
func (m *Matrix) SelfSimilarity(x []byte) int {
	score := 0
	for _, ch := range x {
		score += int(m.Score(ch, ch))
	}
	return score
}

// Difference converts similarity into a non-negative dissimilarity:
// len(x)*MaxScore - Similarity(x,y). Additive over concatenated windows.
func (m *Matrix) Difference(x, y []byte) int {
	return len(x)*int(m.maxScore) - m.Similarity(x, y)
}

// HalperinDistance is the distance of Halperin et al.:
// d(x,y) = s(x,x) + s(y,y) - 2 s(x,y).
func (m *Matrix) HalperinDistance(x, y []byte) int {
	return m.SelfSimilarity(x) + m.SelfSimilarity(y) - 2*m.Similarity(x, y)
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
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
