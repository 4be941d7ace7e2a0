package matrix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlosum62(t *testing.T) {
	m := Blosum62()

	assert.Equal(t, "arndcqeghilkmfpstwyvbzx*", m.Symbols())
	assert.Equal(t, int8(11), m.MaxScore()) // W-W

	assert.Equal(t, int8(4), m.Score('A', 'a'))
	assert.Equal(t, int8(-1), m.Score('a', 'r'))
	assert.Equal(t, int8(-1), m.Score('R', 'A'))
	assert.Equal(t, int8(11), m.Score('w', 'W'))
}

func TestByID(t *testing.T) {
	for _, id := range []int{45, 50, 62, 80} {
		m, err := ByID(id)
		require.NoError(t, err)
		assert.Len(t, m.Symbols(), 24)
	}

	_, err := ByID(35)
	assert.ErrorIs(t, err, ErrUnknownMatrix)
}

func TestSimilarityWindows(t *testing.T) {
	m := Blosum62()

	x := []byte("ARN")
	y := []byte("AND")

	// A-A=4, R-N=0, N-D=1
	assert.Equal(t, 5, m.Similarity(x, y))
	// A-A=4, R-R=5, N-N=6
	assert.Equal(t, 15, m.SelfSimilarity(x))
}

func TestDifferenceNonNegative(t *testing.T) {
	m := Blosum62()
	syms := m.Symbols()

	for i := 0; i < len(syms); i++ {
		for j := 0; j < len(syms); j++ {
			d := m.Difference([]byte{syms[i]}, []byte{syms[j]})
			assert.GreaterOrEqual(t, d, 0, "pair %c %c", syms[i], syms[j])
		}
	}
}

func TestDifferenceAdditive(t *testing.T) {
	m := Blosum62()

	x, y := []byte("ARND"), []byte("ANDC")
	total := m.Difference(x, y)
	split := m.Difference(x[:2], y[:2]) + m.Difference(x[2:], y[2:])
	assert.Equal(t, total, split)
}

func TestHalperinDistance(t *testing.T) {
	m := Blosum62()

	// Symmetric, zero on identical windows.
	assert.Equal(t, 0, m.HalperinDistance([]byte("ARND"), []byte("ARND")))
	x, y := []byte("WC"), []byte("AV")
	assert.Equal(t, m.HalperinDistance(x, y), m.HalperinDistance(y, x))
}

func TestParseCustom(t *testing.T) {
	const data = `# toy matrix
 a  b
 2 -1
-1  3`

	m, err := Parse(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "ab", m.Symbols())
	assert.Equal(t, int8(3), m.MaxScore())
	assert.Equal(t, int8(-1), m.Score('A', 'b'))
	assert.True(t, m.IsDefined('a'))
	assert.True(t, m.IsDefined('B'))
	assert.False(t, m.IsDefined('z'))

	// Undefined pairs fall back to the worst defined score.
	assert.Equal(t, int8(-1), m.Score('a', 'z'))
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(" a b\n1 2\n"))
	assert.Error(t, err, "missing data row")

	_, err = Parse(strings.NewReader(" a b\n1 2 3\n4 5 6\n"))
	assert.Error(t, err, "row width mismatch")

	_, err = Parse(strings.NewReader(""))
	assert.Error(t, err, "empty input")
}
