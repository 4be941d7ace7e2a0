package distance

import (
	"math"

	"github.com/hupe1980/kmercodebook/matrix"
)

// Dist is a bounded non-negative dissimilarity between two symbol windows.
// All raw functions used with PackedTable must be additive over
// concatenated windows; every built-in function is by construction.
type Dist uint16

// MaxDist is the sentinel for "no distance computed yet".
const MaxDist = Dist(math.MaxUint16)

// RawFunc computes the dissimilarity of two equal-length symbol windows.
type RawFunc func(x, y []byte) Dist

// BlosumDifference derives a non-negative difference from a similarity
// matrix: d(x,y) = len(x)*maxScore - similarity(x,y).
func BlosumDifference(m *matrix.Matrix) RawFunc {
	return func(x, y []byte) Dist {
		return Dist(m.Difference(x, y))
	}
}

// HalperinBlosum is the distance of Halperin et al.:
// d(x,y) = s(x,x) + s(y,y) - 2 s(x,y).
func HalperinBlosum(m *matrix.Matrix) RawFunc {
	return func(x, y []byte) Dist {
		return Dist(m.HalperinDistance(x, y))
	}
}

// UngappedEdit counts mismatching positions (Hamming distance).
func UngappedEdit() RawFunc {
	return func(x, y []byte) Dist {
		var diffs Dist
		for i := range x {
			if x[i] != y[i] {
				diffs++
			}
		}
		return diffs
	}
}

// Kind selects a raw distance function by name.
type Kind int

const (
	// KindBlosumDifference is the default codebook metric.
	KindBlosumDifference Kind = iota
	// KindHalperin is the symmetrized BLOSUM distance of Halperin et al.
	KindHalperin
	// KindUngappedEdit is the Hamming mismatch count.
	KindUngappedEdit
)

func (k Kind) String() string {
	switch k {
	case KindBlosumDifference:
		return "BlosumDifference"
	case KindHalperin:
		return "Halperin"
	case KindUngappedEdit:
		return "UngappedEdit"
	default:
		return "Unknown"
	}
}

// Provider returns the raw function for a kind. The matrix may be nil for
// KindUngappedEdit.
func Provider(k Kind, m *matrix.Matrix) (RawFunc, error) {
	switch k {
	case KindBlosumDifference:
		if m == nil {
			return nil, ErrNilMatrix
		}
		return BlosumDifference(m), nil
	case KindHalperin:
		if m == nil {
			return nil, ErrNilMatrix
		}
		return HalperinBlosum(m), nil
	case KindUngappedEdit:
		return UngappedEdit(), nil
	default:
		return nil, &ErrUnsupportedKind{Kind: k}
	}
}
