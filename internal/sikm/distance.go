package sikm

import (
	"math"

	"github.com/viterin/vek"
)

// DistanceFunc represents a function for measuring distance between n-dimensional vectors.
type DistanceFunc func([]float64, []float64) float64

var (
	// EuclideanDistance is one of the common distance measurement.
	EuclideanDistance = func(a, b []float64) float64 {
		var (
			s, t float64
		)

		for i := range a {
			t = a[i] - b[i]
			s += t * t
		}

		return math.Sqrt(s)
	}

	// EuclideanDistanceSquared is one of the common distance measurement.
	EuclideanDistanceSquared = func(a, b []float64) float64 {
		var (
			s, t float64
		)

		for i := range a {
			t = a[i] - b[i]
			s += t * t
		}

		return s
	}

	// CosineDistance is 1 minus the cosine similarity. A zero vector
	// has no direction; its distance to anything is defined as 1.
	CosineDistance = func(a, b []float64) float64 {
		aa := vek.Dot(a, a)
		bb := vek.Dot(b, b)
		if aa == 0 || bb == 0 {
			return 1
		}
		return 1 - vek.Dot(a, b)/math.Sqrt(aa*bb)
	}
)

// DistanceMatrix computes the pairwise Euclidean distance between every
// centroid and every windowed sample at every shift, using the
// precomputed squared-norm cache for the window term of the expansion
// ‖c-w‖² = ‖c‖² - 2·c·w + ‖w‖². The result is indexed
// [shift][centroid][sample] and holds squared distances unless squared
// is false, in which case values that went negative from float error
// are clamped to zero before the square root.
//
// squaredNorms must have shape (nShifts, nSamples) as produced by
// Norms(X, centroidLength, true); any other shape is an error.
func DistanceMatrix(centroids, X [][]float64, squaredNorms [][]float64, squared bool) ([][][]float64, error) {
	sh, err := bankShape(X, centroids)
	if err != nil {
		return nil, err
	}
	if err := checkNormShape(squaredNorms, sh); err != nil {
		return nil, err
	}

	cNorms := squaredRowNorms(centroids)
	distances := make([][][]float64, sh.nShifts)
	for s := range distances {
		plane := make([][]float64, sh.nCentroids)
		for c, cent := range centroids {
			row := make([]float64, sh.nSamples)
			for k, x := range X {
				w := x[s : s+sh.centroidLength]
				d := cNorms[c] - 2*vek.Dot(cent, w) + squaredNorms[s][k]
				if d < 0 {
					d = 0
				}
				if !squared {
					d = math.Sqrt(d)
				}
				row[k] = d
			}
			plane[c] = row
		}
		distances[s] = plane
	}
	return distances, nil
}
