package sikm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceFuncs(t *testing.T) {
	tests := []struct {
		name      string
		a, b      []float64
		euclidean float64
		cosine    float64
	}{
		{"Simple", []float64{1, 2, 3}, []float64{4, 5, 6}, math.Sqrt(27), 1 - 32/(math.Sqrt(14)*math.Sqrt(77))},
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 0, 0},
		{"Orthogonal", []float64{1, 0}, []float64{0, 1}, math.Sqrt2, 1},
		{"Opposite", []float64{1, 0}, []float64{-1, 0}, 2, 2},
		{"Zero", []float64{0, 0}, []float64{1, 1}, math.Sqrt2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.euclidean, EuclideanDistance(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.euclidean*tt.euclidean, EuclideanDistanceSquared(tt.a, tt.b), 1e-12)
			assert.InDelta(t, tt.cosine, CosineDistance(tt.a, tt.b), 1e-12)
		})
	}
}

func TestDistanceMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	X := randBatch(rng, 6, 10)
	centroids := randBatch(rng, 4, 3)

	norms, err := Norms(X, 3, true)
	require.NoError(t, err)

	for _, squared := range []bool{true, false} {
		name := "Plain"
		if squared {
			name = "Squared"
		}
		t.Run(name, func(t *testing.T) {
			d, err := DistanceMatrix(centroids, X, norms, squared)
			require.NoError(t, err)
			require.Len(t, d, 8)

			for s := range d {
				require.Len(t, d[s], len(centroids))
				for c := range d[s] {
					require.Len(t, d[s][c], len(X))
					for k := range d[s][c] {
						want := EuclideanDistanceSquared(centroids[c], X[k][s:s+3])
						if !squared {
							want = math.Sqrt(want)
						}
						assert.InDelta(t, want, d[s][c][k], 1e-9)
					}
				}
			}
		})
	}
}

// The expansion ‖c‖²-2c·w+‖w‖² can go slightly negative when centroid
// and window coincide; the result must be clamped, never NaN.
func TestDistanceMatrixClamp(t *testing.T) {
	X := [][]float64{{0.1, 0.2, 0.3}}
	centroids := [][]float64{{0.1, 0.2}}

	norms, err := Norms(X, 2, true)
	require.NoError(t, err)

	d, err := DistanceMatrix(centroids, X, norms, false)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(d[0][0][0]))
	assert.GreaterOrEqual(t, d[0][0][0], 0.0)
	assert.InDelta(t, 0, d[0][0][0], 1e-9)
}

func TestDistanceMatrixShapeErrors(t *testing.T) {
	X := [][]float64{{1, 2, 3}, {4, 5, 6}}
	centroids := [][]float64{{1, 2}}

	norms, err := Norms(X, 2, true)
	require.NoError(t, err)

	t.Run("WrongShiftCount", func(t *testing.T) {
		_, err := DistanceMatrix(centroids, X, norms[:1], false)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
	t.Run("WrongSampleCount", func(t *testing.T) {
		bad := [][]float64{{1}, {2}}
		_, err := DistanceMatrix(centroids, X, bad, false)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
	t.Run("CentroidTooLong", func(t *testing.T) {
		_, err := DistanceMatrix([][]float64{{1, 2, 3, 4}}, X, norms, false)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
	t.Run("RaggedCentroids", func(t *testing.T) {
		_, err := DistanceMatrix([][]float64{{1, 2}, {1}}, X, norms, false)
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}
