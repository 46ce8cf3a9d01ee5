package sikm

import "fmt"

// shape carries the dimensions derived from a sample batch and a
// centroid bank.
type shape struct {
	nSamples       int
	nFeatures      int
	nCentroids     int
	centroidLength int
	nShifts        int
}

// Windows returns the window of every sample at the given shift. The
// returned rows alias the sample storage; callers must not mutate them.
// The shift must lie in [0, nFeatures-length]; an out-of-range shift is
// a caller bug and panics on the slice bounds.
func Windows(X [][]float64, shift, length int) [][]float64 {
	w := make([][]float64, len(X))
	for k, x := range X {
		w[k] = x[shift : shift+length]
	}
	return w
}

// windowShape validates the sample batch against a centroid length and
// derives the number of shifts.
func windowShape(X [][]float64, centroidLength int) (shape, error) {
	if len(X) == 0 {
		return shape{}, fmt.Errorf("%w: empty sample batch", ErrShapeMismatch)
	}
	nFeatures := len(X[0])
	for k, x := range X {
		if len(x) != nFeatures {
			return shape{}, fmt.Errorf("%w: sample %d has length %d, want %d", ErrShapeMismatch, k, len(x), nFeatures)
		}
	}
	if centroidLength < 1 {
		return shape{}, fmt.Errorf("%w: centroid length %d, want at least 1", ErrShapeMismatch, centroidLength)
	}
	nShifts := nFeatures - centroidLength + 1
	if nShifts < 1 {
		return shape{}, fmt.Errorf("%w: centroid length %d exceeds sample length %d", ErrShapeMismatch, centroidLength, nFeatures)
	}
	return shape{
		nSamples:       len(X),
		nFeatures:      nFeatures,
		centroidLength: centroidLength,
		nShifts:        nShifts,
	}, nil
}

// bankShape validates a sample batch together with a centroid bank.
// This is the single coercion/validation point shared by the distance
// matrix builder and every assignment backend.
func bankShape(X, centroids [][]float64) (shape, error) {
	if len(centroids) == 0 {
		return shape{}, fmt.Errorf("%w: empty centroid bank", ErrShapeMismatch)
	}
	centroidLength := len(centroids[0])
	for c, cent := range centroids {
		if len(cent) != centroidLength {
			return shape{}, fmt.Errorf("%w: centroid %d has length %d, want %d", ErrShapeMismatch, c, len(cent), centroidLength)
		}
	}
	sh, err := windowShape(X, centroidLength)
	if err != nil {
		return shape{}, err
	}
	sh.nCentroids = len(centroids)
	return sh, nil
}

// checkNormShape verifies a precomputed squared-norm cache against the
// derived shift and sample counts.
func checkNormShape(norms [][]float64, sh shape) error {
	if len(norms) != sh.nShifts {
		return fmt.Errorf("%w: norm cache has %d shift rows, want %d", ErrShapeMismatch, len(norms), sh.nShifts)
	}
	for s, row := range norms {
		if len(row) != sh.nSamples {
			return fmt.Errorf("%w: norm row %d has %d entries, want %d samples", ErrShapeMismatch, s, len(row), sh.nSamples)
		}
	}
	return nil
}
