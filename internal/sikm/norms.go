package sikm

import (
	"math"

	"github.com/viterin/vek"
)

// Norms computes the Euclidean norm of every windowed sample at every
// shift. The result has one row per shift and one column per sample:
// norms[s][k] is the norm of X[k][s:s+centroidLength], squared when
// squared is true. Distance backends reuse this cache instead of
// recomputing window norms per shift.
func Norms(X [][]float64, centroidLength int, squared bool) ([][]float64, error) {
	sh, err := windowShape(X, centroidLength)
	if err != nil {
		return nil, err
	}
	norms := make([][]float64, sh.nShifts)
	for s := range norms {
		row := make([]float64, sh.nSamples)
		for k, x := range X {
			w := x[s : s+centroidLength]
			n := vek.Dot(w, w)
			if !squared {
				n = math.Sqrt(n)
			}
			row[k] = n
		}
		norms[s] = row
	}
	return norms, nil
}

// squaredRowNorms returns the squared Euclidean norm of each row.
func squaredRowNorms(rows [][]float64) []float64 {
	norms := make([]float64, len(rows))
	for i, r := range rows {
		norms[i] = vek.Dot(r, r)
	}
	return norms
}
