package sikm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindows(t *testing.T) {
	X := [][]float64{
		{0, 1, 2, 3},
		{4, 5, 6, 7},
	}

	w := Windows(X, 1, 2)
	require.Len(t, w, 2)
	assert.Equal(t, []float64{1, 2}, w[0])
	assert.Equal(t, []float64{5, 6}, w[1])

	// Windows are views, not copies.
	X[0][1] = 9
	assert.Equal(t, []float64{9, 2}, w[0])
}

func TestWindowShapeCount(t *testing.T) {
	X := [][]float64{{1, 2, 3, 4, 5}}

	sh, err := windowShape(X, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, sh.nShifts)

	sh, err = windowShape(X, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, sh.nShifts)
}
