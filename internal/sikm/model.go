package sikm

// Model is a trained shift-invariant codebook together with the final
// assignment of the training data.
type Model struct {
	metric     Metric
	k          int
	centroids  [][]float64
	assignment Assignment
	iter       int
}

// Predict returns the centroid, shift and distance to which the sample
// would be assigned.
func (m *Model) Predict(x []float64) (label, shift int, distance float64, err error) {
	asn, err := NewAssigner(m.metric, BackendDirect).Assign([][]float64{x}, m.centroids)
	if err != nil {
		return 0, 0, 0, err
	}
	return asn.Labels[0], asn.Shifts[0], asn.Distances[0], nil
}

// Guesses returns mapping from sample indices to centroid numbers.
func (m *Model) Guesses() []int {
	return m.assignment.Labels
}

// Shifts returns the winning shift offset of every sample.
func (m *Model) Shifts() []int {
	return m.assignment.Shifts
}

// Distances returns the winning distance of every sample.
func (m *Model) Distances() []float64 {
	return m.assignment.Distances
}

// Centroids returns the trained centroid bank.
func (m *Model) Centroids() [][]float64 {
	return m.centroids
}

// Centroid returns centroid at position i.
func (m *Model) Centroid(i int) []float64 {
	return m.centroids[i]
}

// Iter returns model number of iterations.
func (m *Model) Iter() int {
	return m.iter
}

// Distortion returns the mean assignment distance, a convergence
// quality figure.
func (m *Model) Distortion() float64 {
	if len(m.assignment.Distances) == 0 {
		return 0
	}
	var sum float64
	for _, d := range m.assignment.Distances {
		sum += d
	}
	return sum / float64(len(m.assignment.Distances))
}
