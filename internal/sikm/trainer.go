package sikm

import (
	"fmt"
	"math/rand"
	"runtime"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Trainer runs shift-invariant k-means: centroids are updated from the
// best-matching window of each assigned sample rather than from whole
// samples.
type Trainer struct {
	k              int
	centroidLength int
	metric         Metric
	backend        Backend
	maxIterations  int
	delta          float64
	concurrency    int
	seed           int64
}

type TrainerOption func(*Trainer)

// NewTrainer create new Trainer
func NewTrainer(k, centroidLength int, options ...TrainerOption) Trainer {
	t := Trainer{
		k:              k,
		centroidLength: centroidLength,
		metric:         Euclidean,
		backend:        BackendDirect,
		maxIterations:  100,
		delta:          0.01,
		concurrency:    runtime.NumCPU(),
	}
	for i := range options {
		options[i](&t)
	}
	return t
}

func WithMetric(m Metric) TrainerOption {
	return func(t *Trainer) {
		t.metric = m
	}
}

func WithBackend(b Backend) TrainerOption {
	return func(t *Trainer) {
		t.backend = b
	}
}

func WithMaxIterations(i int) TrainerOption {
	return func(t *Trainer) {
		t.maxIterations = i
	}
}

func WithDeltaThreshold(delta float64) TrainerOption {
	return func(t *Trainer) {
		t.delta = delta
	}
}

func WithConcurrency(n int) TrainerOption {
	return func(t *Trainer) {
		t.concurrency = n
	}
}

// WithSeed fixes the random source used for centroid seeding, making
// runs reproducible. Zero (the default) draws a fresh seed.
func WithSeed(seed int64) TrainerOption {
	return func(t *Trainer) {
		t.seed = seed
	}
}

// Fit create and train the *Model.
func (t Trainer) Fit(X [][]float64) (*Model, error) {
	if t.k < 1 {
		return nil, fmt.Errorf("sikm: need at least one centroid, got %d", t.k)
	}
	if t.metric != Euclidean && t.metric != Cosine {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMetric, t.metric)
	}
	sh, err := windowShape(X, t.centroidLength)
	if err != nil {
		return nil, err
	}

	seed := t.seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	model := &Model{k: t.k, metric: t.metric, centroids: make([][]float64, t.k)}
	for i := range model.centroids {
		model.centroids[i] = slices.Clone(randomWindow(rng, X, sh))
	}

	assigner := NewAssigner(t.metric, t.backend, WithWorkers(t.concurrency))
	prev := make([]int, sh.nSamples)
	for i := range prev {
		prev[i] = -1
	}
	changeThreshold := max(1, int(float64(sh.nSamples)*t.delta))

	iter := 0
	for ; iter < t.maxIterations; iter++ {
		asn, err := assigner.Assign(X, model.centroids)
		if err != nil {
			return nil, err
		}

		changes := 0
		counts := make([]int, t.k)
		sums := make([][]float64, t.k)
		for c := range sums {
			sums[c] = make([]float64, sh.centroidLength)
		}
		for k, label := range asn.Labels {
			if prev[k] != label {
				changes++
			}
			prev[k] = label
			counts[label]++
			floats.Add(sums[label], X[k][asn.Shifts[k]:asn.Shifts[k]+sh.centroidLength])
		}

		for c := range sums {
			if counts[c] == 0 {
				model.centroids[c] = slices.Clone(randomWindow(rng, X, sh))
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			model.centroids[c] = sums[c]
		}

		if changes < changeThreshold {
			break
		}
	}

	// Labels against the final centroids, not the pre-update ones.
	asn, err := assigner.Assign(X, model.centroids)
	if err != nil {
		return nil, err
	}
	model.assignment = asn
	model.iter = iter
	return model, nil
}

func randomWindow(rng *rand.Rand, X [][]float64, sh shape) []float64 {
	k := rng.Intn(sh.nSamples)
	s := rng.Intn(sh.nShifts)
	return X[k][s : s+sh.centroidLength]
}
