package sikm

import (
	"fmt"
	"math"
	"runtime"
	"slices"

	"github.com/viterin/vek"
)

// Assignment holds the per-sample result of a shift-invariant
// nearest-centroid search. Labels[k], Shifts[k] and Distances[k] all
// come from the single (shift, centroid) pair achieving the minimum
// distance for sample k.
type Assignment struct {
	Labels    []int
	Shifts    []int
	Distances []float64
}

// Assigner finds, for each sample, the nearest centroid over all
// shifts. Every backend runs the same two stages: a per-shift nearest
// scan (stable argmin over centroids, ascending index) followed by a
// reduction picking, per sample, the first shift achieving the minimum
// distance.
//
// For the euclidean metric all backends report the actual (non-squared)
// distance and are interchangeable up to float tolerance. For cosine,
// BackendVQ quantizes raw windows against L2-normalized centroids; that
// ranks like true cosine only when window norms are roughly uniform.
// WithWindowNormalization normalizes the windows too, which restores
// exact cosine ranking while reporting distances on the
// normalized-euclidean scale.
type Assigner struct {
	metric           Metric
	backend          Backend
	norms            [][]float64
	flatNorms        []float64
	normalizeWindows bool
	workers          int
}

type AssignerOption func(*Assigner)

// NewAssigner creates an Assigner for the given metric and backend.
func NewAssigner(metric Metric, backend Backend, options ...AssignerOption) *Assigner {
	a := &Assigner{
		metric:  metric,
		backend: backend,
		workers: runtime.NumCPU(),
	}
	for i := range options {
		options[i](a)
	}
	if a.workers < 1 {
		a.workers = 1
	}
	return a
}

// WithSquaredNorms supplies a precomputed squared window-norm cache of
// shape (nShifts, nSamples), as produced by Norms(X, centroidLength,
// true). Only the euclidean metric uses it; without it the cache is
// computed internally.
func WithSquaredNorms(norms [][]float64) AssignerOption {
	return func(a *Assigner) {
		a.norms = norms
	}
}

// WithFlatSquaredNorms supplies squared norms as a flat sequence, the
// single-shift form. It is reinterpreted as a (1, nSamples) cache.
func WithFlatSquaredNorms(norms []float64) AssignerOption {
	return func(a *Assigner) {
		a.flatNorms = norms
	}
}

// WithWorkers bounds the number of goroutines used for the per-shift
// scan.
func WithWorkers(n int) AssignerOption {
	return func(a *Assigner) {
		a.workers = n
	}
}

// WithWindowNormalization makes BackendVQ L2-normalize sample windows
// as well as centroids under the cosine metric.
func WithWindowNormalization() AssignerOption {
	return func(a *Assigner) {
		a.normalizeWindows = true
	}
}

// AssignSingle assigns against a bank consisting of one centroid.
func (a *Assigner) AssignSingle(X [][]float64, centroid []float64) (Assignment, error) {
	return a.Assign(X, [][]float64{centroid})
}

// Assign computes the best centroid, shift and distance for every
// sample. No partial results are produced on error.
func (a *Assigner) Assign(X, centroids [][]float64) (Assignment, error) {
	if a.metric != Euclidean && a.metric != Cosine {
		return Assignment{}, fmt.Errorf("%w: %v", ErrUnsupportedMetric, a.metric)
	}
	sh, err := bankShape(X, centroids)
	if err != nil {
		return Assignment{}, err
	}
	wNorms, err := a.windowNorms(X, sh)
	if err != nil {
		return Assignment{}, err
	}

	labels := make([][]int, sh.nShifts)
	dists := make([][]float64, sh.nShifts)
	for s := range labels {
		labels[s] = make([]int, sh.nSamples)
		dists[s] = make([]float64, sh.nSamples)
	}

	switch a.backend {
	case BackendDirect:
		a.assignDirect(X, centroids, sh, wNorms, labels, dists)
	case BackendToeplitz:
		a.assignToeplitz(X, centroids, sh, wNorms, labels, dists)
	case BackendVQ:
		a.assignVQ(X, centroids, sh, labels, dists)
	default:
		return Assignment{}, fmt.Errorf("sikm: unknown backend %v", a.backend)
	}

	return reduceShifts(labels, dists), nil
}

// windowNorms resolves the squared window-norm cache for the euclidean
// metric: coerce a flat sequence to the single-shift form, verify a
// supplied cache, or compute one when the backend needs it.
func (a *Assigner) windowNorms(X [][]float64, sh shape) ([][]float64, error) {
	if a.metric != Euclidean || a.backend == BackendVQ {
		return nil, nil
	}
	norms := a.norms
	if norms == nil && a.flatNorms != nil {
		norms = [][]float64{a.flatNorms}
	}
	if norms != nil {
		if err := checkNormShape(norms, sh); err != nil {
			return nil, err
		}
		return norms, nil
	}
	if a.backend == BackendToeplitz {
		// Maintains running norms itself.
		return nil, nil
	}
	return Norms(X, sh.centroidLength, true)
}

// assignDirect evaluates each shift independently: euclidean through
// the known-norms nearest scan, cosine through the generic one.
func (a *Assigner) assignDirect(X, centroids [][]float64, sh shape, wNorms [][]float64, labels [][]int, dists [][]float64) {
	var cNorms []float64
	if a.metric == Euclidean {
		cNorms = squaredRowNorms(centroids)
	}
	a.parallel(sh.nShifts, func(s int) {
		w := Windows(X, s, sh.centroidLength)
		if a.metric == Euclidean {
			nearestWithNorms(w, centroids, wNorms[s], cNorms, labels[s], dists[s])
		} else {
			nearest(w, centroids, CosineDistance, labels[s], dists[s])
		}
	})
}

// assignToeplitz walks each sample once, sliding every centroid across
// it. Consecutive windows share all but two elements, so the squared
// window norm is carried as a running value instead of being recomputed
// per shift.
func (a *Assigner) assignToeplitz(X, centroids [][]float64, sh shape, wNorms [][]float64, labels [][]int, dists [][]float64) {
	cSq := squaredRowNorms(centroids)
	L := sh.centroidLength
	a.parallel(sh.nSamples, func(k int) {
		x := X[k]
		var wn float64
		for s := 0; s < sh.nShifts; s++ {
			switch {
			case wNorms != nil:
				wn = wNorms[s][k]
			case s == 0:
				w := x[:L]
				wn = vek.Dot(w, w)
			default:
				wn += x[s+L-1]*x[s+L-1] - x[s-1]*x[s-1]
				if wn < 0 {
					wn = 0
				}
			}
			w := x[s : s+L]
			best, bestd := -1, 0.0
			for c, cent := range centroids {
				dot := vek.Dot(cent, w)
				var d float64
				if a.metric == Euclidean {
					d = cSq[c] - 2*dot + wn
					if d < 0 {
						d = 0
					}
				} else {
					if wn == 0 || cSq[c] == 0 {
						d = 1
					} else {
						d = 1 - dot/math.Sqrt(wn*cSq[c])
					}
				}
				if best < 0 || d < bestd {
					best, bestd = c, d
				}
			}
			if a.metric == Euclidean {
				bestd = math.Sqrt(bestd)
			}
			labels[s][k] = best
			dists[s][k] = bestd
		}
	})
}

// assignVQ quantizes raw windows against the bank with a plain distance
// scan; no norm cache. Cosine normalizes the bank (and, with
// WithWindowNormalization, the windows).
func (a *Assigner) assignVQ(X, centroids [][]float64, sh shape, labels [][]int, dists [][]float64) {
	book := centroids
	if a.metric == Cosine {
		book = normalizeRows(centroids)
	}
	a.parallel(sh.nShifts, func(s int) {
		w := Windows(X, s, sh.centroidLength)
		for k, wk := range w {
			v := wk
			if a.metric == Cosine && a.normalizeWindows {
				v = normalizeRow(wk)
			}
			labels[s][k], dists[s][k] = quantize(v, book)
		}
	})
}

// quantize returns the index of the nearest codebook entry and its
// distance.
func quantize(v []float64, book [][]float64) (int, float64) {
	best := 0
	bestd := EuclideanDistance(v, book[0])
	for c := 1; c < len(book); c++ {
		if d := EuclideanDistance(v, book[c]); d < bestd {
			best, bestd = c, d
		}
	}
	return best, bestd
}

// nearestWithNorms scans centroids for every window using the expansion
// ‖c-w‖² = ‖c‖² - 2·c·w + ‖w‖² with both norm terms precomputed, then
// reports the clamped square root for the winner.
func nearestWithNorms(windows, centroids [][]float64, wNorms, cNorms []float64, labels []int, dists []float64) {
	for k, w := range windows {
		best := 0
		bestd := cNorms[0] - 2*vek.Dot(centroids[0], w) + wNorms[k]
		for c := 1; c < len(centroids); c++ {
			if d := cNorms[c] - 2*vek.Dot(centroids[c], w) + wNorms[k]; d < bestd {
				best, bestd = c, d
			}
		}
		if bestd < 0 {
			bestd = 0
		}
		labels[k] = best
		dists[k] = math.Sqrt(bestd)
	}
}

// nearest scans centroids for every window with an arbitrary distance.
func nearest(windows, centroids [][]float64, fn DistanceFunc, labels []int, dists []float64) {
	for k, w := range windows {
		best := 0
		bestd := fn(w, centroids[0])
		for c := 1; c < len(centroids); c++ {
			if d := fn(w, centroids[c]); d < bestd {
				best, bestd = c, d
			}
		}
		labels[k] = best
		dists[k] = bestd
	}
}

// reduceShifts picks, per sample, the first shift achieving the minimum
// distance and takes label and distance from that winning row.
func reduceShifts(labels [][]int, dists [][]float64) Assignment {
	nSamples := len(labels[0])
	out := Assignment{
		Labels:    make([]int, nSamples),
		Shifts:    make([]int, nSamples),
		Distances: make([]float64, nSamples),
	}
	for k := 0; k < nSamples; k++ {
		bs, bd := 0, dists[0][k]
		for s := 1; s < len(dists); s++ {
			if dists[s][k] < bd {
				bs, bd = s, dists[s][k]
			}
		}
		out.Labels[k] = labels[bs][k]
		out.Shifts[k] = bs
		out.Distances[k] = bd
	}
	return out
}

// parallel runs fn for every index in [0, n), striding indices across a
// bounded pool of workers. Each index writes only its own output slots,
// so no synchronization is needed beyond completion.
func (a *Assigner) parallel(n int, fn func(int)) {
	workers := min(a.workers, n)
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	ch := make(chan struct{}, workers)
	for num := 0; num < workers; num++ {
		num := num
		go func() {
			defer func() {
				ch <- struct{}{}
			}()
			for i := num; i < n; i += workers {
				fn(i)
			}
		}()
	}
	for done := 0; done < workers; done++ {
		<-ch
	}
}

// normalizeRows returns L2-normalized copies of the rows; zero rows are
// copied unchanged.
func normalizeRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = normalizeRow(r)
	}
	return out
}

func normalizeRow(r []float64) []float64 {
	c := slices.Clone(r)
	if n := math.Sqrt(vek.Dot(c, c)); n > 0 {
		vek.MulNumber_Inplace(c, 1/n)
	}
	return c
}
