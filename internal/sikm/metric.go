// Package sikm implements shift-invariant k-means primitives: centroids
// are shorter than the samples they are matched against, so every
// centroid is slid across all valid offsets of a sample and the offset
// with the minimum distance wins.
package sikm

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMetric is returned when a metric other than
	// euclidean or cosine is requested.
	ErrUnsupportedMetric = errors.New("sikm: unsupported metric")

	// ErrShapeMismatch is returned when input dimensions disagree:
	// ragged rows, centroids longer than samples, or a norm cache whose
	// shape does not match the derived shift and sample counts.
	ErrShapeMismatch = errors.New("sikm: shape mismatch")
)

// Metric selects the distance used for nearest-centroid assignment.
type Metric int

const (
	Euclidean Metric = iota
	Cosine
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric converts a metric name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "euclidean":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMetric, s)
}

// Backend selects the assignment strategy. All backends produce the
// same labels and shifts, and distances equal up to float tolerance,
// for the euclidean metric; see Assigner for the cosine caveat on
// BackendVQ.
type Backend int

const (
	// BackendDirect evaluates every shift with precomputed window norms.
	BackendDirect Backend = iota
	// BackendToeplitz exploits the overlap between consecutive windows
	// of a sample (sliding correlation plus running window norms).
	BackendToeplitz
	// BackendVQ quantizes raw windows against the centroid bank without
	// a norm cache.
	BackendVQ
)

func (b Backend) String() string {
	switch b {
	case BackendDirect:
		return "direct"
	case BackendToeplitz:
		return "toeplitz"
	case BackendVQ:
		return "vq"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// ParseBackend converts a backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "direct":
		return BackendDirect, nil
	case "toeplitz":
		return BackendToeplitz, nil
	case "vq":
		return BackendVQ, nil
	}
	return 0, fmt.Errorf("sikm: unknown backend %q", s)
}
