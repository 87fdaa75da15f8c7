package nelson

import (
	"fmt"
	"math"
	"strings"
)

// Estimator selects the standard deviation denominator
type Estimator string

const (
	EstimatorSample     Estimator = "sample"     // N-1 denominator (default)
	EstimatorPopulation Estimator = "population" // N denominator
)

// MinStatsPoints is the smallest partition stats can be computed for
const MinStatsPoints = 2

// ParseEstimator converts a config string into an Estimator.
// An empty string selects EstimatorSample.
func ParseEstimator(s string) (Estimator, error) {
	switch Estimator(strings.ToLower(strings.TrimSpace(s))) {
	case "", EstimatorSample:
		return EstimatorSample, nil
	case EstimatorPopulation:
		return EstimatorPopulation, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: sample, population)", ErrUnknownEstimator, s)
	}
}

// PartitionStats holds the mean and standard deviation of one partition.
// It is computed once and only read afterwards.
type PartitionStats struct {
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"stddev"`
	Count     int       `json:"count"`
	Estimator Estimator `json:"estimator"`
}

// deviation returns value - mean
func (s PartitionStats) deviation(value float64) float64 {
	return value - s.Mean
}

// side returns +1 above the mean, -1 below and 0 on it
func (s PartitionStats) side(value float64) int {
	switch {
	case value > s.Mean:
		return 1
	case value < s.Mean:
		return -1
	default:
		return 0
	}
}

// beyond returns the side (+1/-1) when value is strictly more than k
// standard deviations from the mean and 0 otherwise
func (s PartitionStats) beyond(value, k float64) int {
	d := s.deviation(value)
	limit := k * s.StdDev
	switch {
	case d > limit:
		return 1
	case d < -limit:
		return -1
	default:
		return 0
	}
}

// within reports whether value is strictly less than k standard deviations
// from the mean
func (s PartitionStats) within(value, k float64) bool {
	return math.Abs(s.deviation(value)) < k*s.StdDev
}

// ComputeStats returns the mean and standard deviation of values.
// Fewer than two values yields an *InsufficientDataError.
func ComputeStats(values []float64, est Estimator) (PartitionStats, error) {
	if est == "" {
		est = EstimatorSample
	}
	if est != EstimatorSample && est != EstimatorPopulation {
		return PartitionStats{}, fmt.Errorf("%w: %q", ErrUnknownEstimator, est)
	}
	if len(values) < MinStatsPoints {
		return PartitionStats{}, &InsufficientDataError{Count: len(values), Required: MinStatsPoints}
	}

	stats := PartitionStats{Count: len(values), Estimator: est}

	// A constant series has exactly its value as mean and no spread;
	// summing can drift by an ulp and put every point on one side.
	if isConstant(values) {
		stats.Mean = values[0]
		return stats, nil
	}

	// Values are scaled by a power of two covering max|v| so the sums stay
	// finite near math.MaxFloat64; the scaling itself is exact.
	scale := magnitude(values)
	n := float64(len(values))

	var sum float64
	for _, v := range values {
		sum += v / scale
	}
	mean := sum / n
	stats.Mean = mean * scale

	var sumSq float64
	for _, v := range values {
		diff := v/scale - mean
		sumSq += diff * diff
	}

	denom := n - 1
	if est == EstimatorPopulation {
		denom = n
	}
	stats.StdDev = math.Sqrt(sumSq/denom) * scale

	if math.IsInf(stats.StdDev, 0) || math.IsNaN(stats.StdDev) {
		return PartitionStats{}, &StatsRangeError{Count: len(values)}
	}

	return stats, nil
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// magnitude returns the smallest power of two not below max|v|, or 1 for
// an all-zero slice
func magnitude(values []float64) float64 {
	var maxAbs float64
	for _, v := range values {
		if a := math.Abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return 1
	}
	_, exp := math.Frexp(maxAbs)
	return math.Ldexp(1, exp)
}
