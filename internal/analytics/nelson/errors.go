package nelson

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched (errors.Is) by every InsufficientDataError
var ErrInsufficientData = errors.New("insufficient data")

// ErrUnknownEstimator is returned for an unsupported stddev estimator
var ErrUnknownEstimator = errors.New("unknown stddev estimator")

// ErrStatsOutOfRange is matched (errors.Is) by every StatsRangeError
var ErrStatsOutOfRange = errors.New("stats out of float64 range")

// InsufficientDataError reports a partition too small to compute stats on.
// It is a property of the input and never worth retrying.
type InsufficientDataError struct {
	Dimension string // empty for the implicit partition
	Count     int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("insufficient data for dimension %q: got %d points, need at least %d",
			e.Dimension, e.Count, e.Required)
	}
	return fmt.Sprintf("insufficient data: got %d points, need at least %d", e.Count, e.Required)
}

// Is makes errors.Is(err, ErrInsufficientData) true
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// StatsRangeError reports a partition whose spread exceeds the float64
// range. Like InsufficientDataError it is a property of the input.
type StatsRangeError struct {
	Dimension string // empty for the implicit partition
	Count     int
}

func (e *StatsRangeError) Error() string {
	if e.Dimension != "" {
		return fmt.Sprintf("standard deviation of dimension %q (%d points) overflows float64", e.Dimension, e.Count)
	}
	return fmt.Sprintf("standard deviation of %d points overflows float64", e.Count)
}

// Is makes errors.Is(err, ErrStatsOutOfRange) true
func (e *StatsRangeError) Is(target error) bool {
	return target == ErrStatsOutOfRange
}
