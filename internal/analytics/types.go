// Package analytics provides the common types shared by the time-series
// analytics packages (nelson rules evaluation, grain bucketing).
package analytics

import (
	"time"
)

// Observation is a single metric value at a point in time, optionally
// tagged with the dimension value it belongs to.
// An empty Dimension means the series has no dimensions.
type Observation struct {
	Time      time.Time `json:"ts"`
	Value     float64   `json:"value"`
	Dimension string    `json:"dimension,omitempty"`
}

// Series is a collection of observations in caller order
type Series []Observation

// Values extracts just the values from the series
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, o := range s {
		values[i] = o.Value
	}
	return values
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s)
}

// Dimensions returns the distinct dimension values in order of first appearance
func (s Series) Dimensions() []string {
	seen := make(map[string]struct{})
	dims := make([]string, 0)
	for _, o := range s {
		if _, ok := seen[o.Dimension]; ok {
			continue
		}
		seen[o.Dimension] = struct{}{}
		dims = append(dims, o.Dimension)
	}
	return dims
}

// HasDimensions reports whether any observation carries a dimension value
func (s Series) HasDimensions() bool {
	for _, o := range s {
		if o.Dimension != "" {
			return true
		}
	}
	return false
}

// Between returns the observations with start <= Time <= end.
// A zero start or end leaves that side unbounded.
func (s Series) Between(start, end time.Time) Series {
	out := make(Series, 0, len(s))
	for _, o := range s {
		if !start.IsZero() && o.Time.Before(start) {
			continue
		}
		if !end.IsZero() && o.Time.After(end) {
			continue
		}
		out = append(out, o)
	}
	return out
}
