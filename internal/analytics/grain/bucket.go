package grain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soltixdb/nelson/internal/analytics"
)

// Aggregation selects how values inside one bucket are combined
type Aggregation string

const (
	AggregationSum   Aggregation = "sum"
	AggregationAvg   Aggregation = "avg"
	AggregationMin   Aggregation = "min"
	AggregationMax   Aggregation = "max"
	AggregationCount Aggregation = "count"
)

// ParseAggregation parses an aggregation name. Empty input means sum.
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AggregationSum, nil
	case AggregationSum, AggregationAvg, AggregationMin, AggregationMax, AggregationCount:
		return a, nil
	case "mean", "average":
		return AggregationAvg, nil
	default:
		return "", fmt.Errorf("invalid aggregation: %q (valid: sum, avg, min, max, count)", s)
	}
}

// accumulator collects the running aggregates of one bucket
type accumulator struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func newAccumulator(value float64) *accumulator {
	return &accumulator{count: 1, sum: value, min: value, max: value}
}

func (a *accumulator) add(value float64) {
	a.count++
	a.sum += value
	if value < a.min {
		a.min = value
	}
	if value > a.max {
		a.max = value
	}
}

func (a *accumulator) result(agg Aggregation) float64 {
	switch agg {
	case AggregationAvg:
		return a.sum / float64(a.count)
	case AggregationMin:
		return a.min
	case AggregationMax:
		return a.max
	case AggregationCount:
		return float64(a.count)
	default:
		return a.sum
	}
}

type bucketKey struct {
	dimension string
	start     int64
}

// Bucket groups series by (dimension, bucket start) and emits one
// observation per bucket carrying the aggregated value. Output is ordered by
// dimension in first-appearance order, then by bucket time. GrainNone
// returns a copy of the input unchanged.
func Bucket(series analytics.Series, g Grain, agg Aggregation) analytics.Series {
	if g == GrainNone || g == "" {
		out := make(analytics.Series, len(series))
		copy(out, series)
		return out
	}

	buckets := make(map[bucketKey]*accumulator)
	starts := make(map[bucketKey]time.Time)
	perDim := make(map[string][]bucketKey)

	for _, o := range series {
		start := Truncate(o.Time, g)
		key := bucketKey{dimension: o.Dimension, start: start.UnixNano()}

		if acc, ok := buckets[key]; ok {
			acc.add(o.Value)
			continue
		}
		buckets[key] = newAccumulator(o.Value)
		starts[key] = start
		perDim[o.Dimension] = append(perDim[o.Dimension], key)
	}

	out := make(analytics.Series, 0, len(buckets))
	for _, dim := range series.Dimensions() {
		keys := perDim[dim]
		sort.Slice(keys, func(i, j int) bool {
			return keys[i].start < keys[j].start
		})
		for _, key := range keys {
			out = append(out, analytics.Observation{
				Time:      starts[key],
				Value:     buckets[key].result(agg),
				Dimension: dim,
			})
		}
	}

	return out
}
