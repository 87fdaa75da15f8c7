package nelson

import (
	"sort"

	"github.com/soltixdb/nelson/internal/analytics"
)

// Partition is every observation sharing one dimension value, ordered by
// time. Indices[k] is the position of Points[k] in the input series.
type Partition struct {
	Dimension string
	Indices   []int
	Points    analytics.Series
}

// Len returns the number of observations in the partition
func (p Partition) Len() int {
	return len(p.Points)
}

// PartitionSeries splits series by dimension and orders each partition by
// time. Timestamp ties keep input order. Partitions are returned sorted by
// dimension value.
func PartitionSeries(series analytics.Series) []Partition {
	byDim := make(map[string][]int)
	for i, o := range series {
		byDim[o.Dimension] = append(byDim[o.Dimension], i)
	}

	dims := make([]string, 0, len(byDim))
	for d := range byDim {
		dims = append(dims, d)
	}
	sort.Strings(dims)

	partitions := make([]Partition, len(dims))
	for pi, d := range dims {
		indices := byDim[d]
		sort.SliceStable(indices, func(a, b int) bool {
			return series[indices[a]].Time.Before(series[indices[b]].Time)
		})

		points := make(analytics.Series, len(indices))
		for k, idx := range indices {
			points[k] = series[idx]
		}

		partitions[pi] = Partition{
			Dimension: d,
			Indices:   indices,
			Points:    points,
		}
	}

	return partitions
}
