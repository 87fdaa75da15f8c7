package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/soltixdb/nelson/internal/analytics"
	"github.com/soltixdb/nelson/internal/utils"
)

var (
	timestampAliases = []string{"ts", "timestamp", "time", "date"}
	dimensionAliases = []string{"dimension", "dim"}
)

// timestampLayouts are tried in order for string timestamps
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ColumnMapping names the result set columns holding each observation field.
// Empty fields are resolved from the column names.
type ColumnMapping struct {
	Timestamp string
	Value     string
	Dimension string
}

// columnIndex holds the resolved positions; dimension is -1 when absent
type columnIndex struct {
	timestamp int
	value     int
	dimension int
}

func findColumn(columns []string, names ...string) int {
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		for i, col := range columns {
			if strings.ToLower(strings.TrimSpace(col)) == name {
				return i
			}
		}
	}
	return -1
}

// resolveColumns locates the timestamp, value and dimension columns.
// A timestamp column may also be named date_<grain>; the value column may be
// named after the metric.
func resolveColumns(columns []string, mapping ColumnMapping, metric string) (columnIndex, error) {
	idx := columnIndex{timestamp: -1, value: -1, dimension: -1}

	if mapping.Timestamp != "" {
		idx.timestamp = findColumn(columns, mapping.Timestamp)
		if idx.timestamp < 0 {
			return idx, fmt.Errorf("timestamp column %q not found", mapping.Timestamp)
		}
	} else {
		idx.timestamp = findColumn(columns, timestampAliases...)
		if idx.timestamp < 0 {
			for i, col := range columns {
				if strings.HasPrefix(strings.ToLower(strings.TrimSpace(col)), "date_") {
					idx.timestamp = i
					break
				}
			}
		}
		if idx.timestamp < 0 {
			return idx, fmt.Errorf("no timestamp column found (expected one of %s or date_<grain>)",
				strings.Join(timestampAliases, ", "))
		}
	}

	if mapping.Value != "" {
		idx.value = findColumn(columns, mapping.Value)
		if idx.value < 0 {
			return idx, fmt.Errorf("value column %q not found", mapping.Value)
		}
	} else {
		idx.value = findColumn(columns, "value", metric)
		if idx.value < 0 {
			return idx, fmt.Errorf("no value column found (expected 'value' or the metric name)")
		}
	}

	if mapping.Dimension != "" {
		idx.dimension = findColumn(columns, mapping.Dimension)
		if idx.dimension < 0 {
			return idx, fmt.Errorf("dimension column %q not found", mapping.Dimension)
		}
	} else {
		idx.dimension = findColumn(columns, dimensionAliases...)
	}

	if idx.timestamp == idx.value {
		return idx, fmt.Errorf("timestamp and value must be different columns")
	}

	return idx, nil
}

// decodeRows converts result set rows into a series. Rows with a null
// timestamp or null value are dropped and counted.
func decodeRows(rows [][]interface{}, idx columnIndex, width int) (analytics.Series, int, error) {
	series := make(analytics.Series, 0, len(rows))
	dropped := 0

	for i, row := range rows {
		if len(row) != width {
			return nil, 0, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), width)
		}

		if row[idx.timestamp] == nil || row[idx.value] == nil {
			dropped++
			continue
		}

		ts, err := parseTimestamp(row[idx.timestamp])
		if err != nil {
			return nil, 0, fmt.Errorf("row %d: %w", i, err)
		}

		value, ok := utils.ParseFloat64(row[idx.value])
		if !ok {
			return nil, 0, fmt.Errorf("row %d: value %v is not numeric", i, row[idx.value])
		}

		var dim string
		if idx.dimension >= 0 && row[idx.dimension] != nil {
			dim = formatDimension(row[idx.dimension])
		}

		series = append(series, analytics.Observation{
			Time:      ts,
			Value:     value,
			Dimension: dim,
		})
	}

	return series, dropped, nil
}

// parseTimestamp accepts time.Time, string layouts and unix epochs.
// Numeric epochs above 1e11 are read as milliseconds.
func parseTimestamp(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		epoch, ok := utils.ParseFloat64(s)
		if !ok {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", val)
		}
		return fromEpoch(epoch), nil
	}

	epoch, ok := utils.ToFloat64(v)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid timestamp %v", v)
	}
	return fromEpoch(epoch), nil
}

// fromEpoch reads epochs above 1e11 in magnitude as milliseconds
func fromEpoch(epoch float64) time.Time {
	if epoch > 1e11 || epoch < -1e11 {
		return time.UnixMilli(int64(epoch)).UTC()
	}
	return time.Unix(int64(epoch), 0).UTC()
}

func formatDimension(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return fmt.Sprintf("%t", val)
	}
	if f, ok := utils.ToFloat64(v); ok {
		return fmt.Sprintf("%g", f)
	}
	return fmt.Sprint(v)
}

// parseDate parses an RFC3339 timestamp or a YYYY-MM-DD date (UTC midnight)
// and reports whether the input was a bare date. An empty string yields the
// zero time.
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q must be RFC3339 or YYYY-MM-DD", s)
	}
	return t, true, nil
}

// rankDimensions orders dimensions by total value descending, ties by name
func rankDimensions(series analytics.Series) []string {
	totals := make(map[string]float64)
	for _, o := range series {
		totals[o.Dimension] += o.Value
	}

	dims := make([]string, 0, len(totals))
	for d := range totals {
		dims = append(dims, d)
	}
	sort.Slice(dims, func(i, j int) bool {
		if totals[dims[i]] != totals[dims[j]] {
			return totals[dims[i]] > totals[dims[j]]
		}
		return dims[i] < dims[j]
	})
	return dims
}

// limitSeries keeps the observations of the top limit dimensions, in input
// order, and returns the kept dimensions in rank order
func limitSeries(series analytics.Series, limit int) (analytics.Series, []string) {
	ranked := rankDimensions(series)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	keep := make(map[string]struct{}, len(ranked))
	for _, d := range ranked {
		keep[d] = struct{}{}
	}

	out := make(analytics.Series, 0, len(series))
	for _, o := range series {
		if _, ok := keep[o.Dimension]; ok {
			out = append(out, o)
		}
	}
	return out, ranked
}
