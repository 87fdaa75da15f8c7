package nelson

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/soltixdb/nelson/internal/analytics"
)

// Config holds engine configuration.
// Rule thresholds are constants.
type Config struct {
	// Estimator selects sample (N-1) or population (N) standard deviation
	Estimator Estimator

	// Workers bounds how many partitions are evaluated concurrently.
	// Zero or less uses runtime.NumCPU().
	Workers int
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		Estimator: EstimatorSample,
		Workers:   0,
	}
}

// Engine evaluates Nelson rules. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	config Config
}

// NewEngine creates an engine, validating the estimator
func NewEngine(cfg Config) (*Engine, error) {
	est, err := ParseEstimator(string(cfg.Estimator))
	if err != nil {
		return nil, err
	}
	cfg.Estimator = est
	return &Engine{config: cfg}, nil
}

// Estimator returns the configured standard deviation estimator
func (e *Engine) Estimator() Estimator {
	return e.config.Estimator
}

// Evaluate applies all eight rules to points, which must already be in time
// order, using stats. The result has one record per point in the same order.
func (e *Engine) Evaluate(points analytics.Series, stats PartitionStats) []ViolationRecord {
	records := make([]ViolationRecord, len(points))
	if len(points) == 0 {
		return records
	}

	values := points.Values()
	for i, fn := range ruleFuncs {
		rule := Rule(i + 1)
		for _, idx := range fn(values, stats) {
			records[idx].set(rule)
		}
	}
	return records
}

// PartitionResult is the evaluation of one time-ordered partition
type PartitionResult struct {
	Dimension string
	Stats     PartitionStats
	Records   []ViolationRecord
}

// EvaluatePartition computes stats for points and evaluates them.
// An empty partition yields an empty result and no error; a single point
// yields an *InsufficientDataError.
func (e *Engine) EvaluatePartition(points analytics.Series) (PartitionResult, error) {
	if len(points) == 0 {
		return PartitionResult{Records: []ViolationRecord{}}, nil
	}

	stats, err := ComputeStats(points.Values(), e.config.Estimator)
	if err != nil {
		return PartitionResult{}, err
	}

	return PartitionResult{
		Stats:   stats,
		Records: e.Evaluate(points, stats),
	}, nil
}

// EvaluateOptions tunes how EvaluateSeries treats partitions
type EvaluateOptions struct {
	// SkipInsufficient leaves partitions too small for stats unflagged and
	// reports them in SeriesResult.Skipped instead of failing
	SkipInsufficient bool
}

// PartitionSummary describes one evaluated partition
type PartitionSummary struct {
	Dimension string         `json:"dimension"`
	Count     int            `json:"count"`
	Stats     PartitionStats `json:"stats"`
	Summary   RuleSummary    `json:"summary"`
}

// SeriesResult is the evaluation of a whole series.
// Records is 1:1 with the input series in input order.
type SeriesResult struct {
	Records    []ViolationRecord
	Partitions []PartitionSummary
	Skipped    []string
}

// Summary counts flags per rule over the whole series
func (r *SeriesResult) Summary() RuleSummary {
	return Summarize(r.Records)
}

// EvaluateSeries partitions series by dimension, evaluates the partitions
// in parallel and merges the records back into input order.
func (e *Engine) EvaluateSeries(ctx context.Context, series analytics.Series, opts EvaluateOptions) (*SeriesResult, error) {
	partitions := PartitionSeries(series)
	records := make([]ViolationRecord, len(series))
	results := make([]PartitionResult, len(partitions))
	errs := make([]error, len(partitions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workerCount(len(partitions)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pi := range jobs {
				if err := ctx.Err(); err != nil {
					errs[pi] = err
					continue
				}

				part := partitions[pi]
				res, err := e.EvaluatePartition(part.Points)
				if err != nil {
					var insufficient *InsufficientDataError
					var outOfRange *StatsRangeError
					if errors.As(err, &insufficient) {
						insufficient.Dimension = part.Dimension
					} else if errors.As(err, &outOfRange) {
						outOfRange.Dimension = part.Dimension
					}
					errs[pi] = err
					continue
				}
				res.Dimension = part.Dimension

				// Partitions own disjoint indices of records
				for k, rec := range res.Records {
					records[part.Indices[k]] = rec
				}
				results[pi] = res
			}
		}()
	}

	for pi := range partitions {
		jobs <- pi
	}
	close(jobs)
	wg.Wait()

	out := &SeriesResult{
		Records:    records,
		Partitions: make([]PartitionSummary, 0, len(partitions)),
		Skipped:    make([]string, 0),
	}

	for pi, part := range partitions {
		if err := errs[pi]; err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("evaluation cancelled: %w", ctxErr)
			}
			if opts.SkipInsufficient && errors.Is(err, ErrInsufficientData) {
				out.Skipped = append(out.Skipped, part.Dimension)
				continue
			}
			return nil, err
		}

		res := results[pi]
		out.Partitions = append(out.Partitions, PartitionSummary{
			Dimension: part.Dimension,
			Count:     part.Len(),
			Stats:     res.Stats,
			Summary:   Summarize(res.Records),
		})
	}

	return out, nil
}

func (e *Engine) workerCount(partitions int) int {
	n := e.config.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > partitions {
		n = partitions
	}
	return n
}
