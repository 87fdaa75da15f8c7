package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/soltixdb/nelson/internal/analytics"
	"github.com/soltixdb/nelson/internal/analytics/grain"
	"github.com/soltixdb/nelson/internal/analytics/nelson"
	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
)

// EvaluationService runs Nelson rules over materialized result sets
type EvaluationService struct {
	logger *logging.Logger
	engine *nelson.Engine
	config config.EngineConfig
}

// NewEvaluationService creates a new EvaluationService
func NewEvaluationService(logger *logging.Logger, engine *nelson.Engine, cfg config.EngineConfig) *EvaluationService {
	return &EvaluationService{
		logger: logger,
		engine: engine,
		config: cfg,
	}
}

// NewEngine builds a Nelson engine from engine configuration
func NewEngine(cfg config.EngineConfig) (*nelson.Engine, error) {
	engine, err := nelson.NewEngine(nelson.Config{
		Estimator: nelson.Estimator(cfg.StdDevEstimator),
		Workers:   cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nelson engine: %w", err)
	}
	return engine, nil
}

// EvaluationRequest represents a parsed evaluation request
type EvaluationRequest struct {
	Metric           string
	Grain            grain.Grain
	Aggregation      grain.Aggregation
	StartTime        time.Time // Inclusive, zero means unbounded
	EndTime          time.Time // Inclusive, zero means unbounded
	Limit            int
	SkipInsufficient bool
	Columns          ColumnMapping
	Data             models.ResultSet
}

// NewEvaluationRequest parses and validates a wire request
func NewEvaluationRequest(m *models.EvaluateRequest) (*EvaluationRequest, error) {
	g, err := grain.ParseGrain(m.Grain)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidGrain, err.Error(), map[string]interface{}{
			"valid_grains": grain.ValidGrains,
		})
	}

	agg, err := grain.ParseAggregation(m.Aggregation)
	if err != nil {
		return nil, NewServiceError(CodeInvalidAggregation, err.Error())
	}

	start, _, err := parseDate(m.StartDate)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, "start_date: "+err.Error())
	}

	end, endIsDate, err := parseDate(m.EndDate)
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, "end_date: "+err.Error())
	}

	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, NewServiceError(CodeInvalidRequest, "start_date must not be after end_date")
	}

	// A bare end date covers its whole day
	if endIsDate {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	return &EvaluationRequest{
		Metric:           m.Metric,
		Grain:            g,
		Aggregation:      agg,
		StartTime:        start,
		EndTime:          end,
		Limit:            m.Limit,
		SkipInsufficient: m.SkipInsufficient,
		Columns: ColumnMapping{
			Timestamp: m.TimestampColumn,
			Value:     m.ValueColumn,
			Dimension: m.DimensionColumn,
		},
		Data: m.Data,
	}, nil
}

// Execute decodes the result set, filters it to [StartTime, EndTime],
// buckets it by grain, keeps the top Limit dimension series and evaluates
// every series against the eight rules.
func (s *EvaluationService) Execute(ctx context.Context, req *EvaluationRequest) (*models.EvaluateResponse, error) {
	startExec := time.Now()
	evaluationID := uuid.New().String()
	ctx = logging.WithEvaluationID(ctx, evaluationID)
	log := s.logger.WithContext(ctx)

	limit, err := s.seriesLimit(req.Limit)
	if err != nil {
		return nil, err
	}

	if s.config.MaxObservations > 0 && len(req.Data.Rows) > s.config.MaxObservations {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, "too many rows", map[string]interface{}{
			"rows":     len(req.Data.Rows),
			"max_rows": s.config.MaxObservations,
		})
	}

	idx, err := resolveColumns(req.Data.Columns, req.Columns, req.Metric)
	if err != nil {
		return nil, NewServiceErrorWithDetails(CodeInvalidRequest, err.Error(), map[string]interface{}{
			"columns": req.Data.Columns,
		})
	}

	series, dropped, err := decodeRows(req.Data.Rows, idx, len(req.Data.Columns))
	if err != nil {
		return nil, NewServiceError(CodeInvalidRequest, err.Error())
	}

	series = series.Between(req.StartTime, req.EndTime)
	series = grain.Bucket(series, req.Grain, req.Aggregation)

	dimensions := make([]string, 0)
	if series.HasDimensions() {
		series, dimensions = limitSeries(series, limit)
	}

	result, err := s.engine.EvaluateSeries(ctx, series, nelson.EvaluateOptions{
		SkipInsufficient: req.SkipInsufficient,
	})
	if err != nil {
		return nil, s.mapEngineError(err)
	}

	resp := &models.EvaluateResponse{
		EvaluationID: evaluationID,
		Metric:       req.Metric,
		Grain:        string(req.Grain),
		Aggregation:  string(req.Aggregation),
		Estimator:    string(s.engine.Estimator()),
		StartDate:    formatBound(req.StartTime),
		EndDate:      formatBound(req.EndTime),
		Dimensions:   dimensions,
		Count:        len(series),
		DroppedRows:  dropped,
		Points:       buildPoints(series, result.Records),
		Partitions:   buildPartitions(result.Partitions),
		Summary:      buildSummary(result.Summary()),
		Skipped:      result.Skipped,
		LatencyMs:    time.Since(startExec).Milliseconds(),
	}

	if len(result.Skipped) > 0 {
		log.Warn("Skipped series with insufficient data", "dimensions", result.Skipped)
	}

	log.Info("Evaluation completed",
		"metric", req.Metric,
		"grain", req.Grain,
		"points", resp.Count,
		"series", len(result.Partitions),
		"dropped_rows", dropped,
		"violated_rules", len(result.Summary().Violated()),
		"latency_ms", resp.LatencyMs)

	return resp, nil
}

// seriesLimit applies the configured default and upper bound
func (s *EvaluationService) seriesLimit(requested int) (int, error) {
	if requested == 0 {
		return s.config.DefaultSeriesLimit, nil
	}
	if requested < 0 || requested > s.config.MaxSeries {
		return 0, NewServiceErrorWithDetails(CodeInvalidRequest,
			fmt.Sprintf("limit must be between 1 and %d", s.config.MaxSeries),
			map[string]interface{}{"limit": requested})
	}
	return requested, nil
}

func (s *EvaluationService) mapEngineError(err error) error {
	var insufficient *nelson.InsufficientDataError
	if errors.As(err, &insufficient) {
		return NewServiceErrorWithDetails(CodeInsufficientData, insufficient.Error(), map[string]interface{}{
			"dimension": insufficient.Dimension,
			"count":     insufficient.Count,
			"required":  insufficient.Required,
		})
	}

	var outOfRange *nelson.StatsRangeError
	if errors.As(err, &outOfRange) {
		return NewServiceErrorWithDetails(CodeInvalidRequest, outOfRange.Error(), map[string]interface{}{
			"dimension": outOfRange.Dimension,
			"count":     outOfRange.Count,
		})
	}

	return NewServiceErrorWithDetails(CodeEvaluationFailed, "Failed to evaluate series", map[string]interface{}{
		"error": err.Error(),
	})
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func buildPoints(series analytics.Series, records []nelson.ViolationRecord) []models.EvaluatedPoint {
	points := make([]models.EvaluatedPoint, len(series))
	for i, o := range series {
		rec := records[i]
		violations := make([]int, 0)
		for _, r := range rec.Rules() {
			violations = append(violations, int(r))
		}

		points[i] = models.EvaluatedPoint{
			Time:         o.Time.Format(time.RFC3339Nano),
			Value:        o.Value,
			Dimension:    o.Dimension,
			Violations:   violations,
			ViolateRule1: rec.Violates(nelson.RuleOutlier),
			ViolateRule2: rec.Violates(nelson.RuleShift),
			ViolateRule3: rec.Violates(nelson.RuleTrend),
			ViolateRule4: rec.Violates(nelson.RuleAlternation),
			ViolateRule5: rec.Violates(nelson.RuleTwoOfThree),
			ViolateRule6: rec.Violates(nelson.RuleFourOfFive),
			ViolateRule7: rec.Violates(nelson.RuleStratification),
			ViolateRule8: rec.Violates(nelson.RuleMixture),
		}
	}
	return points
}

func buildPartitions(partitions []nelson.PartitionSummary) []models.PartitionResponse {
	out := make([]models.PartitionResponse, len(partitions))
	for i, p := range partitions {
		out[i] = models.PartitionResponse{
			Dimension:  p.Dimension,
			Count:      p.Count,
			Mean:       p.Stats.Mean,
			StdDev:     p.Stats.StdDev,
			Violations: [nelson.RuleCount]int(p.Summary),
		}
	}
	return out
}

func buildSummary(summary nelson.RuleSummary) []models.RuleSummaryResponse {
	out := make([]models.RuleSummaryResponse, 0, nelson.RuleCount)
	for _, r := range nelson.AllRules() {
		count := summary.Count(r)
		out = append(out, models.RuleSummaryResponse{
			Rule:        int(r),
			Name:        r.Name(),
			Description: r.Description(),
			Count:       count,
			Violated:    count > 0,
		})
	}
	return out
}
