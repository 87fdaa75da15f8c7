package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluationService(t *testing.T) *EvaluationService {
	t.Helper()
	cfg := config.DefaultConfig().Engine
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return NewEvaluationService(logging.NewNop(), engine, cfg)
}

func day(i int) string {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i).Format("2006-01-02")
}

// dailyRows is n daily points from 2024-01-01 valued 0..n-1
func dailyRows(n int, layout string) [][]interface{} {
	rows := make([][]interface{}, 0, n)
	for i := 0; i < n; i++ {
		ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		rows = append(rows, []interface{}{ts.Format(layout), float64(i)})
	}
	return rows
}

// shiftRows is nine points at 10 followed by three at 0
func shiftRows() [][]interface{} {
	rows := make([][]interface{}, 0, 12)
	for i := 0; i < 9; i++ {
		rows = append(rows, []interface{}{day(i), 10.0})
	}
	for i := 9; i < 12; i++ {
		rows = append(rows, []interface{}{day(i), 0.0})
	}
	return rows
}

func assertServiceError(t *testing.T, err error, code string) *ServiceError {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := AsServiceError(err)
	require.True(t, ok, "expected *ServiceError, got %T", err)
	assert.Equal(t, code, svcErr.Code)
	return svcErr
}

func TestEvaluationService_Execute(t *testing.T) {
	svc := newTestEvaluationService(t)

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Metric: "revenue",
		Data: models.ResultSet{
			Columns: []string{"ts", "value"},
			Rows:    shiftRows(),
		},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.EvaluationID)
	assert.Equal(t, "revenue", resp.Metric)
	assert.Equal(t, "none", resp.Grain)
	assert.Equal(t, "sum", resp.Aggregation)
	assert.Equal(t, "sample", resp.Estimator)
	assert.Equal(t, 12, resp.Count)
	assert.Empty(t, resp.Dimensions)
	assert.NotNil(t, resp.Dimensions)
	require.Len(t, resp.Points, 12)
	require.Len(t, resp.Partitions, 1)
	require.Len(t, resp.Summary, 8)

	for i, p := range resp.Points {
		assert.Equal(t, i < 9, p.ViolateRule2, "point %d", i)
	}
	assert.Equal(t, []int{2}, resp.Points[0].Violations)
	assert.Equal(t, "2024-01-01T00:00:00Z", resp.Points[0].Time)

	assert.Equal(t, 2, resp.Summary[1].Rule)
	assert.Equal(t, 9, resp.Summary[1].Count)
	assert.True(t, resp.Summary[1].Violated)
	assert.Equal(t, 9, resp.Partitions[0].Violations[1])
	assert.InDelta(t, 7.5, resp.Partitions[0].Mean, 1e-9)
}

func TestEvaluationService_Execute_GrainBucketing(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := make([][]interface{}, 0)
	base := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 3; d++ {
		for h := 0; h < 4; h++ {
			ts := base.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			rows = append(rows, []interface{}{ts.Format(time.RFC3339), float64(d + 1)})
		}
	}

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Grain:       "day",
		Aggregation: "sum",
		Data: models.ResultSet{
			Columns: []string{"timestamp", "value"},
			Rows:    rows,
		},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 3, resp.Count)
	assert.Equal(t, 4.0, resp.Points[0].Value)
	assert.Equal(t, 8.0, resp.Points[1].Value)
	assert.Equal(t, 12.0, resp.Points[2].Value)
	assert.Equal(t, "2024-03-05T00:00:00Z", resp.Points[1].Time)
}

func TestEvaluationService_Execute_DimensionLimit(t *testing.T) {
	svc := newTestEvaluationService(t)

	totals := map[string]float64{"small": 1, "large": 100, "medium": 10}
	rows := make([][]interface{}, 0)
	for i := 0; i < 4; i++ {
		for _, dim := range []string{"small", "large", "medium"} {
			rows = append(rows, []interface{}{day(i), totals[dim] + float64(i%2), dim})
		}
	}

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Limit: 2,
		Data: models.ResultSet{
			Columns: []string{"ts", "value", "dimension"},
			Rows:    rows,
		},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []string{"large", "medium"}, resp.Dimensions)
	assert.Equal(t, 8, resp.Count)
	for _, p := range resp.Points {
		assert.NotEqual(t, "small", p.Dimension)
	}

	require.Len(t, resp.Partitions, 2)
	assert.Equal(t, "large", resp.Partitions[0].Dimension)
	assert.Equal(t, "medium", resp.Partitions[1].Dimension)
}

func TestEvaluationService_Execute_DateRange(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := make([][]interface{}, 0)
	for i := 0; i < 10; i++ {
		rows = append(rows, []interface{}{day(i), float64(i)})
	}

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		StartDate: "2024-01-03",
		EndDate:   "2024-01-08",
		Data: models.ResultSet{
			Columns: []string{"date", "value"},
			Rows:    rows,
		},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, 6, resp.Count)
	assert.Equal(t, 2.0, resp.Points[0].Value)
	assert.Equal(t, 7.0, resp.Points[5].Value)
	assert.Equal(t, "2024-01-03T00:00:00Z", resp.StartDate)
	assert.Equal(t, "2024-01-08T23:59:59Z", resp.EndDate)
}

func TestEvaluationService_Execute_EndDateInclusive(t *testing.T) {
	svc := newTestEvaluationService(t)

	tests := []struct {
		name      string
		rows      [][]interface{}
		endDate   string
		wantCount int
		wantLast  string
	}{
		{
			name:      "point on end date kept",
			rows:      dailyRows(10, "2006-01-02"),
			endDate:   "2024-01-10",
			wantCount: 10,
			wantLast:  "2024-01-10T00:00:00Z",
		},
		{
			name:      "intraday point on end date kept",
			rows:      append(dailyRows(3, "2006-01-02"), []interface{}{"2024-01-04T15:30:00Z", 3.0}),
			endDate:   "2024-01-04",
			wantCount: 4,
			wantLast:  "2024-01-04T15:30:00Z",
		},
		{
			name:      "timestamp bound is inclusive",
			rows:      dailyRows(5, "2006-01-02"),
			endDate:   "2024-01-03T00:00:00Z",
			wantCount: 3,
			wantLast:  "2024-01-03T00:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewEvaluationRequest(&models.EvaluateRequest{
				EndDate: tt.endDate,
				Data: models.ResultSet{
					Columns: []string{"date", "value"},
					Rows:    tt.rows,
				},
			})
			require.NoError(t, err)

			resp, err := svc.Execute(context.Background(), req)
			require.NoError(t, err)
			require.Equal(t, tt.wantCount, resp.Count)
			assert.Equal(t, tt.wantLast, resp.Points[len(resp.Points)-1].Time)
		})
	}
}

func TestEvaluationService_Execute_SingleDayRange(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := [][]interface{}{
		{"2024-01-01T08:00:00Z", 1.0},
		{"2024-01-02T08:00:00Z", 2.0},
		{"2024-01-02T20:00:00Z", 4.0},
		{"2024-01-03T08:00:00Z", 8.0},
	}
	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-02",
		Data:      models.ResultSet{Columns: []string{"ts", "value"}, Rows: rows},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 2.0, resp.Points[0].Value)
	assert.Equal(t, 4.0, resp.Points[1].Value)
}

func TestEvaluationService_Execute_ExtremeValues(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := make([][]interface{}, 0, 12)
	for i := 0; i < 11; i++ {
		rows = append(rows, []interface{}{day(i), 1.7e308})
	}
	rows = append(rows, []interface{}{day(11), -1.7e308})

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Data: models.ResultSet{Columns: []string{"ts", "value"}, Rows: rows},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Partitions, 1)
	assert.False(t, math.IsInf(resp.Partitions[0].Mean, 0))
	assert.False(t, math.IsInf(resp.Partitions[0].StdDev, 0))

	for i := 0; i < 11; i++ {
		assert.True(t, resp.Points[i].ViolateRule2, "point %d", i)
	}
	assert.False(t, resp.Points[11].ViolateRule2, "point below the mean is not part of the run")

	_, err = json.Marshal(resp)
	assert.NoError(t, err)
}

func TestEvaluationService_Execute_StdDevOutOfRange(t *testing.T) {
	svc := newTestEvaluationService(t)

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Data: models.ResultSet{
			Columns: []string{"ts", "value"},
			Rows:    [][]interface{}{{day(0), 1.7e308}, {day(1), -1.7e308}},
		},
	})
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), req)
	assertServiceError(t, err, CodeInvalidRequest)
	assert.True(t, IsClientError(err))
}

func TestEvaluationService_Execute_DroppedRows(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := shiftRows()
	rows = append(rows, []interface{}{nil, 3.0}, []interface{}{day(20), nil})

	req, err := NewEvaluationRequest(&models.EvaluateRequest{
		Data: models.ResultSet{Columns: []string{"ts", "value"}, Rows: rows},
	})
	require.NoError(t, err)

	resp, err := svc.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.DroppedRows)
	assert.Equal(t, 12, resp.Count)
}

func TestEvaluationService_Execute_ColumnAliases(t *testing.T) {
	svc := newTestEvaluationService(t)

	tests := []struct {
		name    string
		metric  string
		columns []string
		mapping models.EvaluateRequest
	}{
		{name: "date grain column and metric value", metric: "orders", columns: []string{"date_day", "orders"}},
		{name: "upper case", columns: []string{"TS", "VALUE"}},
		{
			name:    "explicit mapping",
			columns: []string{"period", "amount"},
			mapping: models.EvaluateRequest{TimestampColumn: "period", ValueColumn: "amount"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.mapping
			m.Metric = tt.metric
			m.Data = models.ResultSet{Columns: tt.columns, Rows: shiftRows()}

			req, err := NewEvaluationRequest(&m)
			require.NoError(t, err)

			resp, err := svc.Execute(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, 12, resp.Count)
		})
	}
}

func TestEvaluationService_Execute_InsufficientData(t *testing.T) {
	svc := newTestEvaluationService(t)

	rows := make([][]interface{}, 0)
	for i := 0; i < 5; i++ {
		rows = append(rows, []interface{}{day(i), float64(50 + i), "big"})
	}
	rows = append(rows, []interface{}{day(0), 1.0, "lonely"})

	m := &models.EvaluateRequest{
		Data: models.ResultSet{Columns: []string{"ts", "value", "dim"}, Rows: rows},
	}

	t.Run("strict", func(t *testing.T) {
		req, err := NewEvaluationRequest(m)
		require.NoError(t, err)

		_, err = svc.Execute(context.Background(), req)
		svcErr := assertServiceError(t, err, CodeInsufficientData)
		assert.Equal(t, "lonely", svcErr.Details["dimension"])
		assert.Equal(t, 1, svcErr.Details["count"])
		assert.True(t, IsClientError(err))
	})

	t.Run("skip", func(t *testing.T) {
		skip := *m
		skip.SkipInsufficient = true
		req, err := NewEvaluationRequest(&skip)
		require.NoError(t, err)

		resp, err := svc.Execute(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"lonely"}, resp.Skipped)
		require.Len(t, resp.Partitions, 1)
		assert.Equal(t, "big", resp.Partitions[0].Dimension)
		assert.Empty(t, resp.Points[5].Violations)
	})
}

func TestEvaluationService_Execute_Errors(t *testing.T) {
	svc := newTestEvaluationService(t)

	tests := []struct {
		name string
		req  *EvaluationRequest
		code string
	}{
		{
			name: "negative limit",
			req:  &EvaluationRequest{Limit: -1, Data: models.ResultSet{Columns: []string{"ts", "value"}}},
			code: CodeInvalidRequest,
		},
		{
			name: "limit above max series",
			req:  &EvaluationRequest{Limit: 1000, Data: models.ResultSet{Columns: []string{"ts", "value"}}},
			code: CodeInvalidRequest,
		},
		{
			name: "missing value column",
			req:  &EvaluationRequest{Data: models.ResultSet{Columns: []string{"ts", "amount"}}},
			code: CodeInvalidRequest,
		},
		{
			name: "missing timestamp column",
			req:  &EvaluationRequest{Data: models.ResultSet{Columns: []string{"when", "value"}}},
			code: CodeInvalidRequest,
		},
		{
			name: "non numeric value",
			req: &EvaluationRequest{Data: models.ResultSet{
				Columns: []string{"ts", "value"},
				Rows:    [][]interface{}{{day(0), "lots"}, {day(1), 2.0}},
			}},
			code: CodeInvalidRequest,
		},
		{
			name: "ragged row",
			req: &EvaluationRequest{Data: models.ResultSet{
				Columns: []string{"ts", "value"},
				Rows:    [][]interface{}{{day(0)}},
			}},
			code: CodeInvalidRequest,
		},
		{
			name: "single point",
			req: &EvaluationRequest{Data: models.ResultSet{
				Columns: []string{"ts", "value"},
				Rows:    [][]interface{}{{day(0), 1.0}},
			}},
			code: CodeInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Execute(context.Background(), tt.req)
			assertServiceError(t, err, tt.code)
		})
	}
}

func TestEvaluationService_Execute_MaxObservations(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	cfg.MaxObservations = 5
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	svc := NewEvaluationService(logging.NewNop(), engine, cfg)

	_, err = svc.Execute(context.Background(), &EvaluationRequest{
		Data: models.ResultSet{Columns: []string{"ts", "value"}, Rows: shiftRows()},
	})
	svcErr := assertServiceError(t, err, CodeInvalidRequest)
	assert.Equal(t, 5, svcErr.Details["max_rows"])
}

func TestEvaluationService_Execute_Cancelled(t *testing.T) {
	svc := newTestEvaluationService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Execute(ctx, &EvaluationRequest{
		Data: models.ResultSet{Columns: []string{"ts", "value"}, Rows: shiftRows()},
	})
	assertServiceError(t, err, CodeEvaluationFailed)
	assert.False(t, IsClientError(err))
}

func TestNewEvaluationRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.EvaluateRequest
		code    string
		wantErr bool
	}{
		{name: "defaults", req: models.EvaluateRequest{}},
		{name: "week avg", req: models.EvaluateRequest{Grain: "WEEK", Aggregation: "mean"}},
		{name: "rfc3339 dates", req: models.EvaluateRequest{StartDate: "2024-01-01T00:00:00Z", EndDate: "2024-02-01T00:00:00Z"}},
		{name: "open ended", req: models.EvaluateRequest{StartDate: "2024-01-01"}},
		{name: "bad grain", req: models.EvaluateRequest{Grain: "hour"}, code: CodeInvalidGrain, wantErr: true},
		{name: "bad aggregation", req: models.EvaluateRequest{Aggregation: "median"}, code: CodeInvalidAggregation, wantErr: true},
		{name: "bad start", req: models.EvaluateRequest{StartDate: "01/02/2024"}, code: CodeInvalidRequest, wantErr: true},
		{name: "bad end", req: models.EvaluateRequest{EndDate: "tomorrow"}, code: CodeInvalidRequest, wantErr: true},
		{name: "single day", req: models.EvaluateRequest{StartDate: "2024-02-01", EndDate: "2024-02-01"}},
		{name: "reversed range", req: models.EvaluateRequest{StartDate: "2024-03-01", EndDate: "2024-02-01"}, code: CodeInvalidRequest, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewEvaluationRequest(&tt.req)
			if tt.wantErr {
				assertServiceError(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, req)
		})
	}
}

func TestNewEvaluationRequest_InvalidGrainDetails(t *testing.T) {
	_, err := NewEvaluationRequest(&models.EvaluateRequest{Grain: "fortnight"})
	svcErr := assertServiceError(t, err, CodeInvalidGrain)
	assert.Contains(t, fmt.Sprint(svcErr.Details["valid_grains"]), "quarter")
}

func TestNewEngine_InvalidEstimator(t *testing.T) {
	cfg := config.DefaultConfig().Engine
	cfg.StdDevEstimator = "robust"
	_, err := NewEngine(cfg)
	assert.Error(t, err)
}
