package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/models"
	"github.com/soltixdb/nelson/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := config.DefaultConfig().Engine
	engine, err := services.NewEngine(cfg)
	require.NoError(t, err)

	logger := logging.NewNop()
	h := New(logger, services.NewEvaluationService(logger, engine, cfg))

	app := fiber.New()
	app.Get("/v1/rules", h.ListRules)
	app.Get("/v1/rules/:id", h.GetRule)
	app.Post("/v1/evaluate", h.Evaluate)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body []byte) (int, []byte) {
	t.Helper()

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func evaluateBody(t *testing.T, req models.EvaluateRequest) []byte {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return data
}

func dailyRows(values ...float64) [][]interface{} {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := make([][]interface{}, len(values))
	for i, v := range values {
		rows[i] = []interface{}{base.AddDate(0, 0, i).Format("2006-01-02"), v}
	}
	return rows
}

func TestHandler_ListRules(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/rules", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var list models.RuleListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Rules, 8)
	for i, r := range list.Rules {
		assert.Equal(t, i+1, r.ID)
		assert.NotEmpty(t, r.Name)
		assert.NotEmpty(t, r.Description)
	}
}

func TestHandler_GetRule(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
		wantName   string
	}{
		{name: "trend", path: "/v1/rules/3", wantStatus: fiber.StatusOK, wantName: "trend"},
		{name: "mixture", path: "/v1/rules/8", wantStatus: fiber.StatusOK, wantName: "mixture"},
		{name: "out of range", path: "/v1/rules/9", wantStatus: fiber.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "zero", path: "/v1/rules/0", wantStatus: fiber.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "not a number", path: "/v1/rules/trend", wantStatus: fiber.StatusBadRequest, wantCode: services.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == fiber.StatusOK {
				var rule models.RuleResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
				assert.Equal(t, tt.wantName, rule.Name)
				assert.NotEmpty(t, rule.Description)
				return
			}

			var errResp models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, errResp.Error.Code)
			assert.Equal(t, tt.path, errResp.Error.Path)
		})
	}
}

func TestHandler_Evaluate(t *testing.T) {
	app := newTestApp(t)

	status, data := postJSON(t, app, "/v1/evaluate", evaluateBody(t, models.EvaluateRequest{
		Metric: "signups",
		Data: models.ResultSet{
			Columns: []string{"ts", "value"},
			Rows:    dailyRows(10, 10, 10, 10, 10, 10, 10, 10, 10, 0, 0, 0),
		},
	}))
	require.Equal(t, fiber.StatusOK, status, string(data))

	var resp models.EvaluateResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "signups", resp.Metric)
	assert.Equal(t, 12, resp.Count)
	require.Len(t, resp.Points, 12)
	assert.True(t, resp.Points[0].ViolateRule2)
	assert.False(t, resp.Points[11].ViolateRule2)

	// Wire rows carry the flat violate_rule_N columns
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	point := raw["points"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, true, point["violate_rule_2"])
	assert.Equal(t, "2024-05-01T00:00:00Z", point["ts"])
}

func TestHandler_Evaluate_Errors(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       []byte(`{"metric":`),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "INVALID_JSON",
		},
		{
			name: "bad grain",
			body: evaluateBody(t, models.EvaluateRequest{
				Grain: "hour",
				Data:  models.ResultSet{Columns: []string{"ts", "value"}, Rows: dailyRows(1, 2)},
			}),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   services.CodeInvalidGrain,
		},
		{
			name: "bad aggregation",
			body: evaluateBody(t, models.EvaluateRequest{
				Aggregation: "p99",
				Data:        models.ResultSet{Columns: []string{"ts", "value"}, Rows: dailyRows(1, 2)},
			}),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   services.CodeInvalidAggregation,
		},
		{
			name: "missing value column",
			body: evaluateBody(t, models.EvaluateRequest{
				Data: models.ResultSet{Columns: []string{"ts", "amount"}, Rows: dailyRows(1, 2)},
			}),
			wantStatus: fiber.StatusBadRequest,
			wantCode:   services.CodeInvalidRequest,
		},
		{
			name: "single point",
			body: evaluateBody(t, models.EvaluateRequest{
				Data: models.ResultSet{Columns: []string{"ts", "value"}, Rows: dailyRows(7)},
			}),
			wantStatus: fiber.StatusUnprocessableEntity,
			wantCode:   services.CodeInsufficientData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, data := postJSON(t, app, "/v1/evaluate", tt.body)
			assert.Equal(t, tt.wantStatus, status, string(data))

			var errResp models.ErrorResponse
			require.NoError(t, json.Unmarshal(data, &errResp))
			assert.Equal(t, tt.wantCode, errResp.Error.Code)
			assert.Equal(t, "/v1/evaluate", errResp.Error.Path)
		})
	}
}
