package models

// ResultSet is a materialized tabular result (e.g. a warehouse query)
// carrying one metric value per timestamp and optional dimension.
type ResultSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// EvaluateRequest represents an evaluation request, sent over HTTP or as a
// queue message
type EvaluateRequest struct {
	// RequestID correlates queue results with requests; generated when empty
	RequestID string `json:"request_id,omitempty"`
	// ReplySubject overrides the configured result subject for this request
	ReplySubject string `json:"reply_subject,omitempty"`

	Metric      string `json:"metric"`
	Grain       string `json:"grain,omitempty"`       // none, day, week, month, quarter, year
	Aggregation string `json:"aggregation,omitempty"` // sum, avg, min, max, count
	StartDate   string `json:"start_date,omitempty"`  // RFC3339 or YYYY-MM-DD, inclusive
	EndDate     string `json:"end_date,omitempty"`    // RFC3339 or YYYY-MM-DD, inclusive
	Limit       int    `json:"limit,omitempty"`       // Max number of dimension series

	// SkipInsufficient leaves single-point series unflagged instead of failing
	SkipInsufficient bool `json:"skip_insufficient,omitempty"`

	// Column overrides, matched case-insensitively
	TimestampColumn string `json:"timestamp_column,omitempty"`
	ValueColumn     string `json:"value_column,omitempty"`
	DimensionColumn string `json:"dimension_column,omitempty"`

	Data ResultSet `json:"data"`
}
