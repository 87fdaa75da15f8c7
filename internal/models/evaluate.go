package models

// EvaluateResponse represents the evaluation of one result set
type EvaluateResponse struct {
	EvaluationID string `json:"evaluation_id"`
	Metric       string `json:"metric,omitempty"`
	Grain        string `json:"grain"`
	Aggregation  string `json:"aggregation"`
	Estimator    string `json:"estimator"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`

	// Dimensions lists the evaluated series in rank order
	Dimensions []string `json:"dimensions"`
	Count      int      `json:"count"`
	// DroppedRows counts input rows without a usable value
	DroppedRows int `json:"dropped_rows"`

	Points     []EvaluatedPoint      `json:"points"`
	Partitions []PartitionResponse   `json:"partitions"`
	Summary    []RuleSummaryResponse `json:"summary"`
	Skipped    []string              `json:"skipped,omitempty"`
	LatencyMs  int64                 `json:"latency_ms"`
}

// EvaluatedPoint carries one observation and its per-rule flags
type EvaluatedPoint struct {
	Time       string  `json:"ts"`
	Value      float64 `json:"value"`
	Dimension  string  `json:"dimension,omitempty"`
	Violations []int   `json:"violations"`

	ViolateRule1 bool `json:"violate_rule_1"`
	ViolateRule2 bool `json:"violate_rule_2"`
	ViolateRule3 bool `json:"violate_rule_3"`
	ViolateRule4 bool `json:"violate_rule_4"`
	ViolateRule5 bool `json:"violate_rule_5"`
	ViolateRule6 bool `json:"violate_rule_6"`
	ViolateRule7 bool `json:"violate_rule_7"`
	ViolateRule8 bool `json:"violate_rule_8"`
}

// PartitionResponse describes the statistics of one evaluated series
type PartitionResponse struct {
	Dimension  string  `json:"dimension"`
	Count      int     `json:"count"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"stddev"`
	Violations [8]int  `json:"violations"`
}

// RuleSummaryResponse counts flagged points for one rule. Violated drives
// whether a per-rule filter is offered downstream.
type RuleSummaryResponse struct {
	Rule        int    `json:"rule"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Violated    bool   `json:"violated"`
}
