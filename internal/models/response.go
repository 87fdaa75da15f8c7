package models

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RuleResponse describes one Nelson rule
type RuleResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RuleListResponse represents list rules response
type RuleListResponse struct {
	Rules []RuleResponse `json:"rules"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result envelope statuses
const (
	ResultStatusOK    = "ok"
	ResultStatusError = "error"
)

// EvaluationResult is the queue envelope published for every consumed
// evaluation request
type EvaluationResult struct {
	RequestID string            `json:"request_id"`
	Status    string            `json:"status"`
	Error     *ErrorDetail      `json:"error,omitempty"`
	Response  *EvaluateResponse `json:"response,omitempty"`
}
