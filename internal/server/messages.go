package server

import "github.com/GriffinCanCode/shotdiff/internal/runner"

// Message carries the type discriminator of every websocket frame.
type Message struct {
	Type string `json:"type"`
}

// CompareMessage asks the server to compare one existing capture.
type CompareMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	TraceID string `json:"trace_id,omitempty"`
}

// ResultMessage answers a CompareMessage.
type ResultMessage struct {
	Type    string      `json:"type"`
	Item    runner.Item `json:"item"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ProgressMessage is broadcast for every finished item of a run.
type ProgressMessage struct {
	Type  string      `json:"type"`
	RunID string      `json:"run_id"`
	Done  int         `json:"done"`
	Total int         `json:"total"`
	Item  runner.Item `json:"item"`
}

// ErrorMessage reports a failure to a websocket client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// CompareRequest is the body of POST /api/compare.
type CompareRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of failed API calls.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	TraceID string            `json:"trace_id,omitempty"`
}
