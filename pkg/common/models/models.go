package models

import (
	"encoding/json"
	"time"

	"github.com/synaptica-ai/rxlink/pkg/features"
)

// Event types carried on the comparison topics.
const (
	EventCompare         = "compare"
	EventCompareVerdict  = "compare.verdict"
	EventCompareRejected = "compare.rejected"
)

// Event Bus models
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Data      json.RawMessage   `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Prescription comparison
type ComparisonRequest struct {
	RequestID string                 `json:"request_id,omitempty"`
	Source    string                 `json:"source,omitempty"`
	RecordA   features.RecordPayload `json:"record_a"`
	RecordB   features.RecordPayload `json:"record_b"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type ComparisonResult struct {
	RequestID     string    `json:"request_id"`
	Verdict       string    `json:"verdict"`
	Probability   float64   `json:"probability"`
	Confidence    float64   `json:"confidence"`
	Threshold     float64   `json:"threshold"`
	Statement     string    `json:"statement"`
	ModelVersion  string    `json:"model_version,omitempty"`
	TablesVersion string    `json:"tables_version,omitempty"`
	LatencyMs     float64   `json:"latency_ms"`
	ComparedAt    time.Time `json:"compared_at"`
}

type BatchComparisonRequest struct {
	Comparisons []ComparisonRequest `json:"comparisons"`
}

type BatchComparisonItem struct {
	Index  int               `json:"index"`
	Result *ComparisonResult `json:"result,omitempty"`
	Error  *ErrorResponse    `json:"error,omitempty"`
}

type BatchComparisonResponse struct {
	Results []BatchComparisonItem `json:"results"`
	Failed  int                   `json:"failed"`
}

// Rejection is published to the dead letter topic for requests that can
// never be compared.
type Rejection struct {
	RequestID string          `json:"request_id,omitempty"`
	EventID   string          `json:"event_id"`
	Kind      string          `json:"kind"`
	Error     string          `json:"error"`
	Original  json.RawMessage `json:"original,omitempty"`
}

// Error kinds reported to clients.
const (
	KindInvalidInput       = "invalid_input"
	KindScoringUnavailable = "scoring_unavailable"
	KindScoringInvalid     = "scoring_invalid"
	KindNotFound           = "not_found"
	KindInternal           = "internal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind"`
	Details string `json:"details,omitempty"`
}
