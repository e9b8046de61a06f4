package analytics

import "time"

type EventType string

const (
	EventReportServed EventType = "report_served"
	EventReportFailed EventType = "report_failed"
)

// ReportEvent describes one served (or failed) report request.
type ReportEvent struct {
	Type      EventType `json:"type"`
	Endpoint  string    `json:"endpoint"`
	Records   int       `json:"records"`
	LatencyMs int64     `json:"latency_ms"`
	Store     string    `json:"store,omitempty"`
	Error     string    `json:"error,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}
