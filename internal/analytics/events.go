// Package analytics records executed queries for offline analysis: each
// query is published to the event broker and written to the audit database.
// Both sinks are optional and best-effort; failures never affect the query
// path.
package analytics

import "time"

// QueryEvent describes one executed query.
type QueryEvent struct {
	RequestID  string    `json:"requestId,omitempty"`
	Operation  string    `json:"operation"`
	Constraint string    `json:"constraint,omitempty"`
	Term       string    `json:"term,omitempty"`
	Offset     int       `json:"offset"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	DurationMS int64     `json:"durationMs"`
	Outcome    string    `json:"outcome"`
	Timestamp  time.Time `json:"timestamp"`
}
