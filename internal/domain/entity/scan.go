package entity

import "time"

// ScanRequest carries the caller's optional discovery window
type ScanRequest struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Trigger  string     `json:"trigger"`

	// Serial processes one candidate at a time regardless of batch size
	Serial bool `json:"-"`
}

// ScanRun is the persisted bookkeeping record of one invocation
type ScanRun struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	DateFrom   *time.Time `json:"date_from,omitempty"`
	Query      string     `json:"query,omitempty"`
	Status     string     `json:"status"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
