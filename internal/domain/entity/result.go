package entity

import "time"

// PipelineResult is the outcome for one candidate
type PipelineResult struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
	Filename  string `json:"filename,omitempty"`

	// skipped
	Reason string `json:"reason,omitempty"`

	// error
	Error string `json:"error,omitempty"`

	// success
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	Supplier      string   `json:"supplier,omitempty"`
	Category      Category `json:"category,omitempty"`
	Entity        string   `json:"entity,omitempty"`
	Confidence    int      `json:"confidence,omitempty"`
	ArchivePath   string   `json:"archive_path,omitempty"`
	WebViewLink   string   `json:"web_view_link,omitempty"`
	LedgerError   string   `json:"ledger_error,omitempty"`
}

// ProcessingSummary partitions the results of one scan invocation
type ProcessingSummary struct {
	RunID      string           `json:"run_id"`
	Query      string           `json:"query"`
	Processed  []PipelineResult `json:"processed"`
	Skipped    []PipelineResult `json:"skipped"`
	Errors     []PipelineResult `json:"errors"`
	Cancelled  bool             `json:"cancelled,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// NewProcessingSummary creates an empty summary with non-nil collections
func NewProcessingSummary(runID string) *ProcessingSummary {
	return &ProcessingSummary{
		RunID:     runID,
		Processed: []PipelineResult{},
		Skipped:   []PipelineResult{},
		Errors:    []PipelineResult{},
	}
}

// Add files a result under its status
func (s *ProcessingSummary) Add(r PipelineResult) {
	switch r.Status {
	case StatusSuccess:
		s.Processed = append(s.Processed, r)
	case StatusSkipped:
		s.Skipped = append(s.Skipped, r)
	default:
		s.Errors = append(s.Errors, r)
	}
}

// Total returns the number of candidates accounted for
func (s *ProcessingSummary) Total() int {
	return len(s.Processed) + len(s.Skipped) + len(s.Errors)
}

// LedgerSoftErrors counts processed invoices whose ledger append degraded
func (s *ProcessingSummary) LedgerSoftErrors() int {
	n := 0
	for _, r := range s.Processed {
		if r.LedgerError != "" {
			n++
		}
	}
	return n
}
