package entity

// PipelineResult status constants
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Scan run status constants
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
	RunStatusCancelled = "CANCELLED"
)

// Scan trigger constants
const (
	TriggerAPI       = "API"
	TriggerStream    = "STREAM"
	TriggerScheduled = "SCHEDULED"
	TriggerCLI       = "CLI"
)

// Skip reasons surfaced in the processing summary
const (
	ReasonNoAttachment     = "no PDF attachment"
	ReasonFailedValidation = "failed validation"
	ReasonDuplicate        = "duplicate invoice number"
)

// MimeTypePDF is the declared media type of a qualifying attachment
const MimeTypePDF = "application/pdf"
