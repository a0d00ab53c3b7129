package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// Event is one progress message sent from a scan to its client
type Event struct {
	ID        string                    `json:"id"`
	Type      Type                      `json:"type"`
	RunID     string                    `json:"run_id"`
	Message   string                    `json:"message,omitempty"`
	Summary   *entity.ProcessingSummary `json:"summary,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// NewLog creates a human-readable progress line
func NewLog(runID, message string) Event {
	return newEvent(TypeLog, runID, message, nil)
}

// NewError creates the terminal error event
func NewError(runID string, err error) Event {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return newEvent(TypeError, runID, msg, nil)
}

// NewComplete creates the terminal event carrying the final summary
func NewComplete(runID string, summary *entity.ProcessingSummary) Event {
	return newEvent(TypeComplete, runID, "", summary)
}

// Payload returns the value sent to the client for this event
func (e Event) Payload() interface{} {
	switch e.Type {
	case TypeComplete:
		return e.Summary
	default:
		return map[string]string{"message": e.Message}
	}
}

func newEvent(t Type, runID, message string, summary *entity.ProcessingSummary) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		RunID:     runID,
		Message:   message,
		Summary:   summary,
		Timestamp: time.Now(),
	}
}
