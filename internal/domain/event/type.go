package event

// Type identifies the kind of progress event
type Type string

const (
	TypeLog      Type = "log"
	TypeError    Type = "error"
	TypeComplete Type = "complete"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLog, TypeError, TypeComplete:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the event ends a stream
func (t Type) IsTerminal() bool {
	return t == TypeError || t == TypeComplete
}
