package workflow

// State is a step in the lifecycle of one candidate
type State string

const (
	StateDiscovered          State = "DISCOVERED"
	StateAttachmentExtracted State = "ATTACHMENT_EXTRACTED"
	StateSkipped             State = "SKIPPED"
	StateAccepted            State = "ACCEPTED"
	StateRejected            State = "REJECTED"
	StateNew                 State = "NEW"
	StateDuplicate           State = "DUPLICATE"
	StateArchived            State = "ARCHIVED"
	StateLedgered            State = "LEDGERED"
	StateDone                State = "DONE"
	StateErrored             State = "ERRORED"
)

var validStates = map[State]bool{
	StateDiscovered:          true,
	StateAttachmentExtracted: true,
	StateSkipped:             true,
	StateAccepted:            true,
	StateRejected:            true,
	StateNew:                 true,
	StateDuplicate:           true,
	StateArchived:            true,
	StateLedgered:            true,
	StateDone:                true,
	StateErrored:             true,
}

var terminalStates = map[State]bool{
	StateSkipped:   true,
	StateRejected:  true,
	StateDuplicate: true,
	StateDone:      true,
	StateErrored:   true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known candidate state
func (s State) IsValid() bool {
	return validStates[s]
}
