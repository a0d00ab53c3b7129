package workflow

// CandidateLifecycle is the per-candidate pipeline. Duplicate checking sits
// between acceptance and archival, so no side effect happens for a duplicate.
var CandidateLifecycle = NewLifecycle(StateDiscovered, TriggerFail, StateErrored, Transitions{
	StateDiscovered: {
		TriggerExtract:      StateAttachmentExtracted,
		TriggerNoAttachment: StateSkipped,
	},
	StateAttachmentExtracted: {
		TriggerAccept: StateAccepted,
		TriggerReject: StateRejected,
	},
	StateAccepted: {
		TriggerUnique:    StateNew,
		TriggerDuplicate: StateDuplicate,
	},
	StateNew: {
		TriggerArchive: StateArchived,
	},
	StateArchived: {
		TriggerLedger: StateLedgered,
	},
	StateLedgered: {
		TriggerFinish: StateDone,
	},
})

// NewCandidateMachine returns a machine positioned at StateDiscovered
func NewCandidateMachine() *Machine {
	return CandidateLifecycle.Start()
}
