package workflow

// Trigger is an event that moves a candidate between states
type Trigger string

const (
	TriggerExtract      Trigger = "EXTRACT"
	TriggerNoAttachment Trigger = "NO_ATTACHMENT"
	TriggerAccept       Trigger = "ACCEPT"
	TriggerReject       Trigger = "REJECT"
	TriggerUnique       Trigger = "UNIQUE"
	TriggerDuplicate    Trigger = "DUPLICATE"
	TriggerArchive      Trigger = "ARCHIVE"
	TriggerLedger       Trigger = "LEDGER"
	TriggerFinish       Trigger = "FINISH"
	TriggerFail         Trigger = "FAIL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
