package workflow

// Trigger represents an event that can cause a state transition.
type Trigger string

const (
	// TriggerAdvance is an approval on a non-final stage: the instance
	// stays in progress and moves to the next stage.
	TriggerAdvance Trigger = "ADVANCE"

	// TriggerApprove is an approval on the final stage.
	TriggerApprove Trigger = "APPROVE"

	TriggerReject Trigger = "REJECT"
	TriggerCancel Trigger = "CANCEL"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
