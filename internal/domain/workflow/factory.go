package workflow

// BuildApprovalStateMachine creates a state machine configured for the
// payment approval lifecycle. in_progress is the only initial and only
// non-terminal state; an approval on a non-final stage advances the
// instance without leaving in_progress.
func BuildApprovalStateMachine(initialState State) StateMachine {
	builder := NewBuilder()

	builder.Configure(StateInProgress).
		Permit(TriggerAdvance, StateInProgress).
		Permit(TriggerApprove, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerCancel, StateCancelled)

	// approved, rejected and cancelled are terminal - no outgoing transitions

	return builder.Build(initialState)
}
