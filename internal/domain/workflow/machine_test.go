package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateInProgress, false},
		{StateApproved, true},
		{StateRejected, true},
		{StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"in progress", StateInProgress, true},
		{"approved", StateApproved, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	if got := StateInProgress.String(); got != "in_progress" {
		t.Errorf("State.String() = %v, want %v", got, "in_progress")
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerApprove.String(); got != "APPROVE" {
		t.Errorf("Trigger.String() = %v, want %v", got, "APPROVE")
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateInProgress)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	config2 := builder.Configure(StateInProgress)
	if config2 == nil {
		t.Fatal("Configure() second call returned nil")
	}
}

func TestBuilder_Configure_InvalidState(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() with invalid state should panic")
		}
	}()

	builder := NewBuilder()
	builder.Configure(State("INVALID"))
}

func TestStateMachine_Fire(t *testing.T) {
	tests := []struct {
		name      string
		initial   State
		trigger   Trigger
		wantState State
		wantErr   bool
	}{
		{"advance stays in progress", StateInProgress, TriggerAdvance, StateInProgress, false},
		{"approve completes", StateInProgress, TriggerApprove, StateApproved, false},
		{"reject completes", StateInProgress, TriggerReject, StateRejected, false},
		{"cancel completes", StateInProgress, TriggerCancel, StateCancelled, false},
		{"approved is terminal", StateApproved, TriggerApprove, StateApproved, true},
		{"rejected is terminal", StateRejected, TriggerAdvance, StateRejected, true},
		{"cancelled is terminal", StateCancelled, TriggerCancel, StateCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := BuildApprovalStateMachine(tt.initial)

			err := machine.Fire(context.Background(), tt.trigger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Fire() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
			}
			if got := machine.State(); got != tt.wantState {
				t.Errorf("State() = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestStateMachine_CanFire(t *testing.T) {
	machine := BuildApprovalStateMachine(StateInProgress)

	for _, trigger := range []Trigger{TriggerAdvance, TriggerApprove, TriggerReject, TriggerCancel} {
		if !machine.CanFire(trigger) {
			t.Errorf("CanFire(%s) = false, want true", trigger)
		}
	}

	if err := machine.Fire(context.Background(), TriggerReject); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}

	for _, trigger := range []Trigger{TriggerAdvance, TriggerApprove, TriggerReject, TriggerCancel} {
		if machine.CanFire(trigger) {
			t.Errorf("CanFire(%s) = true after termination, want false", trigger)
		}
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	machine := BuildApprovalStateMachine(StateInProgress)

	triggers := machine.PermittedTriggers()
	if len(triggers) != 4 {
		t.Errorf("PermittedTriggers() returned %d triggers, want 4", len(triggers))
	}

	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}

	if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
		t.Errorf("PermittedTriggers() after termination returned %d triggers, want 0", len(triggers))
	}
}

func TestStateMachine_GuardedTransition(t *testing.T) {
	allow := false

	builder := NewBuilder()
	builder.Configure(StateInProgress).
		PermitIf(TriggerApprove, StateApproved, func(ctx context.Context) bool {
			return allow
		})

	machine := builder.Build(StateInProgress)

	err := machine.Fire(context.Background(), TriggerApprove)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want ErrGuardFailed", err)
	}
	if got := machine.State(); got != StateInProgress {
		t.Errorf("State() = %v after failed guard, want %v", got, StateInProgress)
	}

	allow = true
	if err := machine.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if got := machine.State(); got != StateApproved {
		t.Errorf("State() = %v, want %v", got, StateApproved)
	}
}

func TestBuilder_MachinesDoNotShareState(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateInProgress).
		Permit(TriggerApprove, StateApproved)

	m1 := builder.Build(StateInProgress)
	m2 := builder.Build(StateInProgress)

	if err := m1.Fire(context.Background(), TriggerApprove); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}

	if got := m2.State(); got != StateInProgress {
		t.Errorf("second machine state = %v, want %v", got, StateInProgress)
	}
}
