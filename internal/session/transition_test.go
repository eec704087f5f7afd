package session

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to State }{
		{StateAwaitingInput, StateProcessing},
		{StateProcessing, StateAwaitingInput},
		{StateProcessing, StateAwaitingDisambiguation},
		{StateProcessing, StateAwaitingNewEntityName},
		{StateProcessing, StateCompleted},
		{StateAwaitingDisambiguation, StateProcessing},
		{StateAwaitingDisambiguation, StateAwaitingNewEntityName},
		{StateAwaitingDisambiguation, StateCompleted},
		{StateAwaitingNewEntityName, StateProcessing},
		{StateAwaitingNewEntityName, StateAwaitingDisambiguation},
		{StateAwaitingNewEntityName, StateCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to State }{
		{StateAwaitingInput, StateCompleted},
		{StateAwaitingInput, StateAwaitingDisambiguation},
		{StateCompleted, StateProcessing},
		{StateCancelled, StateAwaitingInput},
		{StateCompleted, StateCancelled},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestCancellationFromAnyNonTerminalState(t *testing.T) {
	t.Parallel()

	for _, from := range []State{
		StateAwaitingInput,
		StateProcessing,
		StateAwaitingDisambiguation,
		StateAwaitingNewEntityName,
	} {
		if !CanTransition(from, StateCancelled) {
			t.Errorf("cancellation from %s should be allowed", from)
		}
	}
}

func TestStateClassification(t *testing.T) {
	t.Parallel()

	interactive := map[State]bool{
		StateAwaitingInput:          false,
		StateProcessing:             false,
		StateAwaitingDisambiguation: true,
		StateAwaitingNewEntityName:  true,
		StateCompleted:              false,
		StateCancelled:              false,
	}
	for state, want := range interactive {
		if got := state.Interactive(); got != want {
			t.Errorf("%s.Interactive() = %v, want %v", state, got, want)
		}
	}

	for state, want := range map[State]bool{
		StateProcessing: false,
		StateCompleted:  true,
		StateCancelled:  true,
	} {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
