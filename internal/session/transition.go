package session

// transitions is the allowed state graph. Cancellation is legal from every
// non-terminal state; terminal states have no successors.
var transitions = map[State][]State{
	StateAwaitingInput: {
		StateProcessing,
		StateCancelled,
	},
	StateProcessing: {
		// Back to input on transcription failure or a too-short transcript.
		StateAwaitingInput,
		StateAwaitingDisambiguation,
		StateAwaitingNewEntityName,
		StateCompleted,
		StateCancelled,
	},
	StateAwaitingDisambiguation: {
		StateProcessing,
		// A typed name instead of a selection can miss entirely.
		StateAwaitingNewEntityName,
		StateCompleted,
		StateCancelled,
	},
	StateAwaitingNewEntityName: {
		StateProcessing,
		// A retyped name can itself be ambiguous.
		StateAwaitingDisambiguation,
		StateCompleted,
		StateCancelled,
	},
	StateCompleted: nil,
	StateCancelled: nil,
}

// CanTransition reports whether moving from one state to another is allowed.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
