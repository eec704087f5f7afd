// Package session holds the conversational state of in-flight captures: one
// live session per user, a per-kind payload, a transition-checked state
// machine, and a TTL store with both lazy expiry and a background sweep.
package session

import (
	"time"

	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/resolve"
)

// Kind is the conversation kind a session was opened for.
type Kind string

const (
	// KindFailure captures a machine failure report.
	KindFailure Kind = "FAILURE"

	// KindWorkOrder captures a maintenance work order against a machine.
	KindWorkOrder Kind = "WORK_ORDER"

	// KindTask captures a free-form task or agenda reminder.
	KindTask Kind = "TASK"
)

// State is a session's position in the capture conversation.
type State string

const (
	// StateAwaitingInput waits for the user's dictation (text or audio).
	StateAwaitingInput State = "AWAITING_INPUT"

	// StateProcessing covers transcription, extraction, and resolution.
	StateProcessing State = "PROCESSING"

	// StateAwaitingDisambiguation waits for the user to pick among candidate
	// entities.
	StateAwaitingDisambiguation State = "AWAITING_DISAMBIGUATION"

	// StateAwaitingNewEntityName waits for the user to confirm an unknown
	// assignee name or decline naming one.
	StateAwaitingNewEntityName State = "AWAITING_NEW_ENTITY_NAME"

	// StateCompleted means a record was created.
	StateCompleted State = "COMPLETED"

	// StateCancelled means the user aborted the capture.
	StateCancelled State = "CANCELLED"
)

// Interactive reports whether the state has a concrete pending question the
// user can answer quickly. Interactive states carry the short TTL. Waiting
// for the dictation itself, or on the processing queue, is open-ended and
// carries the long one.
func (s State) Interactive() bool {
	switch s {
	case StateAwaitingDisambiguation, StateAwaitingNewEntityName:
		return true
	}
	return false
}

// Terminal reports whether the session is finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Payload is the kind-specific conversation data a session accumulates.
// Exactly one of [FailurePayload], [WorkOrderPayload], or [TaskPayload] is
// held per session.
type Payload interface {
	payloadKind() Kind
}

// FailurePayload accumulates a failure-report capture.
type FailurePayload struct {
	// Transcript is the dictated failure description.
	Transcript string

	// Fields carries the extracted title, description, and severity.
	Fields extract.Fields

	// Candidates are the machine matches awaiting disambiguation.
	Candidates []resolve.Candidate

	// Machine is the chosen machine, once resolved.
	Machine *resolve.Candidate
}

func (FailurePayload) payloadKind() Kind { return KindFailure }

// WorkOrderPayload accumulates a work-order capture.
type WorkOrderPayload struct {
	Transcript string
	Fields     extract.Fields

	// Candidates are the matches currently awaiting disambiguation, for
	// whichever of machine or assignee is unresolved.
	Candidates []resolve.Candidate

	Machine  *resolve.Candidate
	Assignee *resolve.Candidate
}

func (WorkOrderPayload) payloadKind() Kind { return KindWorkOrder }

// TaskPayload accumulates a task or reminder capture.
type TaskPayload struct {
	Transcript string
	Fields     extract.Fields

	// Candidates are the assignee matches awaiting disambiguation.
	Candidates []resolve.Candidate

	// Assignee is the chosen person, once resolved. Nil with
	// AssigneeDeclined set means the user chose not to assign anyone.
	Assignee *resolve.Candidate

	// AssigneeDeclined is set when the user explicitly declined to name or
	// register an assignee.
	AssigneeDeclined bool
}

func (TaskPayload) payloadKind() Kind { return KindTask }

// Session is one open conversation for one user. Values handed out by the
// store are snapshots; all mutation goes through [Store.Update].
type Session struct {
	// UserKey is the opaque end-user identity. At most one live session
	// exists per key.
	UserKey string

	// ChannelID is where replies for this conversation go.
	ChannelID string

	// AuthorName is the user's display name, carried onto created records.
	AuthorName string

	Kind  Kind
	State State

	// JobID links the session to its pending transcription job, when the
	// last input was audio.
	JobID string

	Payload Payload

	CreatedAt time.Time
	ExpiresAt time.Time
}
