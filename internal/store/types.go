// Package store defines the record types the capture engine persists in the
// host ERP's database, together with a PostgreSQL implementation. Consumers
// declare their own narrow interfaces over these types; see for example the
// JobStore interface in the queue package.
package store

import "time"

// Priority is one of four ordered urgency levels carried on captured records.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the canonical lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ParsePriority maps a priority name to its level. Unknown names map to
// PriorityNormal, the safe default for degraded extraction.
func ParsePriority(s string) Priority {
	switch s {
	case "low", "baja":
		return PriorityLow
	case "high", "alta":
		return PriorityHigh
	case "urgent", "urgente":
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// PersonKind distinguishes ERP system users from external agenda contacts.
type PersonKind string

const (
	// PersonSystem is a registered ERP user who can own tasks and receive
	// notifications.
	PersonSystem PersonKind = "system"

	// PersonContact is an external contact known only to the agenda.
	PersonContact PersonKind = "contact"
)

// JobStatus is the persisted lifecycle state of a transcription job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Machine is a piece of equipment failure reports and work orders refer to.
type Machine struct {
	ID      int64
	Name    string
	Code    string
	Aliases []string
	Group   string
}

// Person is someone a captured item can be assigned to: either an ERP system
// user or an external contact.
type Person struct {
	ID        int64
	Name      string
	Nickname  string
	Aliases   []string
	Group     string
	Kind      PersonKind
	DiscordID string
}

// Contact is a lightweight external agenda contact.
type Contact struct {
	ID    int64
	Name  string
	Phone string
	Notes string
}

// Task is a feedback-tracked work item assigned to a system user.
type Task struct {
	ID          int64
	Title       string
	Description string
	AssigneeID  int64
	DueAt       *time.Time
	Priority    Priority
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
}

// Reminder is a lightweight agenda item, optionally linked to a contact.
// It carries no feedback tracking and triggers no notifications.
type Reminder struct {
	ID          int64
	Title       string
	Description string
	ContactID   *int64

	// AssigneeLabel preserves the free-text assignee name for display when no
	// contact record is linked.
	AssigneeLabel string

	DueAt     *time.Time
	Priority  Priority
	CreatedBy string
	CreatedAt time.Time
}

// FailureReport records a dictated equipment failure.
type FailureReport struct {
	ID          int64
	MachineID   int64
	Title       string
	Description string
	Severity    Priority
	ReportedBy  string

	// Transcript is the raw utterance the report was extracted from.
	Transcript string

	CreatedAt time.Time
}

// WorkOrder is a planned maintenance intervention, optionally tied to a
// machine and an assignee.
type WorkOrder struct {
	ID          int64
	MachineID   *int64
	Title       string
	Description string
	AssigneeID  *int64
	DueAt       *time.Time
	Priority    Priority
	CreatedBy   string
	CreatedAt   time.Time
}

// TranscriptionJob is the persisted record for one queued voice note. The
// in-memory queue holds only job IDs; this record carries the payload pointers
// and the durable status used by startup recovery.
type TranscriptionJob struct {
	ID        string
	UserKey   string
	ChannelID string
	AudioURL  string
	MimeType  string

	// Kind is the conversation kind the transcript feeds (failure, work
	// order, or task capture).
	Kind string

	Status     JobStatus
	Attempts   int
	LastError  string
	Transcript string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
