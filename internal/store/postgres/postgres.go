// Package postgres provides the PostgreSQL-backed record store for the
// capture engine. All operations are safe for concurrent use.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomasrey88/plantavoz/internal/store"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("postgres store: not found")

// Store holds a single [pgxpool.Pool] and implements every record operation
// the capture engine needs, scoped to one company of the host ERP.
type Store struct {
	pool      *pgxpool.Pool
	companyID int64
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure all required
// tables exist.
func NewStore(ctx context.Context, dsn string, companyID int64) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, companyID: companyID}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ── Entity lookups ────────────────────────────────────────────────────────────

// Machines returns every machine registered for the store's company.
func (s *Store) Machines(ctx context.Context) ([]store.Machine, error) {
	const query = `
		SELECT id, name, code, aliases, grp
		FROM machines WHERE company_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, s.companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list machines: %w", err)
	}
	defer rows.Close()

	var machines []store.Machine
	for rows.Next() {
		var m store.Machine
		var aliases []byte
		if err := rows.Scan(&m.ID, &m.Name, &m.Code, &aliases, &m.Group); err != nil {
			return nil, fmt.Errorf("postgres store: scan machine: %w", err)
		}
		if err := json.Unmarshal(aliases, &m.Aliases); err != nil {
			return nil, fmt.Errorf("postgres store: unmarshal machine aliases: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// People returns every resolvable person for the store's company: system
// users from the people table plus agenda contacts. A contact person's ID is
// the contacts-table ID, so reminders can link it directly; IDs are only
// unique per kind.
func (s *Store) People(ctx context.Context) ([]store.Person, error) {
	const query = `
		SELECT id, name, nickname, aliases, grp, kind, discord_id
		FROM people WHERE company_id = $1
		UNION ALL
		SELECT id, name, '', '[]'::jsonb, '', 'contact', ''
		FROM contacts WHERE company_id = $1
		ORDER BY kind, id`

	rows, err := s.pool.Query(ctx, query, s.companyID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list people: %w", err)
	}
	defer rows.Close()

	var people []store.Person
	for rows.Next() {
		var p store.Person
		var aliases []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Nickname, &aliases, &p.Group, &p.Kind, &p.DiscordID); err != nil {
			return nil, fmt.Errorf("postgres store: scan person: %w", err)
		}
		if err := json.Unmarshal(aliases, &p.Aliases); err != nil {
			return nil, fmt.Errorf("postgres store: unmarshal person aliases: %w", err)
		}
		people = append(people, p)
	}
	return people, rows.Err()
}

// ── Record creation ───────────────────────────────────────────────────────────

// CreateContact inserts a new agenda contact. The contact surfaces through
// [Store.People] on the next lookup, so future resolution finds it without a
// mirror row. Returns the stored contact with its generated ID.
func (s *Store) CreateContact(ctx context.Context, c store.Contact) (store.Contact, error) {
	const insertContact = `
		INSERT INTO contacts (company_id, name, phone, notes)
		VALUES ($1, $2, $3, $4) RETURNING id`

	if err := s.pool.QueryRow(ctx, insertContact, s.companyID, c.Name, c.Phone, c.Notes).Scan(&c.ID); err != nil {
		return store.Contact{}, fmt.Errorf("postgres store: create contact: %w", err)
	}
	return c, nil
}

// CreateTask inserts a new task and returns it with its generated ID.
func (s *Store) CreateTask(ctx context.Context, t store.Task) (store.Task, error) {
	const query = `
		INSERT INTO tasks (company_id, title, description, assignee_id, due_at, priority, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	status := t.Status
	if status == "" {
		status = "open"
	}
	err := s.pool.QueryRow(ctx, query,
		s.companyID, t.Title, t.Description, t.AssigneeID, t.DueAt, t.Priority.String(), status, t.CreatedBy,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return store.Task{}, fmt.Errorf("postgres store: create task: %w", err)
	}
	t.Status = status
	return t, nil
}

// CreateReminder inserts a new agenda reminder and returns it with its
// generated ID.
func (s *Store) CreateReminder(ctx context.Context, r store.Reminder) (store.Reminder, error) {
	const query = `
		INSERT INTO reminders (company_id, title, description, contact_id, assignee_label, due_at, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		s.companyID, r.Title, r.Description, r.ContactID, r.AssigneeLabel, r.DueAt, r.Priority.String(), r.CreatedBy,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return store.Reminder{}, fmt.Errorf("postgres store: create reminder: %w", err)
	}
	return r, nil
}

// CreateFailureReport inserts a new failure report and returns it with its
// generated ID.
func (s *Store) CreateFailureReport(ctx context.Context, f store.FailureReport) (store.FailureReport, error) {
	const query = `
		INSERT INTO failure_reports (company_id, machine_id, title, description, severity, reported_by, transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		s.companyID, f.MachineID, f.Title, f.Description, f.Severity.String(), f.ReportedBy, f.Transcript,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return store.FailureReport{}, fmt.Errorf("postgres store: create failure report: %w", err)
	}
	return f, nil
}

// CreateWorkOrder inserts a new work order and returns it with its generated ID.
func (s *Store) CreateWorkOrder(ctx context.Context, w store.WorkOrder) (store.WorkOrder, error) {
	const query = `
		INSERT INTO work_orders (company_id, machine_id, title, description, assignee_id, due_at, priority, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query,
		s.companyID, w.MachineID, w.Title, w.Description, w.AssigneeID, w.DueAt, w.Priority.String(), w.CreatedBy,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return store.WorkOrder{}, fmt.Errorf("postgres store: create work order: %w", err)
	}
	return w, nil
}

// ── Transcription jobs ────────────────────────────────────────────────────────

// CreateJob inserts a new transcription job record in QUEUED status.
func (s *Store) CreateJob(ctx context.Context, j store.TranscriptionJob) error {
	const query = `
		INSERT INTO transcription_jobs (id, user_key, channel_id, audio_url, mime_type, kind, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	status := j.Status
	if status == "" {
		status = store.JobQueued
	}
	if _, err := s.pool.Exec(ctx, query,
		j.ID, j.UserKey, j.ChannelID, j.AudioURL, j.MimeType, j.Kind, status,
	); err != nil {
		return fmt.Errorf("postgres store: create job: %w", err)
	}
	return nil
}

// Job fetches one transcription job by ID. Returns [ErrNotFound] when the
// job does not exist.
func (s *Store) Job(ctx context.Context, id string) (store.TranscriptionJob, error) {
	const query = `
		SELECT id, user_key, channel_id, audio_url, mime_type, kind, status, attempts, last_error, transcript, created_at, updated_at
		FROM transcription_jobs WHERE id = $1`

	var j store.TranscriptionJob
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.UserKey, &j.ChannelID, &j.AudioURL, &j.MimeType, &j.Kind,
		&j.Status, &j.Attempts, &j.LastError, &j.Transcript, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.TranscriptionJob{}, ErrNotFound
	}
	if err != nil {
		return store.TranscriptionJob{}, fmt.Errorf("postgres store: fetch job %q: %w", id, err)
	}
	return j, nil
}

// UpdateJobStatus sets a job's status, attempt count, and last error.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status store.JobStatus, attempts int, lastError string) error {
	const query = `
		UPDATE transcription_jobs
		SET status = $2, attempts = $3, last_error = $4, updated_at = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, status, attempts, lastError); err != nil {
		return fmt.Errorf("postgres store: update job %q status: %w", id, err)
	}
	return nil
}

// SetJobTranscript stores the transcription result on a job record.
func (s *Store) SetJobTranscript(ctx context.Context, id string, transcript string) error {
	const query = `
		UPDATE transcription_jobs SET transcript = $2, updated_at = now() WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id, transcript); err != nil {
		return fmt.Errorf("postgres store: set job %q transcript: %w", id, err)
	}
	return nil
}

// JobsByStatus returns all jobs whose status is one of the given values,
// oldest first. Used by startup recovery.
func (s *Store) JobsByStatus(ctx context.Context, statuses ...store.JobStatus) ([]store.TranscriptionJob, error) {
	const query = `
		SELECT id, user_key, channel_id, audio_url, mime_type, kind, status, attempts, last_error, transcript, created_at, updated_at
		FROM transcription_jobs WHERE status = ANY($1) ORDER BY created_at`

	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []store.TranscriptionJob
	for rows.Next() {
		var j store.TranscriptionJob
		if err := rows.Scan(
			&j.ID, &j.UserKey, &j.ChannelID, &j.AudioURL, &j.MimeType, &j.Kind,
			&j.Status, &j.Attempts, &j.LastError, &j.Transcript, &j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres store: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
