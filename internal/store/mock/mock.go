// Package mock provides an in-memory record store double for tests. It
// implements the same method set as the postgres store.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomasrey88/plantavoz/internal/store"
)

// ErrNotFound mirrors the postgres store's not-found error.
var ErrNotFound = errors.New("mock store: not found")

// Store is an in-memory record store. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	MachineList []store.Machine
	PersonList  []store.Person

	Contacts       []store.Contact
	Tasks          []store.Task
	Reminders      []store.Reminder
	FailureReports []store.FailureReport
	WorkOrders     []store.WorkOrder

	Jobs map[string]*store.TranscriptionJob

	nextID int64

	// Err, when set, is returned by every operation.
	Err error
}

// New returns an empty Store.
func New() *Store {
	return &Store{Jobs: make(map[string]*store.TranscriptionJob)}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Machines implements the machine lookup.
func (s *Store) Machines(_ context.Context) ([]store.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]store.Machine(nil), s.MachineList...), nil
}

// People implements the person lookup: system users plus agenda contacts,
// matching the postgres union. A contact person's ID is the contact's ID.
func (s *Store) People(_ context.Context) ([]store.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	people := append([]store.Person(nil), s.PersonList...)
	for _, c := range s.Contacts {
		people = append(people, store.Person{
			ID:   c.ID,
			Name: c.Name,
			Kind: store.PersonContact,
		})
	}
	return people, nil
}

// CreateContact records a contact.
func (s *Store) CreateContact(_ context.Context, c store.Contact) (store.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.Contact{}, s.Err
	}
	c.ID = s.id()
	s.Contacts = append(s.Contacts, c)
	return c, nil
}

// CreateTask records a task.
func (s *Store) CreateTask(_ context.Context, t store.Task) (store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.Task{}, s.Err
	}
	t.ID = s.id()
	if t.Status == "" {
		t.Status = "open"
	}
	t.CreatedAt = time.Now()
	s.Tasks = append(s.Tasks, t)
	return t, nil
}

// CreateReminder records a reminder.
func (s *Store) CreateReminder(_ context.Context, r store.Reminder) (store.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.Reminder{}, s.Err
	}
	r.ID = s.id()
	r.CreatedAt = time.Now()
	s.Reminders = append(s.Reminders, r)
	return r, nil
}

// CreateFailureReport records a failure report.
func (s *Store) CreateFailureReport(_ context.Context, f store.FailureReport) (store.FailureReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.FailureReport{}, s.Err
	}
	f.ID = s.id()
	f.CreatedAt = time.Now()
	s.FailureReports = append(s.FailureReports, f)
	return f, nil
}

// CreateWorkOrder records a work order.
func (s *Store) CreateWorkOrder(_ context.Context, w store.WorkOrder) (store.WorkOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.WorkOrder{}, s.Err
	}
	w.ID = s.id()
	w.CreatedAt = time.Now()
	s.WorkOrders = append(s.WorkOrders, w)
	return w, nil
}

// CreateJob records a transcription job, ignoring duplicates by ID.
func (s *Store) CreateJob(_ context.Context, j store.TranscriptionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.Jobs[j.ID]; ok {
		return nil
	}
	if j.Status == "" {
		j.Status = store.JobQueued
	}
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	s.Jobs[j.ID] = &j
	return nil
}

// Job fetches a transcription job by ID.
func (s *Store) Job(_ context.Context, id string) (store.TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return store.TranscriptionJob{}, s.Err
	}
	j, ok := s.Jobs[id]
	if !ok {
		return store.TranscriptionJob{}, ErrNotFound
	}
	return *j, nil
}

// UpdateJobStatus updates a job's status, attempts, and last error.
func (s *Store) UpdateJobStatus(_ context.Context, id string, status store.JobStatus, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	j, ok := s.Jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Status = status
	j.Attempts = attempts
	j.LastError = lastError
	j.UpdatedAt = time.Now()
	return nil
}

// SetJobTranscript stores a transcript on a job.
func (s *Store) SetJobTranscript(_ context.Context, id string, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	j, ok := s.Jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.Transcript = transcript
	j.UpdatedAt = time.Now()
	return nil
}

// JobsByStatus lists jobs in any of the given statuses, oldest first.
func (s *Store) JobsByStatus(_ context.Context, statuses ...store.JobStatus) ([]store.TranscriptionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	want := make(map[store.JobStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var jobs []store.TranscriptionJob
	for _, j := range s.Jobs {
		if want[j.Status] {
			jobs = append(jobs, *j)
		}
	}
	// Oldest first, matching the postgres ORDER BY created_at.
	for i := 1; i < len(jobs); i++ {
		for k := i; k > 0 && jobs[k].CreatedAt.Before(jobs[k-1].CreatedAt); k-- {
			jobs[k], jobs[k-1] = jobs[k-1], jobs[k]
		}
	}
	return jobs, nil
}

// JobStatusOf is a test helper returning a job's current status.
func (s *Store) JobStatusOf(id string) (store.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.Jobs[id]
	if !ok {
		return "", false
	}
	return j.Status, true
}
