// Package capture orchestrates dictation conversations: receiving text or
// voice-note input, transcribing audio through the processing queue,
// extracting structured fields, resolving referenced machines and people,
// asking for clarification when resolution is ambiguous, and routing the
// result into the right ERP record.
package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/notify"
	"github.com/tomasrey88/plantavoz/internal/observe"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
	"github.com/tomasrey88/plantavoz/pkg/provider/stt"
)

const (
	defaultMinTranscriptLen = 3

	// maxAudioBytes caps a voice-note download. Discord voice notes stay far
	// below this.
	maxAudioBytes = 25 << 20
)

var defaultCancelWords = []string{"cancelar", "cancel"}

// RecordStore is the slice of the record store the pipeline reads and writes.
type RecordStore interface {
	Machines(ctx context.Context) ([]store.Machine, error)
	People(ctx context.Context) ([]store.Person, error)
	CreateContact(ctx context.Context, c store.Contact) (store.Contact, error)
	CreateTask(ctx context.Context, t store.Task) (store.Task, error)
	CreateReminder(ctx context.Context, r store.Reminder) (store.Reminder, error)
	CreateFailureReport(ctx context.Context, f store.FailureReport) (store.FailureReport, error)
	CreateWorkOrder(ctx context.Context, w store.WorkOrder) (store.WorkOrder, error)
	CreateJob(ctx context.Context, j store.TranscriptionJob) error
	Job(ctx context.Context, id string) (store.TranscriptionJob, error)
	SetJobTranscript(ctx context.Context, id string, transcript string) error
}

// Enqueuer hands transcription jobs to the processing queue.
type Enqueuer interface {
	Enqueue(jobID string) bool
}

// Config tunes conversational behavior.
type Config struct {
	// CancelWords abort a capture from any non-terminal state,
	// case-insensitively. Default: "cancelar", "cancel".
	CancelWords []string

	// MinTranscriptLen is the minimum rune count for a usable transcript.
	// Default 3.
	MinTranscriptLen int
}

func (c Config) withDefaults() Config {
	if len(c.CancelWords) == 0 {
		c.CancelWords = defaultCancelWords
	}
	if c.MinTranscriptLen <= 0 {
		c.MinTranscriptLen = defaultMinTranscriptLen
	}
	return c
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Sessions  *session.Store
	Records   RecordStore
	STT       stt.Provider
	Extractor *extract.Extractor

	// Machines and People are the two resolver instances.
	Machines *resolve.Resolver
	People   *resolve.Resolver

	Notifier  notify.Dispatcher
	Responder Responder
	Metrics   *observe.Metrics

	// HTTPClient fetches voice-note attachments. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Pipeline drives capture conversations. Safe for concurrent use: the
// session store is the only shared mutable state and its operations are
// atomic per user.
type Pipeline struct {
	cfg       Config
	sessions  *session.Store
	records   RecordStore
	stt       stt.Provider
	extractor *extract.Extractor
	machines  *resolve.Resolver
	people    *resolve.Resolver
	notifier  notify.Dispatcher
	responder Responder
	metrics   *observe.Metrics
	http      *http.Client
	log       *slog.Logger

	enqueue  Enqueuer
	newJobID func() string
}

// New assembles a pipeline. Call [Pipeline.SetEnqueuer] before handling
// audio input; the queue is constructed afterwards because it needs
// [Pipeline.ProcessJob] as its callback.
func New(cfg Config, deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:       cfg.withDefaults(),
		sessions:  deps.Sessions,
		records:   deps.Records,
		stt:       deps.STT,
		extractor: deps.Extractor,
		machines:  deps.Machines,
		people:    deps.People,
		notifier:  deps.Notifier,
		responder: deps.Responder,
		metrics:   deps.Metrics,
		http:      deps.HTTPClient,
		log:       deps.Logger,
		newJobID:  uuid.NewString,
	}
	if p.notifier == nil {
		p.notifier = notify.Null{}
	}
	if p.http == nil {
		p.http = http.DefaultClient
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// SetEnqueuer wires the processing queue.
func (p *Pipeline) SetEnqueuer(e Enqueuer) {
	p.enqueue = e
}

// SetResponder wires the outbound transport. Like [Pipeline.SetEnqueuer], it
// breaks the construction cycle with the Discord layer, which needs the
// pipeline before it can hand out a responder.
func (p *Pipeline) SetResponder(r Responder) {
	p.responder = r
}

// SetNotifier replaces the assignment notifier. The Discord dispatcher is
// only available once the bot session exists, which is after pipeline
// construction.
func (p *Pipeline) SetNotifier(n notify.Dispatcher) {
	p.notifier = n
}

// Input is an inbound text message from a user with an open session.
type Input struct {
	UserKey    string
	ChannelID  string
	AuthorName string
	Text       string
}

// AudioInput is an inbound voice-note attachment.
type AudioInput struct {
	UserKey    string
	ChannelID  string
	AuthorName string
	URL        string
	MimeType   string
}

// StartCapture opens a session of the given kind for the user, replacing any
// prior conversation, and prompts for dictation.
func (p *Pipeline) StartCapture(ctx context.Context, userKey, channelID, authorName string, kind session.Kind) error {
	var payload session.Payload
	switch kind {
	case session.KindFailure:
		payload = session.FailurePayload{}
	case session.KindWorkOrder:
		payload = session.WorkOrderPayload{}
	case session.KindTask:
		payload = session.TaskPayload{}
	default:
		return fmt.Errorf("capture: unknown conversation kind %q", kind)
	}

	p.sessions.Create(userKey, channelID, authorName, kind, payload)
	return p.reply(ctx, channelID, Reply{Text: promptFor(kind)})
}

// HandleText routes a plain message into the user's open session. It reports
// false when the user has no live session, so the caller can ignore
// unrelated chatter.
func (p *Pipeline) HandleText(ctx context.Context, in Input) (bool, error) {
	sess, ok := p.sessions.Get(in.UserKey)
	if !ok {
		return false, nil
	}

	if p.isCancelWord(in.Text) {
		return true, p.cancel(ctx, sess)
	}

	switch sess.State {
	case session.StateAwaitingInput:
		return true, p.endOnError(ctx, sess, p.processTranscript(ctx, sess, strings.TrimSpace(in.Text)))
	case session.StateAwaitingDisambiguation:
		// A typed name instead of a selection: resolve it afresh.
		return true, p.endOnError(ctx, sess, p.handleClarificationText(ctx, sess, strings.TrimSpace(in.Text)))
	case session.StateAwaitingNewEntityName:
		return true, p.endOnError(ctx, sess, p.handleNewEntityName(ctx, sess, strings.TrimSpace(in.Text)))
	case session.StateProcessing:
		return true, p.reply(ctx, sess.ChannelID, Reply{Text: msgStillProcessing})
	}
	return true, nil
}

// HandleAudio accepts a voice note for a session awaiting input: it persists
// a transcription job and enqueues it. Reports false when the user has no
// live session.
func (p *Pipeline) HandleAudio(ctx context.Context, in AudioInput) (bool, error) {
	sess, ok := p.sessions.Get(in.UserKey)
	if !ok {
		return false, nil
	}
	if sess.State != session.StateAwaitingInput {
		return true, p.reply(ctx, sess.ChannelID, Reply{Text: msgAudioNotExpected})
	}

	jobID := p.newJobID()
	job := store.TranscriptionJob{
		ID:        jobID,
		UserKey:   in.UserKey,
		ChannelID: in.ChannelID,
		AudioURL:  in.URL,
		MimeType:  in.MimeType,
		Kind:      string(sess.Kind),
		Status:    store.JobQueued,
	}
	if err := p.records.CreateJob(ctx, job); err != nil {
		return true, p.endOnError(ctx, sess, fmt.Errorf("capture: persist job: %w", err))
	}
	if !p.enqueue.Enqueue(jobID) {
		return true, p.reply(ctx, sess.ChannelID, Reply{Text: msgQueueFull})
	}

	p.sessions.Update(in.UserKey, func(s *session.Session) {
		s.State = session.StateProcessing
		s.JobID = jobID
	})
	return true, p.reply(ctx, sess.ChannelID, Reply{Text: msgAudioReceived})
}

// ProcessJob is the queue worker callback: it downloads the voice note,
// transcribes it, and resumes the owning conversation. Transcription and
// download failures are returned so the queue can retry; conversational
// failures afterwards are not retried.
func (p *Pipeline) ProcessJob(ctx context.Context, jobID string) error {
	job, err := p.records.Job(ctx, jobID)
	if err != nil {
		return fmt.Errorf("capture: load job: %w", err)
	}

	audio, err := p.fetchAudio(ctx, job.AudioURL)
	if err != nil {
		return err
	}

	start := time.Now()
	transcript, err := p.stt.Transcribe(ctx, audio, job.MimeType)
	if p.metrics != nil {
		p.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("capture: transcribe job %s: %w", jobID, err)
	}
	transcript = strings.TrimSpace(transcript)

	if err := p.records.SetJobTranscript(ctx, jobID, transcript); err != nil {
		p.log.Error("persist transcript", "job_id", jobID, "error", err)
	}

	sess, ok := p.sessions.Get(job.UserKey)
	if !ok || sess.JobID != jobID {
		// The conversation moved on or expired while the job waited. The
		// transcript stays on the job record.
		p.log.Info("transcript arrived for a closed session", "job_id", jobID, "user", job.UserKey)
		return nil
	}

	if utf8.RuneCountInString(transcript) < p.cfg.MinTranscriptLen {
		p.sessions.Update(job.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingInput
			s.JobID = ""
		})
		return p.replyLogged(ctx, sess.ChannelID, Reply{Text: msgTranscriptTooShort})
	}

	if err := p.processTranscript(ctx, sess, transcript); err != nil {
		// The transcription itself succeeded, so the job completes either
		// way; retrying would repeat the STT call.
		p.endOnError(ctx, sess, fmt.Errorf("resume conversation for job %s: %w", jobID, err))
	}
	return nil
}

// processTranscript runs extraction and the kind-specific flow for a usable
// transcript.
func (p *Pipeline) processTranscript(ctx context.Context, sess session.Session, transcript string) error {
	if utf8.RuneCountInString(transcript) < p.cfg.MinTranscriptLen {
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingInput
		})
		return p.reply(ctx, sess.ChannelID, Reply{Text: msgTranscriptTooShort})
	}

	if sess.State != session.StateProcessing {
		updated, ok := p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateProcessing
		})
		if !ok {
			return nil
		}
		sess = updated
	}

	fields := p.extractFields(ctx, transcript)

	switch sess.Kind {
	case session.KindFailure:
		return p.continueFailure(ctx, sess, transcript, fields)
	case session.KindWorkOrder:
		return p.continueWorkOrder(ctx, sess, transcript, fields)
	default:
		return p.continueTask(ctx, sess, transcript, fields)
	}
}

// extractFields calls the extractor with metrics around it.
func (p *Pipeline) extractFields(ctx context.Context, transcript string) extract.Fields {
	start := time.Now()
	fields := p.extractor.Extract(ctx, transcript)
	if p.metrics != nil {
		p.metrics.ExtractionDuration.Record(ctx, time.Since(start).Seconds())
		if fields.Fallback {
			p.metrics.ExtractionFallbacks.Add(ctx, 1)
		}
	}
	return fields
}

// cancel terminates a capture at the user's request.
func (p *Pipeline) cancel(ctx context.Context, sess session.Session) error {
	p.endSession(sess.UserKey)
	return p.reply(ctx, sess.ChannelID, Reply{Text: msgCancelled})
}

// endSession deletes the session. The live-conversation gauge observes the
// session store directly, so nothing to record here.
func (p *Pipeline) endSession(userKey string) {
	p.sessions.Delete(userKey)
}

// endOnError gives an internal failure a defined next state: the error is
// logged, the session is discarded, and the user gets a generic failure
// message instead of silence. Without it a record-store outage would strand
// the conversation in PROCESSING until the TTL sweep, answering "still
// processing" to everything. Steps that already closed the session (a reply
// failing after the record was created) only propagate the error.
func (p *Pipeline) endOnError(ctx context.Context, sess session.Session, err error) error {
	if err == nil {
		return nil
	}
	if _, live := p.sessions.Get(sess.UserKey); !live {
		return err
	}
	p.log.Error("capture step failed", "user", sess.UserKey, "kind", sess.Kind, "error", err)
	p.endSession(sess.UserKey)
	p.replyLogged(ctx, sess.ChannelID, Reply{Text: msgCaptureFailed})
	return err
}

func (p *Pipeline) isCancelWord(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))
	for _, w := range p.cfg.CancelWords {
		if text == strings.ToLower(w) {
			return true
		}
	}
	return false
}

// fetchAudio downloads a voice-note attachment.
func (p *Pipeline) fetchAudio(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("capture: build audio request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capture: fetch audio: unexpected status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("capture: read audio body: %w", err)
	}
	return audio, nil
}

func (p *Pipeline) reply(ctx context.Context, channelID string, r Reply) error {
	if p.responder == nil {
		return fmt.Errorf("capture: no responder wired")
	}
	r.Choices = capChoices(r.Choices)
	if err := p.responder.Send(ctx, channelID, r); err != nil {
		return fmt.Errorf("capture: send reply: %w", err)
	}
	return nil
}

// replyLogged sends a reply and downgrades failures to a log line, for paths
// where the caller has no better recourse.
func (p *Pipeline) replyLogged(ctx context.Context, channelID string, r Reply) error {
	if err := p.reply(ctx, channelID, r); err != nil {
		p.log.Error("send reply", "channel", channelID, "error", err)
	}
	return nil
}
