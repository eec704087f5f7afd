package capture

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
)

// continueFailure runs the failure-report flow once a transcript and its
// extracted fields are available. The machine reference is looked for in the
// whole transcript: containment and digit-run matching find names embedded
// in free dictation.
func (p *Pipeline) continueFailure(ctx context.Context, sess session.Session, transcript string, fields extract.Fields) error {
	return p.resolveFailureMachine(ctx, sess, session.FailurePayload{
		Transcript: transcript,
		Fields:     fields,
	}, transcript)
}

// resolveFailureMachine resolves query against the machine registry and
// advances the session accordingly. query is either the full transcript or a
// clarification the user typed.
func (p *Pipeline) resolveFailureMachine(ctx context.Context, sess session.Session, payload session.FailurePayload, query string) error {
	cands, best, decision, err := p.resolveMachine(ctx, query, payload.Transcript)
	if err != nil {
		return err
	}

	switch decision {
	case resolve.DecisionAccept:
		return p.completeFailure(ctx, sess, payload, best)

	case resolve.DecisionAmbiguous:
		payload.Candidates = cands
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingDisambiguation
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{
			Text:    msgPickMachine,
			Choices: choicesFrom(cands),
		})

	default:
		if sess.State == session.StateAwaitingNewEntityName {
			// The retyped name found nothing either. Give up cleanly.
			p.endSession(sess.UserKey)
			return p.reply(ctx, sess.ChannelID, Reply{Text: msgMachineAgain})
		}
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingNewEntityName
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{Text: msgMachineUnknown})
	}
}

// completeFailure persists the report and closes the conversation.
func (p *Pipeline) completeFailure(ctx context.Context, sess session.Session, payload session.FailurePayload, machine resolve.Candidate) error {
	report := store.FailureReport{
		MachineID:   machine.ID,
		Title:       payload.Fields.Title,
		Description: payload.Fields.Description,
		Severity:    payload.Fields.Priority,
		ReportedBy:  sess.AuthorName,
		Transcript:  payload.Transcript,
	}
	if _, err := p.records.CreateFailureReport(ctx, report); err != nil {
		return fmt.Errorf("capture: create failure report: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCreated(ctx, "failure_report")
	}

	p.endSession(sess.UserKey)
	return p.reply(ctx, sess.ChannelID, Reply{
		Text: fmt.Sprintf(msgFailureCreated, machine.Name),
	})
}
