package capture

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
)

// continueTask runs the task/reminder flow: resolve the dictated assignee,
// then let the router pick the record type.
func (p *Pipeline) continueTask(ctx context.Context, sess session.Session, transcript string, fields extract.Fields) error {
	payload := session.TaskPayload{Transcript: transcript, Fields: fields}

	if fields.Assignee == "" {
		return p.route(ctx, sess, payload, nil)
	}
	return p.resolveTaskAssignee(ctx, sess, payload, fields.Assignee)
}

// resolveTaskAssignee resolves query as the assignee and advances the
// session. query is the extracted assignee name or a clarification the user
// typed.
func (p *Pipeline) resolveTaskAssignee(ctx context.Context, sess session.Session, payload session.TaskPayload, query string) error {
	cands, best, decision, err := p.resolvePerson(ctx, query, payload.Transcript)
	if err != nil {
		return err
	}

	switch decision {
	case resolve.DecisionAccept:
		person, err := p.personFor(ctx, best)
		if err != nil {
			return err
		}
		payload.Assignee = &best
		return p.route(ctx, sess, payload, &person)

	case resolve.DecisionAmbiguous:
		payload.Candidates = cands
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingDisambiguation
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{
			Text:    msgPickPerson,
			Choices: choicesFrom(cands),
		})

	default:
		if sess.State == session.StateAwaitingNewEntityName {
			// Even the retyped name is unknown: register it as a fresh
			// contact and continue.
			return p.registerContactAndRoute(ctx, sess, payload, query)
		}
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingNewEntityName
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{
			Text: fmt.Sprintf(msgPersonUnknown, query),
		})
	}
}
