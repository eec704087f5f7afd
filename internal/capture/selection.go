package capture

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
)

// HandleSelection applies a menu selection to the user's open conversation.
// It reports false when the user has no live session, so the caller can drop
// stale component interactions quietly.
func (p *Pipeline) HandleSelection(ctx context.Context, userKey, channelID, choiceID string) (bool, error) {
	sess, ok := p.sessions.Get(userKey)
	if !ok {
		return false, nil
	}
	if sess.State != session.StateAwaitingDisambiguation {
		return true, p.reply(ctx, sess.ChannelID, Reply{Text: msgChoiceStale})
	}
	return true, p.endOnError(ctx, sess, p.applySelection(ctx, sess, choiceID))
}

// applySelection routes the chosen candidate into the kind-specific flow.
func (p *Pipeline) applySelection(ctx context.Context, sess session.Session, choiceID string) error {
	switch payload := sess.Payload.(type) {
	case session.FailurePayload:
		cand, ok := candidateByChoice(payload.Candidates, choiceID)
		if !ok {
			return p.reply(ctx, sess.ChannelID, Reply{Text: msgChoiceStale})
		}
		return p.completeFailure(ctx, sess, payload, cand)

	case session.WorkOrderPayload:
		cand, ok := candidateByChoice(payload.Candidates, choiceID)
		if !ok {
			return p.reply(ctx, sess.ChannelID, Reply{Text: msgChoiceStale})
		}
		payload.Candidates = nil
		if cand.Kind == resolve.TargetMachine {
			payload.Machine = &cand
			p.sessions.Update(sess.UserKey, func(s *session.Session) {
				s.State = session.StateProcessing
				s.Payload = payload
			})
			return p.advanceWorkOrder(ctx, sess, payload)
		}
		payload.Assignee = &cand
		return p.completeWorkOrder(ctx, sess, payload)

	case session.TaskPayload:
		cand, ok := candidateByChoice(payload.Candidates, choiceID)
		if !ok {
			return p.reply(ctx, sess.ChannelID, Reply{Text: msgChoiceStale})
		}
		person, err := p.personFor(ctx, cand)
		if err != nil {
			return err
		}
		payload.Candidates = nil
		payload.Assignee = &cand
		return p.route(ctx, sess, payload, &person)
	}
	return fmt.Errorf("capture: unexpected payload %T in disambiguation", sess.Payload)
}
