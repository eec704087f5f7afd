package capture

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
)

// handleClarificationText handles a typed reply while the session offers
// selectable candidates: the user ignored the menu and named the entity
// directly, so resolve the text as a fresh query.
func (p *Pipeline) handleClarificationText(ctx context.Context, sess session.Session, text string) error {
	switch payload := sess.Payload.(type) {
	case session.FailurePayload:
		return p.resolveFailureMachine(ctx, sess, payload, text)

	case session.WorkOrderPayload:
		if machinePending(payload) {
			return p.clarifyWorkOrderMachine(ctx, sess, payload, text)
		}
		return p.clarifyWorkOrderAssignee(ctx, sess, payload, text)

	case session.TaskPayload:
		return p.resolveTaskAssignee(ctx, sess, payload, text)
	}
	return fmt.Errorf("capture: unexpected payload %T in disambiguation", sess.Payload)
}

// handleNewEntityName handles the reply after an entity lookup found nothing.
// For machines the name is retried once; for assignees the user can retype
// the name, decline an assignee, or register a new contact.
func (p *Pipeline) handleNewEntityName(ctx context.Context, sess session.Session, text string) error {
	switch payload := sess.Payload.(type) {
	case session.FailurePayload:
		return p.resolveFailureMachine(ctx, sess, payload, text)

	case session.WorkOrderPayload:
		word := strings.ToLower(text)
		switch {
		case declineWords[word]:
			payload.Fields.Assignee = ""
			return p.completeWorkOrder(ctx, sess, payload)
		case registerWords[word]:
			return p.registerWorkOrderContact(ctx, sess, payload, payload.Fields.Assignee)
		default:
			return p.clarifyWorkOrderAssignee(ctx, sess, payload, text)
		}

	case session.TaskPayload:
		word := strings.ToLower(text)
		switch {
		case declineWords[word]:
			payload.AssigneeDeclined = true
			return p.route(ctx, sess, payload, nil)
		case registerWords[word]:
			return p.registerContactAndRoute(ctx, sess, payload, payload.Fields.Assignee)
		default:
			return p.resolveTaskAssignee(ctx, sess, payload, text)
		}
	}
	return fmt.Errorf("capture: unexpected payload %T awaiting entity name", sess.Payload)
}

// machinePending reports whether the offered candidates concern the machine
// rather than the assignee.
func machinePending(payload session.WorkOrderPayload) bool {
	return payload.Machine == nil && len(payload.Candidates) > 0 &&
		payload.Candidates[0].Kind == resolve.TargetMachine
}

// clarifyWorkOrderMachine re-resolves a typed machine name during
// disambiguation. An unknown name keeps the menu open; the machine is
// optional, so the user can also just cancel or pick a candidate.
func (p *Pipeline) clarifyWorkOrderMachine(ctx context.Context, sess session.Session, payload session.WorkOrderPayload, query string) error {
	cands, best, decision, err := p.resolveMachine(ctx, query, payload.Transcript)
	if err != nil {
		return err
	}
	switch decision {
	case resolve.DecisionAccept:
		payload.Machine = &best
		payload.Candidates = nil
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateProcessing
			s.Payload = payload
		})
		return p.advanceWorkOrder(ctx, sess, payload)

	case resolve.DecisionAmbiguous:
		payload.Candidates = cands
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{
			Text:    msgPickMachine,
			Choices: choicesFrom(cands),
		})

	default:
		return p.reply(ctx, sess.ChannelID, Reply{Text: msgMachineUnknown})
	}
}

// clarifyWorkOrderAssignee re-resolves a typed assignee name. An unknown name
// registers a new contact rather than looping.
func (p *Pipeline) clarifyWorkOrderAssignee(ctx context.Context, sess session.Session, payload session.WorkOrderPayload, query string) error {
	cands, best, decision, err := p.resolvePerson(ctx, query, payload.Transcript)
	if err != nil {
		return err
	}
	switch decision {
	case resolve.DecisionAccept:
		payload.Assignee = &best
		payload.Candidates = nil
		return p.completeWorkOrder(ctx, sess, payload)

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
			return p.registerWorkOrderContact(ctx, sess, payload, query)
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

// registerWorkOrderContact saves name as a new contact and completes the
// order assigned to it.
func (p *Pipeline) registerWorkOrderContact(ctx context.Context, sess session.Session, payload session.WorkOrderPayload, name string) error {
	contact, err := p.records.CreateContact(ctx, store.Contact{Name: name})
	if err != nil {
		return fmt.Errorf("capture: register contact: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCreated(ctx, "contact")
	}
	payload.Assignee = &resolve.Candidate{
		ID:    contact.ID,
		Kind:  resolve.TargetContact,
		Name:  contact.Name,
		Score: 1,
		Match: resolve.MatchExact,
	}
	return p.completeWorkOrder(ctx, sess, payload)
}
