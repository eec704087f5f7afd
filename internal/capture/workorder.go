package capture

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/extract"
	"github.com/tomasrey88/plantavoz/internal/notify"
	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
)

// continueWorkOrder runs the work-order flow: the machine reference is
// optional, the assignee is resolved from the extracted fields.
func (p *Pipeline) continueWorkOrder(ctx context.Context, sess session.Session, transcript string, fields extract.Fields) error {
	payload := session.WorkOrderPayload{Transcript: transcript, Fields: fields}

	cands, best, decision, err := p.resolveMachine(ctx, transcript, transcript)
	if err != nil {
		return err
	}
	switch decision {
	case resolve.DecisionAccept:
		payload.Machine = &best
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
		// A work order without a machine reference is legal.
	}

	return p.advanceWorkOrder(ctx, sess, payload)
}

// advanceWorkOrder resolves the assignee once the machine question is
// settled, then completes.
func (p *Pipeline) advanceWorkOrder(ctx context.Context, sess session.Session, payload session.WorkOrderPayload) error {
	if payload.Fields.Assignee == "" || payload.Assignee != nil {
		return p.completeWorkOrder(ctx, sess, payload)
	}

	cands, best, decision, err := p.resolvePerson(ctx, payload.Fields.Assignee, payload.Transcript)
	if err != nil {
		return err
	}
	switch decision {
	case resolve.DecisionAccept:
		payload.Assignee = &best
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
		p.sessions.Update(sess.UserKey, func(s *session.Session) {
			s.State = session.StateAwaitingNewEntityName
			s.Payload = payload
		})
		return p.reply(ctx, sess.ChannelID, Reply{
			Text: fmt.Sprintf(msgPersonUnknown, payload.Fields.Assignee),
		})
	}
}

// completeWorkOrder persists the order, notifies a system-user assignee, and
// closes the conversation.
func (p *Pipeline) completeWorkOrder(ctx context.Context, sess session.Session, payload session.WorkOrderPayload) error {
	order := store.WorkOrder{
		Title:       payload.Fields.Title,
		Description: payload.Fields.Description,
		DueAt:       payload.Fields.DueAt,
		Priority:    payload.Fields.Priority,
		CreatedBy:   sess.AuthorName,
	}
	if payload.Machine != nil {
		order.MachineID = &payload.Machine.ID
	}

	var assignee *store.Person
	if payload.Assignee != nil {
		person, err := p.personFor(ctx, *payload.Assignee)
		if err != nil {
			return err
		}
		assignee = &person
		order.AssigneeID = &person.ID
	}

	if _, err := p.records.CreateWorkOrder(ctx, order); err != nil {
		return fmt.Errorf("capture: create work order: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCreated(ctx, "work_order")
	}

	p.notifySystemUser(ctx, sess, assignee, payload.Fields)

	p.endSession(sess.UserKey)
	return p.reply(ctx, sess.ChannelID, Reply{
		Text: fmt.Sprintf(msgWorkOrderCreated, payload.Fields.Title),
	})
}

// notifySystemUser DMs an assignment to a system user, skipping contacts and
// self-assignments. Delivery failures only log.
func (p *Pipeline) notifySystemUser(ctx context.Context, sess session.Session, assignee *store.Person, fields extract.Fields) {
	if assignee == nil || assignee.Kind == store.PersonContact || assignee.DiscordID == "" {
		return
	}
	if assignee.DiscordID == sess.UserKey {
		return
	}
	err := p.notifier.NotifyAssignment(ctx, notify.Assignment{
		AssigneeDiscordID: assignee.DiscordID,
		Title:             fields.Title,
		Description:       fields.Description,
		Priority:          fields.Priority,
		DueAt:             fields.DueAt,
		AuthorName:        sess.AuthorName,
	})
	if err != nil {
		p.log.Warn("assignment notification failed", "assignee", assignee.Name, "error", err)
	}
}
