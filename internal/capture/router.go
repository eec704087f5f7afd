package capture

import (
	"context"
	"fmt"

	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
)

// route is the record-type decision for task captures:
//
//   - assignee is a system user: create a Task, notify the assignee unless
//     they dictated it themselves;
//   - assignee is an external contact, or nobody was resolved or named:
//     create an agenda Reminder with no notification.
//
// assignee may be nil. The session is closed on success.
func (p *Pipeline) route(ctx context.Context, sess session.Session, payload session.TaskPayload, assignee *store.Person) error {
	fields := payload.Fields

	if assignee != nil && assignee.Kind == store.PersonSystem {
		task := store.Task{
			Title:       fields.Title,
			Description: fields.Description,
			AssigneeID:  assignee.ID,
			DueAt:       fields.DueAt,
			Priority:    fields.Priority,
			Status:      "open",
			CreatedBy:   sess.AuthorName,
		}
		if _, err := p.records.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("capture: create task: %w", err)
		}
		if p.metrics != nil {
			p.metrics.RecordCreated(ctx, "task")
		}

		p.notifySystemUser(ctx, sess, assignee, fields)

		p.endSession(sess.UserKey)
		return p.reply(ctx, sess.ChannelID, Reply{
			Text: fmt.Sprintf(msgTaskCreated, fields.Title, assignee.Name),
		})
	}

	reminder := store.Reminder{
		Title:       fields.Title,
		Description: fields.Description,
		DueAt:       fields.DueAt,
		Priority:    fields.Priority,
		CreatedBy:   sess.AuthorName,
	}
	if assignee != nil {
		reminder.ContactID = &assignee.ID
	} else if !payload.AssigneeDeclined {
		reminder.AssigneeLabel = fields.Assignee
	}

	if _, err := p.records.CreateReminder(ctx, reminder); err != nil {
		return fmt.Errorf("capture: create reminder: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCreated(ctx, "reminder")
	}

	p.endSession(sess.UserKey)
	return p.reply(ctx, sess.ChannelID, Reply{
		Text: fmt.Sprintf(msgReminderCreated, fields.Title),
	})
}

// registerContactAndRoute creates a lightweight contact for an assignee name
// the registry does not know, then routes the capture as a reminder linked
// to it.
func (p *Pipeline) registerContactAndRoute(ctx context.Context, sess session.Session, payload session.TaskPayload, name string) error {
	contact, err := p.records.CreateContact(ctx, store.Contact{Name: name})
	if err != nil {
		return fmt.Errorf("capture: register contact: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordCreated(ctx, "contact")
	}
	person := store.Person{ID: contact.ID, Name: contact.Name, Kind: store.PersonContact}
	return p.route(ctx, sess, payload, &person)
}
