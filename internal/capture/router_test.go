package capture

import (
	"context"
	"fmt"
	"testing"

	"github.com/tomasrey88/plantavoz/internal/session"
	"github.com/tomasrey88/plantavoz/internal/store"
)

func TestRouteSystemUserCreatesTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = `{"title":"Cambiar la correa","description":"La del compresor chico","assignee":"Mariano Russo","due_date":"2026-09-04","priority":"alta","group":""}`

	h.start(t, session.KindTask)
	h.text(t, "cambiar la correa del compresor chico, que lo haga Mariano")

	if len(h.records.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(h.records.Tasks))
	}
	task := h.records.Tasks[0]
	if task.AssigneeID != 7 {
		t.Fatalf("AssigneeID = %d, want 7", task.AssigneeID)
	}
	if task.Title != "Cambiar la correa" {
		t.Fatalf("Title = %q", task.Title)
	}
	if task.DueAt == nil || task.DueAt.Format("2006-01-02") != "2026-09-04" {
		t.Fatalf("DueAt = %v, want 2026-09-04", task.DueAt)
	}
	if task.CreatedBy != "Paula" {
		t.Fatalf("CreatedBy = %q, want Paula", task.CreatedBy)
	}
	if len(h.records.Reminders) != 0 {
		t.Fatal("no reminder should be created for a system user")
	}

	if h.notif.count() != 1 {
		t.Fatalf("notifications = %d, want 1", h.notif.count())
	}
	call := h.notif.calls[0]
	if call.AssigneeDiscordID != "D7" || call.Title != "Cambiar la correa" {
		t.Fatalf("notification = %+v", call)
	}

	want := fmt.Sprintf(msgTaskCreated, "Cambiar la correa", "Mariano Russo")
	if got := h.resp.last(t).Text; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	if _, ok := h.sessions.Get("U1"); ok {
		t.Fatal("session should close after routing")
	}
}

func TestRouteContactCreatesReminder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Llamar por el presupuesto", "Carlos Gomez")

	h.start(t, session.KindTask)
	h.text(t, "acordate de llamar a Carlos Gomez por el presupuesto")

	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
	reminder := h.records.Reminders[0]
	if reminder.ContactID == nil || *reminder.ContactID != 3 {
		t.Fatalf("ContactID = %v, want 3", reminder.ContactID)
	}
	if len(h.records.Tasks) != 0 {
		t.Fatal("no task should be created for an external contact")
	}
	if h.notif.count() != 0 {
		t.Fatalf("notifications = %d, want 0 for a contact", h.notif.count())
	}
}

func TestRouteWithoutAssigneeCreatesReminder(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Comprar guantes nuevos", "")

	h.start(t, session.KindTask)
	h.text(t, "hay que comprar guantes nuevos para el taller")

	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
	reminder := h.records.Reminders[0]
	if reminder.ContactID != nil {
		t.Fatalf("ContactID = %v, want none", reminder.ContactID)
	}
	if reminder.AssigneeLabel != "" {
		t.Fatalf("AssigneeLabel = %q, want empty", reminder.AssigneeLabel)
	}
}

func TestRouteUnknownAssigneeDeclined(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Pedir presupuesto", "Roberto Paz")

	h.start(t, session.KindTask)
	h.text(t, "pedirle un presupuesto a Roberto Paz")

	want := fmt.Sprintf(msgPersonUnknown, "Roberto Paz")
	if got := h.resp.last(t).Text; got != want {
		t.Fatalf("reply = %q, want %q", got, want)
	}
	if got := h.state(t); got != session.StateAwaitingNewEntityName {
		t.Fatalf("state = %v, want awaiting entity name", got)
	}

	h.text(t, "nadie")

	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
	reminder := h.records.Reminders[0]
	if reminder.ContactID != nil || reminder.AssigneeLabel != "" {
		t.Fatalf("reminder = %+v, want unassigned", reminder)
	}
	if len(h.records.Contacts) != 1 {
		t.Fatal("declining must not register a contact")
	}
}

func TestRouteUnknownAssigneeRegistered(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Pedir presupuesto", "Roberto Paz")

	h.start(t, session.KindTask)
	h.text(t, "pedirle un presupuesto a Roberto Paz")
	h.text(t, "registrar")

	if len(h.records.Contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(h.records.Contacts))
	}
	created := h.records.Contacts[1]
	if created.Name != "Roberto Paz" {
		t.Fatalf("contact name = %q, want Roberto Paz", created.Name)
	}

	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
	reminder := h.records.Reminders[0]
	if reminder.ContactID == nil || *reminder.ContactID != created.ID {
		t.Fatalf("ContactID = %v, want %d", reminder.ContactID, created.ID)
	}
	if h.notif.count() != 0 {
		t.Fatalf("notifications = %d, want 0", h.notif.count())
	}
}

func TestRouteRetypedAssigneeResolves(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Pedir presupuesto", "Roberto Paz")

	h.start(t, session.KindTask)
	h.text(t, "pedirle un presupuesto a Roberto Paz")

	// The user corrects the name instead of registering.
	h.text(t, "Carlos Gomez")

	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
	if got := h.records.Reminders[0].ContactID; got == nil || *got != 3 {
		t.Fatalf("ContactID = %v, want 3", got)
	}
	// No extra contact was registered along the way.
	if len(h.records.Contacts) != 1 {
		t.Fatalf("contacts = %d, want 1", len(h.records.Contacts))
	}
}

func TestRouteRetypedAmbiguousOffersMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.records.PersonList = append(h.records.PersonList, store.Person{
		ID: 9, Name: "Mariano Pérez", Kind: store.PersonSystem, DiscordID: "D9",
	})
	h.llm.Content = extraction("Pedir presupuesto", "Roberto Paz")

	h.start(t, session.KindTask)
	h.text(t, "pedirle un presupuesto a Roberto Paz")

	// The corrected name matches two people: back to a selection menu.
	h.text(t, "mariano")

	reply := h.resp.last(t)
	if reply.Text != msgPickPerson {
		t.Fatalf("reply = %q, want person menu", reply.Text)
	}
	if len(reply.Choices) != 2 {
		t.Fatalf("choices = %d, want 2", len(reply.Choices))
	}
	if got := h.state(t); got != session.StateAwaitingDisambiguation {
		t.Fatalf("state = %v, want disambiguation", got)
	}

	if _, err := h.p.HandleSelection(context.Background(), "U1", "C1", "user:7"); err != nil {
		t.Fatalf("HandleSelection: %v", err)
	}
	if len(h.records.Tasks) != 1 || h.records.Tasks[0].AssigneeID != 7 {
		t.Fatalf("tasks = %+v, want one assigned to person 7", h.records.Tasks)
	}
}

func TestRouteRetypedUnknownAutoRegisters(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.llm.Content = extraction("Pedir presupuesto", "Roberto Paz")

	h.start(t, session.KindTask)
	h.text(t, "pedirle un presupuesto a Roberto Paz")

	// A second unknown name is taken at face value and saved as a contact.
	h.text(t, "Pedro Suarez")

	if len(h.records.Contacts) != 2 {
		t.Fatalf("contacts = %d, want 2", len(h.records.Contacts))
	}
	if got := h.records.Contacts[1].Name; got != "Pedro Suarez" {
		t.Fatalf("contact name = %q, want Pedro Suarez", got)
	}
	if len(h.records.Reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(h.records.Reminders))
	}
}
