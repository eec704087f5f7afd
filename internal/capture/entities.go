package capture

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tomasrey88/plantavoz/internal/resolve"
	"github.com/tomasrey88/plantavoz/internal/store"
)

// machineEntities flattens machine records for the resolver. The machine
// code joins the alias list so shorthand like "CNC-05" matches.
func machineEntities(machines []store.Machine) []resolve.Entity {
	entities := make([]resolve.Entity, 0, len(machines))
	for _, m := range machines {
		aliases := m.Aliases
		if m.Code != "" {
			aliases = append(append([]string(nil), m.Aliases...), m.Code)
		}
		entities = append(entities, resolve.Entity{
			ID:      m.ID,
			Kind:    resolve.TargetMachine,
			Name:    m.Name,
			Aliases: aliases,
			Group:   m.Group,
		})
	}
	return entities
}

// personEntities flattens person records, mapping their ERP kind onto the
// resolver's target kinds.
func personEntities(people []store.Person) []resolve.Entity {
	entities := make([]resolve.Entity, 0, len(people))
	for _, person := range people {
		kind := resolve.TargetUser
		if person.Kind == store.PersonContact {
			kind = resolve.TargetContact
		}
		entities = append(entities, resolve.Entity{
			ID:       person.ID,
			Kind:     kind,
			Name:     person.Name,
			Nickname: person.Nickname,
			Aliases:  person.Aliases,
			Group:    person.Group,
		})
	}
	return entities
}

// resolveMachine ranks machines against query and applies the single-best
// rule. contextText is the full utterance, for the group boost.
func (p *Pipeline) resolveMachine(ctx context.Context, query, contextText string) ([]resolve.Candidate, resolve.Candidate, resolve.Decision, error) {
	machines, err := p.records.Machines(ctx)
	if err != nil {
		return nil, resolve.Candidate{}, resolve.DecisionNone, fmt.Errorf("capture: list machines: %w", err)
	}
	cands := p.machines.Resolve(query, machineEntities(machines), contextText)
	best, decision := p.machines.Best(cands)
	if p.metrics != nil {
		p.metrics.RecordResolution(ctx, "machine", decisionLabel(decision))
	}
	return cands, best, decision, nil
}

// resolvePerson ranks people against query and applies the single-best rule.
func (p *Pipeline) resolvePerson(ctx context.Context, query, contextText string) ([]resolve.Candidate, resolve.Candidate, resolve.Decision, error) {
	people, err := p.records.People(ctx)
	if err != nil {
		return nil, resolve.Candidate{}, resolve.DecisionNone, fmt.Errorf("capture: list people: %w", err)
	}
	cands := p.people.Resolve(query, personEntities(people), contextText)
	best, decision := p.people.Best(cands)
	if p.metrics != nil {
		p.metrics.RecordResolution(ctx, "person", decisionLabel(decision))
	}
	return cands, best, decision, nil
}

// personFor fetches the person record behind a resolution candidate. IDs are
// unique per kind only: system users live in the people table, contacts in
// the contacts table.
func (p *Pipeline) personFor(ctx context.Context, cand resolve.Candidate) (store.Person, error) {
	people, err := p.records.People(ctx)
	if err != nil {
		return store.Person{}, fmt.Errorf("capture: list people: %w", err)
	}
	wantContact := cand.Kind == resolve.TargetContact
	for _, person := range people {
		if person.ID == cand.ID && (person.Kind == store.PersonContact) == wantContact {
			return person, nil
		}
	}
	return store.Person{}, fmt.Errorf("capture: person %d (%s) not found", cand.ID, cand.Kind)
}

func decisionLabel(d resolve.Decision) string {
	switch d {
	case resolve.DecisionAccept:
		return "accept"
	case resolve.DecisionAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// choicesFrom renders candidates as selectable options. Choice IDs encode
// the target kind and entity ID and round-trip through the transport.
func choicesFrom(cands []resolve.Candidate) []Choice {
	choices := make([]Choice, 0, len(cands))
	for _, c := range cands {
		choices = append(choices, Choice{
			ID:    fmt.Sprintf("%s:%d", c.Kind, c.ID),
			Label: c.Name,
		})
	}
	return capChoices(choices)
}

// candidateByChoice finds the stored candidate a selection refers to.
func candidateByChoice(cands []resolve.Candidate, choiceID string) (resolve.Candidate, bool) {
	kind, idPart, ok := strings.Cut(choiceID, ":")
	if !ok {
		return resolve.Candidate{}, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return resolve.Candidate{}, false
	}
	for _, c := range cands {
		if c.ID == id && string(c.Kind) == kind {
			return c, true
		}
	}
	return resolve.Candidate{}, false
}
