package capture

import "context"

// MaxChoices caps the options offered in a disambiguation reply. Discord
// select menus allow at most 25 options; resolution results beyond the cap
// are dropped, lowest score first.
const MaxChoices = 25

// Choice is one selectable option in a clarification reply.
type Choice struct {
	// ID round-trips through the transport and comes back via
	// HandleSelection.
	ID string

	Label string
}

// Reply is an outbound conversational message. Text is always set; Choices
// are present only for clarification requests.
type Reply struct {
	Text    string
	Choices []Choice
}

// Responder delivers replies to the user's channel. The Discord layer
// implements it; tests use a recording fake.
type Responder interface {
	Send(ctx context.Context, channelID string, r Reply) error
}

// capChoices truncates choices to MaxChoices.
func capChoices(choices []Choice) []Choice {
	if len(choices) <= MaxChoices {
		return choices
	}
	return choices[:MaxChoices]
}
