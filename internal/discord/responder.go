package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/capture"
)

// messageSender is the slice of the discordgo session used to deliver
// pipeline replies.
type messageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Compile-time interface checks.
var (
	_ messageSender     = (*discordgo.Session)(nil)
	_ capture.Responder = (*Responder)(nil)
)

// Responder renders pipeline replies as Discord messages. Clarification
// choices become a select menu.
type Responder struct {
	session messageSender
}

// NewResponder returns a Responder sending through s.
func NewResponder(s *discordgo.Session) *Responder {
	return &Responder{session: s}
}

// Send implements [capture.Responder].
func (r *Responder) Send(_ context.Context, channelID string, reply capture.Reply) error {
	msg := &discordgo.MessageSend{Content: reply.Text}

	if len(reply.Choices) > 0 {
		options := make([]discordgo.SelectMenuOption, 0, len(reply.Choices))
		for _, c := range reply.Choices {
			options = append(options, discordgo.SelectMenuOption{
				Label: c.Label,
				Value: c.ID,
			})
		}
		msg.Components = []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.SelectMenu{
						CustomID:    selectCustomID,
						Placeholder: "Elegí una opción",
						Options:     options,
					},
				},
			},
		}
	}

	if _, err := r.session.ChannelMessageSendComplex(channelID, msg); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}
