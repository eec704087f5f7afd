package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/session"
)

// selectCustomID identifies the disambiguation select menu.
const selectCustomID = "capture_select"

// captureCommands are the three dictation entry points.
var captureCommands = []struct {
	name        string
	description string
	kind        session.Kind
}{
	{"falla", "Dictar un reporte de falla de máquina", session.KindFailure},
	{"orden", "Dictar una orden de trabajo", session.KindWorkOrder},
	{"tarea", "Dictar una tarea o recordatorio", session.KindTask},
}

func (b *Bot) registerCaptureCommands() {
	for _, c := range captureCommands {
		kind := c.kind
		cmd := &discordgo.ApplicationCommand{
			Name:        c.name,
			Description: c.description,
		}
		b.router.RegisterCommand(c.name, cmd, func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			b.startCapture(s, i, kind)
		})
	}
}

// startCapture opens a capture conversation for the invoking user.
func (b *Bot) startCapture(s *discordgo.Session, i *discordgo.InteractionCreate, kind session.Kind) {
	if !b.perms.CanCapture(i) {
		RespondEphemeral(s, i, "No tenés permiso para cargar dictados.")
		return
	}
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "No pude identificar al autor del comando.")
		return
	}

	err := b.pipeline.StartCapture(context.Background(), user.ID, i.ChannelID, displayName(i.Member, user), kind)
	if err != nil {
		slog.Error("start capture", "command", kind, "user", user.ID, "err", err)
		RespondEphemeral(s, i, "No pude abrir la conversación, probá de nuevo.")
		return
	}
	RespondEphemeral(s, i, "Te escucho en este canal.")
}

// handleCaptureSelect forwards a disambiguation menu selection to the
// pipeline.
func (b *Bot) handleCaptureSelect(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if user == nil {
		AckComponent(s, i)
		return
	}
	AckComponent(s, i)

	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	handled, err := b.pipeline.HandleSelection(context.Background(), user.ID, i.ChannelID, values[0])
	if err != nil {
		slog.Error("handle selection", "user", user.ID, "err", err)
		return
	}
	if !handled {
		slog.Debug("selection for a closed conversation", "user", user.ID)
	}
}

// interactionUser extracts the invoking user from a guild or DM interaction.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// displayName prefers the guild nickname, then the global display name.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
