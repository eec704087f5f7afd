package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/queue"
)

// embedColorGreen is the embed sidebar color for a healthy service.
const embedColorGreen = 0x2ECC71

// embedColorOrange is the embed sidebar color when work is backed up.
const embedColorOrange = 0xE67E22

// StatusSource provides the operational snapshot rendered by /estado.
type StatusSource interface {
	QueueStatus() queue.Status
	ActiveSessions() int
}

// SetStatusSource wires the /estado command's data source. The source comes
// from the application after the queue exists, which is after bot creation.
func (b *Bot) SetStatusSource(src StatusSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = src
}

func (b *Bot) registerStatusCommand() {
	cmd := &discordgo.ApplicationCommand{
		Name:        "estado",
		Description: "Ver el estado del servicio de dictados",
	}
	b.router.RegisterCommand("estado", cmd, b.handleStatus)
}

// handleStatus answers /estado with an ephemeral service snapshot.
func (b *Bot) handleStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.mu.RLock()
	src := b.status
	b.mu.RUnlock()

	if src == nil {
		RespondEphemeral(s, i, "El estado no está disponible todavía.")
		return
	}
	RespondEphemeralEmbed(s, i, statusEmbed(src.QueueStatus(), src.ActiveSessions()))
}

// statusEmbed renders a queue snapshot and session count as an embed.
func statusEmbed(st queue.Status, sessions int) *discordgo.MessageEmbed {
	color := embedColorGreen
	if st.QueueLength > 0 {
		color = embedColorOrange
	}

	processing := "no"
	if st.Processing {
		processing = "sí"
	}

	return &discordgo.MessageEmbed{
		Title: "Plantavoz — estado del servicio",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Audios en cola", Value: fmt.Sprintf("%d", st.QueueLength), Inline: true},
			{Name: "Procesando", Value: processing, Inline: true},
			{Name: "Espera estimada", Value: formatWait(st.PerItemWait, st.QueueLength), Inline: true},
			{Name: "Conversaciones activas", Value: fmt.Sprintf("%d", sessions), Inline: true},
		},
	}
}

// formatWait estimates the wall-clock wait for a newly enqueued audio.
func formatWait(perItem time.Duration, depth int) string {
	if depth == 0 {
		return "sin espera"
	}
	total := perItem * time.Duration(depth)
	return total.Round(time.Second).String()
}
