package discord

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/capture"
)

// handleMessage feeds plain messages and voice-note attachments into the
// pipeline. Messages from users without an open conversation are ignored.
func (b *Bot) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	ctx := context.Background()

	if att := voiceAttachment(m); att != nil {
		handled, err := b.pipeline.HandleAudio(ctx, capture.AudioInput{
			UserKey:    m.Author.ID,
			ChannelID:  m.ChannelID,
			AuthorName: messageAuthorName(m),
			URL:        att.URL,
			MimeType:   att.ContentType,
		})
		if err != nil {
			slog.Error("handle audio message", "user", m.Author.ID, "err", err)
		}
		if handled {
			return
		}
	}

	if strings.TrimSpace(m.Content) == "" {
		return
	}
	if _, err := b.pipeline.HandleText(ctx, capture.Input{
		UserKey:    m.Author.ID,
		ChannelID:  m.ChannelID,
		AuthorName: messageAuthorName(m),
		Text:       m.Content,
	}); err != nil {
		slog.Error("handle text message", "user", m.Author.ID, "err", err)
	}
}

// voiceAttachment returns the first audio attachment on the message, if any.
func voiceAttachment(m *discordgo.MessageCreate) *discordgo.MessageAttachment {
	for _, att := range m.Attachments {
		if strings.HasPrefix(att.ContentType, "audio/") {
			return att
		}
	}
	return nil
}

func messageAuthorName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
