// Package notify delivers assignment notifications to system users. Delivery
// is best-effort: a failed notification is logged by the caller and never
// blocks record creation.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/store"
)

// Assignment describes a task assignment worth telling the assignee about.
type Assignment struct {
	// AssigneeDiscordID is the Discord user to DM.
	AssigneeDiscordID string

	Title       string
	Description string
	Priority    store.Priority
	DueAt       *time.Time

	// AuthorName is the display name of whoever dictated the task.
	AuthorName string
}

// Dispatcher sends assignment notifications.
type Dispatcher interface {
	NotifyAssignment(ctx context.Context, a Assignment) error
}

// dmSession is the slice of the discordgo session used for direct messages.
type dmSession interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Compile-time interface checks.
var (
	_ Dispatcher = (*DiscordDispatcher)(nil)
	_ Dispatcher = Null{}
	_ dmSession  = (*discordgo.Session)(nil)
)

// DiscordDispatcher delivers assignments as direct-message embeds.
type DiscordDispatcher struct {
	session dmSession
}

// NewDiscord returns a Dispatcher that DMs assignees through session.
func NewDiscord(session dmSession) *DiscordDispatcher {
	return &DiscordDispatcher{session: session}
}

// NotifyAssignment opens a DM channel with the assignee and sends the
// assignment as an embed.
func (d *DiscordDispatcher) NotifyAssignment(_ context.Context, a Assignment) error {
	ch, err := d.session.UserChannelCreate(a.AssigneeDiscordID)
	if err != nil {
		return fmt.Errorf("notify: open dm channel: %w", err)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Prioridad", Value: a.Priority.String(), Inline: true},
	}
	if a.DueAt != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Vence",
			Value:  a.DueAt.Format("02/01/2006 15:04"),
			Inline: true,
		})
	}
	if a.AuthorName != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Asignada por",
			Value:  a.AuthorName,
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Nueva tarea asignada: " + a.Title,
		Description: a.Description,
		Color:       0xE67E22,
		Fields:      fields,
	}
	if _, err := d.session.ChannelMessageSendEmbed(ch.ID, embed); err != nil {
		return fmt.Errorf("notify: send dm: %w", err)
	}
	return nil
}

// Null is a Dispatcher that drops every notification. Used when the bot runs
// without notification permissions.
type Null struct{}

// NotifyAssignment implements Dispatcher.
func (Null) NotifyAssignment(context.Context, Assignment) error { return nil }
