// Package discord provides the Discord transport for Plantavoz. It owns
// the discordgo.Session lifecycle, registers the capture slash commands,
// feeds messages and voice notes into the capture pipeline, and renders
// clarification menus as select components.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasrey88/plantavoz/internal/capture"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token (e.g., "Bot MTIz...").
	Token string `yaml:"token"`

	// GuildID is the target guild (single-guild deployment).
	GuildID string `yaml:"guild_id"`

	// CaptureRoleID optionally restricts capture commands to members holding
	// this role. Empty allows every guild member.
	CaptureRoleID string `yaml:"capture_role_id"`
}

// Bot owns the Discord gateway connection and routes interactions and
// messages into the capture pipeline.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	perms     *PermissionChecker
	pipeline  *capture.Pipeline
	status    StatusSource
	guildID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction and
// message handlers.
func New(_ context.Context, cfg Config, pipeline *capture.Pipeline) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session:  session,
		router:   NewCommandRouter(),
		perms:    NewPermissionChecker(cfg.CaptureRoleID),
		pipeline: pipeline,
		guildID:  cfg.GuildID,
	}

	b.registerCaptureCommands()
	b.registerStatusCommand()
	b.router.RegisterComponentPrefix(selectCustomID, b.handleCaptureSelect)

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m)
	})

	return b, nil
}

// Session returns the underlying discordgo session. Used by subsystems that
// need direct Discord API access (e.g., assignment DMs).
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Responder returns a [capture.Responder] that sends through this bot's
// session.
func (b *Bot) Responder() capture.Responder {
	return NewResponder(b.Session())
}

// Run registers slash commands with the Discord API and blocks until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}
