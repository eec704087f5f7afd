package discord

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	discordmock "github.com/tomasrey88/plantavoz/internal/discord/mock"
	"github.com/tomasrey88/plantavoz/internal/queue"
)

func TestStatusEmbed(t *testing.T) {
	t.Parallel()

	embed := statusEmbed(queue.Status{
		QueueLength: 2,
		Processing:  true,
		PerItemWait: 10 * time.Second,
	}, 3)

	if embed.Color != embedColorOrange {
		t.Errorf("color = %#x, want orange for a backed-up queue", embed.Color)
	}
	if len(embed.Fields) != 4 {
		t.Fatalf("fields = %d, want 4", len(embed.Fields))
	}
	if embed.Fields[0].Value != "2" {
		t.Errorf("queue length field = %q, want %q", embed.Fields[0].Value, "2")
	}
	if embed.Fields[1].Value != "sí" {
		t.Errorf("processing field = %q, want %q", embed.Fields[1].Value, "sí")
	}
	if embed.Fields[2].Value != "20s" {
		t.Errorf("wait field = %q, want %q", embed.Fields[2].Value, "20s")
	}
	if embed.Fields[3].Value != "3" {
		t.Errorf("sessions field = %q, want %q", embed.Fields[3].Value, "3")
	}
}

func TestStatusEmbedIdle(t *testing.T) {
	t.Parallel()

	embed := statusEmbed(queue.Status{PerItemWait: 5 * time.Second}, 0)
	if embed.Color != embedColorGreen {
		t.Errorf("color = %#x, want green for an idle queue", embed.Color)
	}
	if embed.Fields[2].Value != "sin espera" {
		t.Errorf("wait field = %q, want %q", embed.Fields[2].Value, "sin espera")
	}
}

func TestRespondEphemeral(t *testing.T) {
	t.Parallel()

	responder := &discordmock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	RespondEphemeral(responder, i, "hola")

	resp := responder.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if resp.Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Errorf("type = %v, want channel message", resp.Type)
	}
	if resp.Data.Content != "hola" {
		t.Errorf("content = %q, want %q", resp.Data.Content, "hola")
	}
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("response is not ephemeral")
	}
}

func TestRespondEphemeralEmbed(t *testing.T) {
	t.Parallel()

	responder := &discordmock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	RespondEphemeralEmbed(responder, i, statusEmbed(queue.Status{}, 0))

	resp := responder.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if len(resp.Data.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(resp.Data.Embeds))
	}
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("response is not ephemeral")
	}
}

func TestAckComponent(t *testing.T) {
	t.Parallel()

	responder := &discordmock.InteractionResponder{}
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}

	AckComponent(responder, i)

	resp := responder.LastResponse()
	if resp == nil {
		t.Fatal("no response recorded")
	}
	if resp.Type != discordgo.InteractionResponseDeferredMessageUpdate {
		t.Errorf("type = %v, want deferred message update", resp.Type)
	}
}
