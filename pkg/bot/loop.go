// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package bot

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/dotsetgreg/hoshibot/pkg/bus"
	"github.com/dotsetgreg/hoshibot/pkg/chat"
	"github.com/dotsetgreg/hoshibot/pkg/logger"
	"github.com/dotsetgreg/hoshibot/pkg/playback"
	"github.com/google/uuid"
)

// Chatter is the conversational half of the bot.
type Chatter interface {
	Respond(ctx context.Context, message, identityID, displayName, username string) (string, bool)
	Initialized() bool
	Stats() chat.Stats
}

// MusicControl is the playback half of the bot.
type MusicControl interface {
	Play(ctx context.Context, guildID, textChannelID, query string) (string, error)
	Stop(guildID string) string
	Skip(guildID string) string
	ClearPending(guildID string) string
	SetPaused(guildID string, paused bool) (string, bool)
	Snapshot(guildID string) (playback.Track, bool, []playback.Track)
}

// VoiceControl manages voice channel membership.
type VoiceControl interface {
	Join(guildID, channelID string) error
	Leave(guildID string) error
	Connected(guildID string) bool
	SetVolume(pct int)
	Volume() int
}

// Bot routes inbound messages to commands, music control, or the chat
// pipeline. Each message is handled on its own goroutine; the
// orchestrators take care of their own synchronization.
type Bot struct {
	bus     *bus.MessageBus
	chat    Chatter
	music   MusicControl
	voice   VoiceControl
	prefix  string
	running atomic.Bool
}

func New(messageBus *bus.MessageBus, chatter Chatter, music MusicControl, voice VoiceControl, prefix string) *Bot {
	if prefix == "" {
		prefix = "!"
	}
	return &Bot{
		bus:    messageBus,
		chat:   chatter,
		music:  music,
		voice:  voice,
		prefix: prefix,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	b.running.Store(true)
	logger.InfoC("bot", "Dispatch loop started")

	for b.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := b.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}
			go b.handle(ctx, msg)
		}
	}

	return nil
}

func (b *Bot) Stop() {
	b.running.Store(false)
}

func (b *Bot) handle(ctx context.Context, msg bus.InboundMessage) {
	turnID := uuid.NewString()[:8]
	logger.DebugCF("bot", "Handling message", map[string]interface{}{
		"turn_id":   turnID,
		"sender_id": msg.SenderID,
		"guild_id":  msg.GuildID,
	})

	content := strings.TrimSpace(msg.Content)

	if strings.HasPrefix(content, b.prefix) {
		name, args := parseCommand(content, b.prefix)
		if reply := b.dispatchCommand(ctx, msg, name, args); reply != "" {
			b.reply(msg, reply)
		}
		return
	}

	// Bare mentions and DMs fall through to chat.
	if msg.Metadata["mentions_bot"] == "true" || msg.Metadata["is_dm"] == "true" {
		b.respondChat(ctx, msg, stripMentions(content))
	}
}

func (b *Bot) respondChat(ctx context.Context, msg bus.InboundMessage, message string) {
	if strings.TrimSpace(message) == "" {
		b.reply(msg, "Say something and I'll answer! Try `"+b.prefix+"chat hello`~")
		return
	}
	text, _ := b.chat.Respond(ctx, message, msg.SenderID, msg.DisplayName, msg.Username)
	b.reply(msg, text)
}

func (b *Bot) reply(msg bus.InboundMessage, content string) {
	if content == "" {
		return
	}
	b.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
	})
}

// parseCommand splits "!play never gonna give you up" into ("play",
// "never gonna give you up").
func parseCommand(content, prefix string) (string, string) {
	content = strings.TrimPrefix(content, prefix)
	parts := strings.SplitN(content, " ", 2)
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}
	return name, args
}

// stripMentions removes <@id> tokens so a bare mention reads as the
// plain message.
func stripMentions(content string) string {
	var sb strings.Builder
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "<@") && strings.HasSuffix(field, ">") {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(field)
	}
	return sb.String()
}
