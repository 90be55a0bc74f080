package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dotsetgreg/hoshibot/pkg/bus"
)

func (b *Bot) dispatchCommand(ctx context.Context, msg bus.InboundMessage, name, args string) string {
	switch name {
	case "chat", "c", "talk":
		b.respondChat(ctx, msg, args)
		return ""
	case "aistats":
		return b.formatStats()
	case "join":
		return b.cmdJoin(msg)
	case "play", "p":
		return b.cmdPlay(ctx, msg, args)
	case "pause":
		return b.cmdPause(msg, true)
	case "resume":
		return b.cmdPause(msg, false)
	case "stop":
		return b.requireGuild(msg, func() string { return b.music.Stop(msg.GuildID) })
	case "skip", "s":
		return b.requireGuild(msg, func() string { return b.music.Skip(msg.GuildID) })
	case "queue", "q":
		return b.requireGuild(msg, func() string { return b.formatQueue(msg.GuildID) })
	case "clear":
		return b.requireGuild(msg, func() string { return b.music.ClearPending(msg.GuildID) })
	case "leave", "disconnect":
		return b.cmdLeave(msg)
	case "volume", "vol":
		return b.cmdVolume(msg, args)
	case "help":
		return b.helpText()
	default:
		return fmt.Sprintf("I don't know `%s%s`. Try `%shelp`, or just `%schat` with me!", b.prefix, name, b.prefix, b.prefix)
	}
}

func (b *Bot) requireGuild(msg bus.InboundMessage, fn func() string) string {
	if msg.GuildID == "" {
		return "Music only works in a server, not in DMs!"
	}
	return fn()
}

func (b *Bot) cmdJoin(msg bus.InboundMessage) string {
	return b.requireGuild(msg, func() string {
		voiceChannel := msg.Metadata["voice_channel_id"]
		if voiceChannel == "" {
			return "You need to be in a voice channel first!"
		}
		if err := b.voice.Join(msg.GuildID, voiceChannel); err != nil {
			return fmt.Sprintf("Couldn't join your voice channel: %v", err)
		}
		return "Joined your voice channel!"
	})
}

func (b *Bot) cmdLeave(msg bus.InboundMessage) string {
	return b.requireGuild(msg, func() string {
		if !b.voice.Connected(msg.GuildID) {
			return "I'm not in a voice channel!"
		}
		b.music.Stop(msg.GuildID)
		if err := b.voice.Leave(msg.GuildID); err != nil {
			return fmt.Sprintf("Couldn't leave cleanly: %v", err)
		}
		return "Left the voice channel. See you~"
	})
}

func (b *Bot) cmdPlay(ctx context.Context, msg bus.InboundMessage, query string) string {
	return b.requireGuild(msg, func() string {
		if strings.TrimSpace(query) == "" {
			return "Tell me what to play! Like `" + b.prefix + "play lo-fi beats`"
		}

		if !b.voice.Connected(msg.GuildID) {
			voiceChannel := msg.Metadata["voice_channel_id"]
			if voiceChannel == "" {
				return "Join a voice channel first, then ask me again!"
			}
			if err := b.voice.Join(msg.GuildID, voiceChannel); err != nil {
				return fmt.Sprintf("Couldn't join your voice channel: %v", err)
			}
		}

		reply, err := b.music.Play(ctx, msg.GuildID, msg.ChatID, query)
		if err != nil {
			return fmt.Sprintf("Couldn't find or play that one: %v", err)
		}
		return reply
	})
}

func (b *Bot) cmdPause(msg bus.InboundMessage, paused bool) string {
	return b.requireGuild(msg, func() string {
		reply, _ := b.music.SetPaused(msg.GuildID, paused)
		return reply
	})
}

func (b *Bot) cmdVolume(msg bus.InboundMessage, args string) string {
	return b.requireGuild(msg, func() string {
		if strings.TrimSpace(args) == "" {
			return fmt.Sprintf("Volume is at %d%%.", b.voice.Volume())
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(args), "%"))
		if err != nil || pct < 0 || pct > 200 {
			return "Give me a volume between 0 and 200, like `" + b.prefix + "volume 50`"
		}
		b.voice.SetVolume(pct)
		return fmt.Sprintf("Volume set to %d%%. Applies from the next track!", pct)
	})
}

func (b *Bot) formatQueue(guildID string) string {
	current, playing, pending := b.music.Snapshot(guildID)
	if !playing && len(pending) == 0 {
		return "The queue is empty! Add something with `" + b.prefix + "play`"
	}

	var sb strings.Builder
	if playing {
		fmt.Fprintf(&sb, "Now playing: **%s**\n", current.Title)
	}
	if len(pending) > 0 {
		sb.WriteString("Up next:\n")
		for i, track := range pending {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, track.Title)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) formatStats() string {
	stats := b.chat.Stats()
	status := "ready"
	if !stats.Initialized {
		status = "offline (no API key)"
	}
	return fmt.Sprintf(
		"**Chat stats**\nStatus: %s\nConversations: %d\nTotal exchanges: %d\nKnown profiles: %d",
		status, stats.ActiveIdentities, stats.TotalExchanges, stats.KnownProfiles,
	)
}

func (b *Bot) helpText() string {
	p := b.prefix
	return strings.Join([]string{
		"**Chat**",
		fmt.Sprintf("`%schat <message>` (or `%sc`, `%stalk`) talk with me", p, p, p),
		fmt.Sprintf("`%saistats` conversation stats", p),
		"",
		"**Music**",
		fmt.Sprintf("`%sjoin` pull me into your voice channel", p),
		fmt.Sprintf("`%splay <song or URL>` play or queue a track", p),
		fmt.Sprintf("`%spause` / `%sresume` pause or resume", p, p),
		fmt.Sprintf("`%sskip` next track", p),
		fmt.Sprintf("`%sstop` stop and clear the queue", p),
		fmt.Sprintf("`%squeue` show what's queued", p),
		fmt.Sprintf("`%sclear` drop the queued tracks", p),
		fmt.Sprintf("`%svolume <0-200>` set volume", p),
		fmt.Sprintf("`%sleave` disconnect me from voice", p),
		"",
		"You can also just mention me or DM me to chat~",
	}, "\n")
}
