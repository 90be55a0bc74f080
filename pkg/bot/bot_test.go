package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dotsetgreg/hoshibot/pkg/bus"
	"github.com/dotsetgreg/hoshibot/pkg/chat"
	"github.com/dotsetgreg/hoshibot/pkg/playback"
)

type fakeChatter struct {
	lastMessage  string
	lastIdentity string
	response     string
}

func (f *fakeChatter) Respond(ctx context.Context, message, identityID, displayName, username string) (string, bool) {
	f.lastMessage = message
	f.lastIdentity = identityID
	if f.response == "" {
		return "hi there!", true
	}
	return f.response, true
}

func (f *fakeChatter) Initialized() bool { return true }

func (f *fakeChatter) Stats() chat.Stats {
	return chat.Stats{Initialized: true, TotalExchanges: 7, ActiveIdentities: 2, KnownProfiles: 3}
}

type fakeMusic struct {
	playQuery string
	playReply string
	playErr   error
	stopped   bool
	skipped   bool
	cleared   bool
	paused    *bool
	current   playback.Track
	playing   bool
	pending   []playback.Track
}

func (f *fakeMusic) Play(ctx context.Context, guildID, textChannelID, query string) (string, error) {
	f.playQuery = query
	return f.playReply, f.playErr
}
func (f *fakeMusic) Stop(guildID string) string { f.stopped = true; return "stopped" }
func (f *fakeMusic) Skip(guildID string) string { f.skipped = true; return "skipped" }
func (f *fakeMusic) ClearPending(guildID string) string {
	f.cleared = true
	return "cleared"
}
func (f *fakeMusic) SetPaused(guildID string, paused bool) (string, bool) {
	f.paused = &paused
	return "paused-state-changed", true
}
func (f *fakeMusic) Snapshot(guildID string) (playback.Track, bool, []playback.Track) {
	return f.current, f.playing, f.pending
}

type fakeVoice struct {
	joined    map[string]string
	connected bool
	left      bool
	volume    int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{joined: make(map[string]string), volume: 50}
}

func (f *fakeVoice) Join(guildID, channelID string) error {
	f.joined[guildID] = channelID
	f.connected = true
	return nil
}
func (f *fakeVoice) Leave(guildID string) error {
	f.left = true
	f.connected = false
	return nil
}
func (f *fakeVoice) Connected(guildID string) bool { return f.connected }
func (f *fakeVoice) SetVolume(pct int)             { f.volume = pct }
func (f *fakeVoice) Volume() int                   { return f.volume }

func newTestBot(chatter *fakeChatter, music *fakeMusic, voice *fakeVoice) (*Bot, *bus.MessageBus) {
	mb := bus.NewMessageBus()
	return New(mb, chatter, music, voice, "!"), mb
}

func guildMessage(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:     "discord",
		SenderID:    "user-1",
		DisplayName: "Person",
		Username:    "person",
		ChatID:      "chan-1",
		GuildID:     "guild-1",
		Content:     content,
		Metadata:    map[string]string{"voice_channel_id": "vc-1"},
	}
}

func lastOutbound(t *testing.T, mb *bus.MessageBus) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.SubscribeOutbound(ctx)
	if !ok {
		t.Fatal("Expected an outbound message")
	}
	return msg.Content
}

func TestChatCommandRoutesToChatter(t *testing.T) {
	chatter := &fakeChatter{}
	b, mb := newTestBot(chatter, &fakeMusic{}, newFakeVoice())

	b.handle(context.Background(), guildMessage("!chat how are you?"))

	if chatter.lastMessage != "how are you?" {
		t.Errorf("Expected chat message forwarded, got %q", chatter.lastMessage)
	}
	if chatter.lastIdentity != "user-1" {
		t.Errorf("Expected sender ID as identity, got %q", chatter.lastIdentity)
	}
	if got := lastOutbound(t, mb); got != "hi there!" {
		t.Errorf("Unexpected reply: %q", got)
	}
}

func TestChatAliases(t *testing.T) {
	for _, alias := range []string{"!c hello", "!talk hello"} {
		chatter := &fakeChatter{}
		b, _ := newTestBot(chatter, &fakeMusic{}, newFakeVoice())
		b.handle(context.Background(), guildMessage(alias))
		if chatter.lastMessage != "hello" {
			t.Errorf("Alias %q did not reach chatter, got %q", alias, chatter.lastMessage)
		}
	}
}

func TestMentionFallsThroughToChat(t *testing.T) {
	chatter := &fakeChatter{}
	b, mb := newTestBot(chatter, &fakeMusic{}, newFakeVoice())

	msg := guildMessage("<@botid> good morning")
	msg.Metadata["mentions_bot"] = "true"
	b.handle(context.Background(), msg)

	if chatter.lastMessage != "good morning" {
		t.Errorf("Expected mention stripped, got %q", chatter.lastMessage)
	}
	lastOutbound(t, mb)
}

func TestDMFallsThroughToChat(t *testing.T) {
	chatter := &fakeChatter{}
	b, _ := newTestBot(chatter, &fakeMusic{}, newFakeVoice())

	msg := guildMessage("just chatting")
	msg.GuildID = ""
	msg.Metadata["is_dm"] = "true"
	b.handle(context.Background(), msg)

	if chatter.lastMessage != "just chatting" {
		t.Errorf("Expected DM routed to chat, got %q", chatter.lastMessage)
	}
}

func TestPlainGuildMessageIgnored(t *testing.T) {
	chatter := &fakeChatter{}
	b, mb := newTestBot(chatter, &fakeMusic{}, newFakeVoice())

	b.handle(context.Background(), guildMessage("random server talk"))

	if chatter.lastMessage != "" {
		t.Errorf("Plain message should not reach chat, got %q", chatter.lastMessage)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if msg, ok := mb.SubscribeOutbound(ctx); ok {
		t.Errorf("Expected no reply, got %q", msg.Content)
	}
}

func TestPlayAutoJoinsVoice(t *testing.T) {
	music := &fakeMusic{playReply: "Now playing: **x**"}
	voice := newFakeVoice()
	b, mb := newTestBot(&fakeChatter{}, music, voice)

	b.handle(context.Background(), guildMessage("!play some song"))

	if voice.joined["guild-1"] != "vc-1" {
		t.Errorf("Expected auto-join of vc-1, got %v", voice.joined)
	}
	if music.playQuery != "some song" {
		t.Errorf("Expected query forwarded, got %q", music.playQuery)
	}
	if got := lastOutbound(t, mb); got != "Now playing: **x**" {
		t.Errorf("Unexpected reply: %q", got)
	}
}

func TestPlayWithoutVoiceChannel(t *testing.T) {
	b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, newFakeVoice())

	msg := guildMessage("!play some song")
	msg.Metadata["voice_channel_id"] = ""
	b.handle(context.Background(), msg)

	if got := lastOutbound(t, mb); !strings.Contains(got, "voice channel") {
		t.Errorf("Expected voice channel hint, got %q", got)
	}
}

func TestPlayResolutionErrorIsFriendly(t *testing.T) {
	music := &fakeMusic{playErr: errors.New("no results")}
	voice := newFakeVoice()
	voice.connected = true
	b, mb := newTestBot(&fakeChatter{}, music, voice)

	b.handle(context.Background(), guildMessage("!play gibberish"))

	got := lastOutbound(t, mb)
	if !strings.Contains(got, "no results") || !strings.Contains(got, "Couldn't") {
		t.Errorf("Unexpected error reply: %q", got)
	}
}

func TestMusicCommandsRequireGuild(t *testing.T) {
	for _, cmd := range []string{"!play x", "!stop", "!skip", "!queue", "!join", "!volume 30"} {
		b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, newFakeVoice())
		msg := guildMessage(cmd)
		msg.GuildID = ""
		b.handle(context.Background(), msg)
		if got := lastOutbound(t, mb); !strings.Contains(got, "server") {
			t.Errorf("Command %q in DM should be refused, got %q", cmd, got)
		}
	}
}

func TestStopSkipClearRouting(t *testing.T) {
	music := &fakeMusic{}
	b, _ := newTestBot(&fakeChatter{}, music, newFakeVoice())

	b.handle(context.Background(), guildMessage("!stop"))
	b.handle(context.Background(), guildMessage("!skip"))
	b.handle(context.Background(), guildMessage("!clear"))

	if !music.stopped || !music.skipped || !music.cleared {
		t.Errorf("Expected stop/skip/clear routed, got %+v", music)
	}
}

func TestPauseResume(t *testing.T) {
	music := &fakeMusic{}
	b, _ := newTestBot(&fakeChatter{}, music, newFakeVoice())

	b.handle(context.Background(), guildMessage("!pause"))
	if music.paused == nil || !*music.paused {
		t.Fatal("Expected pause routed")
	}
	b.handle(context.Background(), guildMessage("!resume"))
	if music.paused == nil || *music.paused {
		t.Fatal("Expected resume routed")
	}
}

func TestQueueFormatting(t *testing.T) {
	music := &fakeMusic{
		current: playback.Track{Title: "Song A"},
		playing: true,
		pending: []playback.Track{{Title: "Song B"}, {Title: "Song C"}},
	}
	b, mb := newTestBot(&fakeChatter{}, music, newFakeVoice())

	b.handle(context.Background(), guildMessage("!queue"))

	got := lastOutbound(t, mb)
	if !strings.Contains(got, "Now playing: **Song A**") {
		t.Errorf("Missing current track: %q", got)
	}
	if !strings.Contains(got, "1. Song B") || !strings.Contains(got, "2. Song C") {
		t.Errorf("Missing pending list: %q", got)
	}
}

func TestQueueEmpty(t *testing.T) {
	b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, newFakeVoice())
	b.handle(context.Background(), guildMessage("!queue"))
	if got := lastOutbound(t, mb); !strings.Contains(got, "empty") {
		t.Errorf("Expected empty queue message, got %q", got)
	}
}

func TestVolumeCommand(t *testing.T) {
	voice := newFakeVoice()
	b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, voice)

	b.handle(context.Background(), guildMessage("!volume"))
	if got := lastOutbound(t, mb); !strings.Contains(got, "50%") {
		t.Errorf("Expected current volume report, got %q", got)
	}

	b.handle(context.Background(), guildMessage("!volume 80"))
	lastOutbound(t, mb)
	if voice.volume != 80 {
		t.Errorf("Expected volume 80, got %d", voice.volume)
	}

	b.handle(context.Background(), guildMessage("!volume loud"))
	if got := lastOutbound(t, mb); !strings.Contains(got, "between 0 and 200") {
		t.Errorf("Expected validation message, got %q", got)
	}
}

func TestLeaveStopsPlaybackFirst(t *testing.T) {
	music := &fakeMusic{}
	voice := newFakeVoice()
	voice.connected = true
	b, mb := newTestBot(&fakeChatter{}, music, voice)

	b.handle(context.Background(), guildMessage("!leave"))

	if !music.stopped {
		t.Error("Expected playback stopped before leaving")
	}
	if !voice.left {
		t.Error("Expected voice disconnect")
	}
	lastOutbound(t, mb)
}

func TestAistats(t *testing.T) {
	b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, newFakeVoice())
	b.handle(context.Background(), guildMessage("!aistats"))
	got := lastOutbound(t, mb)
	if !strings.Contains(got, "Total exchanges: 7") || !strings.Contains(got, "Known profiles: 3") {
		t.Errorf("Unexpected stats output: %q", got)
	}
}

func TestUnknownCommandHint(t *testing.T) {
	b, mb := newTestBot(&fakeChatter{}, &fakeMusic{}, newFakeVoice())
	b.handle(context.Background(), guildMessage("!dance"))
	if got := lastOutbound(t, mb); !strings.Contains(got, "!help") {
		t.Errorf("Expected help hint, got %q", got)
	}
}

func TestParseCommand(t *testing.T) {
	name, args := parseCommand("!play never gonna give you up", "!")
	if name != "play" || args != "never gonna give you up" {
		t.Errorf("Unexpected parse: %q %q", name, args)
	}
	name, args = parseCommand("!SKIP", "!")
	if name != "skip" || args != "" {
		t.Errorf("Unexpected parse: %q %q", name, args)
	}
}

func TestStripMentions(t *testing.T) {
	if got := stripMentions("<@123> hello <@!456> there"); got != "hello there" {
		t.Errorf("Unexpected strip result: %q", got)
	}
}
