package channels

import (
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/dotsetgreg/hoshibot/pkg/logger"
	"github.com/dotsetgreg/hoshibot/pkg/playback"
	"github.com/jonas747/dca"
)

const maxEncoderVolume = 512

// VoiceManager owns the guild voice connections and turns resolved
// tracks into opus streams. It implements playback.Player.
type VoiceManager struct {
	session *discordgo.Session

	mu     sync.Mutex
	conns  map[string]*discordgo.VoiceConnection
	volume int // percent, applies from the next started track
}

func NewVoiceManager(session *discordgo.Session, defaultVolumePct int) *VoiceManager {
	if defaultVolumePct <= 0 || defaultVolumePct > 200 {
		defaultVolumePct = 50
	}
	return &VoiceManager{
		session: session,
		conns:   make(map[string]*discordgo.VoiceConnection),
		volume:  defaultVolumePct,
	}
}

// Join connects to a voice channel, moving if already connected
// elsewhere in the guild.
func (v *VoiceManager) Join(guildID, channelID string) error {
	conn, err := v.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return fmt.Errorf("join voice channel: %w", err)
	}

	v.mu.Lock()
	v.conns[guildID] = conn
	v.mu.Unlock()

	logger.InfoCF("voice", "Joined voice channel", map[string]interface{}{
		"guild_id":   guildID,
		"channel_id": channelID,
	})
	return nil
}

func (v *VoiceManager) Leave(guildID string) error {
	v.mu.Lock()
	conn, ok := v.conns[guildID]
	delete(v.conns, guildID)
	v.mu.Unlock()

	if !ok {
		return nil
	}
	if err := conn.Disconnect(); err != nil {
		return fmt.Errorf("leave voice channel: %w", err)
	}
	logger.InfoCF("voice", "Left voice channel", map[string]interface{}{
		"guild_id": guildID,
	})
	return nil
}

func (v *VoiceManager) Connected(guildID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.conns[guildID]
	return ok
}

// SetVolume stores the playback volume in percent. Running tracks keep
// their volume; the new value applies when the next track starts.
func (v *VoiceManager) SetVolume(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 200 {
		pct = 200
	}
	v.mu.Lock()
	v.volume = pct
	v.mu.Unlock()
}

func (v *VoiceManager) Volume() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.volume
}

// Start encodes the track handle (local file or stream URL) and plays
// it on the guild's voice connection.
func (v *VoiceManager) Start(guildID string, track playback.Track) (playback.Session, error) {
	v.mu.Lock()
	conn, ok := v.conns[guildID]
	volume := v.volume
	v.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("not connected to a voice channel in guild %s", guildID)
	}

	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = 96
	opts.Volume = 256 * volume / 100
	if opts.Volume > maxEncoderVolume {
		opts.Volume = maxEncoderVolume
	}

	encode, err := dca.EncodeFile(track.Handle, &opts)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", track.Title, err)
	}

	if err := conn.Speaking(true); err != nil {
		logger.WarnCF("voice", "Failed to set speaking state", map[string]interface{}{
			"error": err.Error(),
		})
	}

	streamDone := make(chan error, 1)
	stream := dca.NewStream(encode, conn, streamDone)

	s := &voiceSession{
		encode: encode,
		stream: stream,
		out:    make(chan error, 1),
	}

	go func() {
		err := <-streamDone
		if err == io.EOF {
			err = nil
		}
		if sperr := conn.Speaking(false); sperr != nil {
			logger.DebugCF("voice", "Failed to clear speaking state", map[string]interface{}{
				"error": sperr.Error(),
			})
		}
		encode.Cleanup()
		s.out <- err
	}()

	return s, nil
}

type voiceSession struct {
	encode   *dca.EncodeSession
	stream   *dca.StreamingSession
	out      chan error
	stopOnce sync.Once
}

func (s *voiceSession) Done() <-chan error {
	return s.out
}

// Stop kills the encoder, which ends the stream and fires Done.
func (s *voiceSession) Stop() {
	s.stopOnce.Do(func() {
		s.encode.Cleanup()
	})
}

func (s *voiceSession) SetPaused(paused bool) {
	s.stream.SetPaused(paused)
}
