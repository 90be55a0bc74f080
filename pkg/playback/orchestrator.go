// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package playback

import (
	"context"
	"fmt"

	"github.com/dotsetgreg/hoshibot/pkg/logger"
)

// Player starts audio on a guild's active voice connection.
type Player interface {
	Start(guildID string, track Track) (Session, error)
}

// Session is one running playback. Done yields exactly one value when
// the track ends, naturally or by error.
type Session interface {
	Done() <-chan error
	Stop()
	SetPaused(paused bool)
}

// Notifier posts an announcement to a text channel.
type Notifier func(chatID, content string)

// PresenceSetter updates the bot's presence line. Fire and forget.
type PresenceSetter func(status string)

// Orchestrator decides whether a play request starts immediately or
// enqueues, and drives queue advancement from completion events.
//
// All queue state is confined to the Run loop goroutine. Public
// methods marshal closures onto that loop; player completions arrive
// as events on a channel, never touching the queue from the player's
// own goroutine. Track resolution runs on the caller's goroutine so a
// slow download stalls only that one request.
type Orchestrator struct {
	resolver Resolver
	player   Player
	notify   Notifier
	presence PresenceSetter

	requests chan func()
	events   chan completionEvent

	// Run-loop confined.
	guilds map[string]*guildState
}

type guildState struct {
	queue      *Queue
	session    Session
	generation uint64
	textChan   string
}

type completionEvent struct {
	guildID    string
	generation uint64
	err        error
}

func NewOrchestrator(resolver Resolver, player Player, notify Notifier, presence PresenceSetter) *Orchestrator {
	if notify == nil {
		notify = func(string, string) {}
	}
	if presence == nil {
		presence = func(string) {}
	}
	return &Orchestrator{
		resolver: resolver,
		player:   player,
		notify:   notify,
		presence: presence,
		requests: make(chan func()),
		events:   make(chan completionEvent, 16),
		guilds:   make(map[string]*guildState),
	}
}

// Run drives the orchestration loop until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	logger.InfoC("playback", "Playback loop started")
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return
		case fn := <-o.requests:
			fn()
		case ev := <-o.events:
			o.handleCompletion(ev)
		}
	}
}

func (o *Orchestrator) shutdown() {
	for _, st := range o.guilds {
		st.generation++
		if st.session != nil {
			st.session.Stop()
			st.session = nil
		}
		st.queue.Clear()
	}
	logger.InfoC("playback", "Playback loop stopped")
}

// do runs fn on the orchestration loop and waits for it.
func (o *Orchestrator) do(fn func()) {
	done := make(chan struct{})
	o.requests <- func() {
		fn()
		close(done)
	}
	<-done
}

func (o *Orchestrator) state(guildID string) *guildState {
	st, ok := o.guilds[guildID]
	if !ok {
		st = &guildState{queue: NewQueue()}
		o.guilds[guildID] = st
	}
	return st
}

// Play resolves the query, then either starts it immediately or
// enqueues it behind the current track. The returned string is the
// user-facing outcome; a non-nil error means this single request
// failed and the queue is untouched.
func (o *Orchestrator) Play(ctx context.Context, guildID, textChannelID, query string) (string, error) {
	track, err := o.resolver.Resolve(ctx, query)
	if err != nil {
		logger.WarnCF("playback", "Track resolution failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return "", err
	}

	var reply string
	var startErr error
	o.do(func() {
		st := o.state(guildID)
		st.textChan = textChannelID

		if _, playing := st.queue.Current(); playing {
			pos := st.queue.Enqueue(track)
			reply = fmt.Sprintf("Queued at position %d: **%s**", pos, track.Title)
			return
		}

		if err := o.startTrack(st, guildID, track); err != nil {
			st.queue.Advance()
			startErr = err
			return
		}
		reply = fmt.Sprintf("Now playing: **%s**", track.Title)
	})
	return reply, startErr
}

// startTrack is loop-confined. It sets current, launches the player,
// and arranges for the completion event to come back to the loop.
func (o *Orchestrator) startTrack(st *guildState, guildID string, track Track) error {
	st.queue.SetCurrent(track)

	session, err := o.player.Start(guildID, track)
	if err != nil {
		return fmt.Errorf("start playback of %q: %w", track.Title, err)
	}

	st.generation++
	st.session = session
	generation := st.generation

	go func() {
		err := <-session.Done()
		o.events <- completionEvent{guildID: guildID, generation: generation, err: err}
	}()

	o.presence("🎵 " + track.Title)
	logger.InfoCF("playback", "Started track", map[string]interface{}{
		"guild_id": guildID,
		"title":    track.Title,
	})
	return nil
}

func (o *Orchestrator) handleCompletion(ev completionEvent) {
	st, ok := o.guilds[ev.guildID]
	if !ok || ev.generation != st.generation {
		// A stop or skip already cut this session.
		return
	}

	if ev.err != nil {
		logger.WarnCF("playback", "Track ended with error", map[string]interface{}{
			"guild_id": ev.guildID,
			"error":    ev.err.Error(),
		})
	}

	st.session = nil
	o.advanceAndStart(st, ev.guildID)
}

// advanceAndStart pulls tracks off pending until one starts or the
// queue drains.
func (o *Orchestrator) advanceAndStart(st *guildState, guildID string) {
	for {
		next := st.queue.Advance()
		if next == nil {
			o.presence("")
			o.notify(st.textChan, "Queue finished. Add more with !play~")
			return
		}
		if err := o.startTrack(st, guildID, *next); err != nil {
			logger.ErrorCF("playback", "Failed to start queued track", map[string]interface{}{
				"guild_id": guildID,
				"title":    next.Title,
				"error":    err.Error(),
			})
			o.notify(st.textChan, fmt.Sprintf("Couldn't play **%s**, skipping it.", next.Title))
			continue
		}
		o.notify(st.textChan, fmt.Sprintf("Now playing: **%s**", next.Title))
		return
	}
}

// Stop cuts playback and forgets the whole queue.
func (o *Orchestrator) Stop(guildID string) string {
	var reply string
	o.do(func() {
		st := o.state(guildID)
		_, playing := st.queue.Current()
		if !playing && st.queue.IsEmpty() {
			reply = "Nothing is currently playing!"
			return
		}
		st.generation++
		if st.session != nil {
			st.session.Stop()
			st.session = nil
		}
		st.queue.Clear()
		o.presence("")
		reply = "Stopped the music and cleared the queue."
	})
	return reply
}

// Skip cuts the current track and advances to the next one.
func (o *Orchestrator) Skip(guildID string) string {
	var reply string
	o.do(func() {
		st := o.state(guildID)
		if _, playing := st.queue.Current(); !playing {
			reply = "Nothing is currently playing!"
			return
		}
		st.generation++
		if st.session != nil {
			st.session.Stop()
			st.session = nil
		}

		next := st.queue.Advance()
		if next == nil {
			o.presence("")
			reply = "Skipped! The queue is empty now."
			return
		}
		if err := o.startTrack(st, guildID, *next); err != nil {
			logger.ErrorCF("playback", "Failed to start after skip", map[string]interface{}{
				"guild_id": guildID,
				"error":    err.Error(),
			})
			o.advanceAndStart(st, guildID)
			reply = fmt.Sprintf("Skipped, but **%s** wouldn't start.", next.Title)
			return
		}
		reply = fmt.Sprintf("Skipped! Now playing: **%s**", next.Title)
	})
	return reply
}

// ClearPending drops queued tracks, leaving the current one playing.
func (o *Orchestrator) ClearPending(guildID string) string {
	var reply string
	o.do(func() {
		st := o.state(guildID)
		dropped := len(st.queue.Pending())
		st.queue.ClearPending()
		if dropped == 0 {
			reply = "The queue is already empty."
			return
		}
		reply = fmt.Sprintf("Cleared %d queued track(s).", dropped)
	})
	return reply
}

// SetPaused pauses or resumes the current session.
func (o *Orchestrator) SetPaused(guildID string, paused bool) (string, bool) {
	var reply string
	var ok bool
	o.do(func() {
		st := o.state(guildID)
		if st.session == nil {
			reply = "Nothing is currently playing!"
			return
		}
		st.session.SetPaused(paused)
		ok = true
		if paused {
			reply = "Paused the music!"
		} else {
			reply = "Resumed the music!"
		}
	})
	return reply, ok
}

// Snapshot reports the current track and pending queue for a guild.
func (o *Orchestrator) Snapshot(guildID string) (current Track, playing bool, pending []Track) {
	o.do(func() {
		st := o.state(guildID)
		current, playing = st.queue.Current()
		pending = st.queue.Pending()
	})
	return current, playing, pending
}
