package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type stubResolver struct {
	failOn string
}

func (r *stubResolver) Resolve(ctx context.Context, query string) (Track, error) {
	if r.failOn != "" && query == r.failOn {
		return Track{}, resolutionErr(query, "no results")
	}
	return Track{Title: query, Handle: "handle:" + query, SourceQuery: query}, nil
}

type stubSession struct {
	done    chan error
	mu      sync.Mutex
	stopped bool
	paused  bool
}

func (s *stubSession) Done() <-chan error { return s.done }

func (s *stubSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *stubSession) SetPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

func (s *stubSession) finish(err error) { s.done <- err }

type stubPlayer struct {
	mu       sync.Mutex
	sessions []*stubSession
	titles   []string
	startErr error
}

func (p *stubPlayer) Start(guildID string, track Track) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return nil, p.startErr
	}
	s := &stubSession{done: make(chan error, 1)}
	p.sessions = append(p.sessions, s)
	p.titles = append(p.titles, track.Title)
	return s, nil
}

func (p *stubPlayer) started() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}

func (p *stubPlayer) session(i int) *stubSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[i]
}

type notifyLog struct {
	mu       sync.Mutex
	messages []string
}

func (n *notifyLog) notify(chatID, content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, content)
}

func (n *notifyLog) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

func startOrchestrator(t *testing.T, resolver Resolver, player Player, notes *notifyLog) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(resolver, player, notes.notify, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go o.Run(ctx)
	return o
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func TestPlayStartsWhenIdle(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	reply, err := o.Play(context.Background(), "g1", "chat1", "song-a")
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if reply != "Now playing: **song-a**" {
		t.Errorf("Unexpected reply: %q", reply)
	}

	current, playing, pending := o.Snapshot("g1")
	if !playing || current.Title != "song-a" {
		t.Errorf("Expected current song-a, got %+v playing=%v", current, playing)
	}
	if len(pending) != 0 {
		t.Errorf("Expected empty pending, got %+v", pending)
	}
	if got := player.started(); len(got) != 1 || got[0] != "song-a" {
		t.Errorf("Expected player to start song-a once, got %v", got)
	}
}

func TestPlayEnqueuesWhilePlaying(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	if _, err := o.Play(context.Background(), "g1", "chat1", "song-a"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	reply, err := o.Play(context.Background(), "g1", "chat1", "song-b")
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if reply != "Queued at position 1: **song-b**" {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if got := player.started(); len(got) != 1 {
		t.Errorf("Queued track must not start the player, got %v", got)
	}
}

func TestCompletionAdvancesToNextTrack(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	o.Play(context.Background(), "g1", "chat1", "song-a")
	o.Play(context.Background(), "g1", "chat1", "song-b")

	player.session(0).finish(nil)

	waitFor(t, "advance to song-b", func() bool {
		current, playing, _ := o.Snapshot("g1")
		return playing && current.Title == "song-b"
	})
	if got := player.started(); len(got) != 2 || got[1] != "song-b" {
		t.Errorf("Expected song-b started second, got %v", got)
	}

	found := false
	for _, msg := range notes.all() {
		if msg == "Now playing: **song-b**" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected auto-advance announcement, got %v", notes.all())
	}
}

func TestCompletionDrainsQueue(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	o.Play(context.Background(), "g1", "chat1", "song-a")
	player.session(0).finish(nil)

	waitFor(t, "queue to finish", func() bool {
		_, playing, _ := o.Snapshot("g1")
		return !playing
	})

	found := false
	for _, msg := range notes.all() {
		if msg == "Queue finished. Add more with !play~" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected queue-finished announcement, got %v", notes.all())
	}
}

func TestSkipAdvancesAndIgnoresStaleCompletion(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	o.Play(context.Background(), "g1", "chat1", "song-a")
	o.Play(context.Background(), "g1", "chat1", "song-b")

	reply := o.Skip("g1")
	if reply != "Skipped! Now playing: **song-b**" {
		t.Errorf("Unexpected skip reply: %q", reply)
	}
	first := player.session(0)
	first.mu.Lock()
	stopped := first.stopped
	first.mu.Unlock()
	if !stopped {
		t.Error("Skip must stop the running session")
	}

	// The cut session still reports completion; it must not advance
	// the queue a second time.
	first.finish(errors.New("interrupted"))
	time.Sleep(50 * time.Millisecond)

	current, playing, _ := o.Snapshot("g1")
	if !playing || current.Title != "song-b" {
		t.Errorf("Stale completion moved the queue: %+v playing=%v", current, playing)
	}
	if got := player.started(); len(got) != 2 {
		t.Errorf("Expected exactly 2 starts, got %v", got)
	}
}

func TestSkipOnEmptyQueue(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	o.Play(context.Background(), "g1", "chat1", "song-a")
	if reply := o.Skip("g1"); reply != "Skipped! The queue is empty now." {
		t.Errorf("Unexpected reply: %q", reply)
	}
	if _, playing, _ := o.Snapshot("g1"); playing {
		t.Error("Expected idle after skipping last track")
	}
}

func TestStopClearsEverything(t *testing.T) {
	player := &stubPlayer{}
	notes := &notifyLog{}
	o := startOrchestrator(t, &stubResolver{}, player, notes)

	o.Play(context.Background(), "g1", "chat1", "song-a")
	o.Play(context.Background(), "g1", "chat1", "song-b")

	reply := o.Stop("g1")
	if reply != "Stopped the music and cleared the queue." {
		t.Errorf("Unexpected reply: %q", reply)
	}
	current, playing, pending := o.Snapshot("g1")
	if playing || len(pending) != 0 {
		t.Errorf("Expected empty state, got current=%+v playing=%v pending=%+v", current, playing, pending)
	}

	player.session(0).finish(nil)
	time.Sleep(50 * time.Millisecond)
	if got := player.started(); len(got) != 1 {
		t.Errorf("Completion after stop must not restart playback, got %v", got)
	}
}

func TestStopWhenIdle(t *testing.T) {
	o := startOrchestrator(t, &stubResolver{}, &stubPlayer{}, &notifyLog{})
	if reply := o.Stop("g1"); reply != "Nothing is currently playing!" {
		t.Errorf("Unexpected reply: %q", reply)
	}
}

func TestClearPendingKeepsCurrentTrack(t *testing.T) {
	player := &stubPlayer{}
	o := startOrchestrator(t, &stubResolver{}, player, &notifyLog{})

	o.Play(context.Background(), "g1", "chat1", "song-a")
	o.Play(context.Background(), "g1", "chat1", "song-b")
	o.Play(context.Background(), "g1", "chat1", "song-c")

	if reply := o.ClearPending("g1"); reply != "Cleared 2 queued track(s)." {
		t.Errorf("Unexpected reply: %q", reply)
	}
	current, playing, pending := o.Snapshot("g1")
	if !playing || current.Title != "song-a" || len(pending) != 0 {
		t.Errorf("Expected song-a still playing with empty queue, got %+v %v %+v", current, playing, pending)
	}
}

func TestSetPaused(t *testing.T) {
	player := &stubPlayer{}
	o := startOrchestrator(t, &stubResolver{}, player, &notifyLog{})

	if _, ok := o.SetPaused("g1", true); ok {
		t.Error("Pause with nothing playing should report not ok")
	}

	o.Play(context.Background(), "g1", "chat1", "song-a")
	reply, ok := o.SetPaused("g1", true)
	if !ok || reply != "Paused the music!" {
		t.Errorf("Unexpected pause result: %q ok=%v", reply, ok)
	}
	s := player.session(0)
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if !paused {
		t.Error("Expected session paused")
	}

	if reply, ok := o.SetPaused("g1", false); !ok || reply != "Resumed the music!" {
		t.Errorf("Unexpected resume result: %q ok=%v", reply, ok)
	}
}

func TestResolutionFailureLeavesQueueUntouched(t *testing.T) {
	player := &stubPlayer{}
	o := startOrchestrator(t, &stubResolver{failOn: "bad"}, player, &notifyLog{})

	o.Play(context.Background(), "g1", "chat1", "song-a")
	o.Play(context.Background(), "g1", "chat1", "song-b")

	if _, err := o.Play(context.Background(), "g1", "chat1", "bad"); err == nil {
		t.Fatal("Expected resolution error")
	}

	current, playing, pending := o.Snapshot("g1")
	if !playing || current.Title != "song-a" {
		t.Errorf("Current track changed: %+v playing=%v", current, playing)
	}
	if len(pending) != 1 || pending[0].Title != "song-b" {
		t.Errorf("Pending changed: %+v", pending)
	}
}

func TestGuildsAreIsolated(t *testing.T) {
	player := &stubPlayer{}
	o := startOrchestrator(t, &stubResolver{}, player, &notifyLog{})

	for i := 0; i < 2; i++ {
		guild := fmt.Sprintf("g%d", i+1)
		if _, err := o.Play(context.Background(), guild, "chat", "song-"+guild); err != nil {
			t.Fatalf("Play failed for %s: %v", guild, err)
		}
	}

	o.Stop("g1")
	if _, playing, _ := o.Snapshot("g1"); playing {
		t.Error("g1 should be stopped")
	}
	if current, playing, _ := o.Snapshot("g2"); !playing || current.Title != "song-g2" {
		t.Errorf("g2 playback affected by g1 stop: %+v playing=%v", current, playing)
	}
}
