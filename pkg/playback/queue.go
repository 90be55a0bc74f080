package playback

// Queue is the per-channel playback state: the track currently playing
// plus pending tracks in insertion order. It carries no locking of its
// own; the orchestrator's event loop is its only mutator.
type Queue struct {
	current *Track
	pending []Track
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a track and returns its queue position (1-based).
func (q *Queue) Enqueue(t Track) int {
	q.pending = append(q.pending, t)
	return len(q.pending)
}

// Advance pops the head of pending into current and returns it. When
// pending is empty it clears current and returns nil.
func (q *Queue) Advance() *Track {
	if len(q.pending) == 0 {
		q.current = nil
		return nil
	}
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.current = &next
	return &next
}

// Clear empties both current and pending: "stop and forget".
func (q *Queue) Clear() {
	q.current = nil
	q.pending = nil
}

// ClearPending drops queued tracks but leaves the current one playing.
func (q *Queue) ClearPending() {
	q.pending = nil
}

func (q *Queue) IsEmpty() bool {
	return len(q.pending) == 0
}

func (q *Queue) Current() (Track, bool) {
	if q.current == nil {
		return Track{}, false
	}
	return *q.current, true
}

func (q *Queue) SetCurrent(t Track) {
	q.current = &t
}

// Pending returns a copy of the queued tracks in play order.
func (q *Queue) Pending() []Track {
	out := make([]Track, len(q.pending))
	copy(out, q.pending)
	return out
}
