// Package playback implements the music half of the bot: resolving
// free-text queries into playable tracks and driving a per-channel
// sequential playback queue.
package playback

import "fmt"

// Track is a resolved, playable audio unit. Handle is either a local
// file path (download mode) or a direct stream URL (stream mode).
type Track struct {
	Title       string
	Handle      string
	SourceQuery string
}

// ResolutionError wraps any failure to turn a query into a Track. The
// orchestrator converts it into a user-visible message; it never
// affects queue state for other tracks.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func resolutionErr(query string, format string, args ...interface{}) *ResolutionError {
	return &ResolutionError{Query: query, Err: fmt.Errorf(format, args...)}
}
