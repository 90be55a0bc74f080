package playback

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dotsetgreg/hoshibot/pkg/logger"
)

// Resolver turns a free-text query or URL into a playable Track.
type Resolver interface {
	Resolve(ctx context.Context, query string) (Track, error)
}

// YTDLPResolver shells out to yt-dlp. In download mode the audio is
// fetched into downloadsDir and the handle is the local file path; in
// stream mode the handle is the extractor's direct media URL.
type YTDLPResolver struct {
	binPath      string
	downloadsDir string
	stream       bool
	cache        *TrackCache
}

func NewYTDLPResolver(binPath, downloadsDir string, stream bool, cache *TrackCache) *YTDLPResolver {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &YTDLPResolver{
		binPath:      binPath,
		downloadsDir: downloadsDir,
		stream:       stream,
		cache:        cache,
	}
}

type extractorInfo struct {
	Title    string          `json:"title"`
	URL      string          `json:"url"`
	Filename string          `json:"_filename"`
	Entries  []extractorInfo `json:"entries"`
}

func (r *YTDLPResolver) Resolve(ctx context.Context, query string) (Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Track{}, resolutionErr(query, "empty query")
	}

	// Download mode results are stable on disk, so repeats can skip
	// the extractor entirely.
	if !r.stream && r.cache != nil {
		if track, ok := r.cache.Get(query); ok {
			if _, err := os.Stat(track.Handle); err == nil {
				logger.DebugCF("playback", "Track cache hit", map[string]interface{}{
					"query": query,
					"title": track.Title,
				})
				return track, nil
			}
			r.cache.Delete(query)
		}
	}

	info, err := r.extract(ctx, query)
	if err != nil {
		return Track{}, err
	}

	// A search or playlist result nests actual videos under entries;
	// only the first one is played.
	if len(info.Entries) > 0 {
		info = info.Entries[0]
	}

	track := Track{Title: info.Title, SourceQuery: query}
	if track.Title == "" {
		track.Title = "Unknown"
	}

	if r.stream {
		if info.URL == "" {
			return Track{}, resolutionErr(query, "extractor returned no stream URL")
		}
		track.Handle = info.URL
		return track, nil
	}

	if info.Filename == "" {
		return Track{}, resolutionErr(query, "extractor returned no output filename")
	}
	abs, err := filepath.Abs(info.Filename)
	if err == nil {
		info.Filename = abs
	}
	if _, err := os.Stat(info.Filename); err != nil {
		return Track{}, resolutionErr(query, "downloaded file not found: %s", info.Filename)
	}
	track.Handle = info.Filename

	if r.cache != nil {
		r.cache.Put(track)
	}
	return track, nil
}

func (r *YTDLPResolver) extract(ctx context.Context, query string) (extractorInfo, error) {
	args := []string{
		"--no-playlist",
		"--default-search", "ytsearch",
		"--no-warnings",
		"-f", "bestaudio/best",
	}
	if r.stream {
		args = append(args, "-J")
	} else {
		args = append(args,
			"--print-json",
			"--restrict-filenames",
			"-o", filepath.Join(r.downloadsDir, "%(title)s.%(ext)s"),
		)
		if err := os.MkdirAll(r.downloadsDir, 0755); err != nil {
			return extractorInfo{}, resolutionErr(query, "create downloads dir: %v", err)
		}
	}
	args = append(args, query)

	cmd := exec.CommandContext(ctx, r.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.DebugCF("playback", "Running extractor", map[string]interface{}{
		"query":  query,
		"stream": r.stream,
	})

	if err := cmd.Run(); err != nil {
		cause := strings.TrimSpace(stderr.String())
		if cause == "" {
			cause = err.Error()
		}
		return extractorInfo{}, resolutionErr(query, "extractor failed: %s", firstLine(cause))
	}

	// --print-json emits one JSON object per downloaded entry; the
	// first line is the one we play.
	payload := stdout.Bytes()
	if idx := bytes.IndexByte(payload, '\n'); !r.stream && idx > 0 {
		payload = payload[:idx]
	}

	var info extractorInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return extractorInfo{}, resolutionErr(query, "parse extractor output: %v", err)
	}
	if info.Title == "" && info.URL == "" && info.Filename == "" && len(info.Entries) == 0 {
		return extractorInfo{}, resolutionErr(query, "no results")
	}
	return info, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
