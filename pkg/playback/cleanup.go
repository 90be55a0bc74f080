package playback

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dotsetgreg/hoshibot/pkg/logger"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".opus": true,
	".ogg":  true,
	".webm": true,
	".mp4":  true,
}

// Janitor sweeps old downloaded audio out of the downloads directory
// on a cron schedule.
type Janitor struct {
	dir       string
	schedule  string
	retention time.Duration
	gron      *gronx.Gronx
}

func NewJanitor(dir, schedule string, retention time.Duration) *Janitor {
	return &Janitor{
		dir:       dir,
		schedule:  schedule,
		retention: retention,
		gron:      gronx.New(),
	}
}

// Start runs the sweep loop until ctx is cancelled. The schedule is
// checked once a minute, on the minute.
func (j *Janitor) Start(ctx context.Context) {
	if !j.gron.IsValid(j.schedule) {
		logger.ErrorCF("playback", "Invalid cleanup schedule, janitor disabled", map[string]interface{}{
			"schedule": j.schedule,
		})
		return
	}

	logger.InfoCF("playback", "Downloads janitor started", map[string]interface{}{
		"schedule":  j.schedule,
		"retention": j.retention.String(),
	})

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := j.gron.IsDue(j.schedule, now)
			if err != nil || !due {
				continue
			}
			j.Sweep(now)
		}
	}
}

// Sweep deletes audio files older than the retention period. Returns
// how many files were removed.
func (j *Janitor) Sweep(now time.Time) int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF("playback", "Janitor could not read downloads dir", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < j.retention {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.WarnCF("playback", "Janitor failed to remove file", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.InfoCF("playback", "Janitor removed stale downloads", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}
