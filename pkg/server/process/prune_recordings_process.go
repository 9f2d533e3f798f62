package process

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/camerastream/pkg/rawlog"
)

// NewPruneRecordingsProcess removes raw logs under dir which were created
// and last written to more than maxAge ago, checking every interval.
func NewPruneRecordingsProcess(fs afero.Fs, dir string, maxAge, interval time.Duration) Process {
	return New(Settings{
		WaitForShutdownMsg: "Stopping removal of old recordings...",
		Process: Every(interval, func(now time.Time) {
			pruneRecordings(fs, dir, now.Add(-maxAge))
		}),
	})
}

func pruneRecordings(fs afero.Fs, dir string, oldestAllowed time.Time) int {
	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		log.Error("Unable to read contents of record dir %s: %v", dir, err)
		return 0
	}

	removed := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		created, ok := rawlog.CreatedAt(file.Name())
		if !ok || !created.Before(oldestAllowed) || !file.ModTime().Before(oldestAllowed) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		log.Info("Removing old recording %s", path)
		if err := fs.Remove(path); err != nil {
			log.Error("Failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}
