package process

import (
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/log"
)

// StatsSource is a camera whose delivery counts are reported.
type StatsSource interface {
	Title() string
	Stats() (camera.StreamStats, bool)
}

// NewStatsProcess logs each running camera's counts every interval, with
// the frames delivered and dropped since the previous report.
func NewStatsProcess(interval time.Duration, sources []StatsSource) Process {
	last := map[string]camera.StreamStats{}
	return New(Settings{
		WaitForShutdownMsg: "Stopping stream stats reporting...",
		Process: Every(interval, func(time.Time) {
			for _, src := range sources {
				stats, ok := src.Stats()
				if !ok {
					delete(last, src.Title())
					continue
				}
				prev := last[src.Title()]
				if stats.Delivered < prev.Delivered || stats.Dropped < prev.Dropped {
					prev = camera.StreamStats{}
				}
				log.Info(
					"Camera [%s] delivered %d frames (+%d), dropped %d (+%d)",
					src.Title(), stats.Delivered, stats.Delivered-prev.Delivered, stats.Dropped, stats.Dropped-prev.Dropped,
				)
				last[src.Title()] = stats
			}
		}),
	})
}
