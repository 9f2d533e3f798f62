package process

import (
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/log"
)

const (
	recordQueueSize = 32
	scheduleTick    = time.Second
)

// CoreProcess runs one camera: capture following its schedule and the
// recorder fed by it.
type CoreProcess interface {
	Process
	Title() string
	Stats() (camera.StreamStats, bool)
}

func NewCoreProcess(cam Camera, sessions SessionStore) CoreProcess {
	return &captureCamera{
		cam:      cam,
		sessions: sessions,
		frames:   make(chan persistItem, recordQueueSize),
		tick:     scheduleTick,
	}
}

type captureCamera struct {
	cam           Camera
	sessions      SessionStore
	frames        chan persistItem
	tick          time.Duration
	capture       *captureProcess
	captureProc   Process
	persistFrames Process
}

func (proc *captureCamera) Setup() Process {
	proc.capture = newCaptureProcess(proc.cam, proc.frames, proc.sessions, proc.tick)
	proc.captureProc = proc.capture
	proc.persistFrames = newPersistFramesProcess(proc.frames)
	return proc
}

func (proc *captureCamera) Title() string { return proc.cam.Title }

func (proc *captureCamera) Stats() (camera.StreamStats, bool) {
	if proc.capture == nil {
		return camera.StreamStats{}, false
	}
	return proc.capture.Stats()
}

func (proc *captureCamera) Start() {
	proc.persistFrames.Start()
	proc.captureProc.Start()
}

// Stop cancels capture, the recorder keeps going until Wait so frames
// queued by the closing stream still reach disk.
func (proc *captureCamera) Stop() {
	log.Info("Closing camera [%s]...", proc.cam.Title)
	proc.captureProc.Stop()
}

func (proc *captureCamera) Wait() {
	proc.captureProc.Wait()
	proc.persistFrames.Stop()
	proc.persistFrames.Wait()
}
