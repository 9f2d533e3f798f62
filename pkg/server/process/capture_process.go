package process

import (
	"context"
	"sync"
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/config/schedule"
	"github.com/tauraamui/camerastream/pkg/database/models"
	"github.com/tauraamui/camerastream/pkg/log"
)

// Camera is one configured camera with everything needed to open it.
type Camera struct {
	Title    string
	Backend  string
	Device   camera.Device
	Config   camera.StreamConfig
	Settings capability.Settings
	Schedule schedule.Schedule
	// Record creates the writer for a new capture session, nil disables
	// recording.
	Record func(title string) (FrameWriter, string, error)
}

// SessionStore keeps the history of capture sessions.
type SessionStore interface {
	Create(*models.Session) error
	Finish(uuid string, endedAt time.Time, delivered, dropped uint64, failure error) error
}

// errReporter is implemented by streams which keep the error that
// stopped them.
type errReporter interface {
	Err() error
}

type captureProcess struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan interface{}
	cam      Camera
	dest     chan persistItem
	sessions SessionStore
	tick     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	stream  camera.Stream
	writer  FrameWriter
	session models.Session
	wasOff  bool
}

func newCaptureProcess(cam Camera, dest chan persistItem, sessions SessionStore, tick time.Duration) *captureProcess {
	ctx, cancel := context.WithCancel(context.Background())
	return &captureProcess{
		ctx: ctx, cancel: cancel,
		cam: cam, dest: dest, sessions: sessions,
		tick: tick, now: time.Now,
		stopping: make(chan interface{}),
	}
}

func (proc *captureProcess) Setup() Process { return proc }

func (proc *captureProcess) Start() {
	go proc.run()
}

func (proc *captureProcess) run() {
	defer close(proc.stopping)
	ticker := time.NewTicker(proc.tick)
	defer ticker.Stop()

	proc.check()
	for {
		select {
		case <-proc.ctx.Done():
			proc.closeStream()
			return
		case <-ticker.C:
			proc.check()
		}
	}
}

// check brings the stream in line with the schedule, and reopens a
// stream the backend stopped.
func (proc *captureProcess) check() {
	on := proc.cam.Schedule == nil || proc.cam.Schedule.IsOn(proc.now())

	proc.mu.Lock()
	stream := proc.stream
	proc.mu.Unlock()

	if !on {
		if !proc.wasOff {
			proc.wasOff = true
			log.Info("Camera [%s] is scheduled off", proc.cam.Title)
		}
		if stream != nil {
			proc.closeStream()
		}
		return
	}
	proc.wasOff = false

	if stream != nil && stream.State() == camera.Stopped {
		log.Warn("Camera [%s] stream stopped, reopening...", proc.cam.Title)
		proc.closeStream()
		stream = nil
	}
	if stream == nil {
		if err := proc.openStream(); err != nil {
			log.Error("Unable to open camera [%s]: %v", proc.cam.Title, err)
		}
	}
}

func (proc *captureProcess) openStream() error {
	stream, err := proc.cam.Device.Open(proc.cam.Config)
	if err != nil {
		return err
	}
	if err := capability.Apply(proc.cam.Device, proc.cam.Settings); err != nil {
		log.Warn("Camera [%s] controls not fully applied: %v", proc.cam.Title, err)
	}

	var writer FrameWriter
	var recordPath string
	if proc.cam.Record != nil {
		writer, recordPath, err = proc.cam.Record(proc.cam.Title)
		if err != nil {
			stream.Close()
			return err
		}
	}

	proc.mu.Lock()
	proc.stream = stream
	proc.writer = writer
	proc.session = models.Session{
		UUID:        stream.ID(),
		Camera:      proc.cam.Title,
		DeviceID:    proc.cam.Device.ID(),
		Backend:     proc.cam.Backend,
		PixelFormat: proc.cam.Config.PixelFormat.String(),
		Width:       proc.cam.Config.Size.Width,
		Height:      proc.cam.Config.Size.Height,
		FrameRate:   proc.cam.Config.FrameRate.String(),
		RecordPath:  recordPath,
		StartedAt:   proc.now(),
	}
	session := proc.session
	proc.mu.Unlock()

	if proc.sessions != nil {
		if err := proc.sessions.Create(&session); err != nil {
			log.Error("Unable to record session of camera [%s]: %v", proc.cam.Title, err)
		}
	}

	if err := stream.Start(proc.handler(writer, proc.cam.Device.ID())); err != nil {
		proc.closeStream()
		return err
	}
	log.Info("Streaming camera [%s] as %s", proc.cam.Title, proc.cam.Config)
	return nil
}

// handler copies frames out for the recorder. A full queue drops the
// frame rather than stall the backend.
func (proc *captureProcess) handler(writer FrameWriter, device string) camera.FrameHandler {
	if writer == nil {
		return func(camera.Frame) {}
	}
	return func(f camera.Frame) {
		select {
		case proc.dest <- persistItem{writer: writer, device: device, frame: camera.CopyFrame(f)}:
		default:
			log.Debug("Recording buffer of camera [%s] full...", proc.cam.Title)
		}
	}
}

func (proc *captureProcess) closeStream() {
	proc.mu.Lock()
	stream, writer, session := proc.stream, proc.writer, proc.session
	proc.stream, proc.writer = nil, nil
	proc.mu.Unlock()
	if stream == nil {
		return
	}

	if err := stream.Close(); err != nil {
		log.Error("Unable to close camera [%s]: %v", proc.cam.Title, err)
	}
	if writer != nil {
		proc.dest <- persistItem{writer: writer, device: proc.cam.Device.ID(), close: true}
	}

	var stats camera.StreamStats
	if sr, ok := stream.(camera.StatsReporter); ok {
		stats = sr.Stats()
	}
	var failure error
	if er, ok := stream.(errReporter); ok {
		failure = er.Err()
	}
	if proc.sessions != nil {
		if err := proc.sessions.Finish(session.UUID, proc.now(), stats.Delivered, stats.Dropped, failure); err != nil {
			log.Error("Unable to finish session of camera [%s]: %v", proc.cam.Title, err)
		}
	}
}

// Stats reports the open stream's counts, ok is false while closed.
func (proc *captureProcess) Stats() (stats camera.StreamStats, ok bool) {
	proc.mu.Lock()
	stream := proc.stream
	proc.mu.Unlock()
	if stream == nil {
		return stats, false
	}
	sr, ok := stream.(camera.StatsReporter)
	if !ok {
		return stats, false
	}
	return sr.Stats(), true
}

func (proc *captureProcess) Stop() {
	proc.cancel()
}

func (proc *captureProcess) Wait() {
	<-proc.stopping
}
