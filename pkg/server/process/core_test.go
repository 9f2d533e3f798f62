package process

import (
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/camerastream/pkg/backend/mockbackend"
	"github.com/tauraamui/camerastream/pkg/camera"
)

type mockProc struct {
	onStart func()
	onStop  func()
	onWait  func()
}

func (m *mockProc) Setup() Process { return m }

func (m *mockProc) Start() {
	if m.onStart != nil {
		m.onStart()
	}
}

func (m *mockProc) Stop() {
	if m.onStop != nil {
		m.onStop()
	}
}

func (m *mockProc) Wait() {
	if m.onWait != nil {
		m.onWait()
	}
}

func TestNewCoreProcess(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(Camera{Title: "Front"}, nil)

	is.True(proc != nil)
	is.Equal(proc.Title(), "Front")
	_, ok := proc.Stats()
	is.True(!ok)
}

func TestCoreProcessSetup(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(Camera{Title: "Front"}, nil).(*captureCamera)

	proc.Setup()
	is.True(proc.captureProc != nil)
	is.True(proc.persistFrames != nil)
}

func TestCoreProcessStart(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(Camera{}, nil).(*captureCamera)

	var order []string
	proc.captureProc = &mockProc{onStart: func() { order = append(order, "capture") }}
	proc.persistFrames = &mockProc{onStart: func() { order = append(order, "persist") }}

	proc.Start()

	is.Equal(order, []string{"persist", "capture"}) // recorder is ready before frames arrive
}

func TestCoreProcessStopOnlyStopsCapture(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(Camera{}, nil).(*captureCamera)

	captureStopped, persistStopped := false, false
	proc.captureProc = &mockProc{onStop: func() { captureStopped = true }}
	proc.persistFrames = &mockProc{onStop: func() { persistStopped = true }}

	proc.Stop()

	is.True(captureStopped)
	is.True(!persistStopped)
}

func TestCoreProcessWait(t *testing.T) {
	is := is.New(t)
	proc := NewCoreProcess(Camera{}, nil).(*captureCamera)

	var order []string
	proc.captureProc = &mockProc{onWait: func() { order = append(order, "capture wait") }}
	proc.persistFrames = &mockProc{
		onStop: func() { order = append(order, "persist stop") },
		onWait: func() { order = append(order, "persist wait") },
	}

	proc.Wait()

	is.Equal(order, []string{"capture wait", "persist stop", "persist wait"})
}

func TestCoreProcessRecordsUntilShutdown(t *testing.T) {
	is := is.New(t)
	cam := mockbackend.NewCamera("mock-core", "Core Camera", mockbackend.StandardFormats())
	writer := &fakeWriter{}
	proc := NewCoreProcess(Camera{
		Title:  "Core",
		Device: cam.Device(),
		Config: camera.NewFormatDescriptor(camera.NV12, camera.Size{Width: 640, Height: 480}).Config(camera.FPS(30)),
		Record: func(string) (FrameWriter, string, error) { return writer, "core.bin", nil },
	}, &fakeSessions{}).(*captureCamera)
	proc.tick = time.Millisecond
	proc.Setup()
	proc.Start()

	deadline := time.Now().Add(2 * time.Second)
	for cam.LastStream() == nil || cam.LastStream().State() != camera.Running {
		is.True(time.Now().Before(deadline)) // stream never started
		time.Sleep(time.Millisecond)
	}
	stream := cam.LastStream()
	is.NoErr(stream.Inject(0))
	is.NoErr(stream.Inject(33 * time.Millisecond))
	for stream.Stats().Delivered < 2 {
		is.True(time.Now().Before(deadline)) // frames never delivered
		time.Sleep(time.Millisecond)
	}

	proc.Stop()
	proc.Wait()

	is.Equal(writer.written(), 2)
	is.True(writer.isClosed())
	is.Equal(len(writer.frames[0].Planes()), 2)
}
