package process

import (
	"context"
	"io"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/log"
)

// FrameWriter persists copies of delivered frames.
type FrameWriter interface {
	WriteFrame(device string, f camera.Frame) error
	io.Closer
}

// persistItem is a frame to write, or with close set, the end of a
// recording whose writer must be closed once its frames are written.
type persistItem struct {
	writer FrameWriter
	device string
	frame  *camera.OwnedFrame
	close  bool
}

type persistFramesProcess struct {
	ctx      context.Context
	cancel   context.CancelFunc
	stopping chan interface{}
	frames   chan persistItem
}

func newPersistFramesProcess(frames chan persistItem) Process {
	ctx, cancel := context.WithCancel(context.Background())
	return &persistFramesProcess{
		ctx: ctx, cancel: cancel, frames: frames, stopping: make(chan interface{}),
	}
}

func (proc *persistFramesProcess) Setup() Process { return proc }

func (proc *persistFramesProcess) Start() {
	go proc.run()
}

func (proc *persistFramesProcess) run() {
	defer close(proc.stopping)
	for {
		select {
		case <-proc.ctx.Done():
			proc.drain()
			return
		case item := <-proc.frames:
			persist(item)
		}
	}
}

// drain writes whatever was queued before the stop.
func (proc *persistFramesProcess) drain() {
	for {
		select {
		case item := <-proc.frames:
			persist(item)
		default:
			return
		}
	}
}

func persist(item persistItem) {
	if item.close {
		if err := item.writer.Close(); err != nil {
			log.Error("Unable to close recording of [%s]: %v", item.device, err)
		}
		return
	}
	if err := item.writer.WriteFrame(item.device, item.frame); err != nil {
		log.Error("Unable to record frame from [%s]: %v", item.device, err)
	}
}

func (proc *persistFramesProcess) Stop() {
	proc.cancel()
}

func (proc *persistFramesProcess) Wait() {
	<-proc.stopping
}
