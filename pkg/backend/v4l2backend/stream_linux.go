//go:build linux

package v4l2backend

import (
	"errors"
	"sync"
	"time"

	"github.com/blackjack/webcam"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/xerror"
)

// frameWait bounds each wait for a dequeued buffer so the capture loop
// notices stop requests.
const frameWait = 200 // milliseconds

// Stream streams mmap'd buffers from one configured node.
type Stream struct {
	id   string
	dev  *device
	h    Handle
	desc camera.FormatDescriptor
	life *camera.Lifecycle

	mu      sync.Mutex
	rate    camera.FrameRate
	stop    chan struct{}
	wg      sync.WaitGroup
	started time.Time

	// planes is reused for every frame by the capture goroutine.
	planes [camera.MaxPlanes]camera.Plane
}

func newStream(id string, dev *device, h Handle, desc camera.FormatDescriptor, cfg camera.StreamConfig) *Stream {
	return &Stream{
		id:   id,
		dev:  dev,
		h:    h,
		desc: desc,
		life: camera.NewLifecycle(dev.path, cfg),
		rate: cfg.FrameRate,
	}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Device() string { return s.dev.path }

func (s *Stream) Config() camera.StreamConfig {
	cfg := s.life.Config()
	s.mu.Lock()
	cfg.FrameRate = s.rate
	s.mu.Unlock()
	return cfg
}

func (s *Stream) State() camera.State { return s.life.State() }

func (s *Stream) Stats() camera.StreamStats { return s.life.Stats() }

func (s *Stream) Err() error { return s.life.Err() }

func (s *Stream) Start(handler camera.FrameHandler) error {
	return s.life.Start(handler, s.activate)
}

func (s *Stream) Stop() error {
	return s.life.Stop(s.halt)
}

func (s *Stream) Close() error {
	return s.life.Close(s.halt, s.release)
}

func (s *Stream) activate() error {
	if err := s.h.StartStreaming(); err != nil {
		return err
	}
	s.mu.Lock()
	s.stop = make(chan struct{})
	s.started = time.Now()
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.capture(stop)
	return nil
}

// capture is the only caller of Deliver. The driver gives no usable
// capture clock so timestamps are monotonic time since Start.
func (s *Stream) capture(stop chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		err := s.h.WaitForFrame(frameWait)
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			continue
		}
		if err != nil {
			log.Error("Camera [%s] stopped producing frames: %v", s.dev.path, err)
			s.life.Fail(err)
			return
		}

		data, index, err := s.h.GetFrame()
		if err != nil {
			log.Error("Camera [%s] frame dequeue failed: %v", s.dev.path, err)
			s.life.Fail(err)
			return
		}
		s.deliver(time.Since(s.started), data)
		if err := s.h.ReleaseFrame(index); err != nil {
			log.Error("Camera [%s] unable to requeue buffer %d: %v", s.dev.path, index, err)
			s.life.Fail(err)
			return
		}
	}
}

func (s *Stream) deliver(ts time.Duration, data []byte) {
	if len(data) == 0 {
		s.life.Drop()
		return
	}
	if err := s.life.Deliver(ts, splitPlanes(s.life.Config(), data, &s.planes)...); err != nil {
		log.Debug("Camera [%s] dropped frame: %v", s.dev.path, err)
	}
}

// splitPlanes carves a contiguous driver buffer into planes held in dst.
// Single planar V4L2 formats pack every plane back to back at minimum stride.
func splitPlanes(cfg camera.StreamConfig, data []byte, dst *[camera.MaxPlanes]camera.Plane) []camera.Plane {
	format := cfg.PixelFormat
	if format.Compressed() {
		dst[0] = camera.Plane{Data: data}
		return dst[:1]
	}
	n := format.PlaneCount()
	offset := 0
	for i := 0; i < n; i++ {
		stride := format.MinStride(i, cfg.Size.Width)
		end := min(offset+stride*format.PlaneRows(i, cfg.Size.Height), len(data))
		dst[i] = camera.Plane{Data: data[offset:end:end], Stride: stride}
		offset = end
	}
	return dst[:n]
}

func (s *Stream) halt() error {
	s.shutdown()
	return s.h.StopStreaming()
}

func (s *Stream) shutdown() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.wg.Wait()
}

func (s *Stream) release() error {
	s.shutdown()
	defer s.dev.manager.unclaim(s.dev.path)
	if err := s.h.Close(); err != nil {
		return xerror.Errorf("unable to close %s: %w", s.dev.path, err)
	}
	return nil
}

// SetFrameRate asks the driver for a new capture rate from the stream's
// descriptor. An Idle stream keeps the rate for Start, a Stopped one
// refuses it.
func (s *Stream) SetFrameRate(rate camera.FrameRate) error {
	const op = "set frame rate"
	return capability.WithConfigLock(s.dev, op, func() error {
		if s.life.State() == camera.Stopped {
			return camera.CapabilityError(s.dev.path, op, camera.ErrStreamStopped)
		}
		if !s.desc.Supports(rate) {
			return camera.CapabilityError(s.dev.path, op, camera.ErrUnsupportedConfig)
		}
		if err := s.h.SetFramerate(float32(rate.Float64())); err != nil {
			return camera.CapabilityError(s.dev.path, op, err)
		}
		s.mu.Lock()
		s.rate = rate
		s.mu.Unlock()
		return nil
	})
}
