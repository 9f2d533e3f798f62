package mockbackend

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/log"
)

type queued struct {
	buf *buffer
	ts  time.Duration
}

// Stream is a mock capture session. Frames reach the handler from a
// dedicated capture goroutine, either injected by the caller or produced
// by the camera's generator.
type Stream struct {
	id   string
	cam  *Camera
	desc camera.FormatDescriptor
	life *camera.Lifecycle
	pool *pool

	mu      sync.Mutex
	rate    camera.FrameRate
	queue   chan queued
	stop    chan struct{}
	wg      sync.WaitGroup
	started time.Time
	seq     atomic.Uint64
}

func newStream(id string, cam *Camera, desc camera.FormatDescriptor, cfg camera.StreamConfig) *Stream {
	return &Stream{
		id:   id,
		cam:  cam,
		desc: desc,
		life: camera.NewLifecycle(cam.id, cfg),
		pool: newPool(cfg, cam.poolDepth, cam.rowPadding),
		rate: cfg.FrameRate,
	}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Device() string { return s.cam.id }

// Config reports the frame rate currently in effect.
func (s *Stream) Config() camera.StreamConfig {
	cfg := s.life.Config()
	s.mu.Lock()
	cfg.FrameRate = s.rate
	s.mu.Unlock()
	return cfg
}

func (s *Stream) State() camera.State { return s.life.State() }

func (s *Stream) Stats() camera.StreamStats { return s.life.Stats() }

// Err is the failure which forced the stream to stop, if any.
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
	if err := s.cam.err(&s.cam.startErr); err != nil {
		return err
	}

	s.mu.Lock()
	s.queue = make(chan queued, s.cam.poolDepth)
	s.stop = make(chan struct{})
	s.started = time.Now()
	queue, stop := s.queue, s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.capture(queue, stop)

	if s.cam.generate {
		r, err := newRenderer(s.cam.name, s.life.Config())
		if err != nil {
			s.shutdown()
			return err
		}
		s.wg.Add(1)
		go s.generate(r, stop)
	}
	return nil
}

// capture is the backend's capture thread, the only caller of Deliver.
func (s *Stream) capture(queue chan queued, stop chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		case q := <-queue:
			if err := s.life.Deliver(q.ts, q.buf.Planes()...); err != nil {
				log.Debug("Mock stream [%s] dropped frame: %v", s.id, err)
			}
			s.pool.put(q.buf)
		}
	}
}

func (s *Stream) generate(r *renderer, stop chan struct{}) {
	defer s.wg.Done()
	timer := time.NewTimer(s.frameInterval())
	defer timer.Stop()
	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			buf, err := s.pool.get()
			if err != nil {
				s.life.Drop()
			} else if err := r.render(time.Since(s.started), buf); err != nil {
				s.pool.put(buf)
				s.life.Fail(err)
				return
			} else if !s.enqueue(queued{buf: buf, ts: time.Since(s.started)}) {
				return
			}
			timer.Reset(s.frameInterval())
		}
	}
}

func (s *Stream) frameInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate.FrameDuration()
}

func (s *Stream) enqueue(q queued) bool {
	s.mu.Lock()
	queue, stop := s.queue, s.stop
	s.mu.Unlock()
	if stop == nil {
		s.pool.put(q.buf)
		return false
	}

	select {
	case queue <- q:
		return true
	case <-stop:
		s.pool.put(q.buf)
		return false
	}
}

// Inject queues one synthetic frame with the given timestamp for delivery
// on the capture goroutine. It waits for a free buffer while the handler
// holds them all, so it must not be called from inside the handler. It
// fails without calling the handler when the stream is not running or
// stops while waiting.
func (s *Stream) Inject(ts time.Duration) error {
	if s.life.State() != camera.Running {
		return camera.ErrStreamStopped
	}
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop == nil {
		return camera.ErrStreamStopped
	}

	buf, ok := s.pool.wait(stop)
	if !ok {
		return camera.ErrStreamStopped
	}
	fillPattern(s.life.Config().PixelFormat, s.seq.Add(1), buf)
	if !s.enqueue(queued{buf: buf, ts: ts}) {
		return camera.ErrStreamStopped
	}
	return nil
}

// Disconnect simulates the camera vanishing mid capture.
func (s *Stream) Disconnect(cause error) {
	s.life.Fail(cause)
}

func (s *Stream) halt() error {
	s.shutdown()
	return s.cam.err(&s.cam.stopErr)
}

// shutdown ends the capture and generator goroutines and reclaims queued
// buffers. It is safe to call more than once.
func (s *Stream) shutdown() {
	s.mu.Lock()
	stop, queue := s.stop, s.queue
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}

	close(stop)
	s.wg.Wait()
	for {
		select {
		case q := <-queue:
			s.pool.put(q.buf)
		default:
			return
		}
	}
}

func (s *Stream) release() error {
	// a failed stream never went through halt
	s.shutdown()
	s.pool.drain()
	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.sessions--
	return nil
}

// SetFrameRate changes the generator's rate, the rate must be advertised
// for the stream's format and size. An Idle stream keeps it for Start, a
// Stopped one refuses it.
func (s *Stream) SetFrameRate(rate camera.FrameRate) error {
	const op = "set frame rate"
	d := &device{cam: s.cam}
	return capability.WithConfigLock(d, op, func() error {
		if s.life.State() == camera.Stopped {
			return camera.CapabilityError(s.cam.id, op, camera.ErrStreamStopped)
		}
		if !s.desc.Supports(rate) {
			return camera.CapabilityError(s.cam.id, op, camera.ErrUnsupportedConfig)
		}
		s.mu.Lock()
		s.rate = rate
		s.mu.Unlock()
		return nil
	})
}
