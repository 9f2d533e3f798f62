package camera

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tauraamui/xerror"
)

// Lifecycle is the Idle, Running, Stopped state machine every backend
// stream shares. A backend keeps one per stream, drives it with its own
// activate/halt/release hooks and pushes captured frames through Deliver.
type Lifecycle struct {
	device string
	cfg    StreamConfig

	// transition serializes Start, Stop and Close. It is never taken by
	// the capture goroutine.
	transition sync.Mutex

	mu     sync.Mutex
	state  State
	err    error
	closed bool

	// delivery is held for the whole of each handler call, clearing the
	// handler under it is what makes Stop wait for quiescence.
	delivery sync.Mutex
	handler  FrameHandler
	frame    BorrowedFrame

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewLifecycle(device string, cfg StreamConfig) *Lifecycle {
	return &Lifecycle{device: device, cfg: cfg}
}

func (l *Lifecycle) Config() StreamConfig { return l.cfg }

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err is the backend failure which forced the stream to stop, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Lifecycle) Stats() StreamStats {
	return StreamStats{Delivered: l.delivered.Load(), Dropped: l.dropped.Load()}
}

// Start registers handler then calls activate. The stream stays Idle when
// activate fails.
func (l *Lifecycle) Start(handler FrameHandler, activate func() error) error {
	if handler == nil {
		return StartError(l.device, ErrNoHandler)
	}

	l.transition.Lock()
	defer l.transition.Unlock()

	switch l.State() {
	case Running:
		return AlreadyRunningError(l.device)
	case Stopped:
		return StartError(l.device, ErrStreamStopped)
	}

	l.setHandler(handler)
	if activate != nil {
		if err := activate(); err != nil {
			l.setHandler(nil)
			return StartError(l.device, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// a failure reported during activation already moved us to Stopped
	if l.state == Idle {
		l.state = Running
	}
	return nil
}

// Stop calls halt, waits out any in flight handler call and moves to
// Stopped. A halt failure is returned but the stream still stops.
func (l *Lifecycle) Stop(halt func() error) error {
	l.transition.Lock()
	defer l.transition.Unlock()
	return l.stop(halt)
}

func (l *Lifecycle) stop(halt func() error) error {
	if l.State() != Running {
		return nil
	}

	var err error
	if halt != nil {
		err = halt()
	}
	l.setHandler(nil)

	l.mu.Lock()
	l.state = Stopped
	l.mu.Unlock()

	if err != nil {
		return StopError(l.device, err)
	}
	return nil
}

// Close stops a running stream then calls release exactly once.
func (l *Lifecycle) Close(halt, release func() error) error {
	l.transition.Lock()
	defer l.transition.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	stopErr := l.stop(halt)
	l.setHandler(nil)

	l.mu.Lock()
	l.state = Stopped
	l.mu.Unlock()

	var releaseErr error
	if release != nil {
		if err := release(); err != nil {
			releaseErr = xerror.Errorf("unable to release stream resources [%s]: %w", l.device, err)
		}
	}
	return errors.Join(stopErr, releaseErr)
}

// Fail forces the stream to Stopped after an unrecoverable backend error.
// It is called from the capture goroutine, never from inside a handler.
func (l *Lifecycle) Fail(cause error) {
	l.setHandler(nil)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Stopped {
		l.state = Stopped
		l.err = cause
	}
}

// Drop records a frame the backend had to discard.
func (l *Lifecycle) Drop() {
	l.dropped.Add(1)
}

// Deliver hands one captured frame to the handler and returns after the
// handler does, at which point the planes may be reused. It returns
// ErrStreamStopped when there is no handler to deliver to.
func (l *Lifecycle) Deliver(ts time.Duration, planes ...Plane) error {
	if err := l.checkPlanes(planes); err != nil {
		l.dropped.Add(1)
		return err
	}

	l.delivery.Lock()
	defer l.delivery.Unlock()
	if l.handler == nil {
		return ErrStreamStopped
	}

	l.frame.fill(l.cfg.PixelFormat, l.cfg.Size, ts, planes)
	l.frame.live.Store(true)
	defer l.frame.release()

	l.handler(&l.frame)
	l.delivered.Add(1)
	return nil
}

func (l *Lifecycle) checkPlanes(planes []Plane) error {
	format := l.cfg.PixelFormat
	if len(planes) != format.PlaneCount() {
		return xerror.Errorf("%w: %d planes for %s", ErrInvalidFrame, len(planes), format)
	}
	if format.Compressed() {
		if len(planes[0].Data) == 0 {
			return xerror.Errorf("%w: empty %s payload", ErrInvalidFrame, format)
		}
		return nil
	}
	for i, p := range planes {
		stride := format.MinStride(i, l.cfg.Size.Width)
		rows := format.PlaneRows(i, l.cfg.Size.Height)
		if p.Stride < stride || len(p.Data) < p.Stride*(rows-1)+stride {
			return xerror.Errorf("%w: plane %d too small for %s", ErrInvalidFrame, i, l.cfg.Size)
		}
	}
	return nil
}

func (l *Lifecycle) setHandler(h FrameHandler) {
	l.delivery.Lock()
	l.handler = h
	l.delivery.Unlock()
}
