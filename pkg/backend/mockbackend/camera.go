package mockbackend

import (
	"sync"
	"time"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
)

const (
	defaultPoolDepth = 4
	// streamHistory bounds how many opened streams a camera remembers.
	streamHistory = 8
)

// Capabilities describes which controls a mock camera offers.
type Capabilities struct {
	FocusModes        []capability.FocusMode
	FocusPoint        bool
	ExposureModes     []capability.ExposureMode
	ExposurePoint     bool
	ExposureBiasMin   float64
	ExposureBiasMax   float64
	WhiteBalanceModes []capability.WhiteBalanceMode
	TorchModes        []capability.TorchMode
	MaxZoom           float64
}

// FullCapabilities is a camera which supports every control.
func FullCapabilities() Capabilities {
	return Capabilities{
		FocusModes:        []capability.FocusMode{capability.FocusLocked, capability.FocusAuto, capability.FocusContinuousAuto},
		FocusPoint:        true,
		ExposureModes:     []capability.ExposureMode{capability.ExposureLocked, capability.ExposureAuto, capability.ExposureContinuousAuto},
		ExposurePoint:     true,
		ExposureBiasMin:   -8,
		ExposureBiasMax:   8,
		WhiteBalanceModes: []capability.WhiteBalanceMode{capability.WhiteBalanceLocked, capability.WhiteBalanceContinuousAuto},
		TorchModes:        []capability.TorchMode{capability.TorchOff, capability.TorchOn},
		MaxZoom:           4,
	}
}

// Controls is the current hardware control state of a mock camera.
type Controls struct {
	Focus         capability.FocusMode
	FocusPoint    capability.Point
	Exposure      capability.ExposureMode
	ExposurePoint capability.Point
	ExposureBias  float64
	WhiteBalance  capability.WhiteBalanceMode
	Torch         capability.TorchMode
	Zoom          float64
}

// Camera is one simulated physical camera. Devices handed out by a Manager
// are handles onto a Camera, so state such as the busy flag and the
// configuration lock is shared between them.
type Camera struct {
	id      string
	name    string
	formats []camera.FormatDescriptor
	caps    Capabilities
	plain   bool

	exclusive  bool
	rowPadding int
	poolDepth  int
	generate   bool

	lock *capability.DeviceLock

	mu       sync.Mutex
	queryErr error
	openErr  error
	startErr error
	stopErr  error
	sessions int
	controls Controls
	streams  []*Stream
}

type Option func(*Camera)

// WithExclusive forbids more than one open stream at a time.
func WithExclusive() Option { return func(c *Camera) { c.exclusive = true } }

// WithRowPadding pads every plane row by n bytes.
func WithRowPadding(n int) Option { return func(c *Camera) { c.rowPadding = n } }

// WithPoolDepth sets how many capture buffers each stream owns.
func WithPoolDepth(n int) Option { return func(c *Camera) { c.poolDepth = n } }

// WithGenerator makes running streams produce rendered frames on their own
// at the configured frame rate.
func WithGenerator() Option { return func(c *Camera) { c.generate = true } }

func WithCapabilities(caps Capabilities) Option { return func(c *Camera) { c.caps = caps } }

// WithoutCapabilities hands out devices which only implement the core
// device contract.
func WithoutCapabilities() Option { return func(c *Camera) { c.plain = true } }

// WithLockTimeout makes configuration changes wait for a held lock.
func WithLockTimeout(d time.Duration) Option {
	return func(c *Camera) { c.lock = capability.NewDeviceLock(d) }
}

func NewCamera(id, name string, formats []camera.FormatDescriptor, opts ...Option) *Camera {
	c := &Camera{
		id:        id,
		name:      name,
		formats:   formats,
		caps:      FullCapabilities(),
		poolDepth: defaultPoolDepth,
		lock:      capability.NewDeviceLock(0),
		controls: Controls{
			Focus:        capability.FocusContinuousAuto,
			Exposure:     capability.ExposureContinuousAuto,
			WhiteBalance: capability.WhiteBalanceContinuousAuto,
			Zoom:         1,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.poolDepth < 1 {
		c.poolDepth = 1
	}
	return c
}

// StandardFormats is a typical webcam format list covering every pixel format.
func StandardFormats() []camera.FormatDescriptor {
	vga := camera.Size{Width: 640, Height: 480}
	hd := camera.Size{Width: 1280, Height: 720}
	upTo30 := camera.FrameRateRange{Min: camera.FPS(1), Max: camera.FPS(30)}
	return []camera.FormatDescriptor{
		camera.NewFormatDescriptor(camera.NV12, hd, upTo30),
		camera.NewFormatDescriptor(camera.NV12, vga, upTo30, camera.FixedRate(camera.FPS(60))),
		camera.NewFormatDescriptor(camera.YUYV, vga, upTo30),
		camera.NewFormatDescriptor(camera.UYVY, vga, upTo30),
		camera.NewFormatDescriptor(camera.BGRA32, vga, upTo30),
		camera.NewFormatDescriptor(camera.JPEG, hd, camera.FixedRate(camera.FPS(15)), camera.FixedRate(camera.FPS(30))),
	}
}

func (c *Camera) ID() string { return c.id }

func (c *Camera) Name() string { return c.name }

// FailQuery makes format queries fail with err, nil clears it.
func (c *Camera) FailQuery(err error) { c.mu.Lock(); c.queryErr = err; c.mu.Unlock() }

// FailOpen makes Open fail with err as the native cause.
func (c *Camera) FailOpen(err error) { c.mu.Lock(); c.openErr = err; c.mu.Unlock() }

// FailStart makes stream activation fail with err.
func (c *Camera) FailStart(err error) { c.mu.Lock(); c.startErr = err; c.mu.Unlock() }

// FailStop makes stream halting report err.
func (c *Camera) FailStop(err error) { c.mu.Lock(); c.stopErr = err; c.mu.Unlock() }

// LockForConfiguration takes the camera's configuration lock as if some
// other client held it.
func (c *Camera) LockForConfiguration() (func(), error) {
	return c.lock.Acquire()
}

// Sessions is the number of streams currently open on the camera.
func (c *Camera) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

func (c *Camera) Controls() Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls
}

// Streams lists the streams most recently opened on the camera, newest
// last. Only the last streamHistory are kept.
func (c *Camera) Streams() []*Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Stream, len(c.streams))
	copy(out, c.streams)
	return out
}

// LastStream is the most recently opened stream, nil if there is none.
func (c *Camera) LastStream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[len(c.streams)-1]
}

func (c *Camera) err(which *error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *which
}

// Device is a handle onto the camera, the same one enumeration yields.
func (c *Camera) Device() camera.Device { return c.handle() }

func (c *Camera) handle() camera.Device {
	if c.plain {
		return plainDevice{dev: &device{cam: c}}
	}
	return &device{cam: c}
}
