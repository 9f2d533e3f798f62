// Package cameratest checks a backend against the behaviour every
// camera.Manager, Device and Stream must share.
package cameratest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/camerastream/pkg/camera"
)

// Conformance runs the shared contract checks against Manager.
type Conformance struct {
	Manager camera.Manager
	// Produce makes the backend emit n frames on s. Backends which capture
	// on their own leave it nil.
	Produce func(s camera.Stream, n int) error
	// Timeout bounds every wait for frames, defaults to two seconds.
	Timeout time.Duration
}

// Observed is what a handler saw of one frame.
type Observed struct {
	PixelFormat camera.PixelFormat
	Size        camera.Size
	Timestamp   time.Duration
	PlaneLens   []int
	Strides     []int
}

// Recorder is a FrameHandler which remembers frame metadata.
type Recorder struct {
	mu     sync.Mutex
	frames []Observed
}

func (r *Recorder) Handle(f camera.Frame) {
	planes := f.Planes()
	o := Observed{
		PixelFormat: f.PixelFormat(),
		Size:        f.Size(),
		Timestamp:   f.Timestamp(),
		PlaneLens:   make([]int, len(planes)),
		Strides:     make([]int, len(planes)),
	}
	for i, p := range planes {
		o.PlaneLens[i] = len(p.Data)
		o.Strides[i] = p.Stride
	}
	r.mu.Lock()
	r.frames = append(r.frames, o)
	r.mu.Unlock()
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func (r *Recorder) Frames() []Observed {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Observed, len(r.frames))
	copy(out, r.frames)
	return out
}

func (c Conformance) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 2 * time.Second
}

func (c Conformance) Run(t *testing.T) {
	t.Run("DefaultDeviceIsEnumerated", c.defaultDeviceIsEnumerated)
	t.Run("AdvertisedFormatsOpen", c.advertisedFormatsOpen)
	t.Run("OutOfRangeRateIsRejected", c.outOfRangeRateIsRejected)
	t.Run("FramesMatchConfig", c.framesMatchConfig)
	t.Run("NoFramesAfterStop", c.noFramesAfterStop)
	t.Run("StopIsIdempotent", c.stopIsIdempotent)
	t.Run("StartTwiceFails", c.startTwiceFails)
}

func (c Conformance) devices(t *testing.T) []camera.Device {
	devices, err := c.Manager.EnumerateDevices()
	require.NoError(t, err)
	return camera.Collect(devices)
}

func formats(t *testing.T, d camera.Device) []camera.FormatDescriptor {
	seq, err := d.SupportedFormats()
	require.NoError(t, err)
	return camera.Collect(seq)
}

func (c Conformance) defaultDeviceIsEnumerated(t *testing.T) {
	def, ok, err := c.Manager.DefaultDevice()
	require.NoError(t, err)
	if !ok {
		return
	}
	found := false
	for _, d := range c.devices(t) {
		if d.ID() == def.ID() {
			found = true
		}
	}
	assert.True(t, found, "default device %s missing from enumeration", def.ID())
}

func (c Conformance) advertisedFormatsOpen(t *testing.T) {
	for _, d := range c.devices(t) {
		for _, desc := range formats(t, d) {
			for _, rr := range desc.FrameRateRanges() {
				for _, rate := range []camera.FrameRate{rr.Min, rr.Max} {
					s, err := d.Open(desc.Config(rate))
					require.NoError(t, err, "%s: %s", d.ID(), desc.Config(rate))
					assert.Equal(t, camera.Idle, s.State())
					require.NoError(t, s.Close())
				}
			}
		}
	}
}

func supportedAnywhere(descs []camera.FormatDescriptor, cfg camera.StreamConfig) bool {
	for _, d := range descs {
		if d.Matches(cfg) && d.Supports(cfg.FrameRate) {
			return true
		}
	}
	return false
}

func (c Conformance) outOfRangeRateIsRejected(t *testing.T) {
	for _, d := range c.devices(t) {
		descs := formats(t, d)
		for _, desc := range descs {
			top := desc.MaxFrameRate()
			rate := camera.FrameRate{Numerator: top.Numerator*2 + 1, Denominator: top.Denominator}
			cfg := desc.Config(rate)
			if supportedAnywhere(descs, cfg) {
				continue
			}
			s, err := d.Open(cfg)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, camera.ErrUnsupportedConfig)
		}
	}
}

// firstPerFormat picks one descriptor per pixel format.
func firstPerFormat(descs []camera.FormatDescriptor) []camera.FormatDescriptor {
	seen := map[camera.PixelFormat]bool{}
	var picked []camera.FormatDescriptor
	for _, d := range descs {
		if !seen[d.PixelFormat()] {
			seen[d.PixelFormat()] = true
			picked = append(picked, d)
		}
	}
	return picked
}

func (c Conformance) produce(t *testing.T, s camera.Stream, rec *Recorder, n int) {
	want := rec.Count() + n
	if c.Produce != nil {
		require.NoError(t, c.Produce(s, n))
	}
	require.Eventually(t, func() bool { return rec.Count() >= want }, c.timeout(), time.Millisecond)
}

func (c Conformance) framesMatchConfig(t *testing.T) {
	for _, d := range c.devices(t) {
		for _, desc := range firstPerFormat(formats(t, d)) {
			cfg := desc.Config(desc.MaxFrameRate())
			s, err := d.Open(cfg)
			require.NoError(t, err)

			rec := &Recorder{}
			require.NoError(t, s.Start(rec.Handle))
			assert.Equal(t, camera.Running, s.State())
			c.produce(t, s, rec, 3)
			require.NoError(t, s.Stop())
			require.NoError(t, s.Close())

			var last time.Duration
			for i, f := range rec.Frames() {
				assert.Equal(t, cfg.PixelFormat, f.PixelFormat)
				assert.Equal(t, cfg.Size, f.Size)
				require.Len(t, f.PlaneLens, cfg.PixelFormat.PlaneCount())
				if i > 0 {
					assert.GreaterOrEqual(t, f.Timestamp, last, "frames out of capture order")
				}
				last = f.Timestamp
				for _, n := range f.PlaneLens {
					assert.Greater(t, n, 0)
				}
			}
		}
	}
}

func (c Conformance) openFirst(t *testing.T) camera.Stream {
	devices := c.devices(t)
	require.NotEmpty(t, devices)
	descs := formats(t, devices[0])
	require.NotEmpty(t, descs)
	s, err := devices[0].Open(descs[0].Config(descs[0].MaxFrameRate()))
	require.NoError(t, err)
	return s
}

func (c Conformance) noFramesAfterStop(t *testing.T) {
	s := c.openFirst(t)
	defer s.Close()

	rec := &Recorder{}
	require.NoError(t, s.Start(rec.Handle))
	c.produce(t, s, rec, 2)
	require.NoError(t, s.Stop())

	sampled := rec.Count()
	if c.Produce != nil {
		_ = c.Produce(s, 1)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, sampled, rec.Count())
	assert.Equal(t, camera.Stopped, s.State())
}

func (c Conformance) stopIsIdempotent(t *testing.T) {
	s := c.openFirst(t)
	defer s.Close()

	rec := &Recorder{}
	require.NoError(t, s.Stop())
	assert.Equal(t, camera.Idle, s.State())

	require.NoError(t, s.Start(rec.Handle))
	require.NoError(t, s.Stop())
	count := rec.Count()
	require.NoError(t, s.Stop())
	assert.Equal(t, camera.Stopped, s.State())
	assert.Equal(t, count, rec.Count())
}

func (c Conformance) startTwiceFails(t *testing.T) {
	s := c.openFirst(t)
	defer s.Close()

	first, second := &Recorder{}, &Recorder{}
	require.NoError(t, s.Start(first.Handle))
	err := s.Start(second.Handle)
	assert.ErrorIs(t, err, camera.ErrAlreadyRunning)

	c.produce(t, s, first, 1)
	require.NoError(t, s.Stop())
	assert.Equal(t, 0, second.Count())
}
