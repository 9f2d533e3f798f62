//go:build linux

package v4l2backend_test

import (
	"sync"
	"syscall"
	"time"

	"github.com/blackjack/webcam"
	"github.com/tauraamui/camerastream/pkg/backend/v4l2backend"
)

var (
	fourccYUYV = webcam.PixelFormat('Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24)
	fourccMJPG = webcam.PixelFormat('M' | 'J'<<8 | 'P'<<16 | 'G'<<24)
	fourccGREY = webcam.PixelFormat('G' | 'R'<<8 | 'E'<<16 | 'Y'<<24)
	fourccNV12 = webcam.PixelFormat('N' | 'V'<<8 | '1'<<16 | '2'<<24)
)

// node is a simulated /dev/video node shared by every handle opened on it.
type node struct {
	mu        sync.Mutex
	name      string
	streaming bool
	owner     *handle
	frames    chan []byte
	controls  map[webcam.ControlID]webcam.Control
	values    map[webcam.ControlID]int32
	format    webcam.PixelFormat
	width     uint32
	height    uint32
	fps       float32
	opened    int
	closed    int
	failWait  error
	// formats overrides the driver's default format list when set.
	formats map[webcam.PixelFormat]string
}

func newNode(name string) *node {
	return &node{
		name:     name,
		frames:   make(chan []byte, 64),
		controls: map[webcam.ControlID]webcam.Control{},
		values:   map[webcam.ControlID]int32{},
	}
}

func (n *node) push(frame []byte) { n.frames <- frame }

func (n *node) value(id webcam.ControlID) int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.values[id]
}

type handle struct {
	n         *node
	streaming bool
	current   []byte
}

var _ v4l2backend.Handle = (*handle)(nil)

func (h *handle) GetName() (string, error)    { return h.n.name, nil }
func (h *handle) GetBusInfo() (string, error) { return "usb-0000:00:14.0-1", nil }

func (h *handle) GetSupportedFormats() map[webcam.PixelFormat]string {
	if h.n.formats != nil {
		return h.n.formats
	}
	return map[webcam.PixelFormat]string{
		fourccYUYV: "YUYV 4:2:2",
		fourccMJPG: "Motion-JPEG",
		fourccGREY: "8-bit Greyscale",
	}
}

func (h *handle) GetSupportedFrameSizes(f webcam.PixelFormat) []webcam.FrameSize {
	switch f {
	case fourccYUYV:
		return []webcam.FrameSize{{MinWidth: 640, MaxWidth: 640, MinHeight: 480, MaxHeight: 480}}
	case fourccMJPG:
		return []webcam.FrameSize{{MinWidth: 1280, MaxWidth: 1280, MinHeight: 720, MaxHeight: 720}}
	}
	return []webcam.FrameSize{{MinWidth: 320, MaxWidth: 320, MinHeight: 240, MaxHeight: 240}}
}

func (h *handle) GetSupportedFramerates(f webcam.PixelFormat, w, hgt uint32) []webcam.FrameRate {
	if f == fourccMJPG {
		return []webcam.FrameRate{
			{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 30, MaxDenominator: 30},
			{MinNumerator: 1, MaxNumerator: 1, MinDenominator: 15, MaxDenominator: 15},
		}
	}
	// stepwise 1/30s to 1/5s
	return []webcam.FrameRate{{MinNumerator: 1, MaxNumerator: 1, StepNumerator: 1, MinDenominator: 30, MaxDenominator: 5, StepDenominator: 1}}
}

func (h *handle) SetImageFormat(f webcam.PixelFormat, w, hgt uint32) (webcam.PixelFormat, uint32, uint32, error) {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	if h.n.owner != nil && h.n.owner != h {
		return 0, 0, 0, syscall.EBUSY
	}
	h.n.owner = h
	h.n.format, h.n.width, h.n.height = f, w, hgt
	return f, w, hgt, nil
}

func (h *handle) SetBufferCount(uint32) error { return nil }

func (h *handle) SetFramerate(fps float32) error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	h.n.fps = fps
	return nil
}

func (h *handle) StartStreaming() error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	h.streaming = true
	h.n.streaming = true
	return nil
}

func (h *handle) WaitForFrame(timeout uint32) error {
	h.n.mu.Lock()
	failWait := h.n.failWait
	h.n.mu.Unlock()
	if failWait != nil {
		return failWait
	}
	select {
	case f := <-h.n.frames:
		h.current = f
		return nil
	case <-time.After(time.Duration(timeout) * time.Millisecond):
		return &webcam.Timeout{}
	}
}

func (h *handle) GetFrame() ([]byte, uint32, error) { return h.current, 0, nil }

func (h *handle) ReleaseFrame(uint32) error {
	h.current = nil
	return nil
}

func (h *handle) StopStreaming() error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	h.streaming = false
	h.n.streaming = false
	return nil
}

func (h *handle) GetControls() map[webcam.ControlID]webcam.Control {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	out := make(map[webcam.ControlID]webcam.Control, len(h.n.controls))
	for id, c := range h.n.controls {
		out[id] = c
	}
	return out
}

func (h *handle) GetControl(id webcam.ControlID) (int32, error) {
	return h.n.value(id), nil
}

func (h *handle) SetControl(id webcam.ControlID, v int32) error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	h.n.values[id] = v
	return nil
}

func (h *handle) Close() error {
	h.n.mu.Lock()
	defer h.n.mu.Unlock()
	if h.n.owner == h {
		h.n.owner = nil
	}
	h.n.closed++
	return nil
}
