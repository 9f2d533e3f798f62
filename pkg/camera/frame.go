package camera

import (
	"sync/atomic"
	"time"
)

// MaxPlanes bounds the plane count of any supported pixel format.
const MaxPlanes = 3

// Plane is one contiguous region of a frame's pixel data. Data borrows
// backend memory and is only valid while the FrameHandler that received
// it is running. Stride may exceed the row's pixel width because of
// backend padding, it is zero for compressed payloads.
type Plane struct {
	Data   []byte
	Stride int
}

// Frame is a view over one captured image. A Frame passed to a
// FrameHandler must not be used after the handler returns, use CopyFrame
// to keep pixel data for longer.
type Frame interface {
	PixelFormat() PixelFormat
	Size() Size
	// Timestamp is monotonic from a backend chosen origin, it is not
	// comparable across devices.
	Timestamp() time.Duration
	Planes() []Plane
}

// FrameHandler consumes frames on the backend's capture goroutine.
type FrameHandler func(Frame)

// BorrowedFrame is the reusable handle backends deliver through a
// Lifecycle. It stops exposing planes as soon as the handler returns.
type BorrowedFrame struct {
	format    PixelFormat
	size      Size
	timestamp time.Duration
	planes    [MaxPlanes]Plane
	n         int
	live      atomic.Bool
}

func (f *BorrowedFrame) PixelFormat() PixelFormat { return f.format }

func (f *BorrowedFrame) Size() Size { return f.size }

func (f *BorrowedFrame) Timestamp() time.Duration { return f.timestamp }

// Planes returns nil once the frame has been released.
func (f *BorrowedFrame) Planes() []Plane {
	if !f.live.Load() {
		return nil
	}
	return f.planes[:f.n]
}

// Live reports whether the frame is still inside its handler call.
func (f *BorrowedFrame) Live() bool { return f.live.Load() }

func (f *BorrowedFrame) fill(format PixelFormat, size Size, ts time.Duration, planes []Plane) {
	f.format = format
	f.size = size
	f.timestamp = ts
	f.n = copy(f.planes[:], planes)
}

func (f *BorrowedFrame) release() {
	f.live.Store(false)
	for i := range f.planes {
		f.planes[i] = Plane{}
	}
	f.n = 0
}

// OwnedFrame is a frame whose bytes belong to the caller.
type OwnedFrame struct {
	Format PixelFormat
	Dim    Size
	At     time.Duration
	Data   []Plane
}

func (f *OwnedFrame) PixelFormat() PixelFormat { return f.Format }

func (f *OwnedFrame) Size() Size { return f.Dim }

func (f *OwnedFrame) Timestamp() time.Duration { return f.At }

func (f *OwnedFrame) Planes() []Plane { return f.Data }

// CopyFrame deep copies f so it can outlive the handler call. This is
// the one place pixel data is duplicated.
func CopyFrame(f Frame) *OwnedFrame {
	src := f.Planes()
	owned := &OwnedFrame{
		Format: f.PixelFormat(),
		Dim:    f.Size(),
		At:     f.Timestamp(),
		Data:   make([]Plane, len(src)),
	}
	for i, p := range src {
		data := make([]byte, len(p.Data))
		copy(data, p.Data)
		owned.Data[i] = Plane{Data: data, Stride: p.Stride}
	}
	return owned
}
