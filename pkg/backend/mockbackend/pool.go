package mockbackend

import (
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/xerror"
)

var ErrPoolExhausted = xerror.New("frame buffer pool exhausted")

// buffer is one reusable capture buffer, planes are carved out of data.
type buffer struct {
	data   []byte
	planes [camera.MaxPlanes]camera.Plane
	n      int
}

func (b *buffer) Planes() []camera.Plane { return b.planes[:b.n] }

// setPayload stores a variable length compressed frame, growing data if
// it has to.
func (b *buffer) setPayload(p []byte) {
	b.data = append(b.data[:0], p...)
	b.planes[0] = camera.Plane{Data: b.data}
	b.n = 1
}

// pool is a fixed set of buffers shared between injectors and the capture
// goroutine, the way a driver hands out a fixed ring of mapped buffers.
type pool struct {
	free chan *buffer
}

func newPool(cfg camera.StreamConfig, depth, rowPadding int) *pool {
	p := &pool{free: make(chan *buffer, depth)}
	for i := 0; i < depth; i++ {
		p.free <- newBuffer(cfg, rowPadding)
	}
	return p
}

func newBuffer(cfg camera.StreamConfig, rowPadding int) *buffer {
	format := cfg.PixelFormat
	if format.Compressed() {
		return &buffer{data: make([]byte, 0, int(cfg.Size.Width*cfg.Size.Height))}
	}

	var strides [camera.MaxPlanes]int
	total := 0
	for i := 0; i < format.PlaneCount(); i++ {
		strides[i] = format.MinStride(i, cfg.Size.Width) + rowPadding
		total += strides[i] * format.PlaneRows(i, cfg.Size.Height)
	}

	b := &buffer{data: make([]byte, total), n: format.PlaneCount()}
	offset := 0
	for i := 0; i < b.n; i++ {
		l := strides[i] * format.PlaneRows(i, cfg.Size.Height)
		b.planes[i] = camera.Plane{Data: b.data[offset : offset+l : offset+l], Stride: strides[i]}
		offset += l
	}
	return b
}

// get never blocks, a slow handler shows up as ErrPoolExhausted. Only the
// generator uses it, like a sensor which cannot pause.
func (p *pool) get() (*buffer, error) {
	select {
	case b := <-p.free:
		return b, nil
	default:
		return nil, ErrPoolExhausted
	}
}

// wait blocks until a buffer is free or stop is closed.
func (p *pool) wait(stop <-chan struct{}) (*buffer, bool) {
	select {
	case b := <-p.free:
		return b, true
	case <-stop:
		return nil, false
	}
}

func (p *pool) put(b *buffer) {
	select {
	case p.free <- b:
	default:
	}
}

func (p *pool) available() int { return len(p.free) }

// drain drops every free buffer so a released stream holds no frame memory.
func (p *pool) drain() {
	for {
		select {
		case <-p.free:
		default:
			return
		}
	}
}
