package mockbackend

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/camerastream/pkg/camera"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func cfgOf(format camera.PixelFormat, w, h uint32) camera.StreamConfig {
	return camera.StreamConfig{PixelFormat: format, Size: camera.Size{Width: w, Height: h}, FrameRate: camera.FPS(30)}
}

func TestWriteImageBGRASwapsChannels(t *testing.T) {
	is := is.New(t)
	buf := newBuffer(cfgOf(camera.BGRA32, 4, 2), 8)
	is.NoErr(writeImage(solid(4, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255}), camera.BGRA32, buf, &bytes.Buffer{}))

	p := buf.Planes()[0]
	is.Equal(p.Stride, 4*4+8)
	is.Equal(p.Data[:4], []byte{30, 20, 10, 255})
	is.Equal(p.Data[p.Stride:p.Stride+4], []byte{30, 20, 10, 255})
}

func TestWriteImageNV12(t *testing.T) {
	is := is.New(t)
	buf := newBuffer(cfgOf(camera.NV12, 4, 4), 0)
	is.NoErr(writeImage(solid(4, 4, color.RGBA{A: 255}), camera.NV12, buf, &bytes.Buffer{}))

	planes := buf.Planes()
	is.Equal(len(planes), 2)
	is.Equal(len(planes[0].Data), 16)
	is.Equal(len(planes[1].Data), 8)
	// black in BT.601 limited range
	is.Equal(planes[0].Data[0], byte(16))
	is.Equal(planes[1].Data[:2], []byte{128, 128})
}

func TestWriteImagePackedYUV(t *testing.T) {
	is := is.New(t)
	white := solid(2, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	yuyv := newBuffer(cfgOf(camera.YUYV, 2, 1), 0)
	is.NoErr(writeImage(white, camera.YUYV, yuyv, &bytes.Buffer{}))
	is.Equal(yuyv.Planes()[0].Data, []byte{235, 128, 235, 128})

	uyvy := newBuffer(cfgOf(camera.UYVY, 2, 1), 0)
	is.NoErr(writeImage(white, camera.UYVY, uyvy, &bytes.Buffer{}))
	is.Equal(uyvy.Planes()[0].Data, []byte{128, 235, 128, 235})
}

func TestWriteImageJPEGDecodes(t *testing.T) {
	is := is.New(t)
	buf := newBuffer(cfgOf(camera.JPEG, 32, 16), 0)
	is.NoErr(writeImage(solid(32, 16, color.RGBA{R: 200, A: 255}), camera.JPEG, buf, &bytes.Buffer{}))

	img, err := jpeg.Decode(bytes.NewReader(buf.Planes()[0].Data))
	is.NoErr(err)
	is.Equal(img.Bounds().Dx(), 32)
	is.Equal(img.Bounds().Dy(), 16)
}

func TestRendererDrawsOverlay(t *testing.T) {
	is := is.New(t)
	cfg := cfgOf(camera.BGRA32, 320, 240)
	r, err := newRenderer("Front Door", cfg)
	is.NoErr(err)

	buf := newBuffer(cfg, 0)
	is.NoErr(r.render(1500*time.Millisecond, buf))
	is.True(!bytes.Equal(r.canvas.Pix, r.base.Pix)) // text was drawn over the background
}

func TestFillPatternJPEGMarkers(t *testing.T) {
	is := is.New(t)
	buf := newBuffer(cfgOf(camera.JPEG, 16, 16), 0)
	fillPattern(camera.JPEG, 7, buf)

	data := buf.Planes()[0].Data
	is.Equal(data[:2], []byte{0xff, 0xd8})
	is.Equal(data[len(data)-2:], []byte{0xff, 0xd9})

	fillPattern(camera.JPEG, 8, buf)
	is.Equal(len(buf.Planes()[0].Data), len(data)+1)
}

func TestPoolNeverBlocks(t *testing.T) {
	is := is.New(t)
	p := newPool(cfgOf(camera.UYVY, 8, 8), 2, 0)
	a, err := p.get()
	is.NoErr(err)
	_, err = p.get()
	is.NoErr(err)
	_, err = p.get()
	is.Equal(err, ErrPoolExhausted)

	p.put(a)
	is.Equal(p.available(), 1)
}

func TestPoolWaitBlocksUntilPut(t *testing.T) {
	is := is.New(t)
	p := newPool(cfgOf(camera.UYVY, 8, 8), 1, 0)
	stop := make(chan struct{})
	a, ok := p.wait(stop)
	is.True(ok)

	got := make(chan *buffer)
	go func() {
		b, _ := p.wait(stop)
		got <- b
	}()
	select {
	case <-got:
		t.Fatal("wait returned from an empty pool")
	case <-time.After(20 * time.Millisecond):
	}
	p.put(a)
	is.Equal(<-got, a)
}

func TestPoolWaitGivesUpOnStop(t *testing.T) {
	is := is.New(t)
	p := newPool(cfgOf(camera.UYVY, 8, 8), 1, 0)
	stop := make(chan struct{})
	_, ok := p.wait(stop)
	is.True(ok)

	close(stop)
	b, ok := p.wait(stop)
	is.True(!ok)
	is.Equal(b, nil)
}

func TestPoolDrain(t *testing.T) {
	is := is.New(t)
	p := newPool(cfgOf(camera.NV12, 8, 8), 3, 0)
	p.drain()
	is.Equal(p.available(), 0)
	_, err := p.get()
	is.Equal(err, ErrPoolExhausted)
}
