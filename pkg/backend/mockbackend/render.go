package mockbackend

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

var (
	parseFontOnce sync.Once
	parsedFont    *truetype.Font
	parseFontErr  error
)

func regularFont() (*truetype.Font, error) {
	parseFontOnce.Do(func() {
		parsedFont, parseFontErr = freetype.ParseFont(goregular.TTF)
	})
	return parsedFont, parseFontErr
}

// renderer paints synthetic frames for a stream: a fixed background of
// overlapping colour circles with the camera name and timestamp on top.
type renderer struct {
	title  string
	format camera.PixelFormat
	base   *image.RGBA
	canvas *image.RGBA
	face   font.Face
	jpeg   bytes.Buffer
}

func newRenderer(title string, cfg camera.StreamConfig) (*renderer, error) {
	f, err := regularFont()
	if err != nil {
		return nil, xerror.Errorf("unable to parse overlay font: %w", err)
	}

	w, h := int(cfg.Size.Width), int(cfg.Size.Height)
	size := math.Max(8, float64(h)/10)
	return &renderer{
		title:  title,
		format: cfg.PixelFormat,
		base:   renderBaseFrameCanvas(w, h),
		canvas: image.NewRGBA(image.Rect(0, 0, w, h)),
		face: truetype.NewFace(f, &truetype.Options{
			Size:    size,
			Hinting: font.HintingFull,
		}),
	}, nil
}

// render draws the frame for ts into buf.
func (r *renderer) render(ts time.Duration, buf *buffer) error {
	copy(r.canvas.Pix, r.base.Pix)

	lineHeight := r.face.Metrics().Height.Ceil()
	r.drawText(5, lineHeight, "CAMERASTREAM_MOCK")
	r.drawText(5, lineHeight*2, r.title)
	r.drawText(5, lineHeight*3, fmt.Sprintf("%.3fs", ts.Seconds()))

	return writeImage(r.canvas, r.format, buf, &r.jpeg)
}

func (r *renderer) drawText(x, y int, text string) {
	d := &font.Drawer{
		Dst:  r.canvas,
		Src:  image.White,
		Face: r.face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func renderBaseFrameCanvas(w, h int) *image.RGBA {
	hw, hh := float64(w)/2, float64(h)/2
	r := math.Min(hw, hh) * 2 / 3
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), r * 1.5}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), r * 1.5}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), r * 1.5}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}
	return img
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	d := math.Sqrt(dx*dx+dy*dy) / c.R
	if d > 1 {
		return 0
	}
	return 255
}

// writeImage converts img into the pixel layout of format inside buf.
func writeImage(img *image.RGBA, format camera.PixelFormat, buf *buffer, scratch *bytes.Buffer) error {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	planes := buf.Planes()

	switch format {
	case camera.BGRA32:
		dst := planes[0]
		for y := 0; y < h; y++ {
			src := img.Pix[y*img.Stride : y*img.Stride+w*4]
			row := dst.Data[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w*4; x += 4 {
				row[x], row[x+1], row[x+2], row[x+3] = src[x+2], src[x+1], src[x], src[x+3]
			}
		}
	case camera.YUYV, camera.UYVY:
		dst := planes[0]
		for y := 0; y < h; y++ {
			row := dst.Data[y*dst.Stride:]
			for x := 0; x < w; x += 2 {
				y0, u, v := yuv(img, x, y)
				y1 := y0
				if x+1 < w {
					y1, _, _ = yuv(img, x+1, y)
				}
				o := x * 2
				if format == camera.YUYV {
					row[o], row[o+1], row[o+2], row[o+3] = y0, u, y1, v
				} else {
					row[o], row[o+1], row[o+2], row[o+3] = u, y0, v, y1
				}
			}
		}
	case camera.NV12:
		luma, chroma := planes[0], planes[1]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				l, u, v := yuv(img, x, y)
				luma.Data[y*luma.Stride+x] = l
				if y%2 == 0 && x%2 == 0 {
					o := (y/2)*chroma.Stride + x
					chroma.Data[o], chroma.Data[o+1] = u, v
				}
			}
		}
	case camera.JPEG:
		scratch.Reset()
		if err := jpeg.Encode(scratch, img, &jpeg.Options{Quality: 75}); err != nil {
			return xerror.Errorf("unable to encode synthetic jpeg frame: %w", err)
		}
		buf.setPayload(scratch.Bytes())
	default:
		return xerror.Errorf("unable to render pixel format %s", format)
	}
	return nil
}

// yuv converts one pixel to BT.601 limited range.
func yuv(img *image.RGBA, x, y int) (uint8, uint8, uint8) {
	i := img.PixOffset(x, y)
	r, g, b := int32(img.Pix[i]), int32(img.Pix[i+1]), int32(img.Pix[i+2])
	yy := ((66*r + 129*g + 25*b + 128) >> 8) + 16
	u := ((-38*r - 74*g + 112*b + 128) >> 8) + 128
	v := ((112*r - 94*g - 18*b + 128) >> 8) + 128
	return uint8(yy), uint8(u), uint8(v)
}

// fillPattern is the cheap path used for injected frames, every byte of
// the frame is derived from its sequence number.
func fillPattern(format camera.PixelFormat, seq uint64, buf *buffer) {
	if format.Compressed() {
		// SOI, a sequence dependent body, EOI
		body := make([]byte, 2+int(seq%64)+16)
		body[0], body[1] = 0xFF, 0xD8
		for i := 2; i < len(body)-2; i++ {
			body[i] = byte(seq + uint64(i))
		}
		body[len(body)-2], body[len(body)-1] = 0xFF, 0xD9
		buf.setPayload(body)
		return
	}
	v := byte(seq)
	for _, p := range buf.Planes() {
		for i := range p.Data {
			p.Data[i] = v
		}
	}
}
