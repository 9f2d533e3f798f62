package camera

import (
	"strings"

	"github.com/tauraamui/xerror"
)

// PixelFormat is the closed set of pixel layouts a frame can carry.
type PixelFormat uint8

const (
	// NV12 is YCbCr 4:2:0 biplanar, a full resolution luma plane followed
	// by a half height plane of interleaved Cb/Cr samples.
	NV12 PixelFormat = iota + 1
	// YUYV is YCbCr 4:2:2 packed as Y0 Cb Y1 Cr.
	YUYV
	// UYVY is YCbCr 4:2:2 packed as Cb Y0 Cr Y1.
	UYVY
	// BGRA32 is 32 bit packed blue, green, red, alpha.
	BGRA32
	// JPEG is an opaque compressed payload in a single variable length plane.
	JPEG
)

var pixelFormatNames = map[PixelFormat]string{
	NV12:   "nv12",
	YUYV:   "yuyv",
	UYVY:   "uyvy",
	BGRA32: "bgra32",
	JPEG:   "jpeg",
}

// PixelFormats lists every known format in declaration order.
func PixelFormats() []PixelFormat {
	return []PixelFormat{NV12, YUYV, UYVY, BGRA32, JPEG}
}

func ParsePixelFormat(name string) (PixelFormat, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range pixelFormatNames {
		if n == name {
			return f, nil
		}
	}
	if name == "bgra" {
		return BGRA32, nil
	}
	if name == "mjpeg" || name == "mjpg" {
		return JPEG, nil
	}
	return 0, xerror.Errorf("unknown pixel format: %q", name)
}

func (p PixelFormat) String() string {
	if n, ok := pixelFormatNames[p]; ok {
		return n
	}
	return "unknown"
}

func (p PixelFormat) Valid() bool {
	_, ok := pixelFormatNames[p]
	return ok
}

// Compressed reports whether plane lengths vary per frame.
func (p PixelFormat) Compressed() bool {
	return p == JPEG
}

// PlaneCount is the exact number of planes every frame of this format carries.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case NV12:
		return 2
	case YUYV, UYVY, BGRA32, JPEG:
		return 1
	}
	return 0
}

// MinStride is the smallest row length in bytes for the given plane, a
// backend may pad rows beyond it. Compressed formats have no stride.
func (p PixelFormat) MinStride(plane int, width uint32) int {
	if plane < 0 || plane >= p.PlaneCount() {
		return 0
	}
	w := int(width)
	switch p {
	case NV12:
		// luma is one byte per pixel, chroma is one Cb/Cr pair per two pixels
		if plane == 0 {
			return w
		}
		return (w + 1) / 2 * 2
	case YUYV, UYVY:
		return (w + 1) / 2 * 4
	case BGRA32:
		return w * 4
	}
	return 0
}

// PlaneRows is the number of rows stored in the given plane.
func (p PixelFormat) PlaneRows(plane int, height uint32) int {
	if plane < 0 || plane >= p.PlaneCount() || p.Compressed() {
		return 0
	}
	if p == NV12 && plane == 1 {
		return (int(height) + 1) / 2
	}
	return int(height)
}

// FrameLen is the total unpadded byte length of one frame, zero for
// compressed formats.
func (p PixelFormat) FrameLen(size Size) int {
	total := 0
	for i := 0; i < p.PlaneCount(); i++ {
		total += p.MinStride(i, size.Width) * p.PlaneRows(i, size.Height)
	}
	return total
}

// FourCC builds a little endian four character code the way V4L2 does.
func FourCC(code string) uint32 {
	var b [4]byte
	copy(b[:], code)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// OSType builds a big endian four character code the way CoreVideo does.
func OSType(code string) uint32 {
	var b [4]byte
	copy(b[:], code)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

var v4l2FourCCs = map[uint32]PixelFormat{
	FourCC("NV12"): NV12,
	FourCC("YUYV"): YUYV,
	FourCC("UYVY"): UYVY,
	FourCC("AR24"): BGRA32,
	FourCC("BGR4"): BGRA32,
	FourCC("MJPG"): JPEG,
	FourCC("JPEG"): JPEG,
}

var osTypes = map[uint32]PixelFormat{
	OSType("420v"): NV12,
	OSType("420f"): NV12,
	OSType("yuvs"): YUYV,
	OSType("2vuy"): UYVY,
	OSType("BGRA"): BGRA32,
	OSType("jpeg"): JPEG,
	OSType("dmb1"): JPEG,
}

// FromV4L2FourCC maps a V4L2 pixel format code, ok is false for layouts
// this package has no name for.
func FromV4L2FourCC(code uint32) (PixelFormat, bool) {
	f, ok := v4l2FourCCs[code]
	return f, ok
}

// V4L2FourCC is the preferred V4L2 code for the format.
func (p PixelFormat) V4L2FourCC() uint32 {
	switch p {
	case NV12:
		return FourCC("NV12")
	case YUYV:
		return FourCC("YUYV")
	case UYVY:
		return FourCC("UYVY")
	case BGRA32:
		return FourCC("AR24")
	case JPEG:
		return FourCC("MJPG")
	}
	return 0
}

// FromOSType maps a CoreVideo pixel format type.
func FromOSType(code uint32) (PixelFormat, bool) {
	f, ok := osTypes[code]
	return f, ok
}
