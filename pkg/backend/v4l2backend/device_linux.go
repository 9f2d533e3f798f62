//go:build linux

package v4l2backend

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"syscall"

	"github.com/blackjack/webcam"
	"github.com/google/uuid"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/xerror"
)

type device struct {
	path    string
	name    string
	manager *Manager
	lock    *capability.DeviceLock
}

// ID is the device node path.
func (d *device) ID() string { return d.path }

func (d *device) Name() string { return d.name }

func (d *device) SupportedFormats() (*camera.Seq[camera.FormatDescriptor], error) {
	h, err := openWebcam(d.path)
	if err != nil {
		return nil, camera.QueryError(d.path, err)
	}
	defer h.Close()
	return camera.SliceSeq(descriptors(h)), nil
}

// descriptors lists every size and frame interval the driver reports for
// the pixel formats this package understands.
func descriptors(h Handle) []camera.FormatDescriptor {
	var out []camera.FormatDescriptor
	for _, code := range sortedFormats(h.GetSupportedFormats()) {
		format, ok := camera.FromV4L2FourCC(uint32(code))
		if !ok {
			continue
		}
		for _, fsz := range h.GetSupportedFrameSizes(code) {
			for _, size := range frameSizes(fsz) {
				ranges := frameRateRanges(h.GetSupportedFramerates(code, size.Width, size.Height))
				if len(ranges) == 0 {
					continue
				}
				out = append(out, camera.NewFormatDescriptor(format, size, ranges...))
			}
		}
	}
	return out
}

// sortedFormats orders the driver's codes by camera.PixelFormat, unknown
// codes last, ties by code.
func sortedFormats(formats map[webcam.PixelFormat]string) []webcam.PixelFormat {
	codes := make([]webcam.PixelFormat, 0, len(formats))
	for code := range formats {
		codes = append(codes, code)
	}
	rank := func(code webcam.PixelFormat) int {
		if f, ok := camera.FromV4L2FourCC(uint32(code)); ok {
			return int(f)
		}
		return math.MaxInt
	}
	slices.SortFunc(codes, func(a, b webcam.PixelFormat) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return codes
}

// frameSizes flattens a discrete or stepwise size into concrete sizes,
// stepwise ranges only offer their two extremes.
func frameSizes(fs webcam.FrameSize) []camera.Size {
	largest := camera.Size{Width: fs.MaxWidth, Height: fs.MaxHeight}
	if fs.StepWidth == 0 && fs.StepHeight == 0 || fs.MinWidth == fs.MaxWidth && fs.MinHeight == fs.MaxHeight {
		return []camera.Size{largest}
	}
	smallest := camera.Size{Width: fs.MinWidth, Height: fs.MinHeight}
	if smallest.IsZero() {
		return []camera.Size{largest}
	}
	return []camera.Size{smallest, largest}
}

// frameRateRanges converts frame intervals into rates. A stepwise interval
// becomes one continuous range, min interval being the max rate.
func frameRateRanges(intervals []webcam.FrameRate) []camera.FrameRateRange {
	var out []camera.FrameRateRange
	for _, iv := range intervals {
		fastest := camera.FrameRate{Numerator: iv.MinDenominator, Denominator: iv.MinNumerator}
		slowest := camera.FrameRate{Numerator: iv.MaxDenominator, Denominator: iv.MaxNumerator}
		if !fastest.Valid() {
			continue
		}
		if !slowest.Valid() || slowest.Equal(fastest) {
			out = append(out, camera.FixedRate(fastest))
			continue
		}
		if slowest.Cmp(fastest) > 0 {
			slowest, fastest = fastest, slowest
		}
		out = append(out, camera.FrameRateRange{Min: slowest, Max: fastest})
	}
	return out
}

func (d *device) Open(cfg camera.StreamConfig) (camera.Stream, error) {
	formats, err := d.SupportedFormats()
	if err != nil {
		return nil, err
	}
	desc, err := camera.MatchConfig(d.path, formats, cfg)
	if err != nil {
		return nil, err
	}

	if !d.manager.claim(d.path) {
		return nil, camera.DeviceBusyError(d.path, nil)
	}
	h, err := d.configure(cfg)
	if err != nil {
		d.manager.unclaim(d.path)
		return nil, err
	}
	return newStream(uuid.NewString(), d, h, desc, cfg), nil
}

func (d *device) configure(cfg camera.StreamConfig) (Handle, error) {
	h, err := openWebcam(d.path)
	if err != nil {
		return nil, openErr(d.path, err)
	}

	code := driverCode(h, cfg.PixelFormat)
	got, w, hgt, err := h.SetImageFormat(code, cfg.Size.Width, cfg.Size.Height)
	if err == nil && (got != code || w != cfg.Size.Width || hgt != cfg.Size.Height) {
		err = xerror.Errorf("driver negotiated %dx%d in format %#x", w, hgt, uint32(got))
	}
	if err == nil {
		err = h.SetBufferCount(defaultBufferCnt)
	}
	if err == nil {
		err = h.SetFramerate(float32(cfg.FrameRate.Float64()))
	}
	if err != nil {
		h.Close()
		return nil, openErr(d.path, err)
	}
	return h, nil
}

// driverCode picks the code the driver advertised for format, drivers
// differ on aliases such as MJPG and JPEG.
func driverCode(h Handle, format camera.PixelFormat) webcam.PixelFormat {
	for _, code := range sortedFormats(h.GetSupportedFormats()) {
		if f, ok := camera.FromV4L2FourCC(uint32(code)); ok && f == format {
			return code
		}
	}
	return webcam.PixelFormat(format.V4L2FourCC())
}

func openErr(path string, err error) error {
	if errors.Is(err, syscall.EBUSY) {
		return camera.DeviceBusyError(path, err)
	}
	return camera.OpenError(path, err)
}

func (d *device) LockForConfiguration() (func(), error) {
	return d.lock.Acquire()
}
