package camera

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Size is a frame size in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) IsZero() bool { return s.Width == 0 || s.Height == 0 }

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// FrameRate is a rational frames per second value.
type FrameRate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS converts a floating point rate into a ratio over 1000.
func FPS(f float64) FrameRate {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return FrameRate{}
	}
	return FrameRate{Numerator: uint32(math.Round(f * 1000)), Denominator: 1000}
}

func (r FrameRate) Valid() bool {
	return r.Numerator > 0 && r.Denominator > 0
}

func (r FrameRate) Float64() float64 {
	if r.Denominator == 0 {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

// Cmp compares two rates exactly, returning -1, 0 or +1.
func (r FrameRate) Cmp(o FrameRate) int {
	a := uint64(r.Numerator) * uint64(o.Denominator)
	b := uint64(o.Numerator) * uint64(r.Denominator)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (r FrameRate) Equal(o FrameRate) bool { return r.Cmp(o) == 0 }

// FrameDuration is the nominal time between two frames.
func (r FrameRate) FrameDuration() time.Duration {
	if !r.Valid() {
		return 0
	}
	return time.Duration(uint64(time.Second) * uint64(r.Denominator) / uint64(r.Numerator))
}

func (r FrameRate) String() string {
	return strconv.FormatFloat(r.Float64(), 'f', -1, 64) + "fps"
}

// FrameRateRange is an inclusive bound on capture rate.
type FrameRateRange struct {
	Min FrameRate
	Max FrameRate
}

// FixedRate is a range which admits exactly one rate.
func FixedRate(r FrameRate) FrameRateRange {
	return FrameRateRange{Min: r, Max: r}
}

func (rr FrameRateRange) Contains(r FrameRate) bool {
	if !r.Valid() {
		return false
	}
	return rr.Min.Cmp(r) <= 0 && r.Cmp(rr.Max) <= 0
}

func (rr FrameRateRange) String() string {
	if rr.Min.Equal(rr.Max) {
		return rr.Min.String()
	}
	return rr.Min.String() + "-" + rr.Max.String()
}

// FormatDescriptor describes one capturable configuration of a device.
// Values are produced by device enumeration and are never mutated.
type FormatDescriptor struct {
	pixelFormat PixelFormat
	size        Size
	ranges      []FrameRateRange
}

func NewFormatDescriptor(format PixelFormat, size Size, ranges ...FrameRateRange) FormatDescriptor {
	rr := make([]FrameRateRange, len(ranges))
	copy(rr, ranges)
	return FormatDescriptor{pixelFormat: format, size: size, ranges: rr}
}

func (d FormatDescriptor) PixelFormat() PixelFormat { return d.pixelFormat }

func (d FormatDescriptor) Size() Size { return d.size }

// FrameRateRanges returns a copy of the advertised ranges in device order.
func (d FormatDescriptor) FrameRateRanges() []FrameRateRange {
	rr := make([]FrameRateRange, len(d.ranges))
	copy(rr, d.ranges)
	return rr
}

func (d FormatDescriptor) NumFrameRateRanges() int { return len(d.ranges) }

func (d FormatDescriptor) FrameRateRange(i int) FrameRateRange { return d.ranges[i] }

// Supports reports whether rate lies inside any advertised range.
func (d FormatDescriptor) Supports(rate FrameRate) bool {
	for _, rr := range d.ranges {
		if rr.Contains(rate) {
			return true
		}
	}
	return false
}

// MaxFrameRate is the highest advertised rate, zero when none are.
func (d FormatDescriptor) MaxFrameRate() FrameRate {
	var best FrameRate
	for _, rr := range d.ranges {
		if !best.Valid() || rr.Max.Cmp(best) > 0 {
			best = rr.Max
		}
	}
	return best
}

// Matches reports whether cfg names this descriptor's format and size.
func (d FormatDescriptor) Matches(cfg StreamConfig) bool {
	return d.pixelFormat == cfg.PixelFormat && d.size == cfg.Size
}

// Config builds a stream configuration for this descriptor at rate.
func (d FormatDescriptor) Config(rate FrameRate) StreamConfig {
	return StreamConfig{PixelFormat: d.pixelFormat, Size: d.size, FrameRate: rate}
}

func (d FormatDescriptor) String() string {
	s := d.pixelFormat.String() + " " + d.size.String()
	for _, rr := range d.ranges {
		s += " [" + rr.String() + "]"
	}
	return s
}

// StreamConfig is the capture configuration a caller asks a device to open.
type StreamConfig struct {
	PixelFormat PixelFormat
	Size        Size
	FrameRate   FrameRate
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%s %s @ %s", c.PixelFormat, c.Size, c.FrameRate)
}
