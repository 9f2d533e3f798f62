// Package capability exposes hardware controls which only some backends
// and devices offer. Nothing in package camera depends on it, callers
// discover support at runtime by asserting a device or stream onto the
// interfaces declared here.
//
// Every mutation runs under the device's configuration lock through
// WithConfigLock. Support queries never take the lock.
package capability

import "github.com/tauraamui/camerastream/pkg/camera"

// Kind names one control family.
type Kind uint8

const (
	Focus Kind = iota + 1
	Exposure
	WhiteBalance
	Torch
	Zoom
	FrameRate
)

func (k Kind) String() string {
	switch k {
	case Focus:
		return "focus"
	case Exposure:
		return "exposure"
	case WhiteBalance:
		return "white balance"
	case Torch:
		return "torch"
	case Zoom:
		return "zoom"
	case FrameRate:
		return "frame rate"
	}
	return "unknown"
}

// Point is a normalised position in the frame, (0,0) top left and (1,1)
// bottom right.
type Point struct {
	X float64
	Y float64
}

func (p Point) Valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

type Focuser interface {
	FocusModes() []FocusMode
	SetFocusMode(FocusMode) error
	SupportsFocusPoint() bool
	SetFocusPoint(Point) error
}

type Exposer interface {
	ExposureModes() []ExposureMode
	SetExposureMode(ExposureMode) error
	SupportsExposurePoint() bool
	SetExposurePoint(Point) error
	// ExposureBiasRange is the accepted target bias in EV units.
	ExposureBiasRange() (min, max float64)
	SetExposureBias(float64) error
}

type WhiteBalancer interface {
	SupportsWhiteBalanceMode(WhiteBalanceMode) bool
	SetWhiteBalanceMode(WhiteBalanceMode) error
}

type TorchController interface {
	HasTorch() bool
	SupportsTorchMode(TorchMode) bool
	SetTorchMode(TorchMode) error
}

type Zoomer interface {
	MaxZoomFactor() float64
	SetZoomFactor(float64) error
}

// FrameRateAdjuster changes the rate of a running stream. The new rate
// must lie in a range advertised for the stream's format and size.
type FrameRateAdjuster interface {
	SetFrameRate(camera.FrameRate) error
}

func AsFocuser(v any) (Focuser, bool) {
	f, ok := v.(Focuser)
	return f, ok
}

func AsExposer(v any) (Exposer, bool) {
	e, ok := v.(Exposer)
	return e, ok
}

func AsWhiteBalancer(v any) (WhiteBalancer, bool) {
	w, ok := v.(WhiteBalancer)
	return w, ok
}

// AsTorch only succeeds for devices which actually have a torch.
func AsTorch(v any) (TorchController, bool) {
	t, ok := v.(TorchController)
	if !ok || !t.HasTorch() {
		return nil, false
	}
	return t, true
}

func AsZoomer(v any) (Zoomer, bool) {
	z, ok := v.(Zoomer)
	return z, ok
}

func AsFrameRateAdjuster(v any) (FrameRateAdjuster, bool) {
	a, ok := v.(FrameRateAdjuster)
	return a, ok
}

// Supports reports whether v, a device or stream, offers the control family.
func Supports(v any, k Kind) bool {
	var ok bool
	switch k {
	case Focus:
		_, ok = AsFocuser(v)
	case Exposure:
		_, ok = AsExposer(v)
	case WhiteBalance:
		_, ok = AsWhiteBalancer(v)
	case Torch:
		_, ok = AsTorch(v)
	case Zoom:
		_, ok = AsZoomer(v)
	case FrameRate:
		_, ok = AsFrameRateAdjuster(v)
	}
	return ok
}

// Kinds lists every control family v offers.
func Kinds(v any) []Kind {
	var kinds []Kind
	for _, k := range []Kind{Focus, Exposure, WhiteBalance, Torch, Zoom, FrameRate} {
		if Supports(v, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
