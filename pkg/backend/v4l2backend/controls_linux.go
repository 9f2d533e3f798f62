//go:build linux

package v4l2backend

import (
	"math"

	"github.com/blackjack/webcam"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
)

// V4L2 control ids, from linux/v4l2-controls.h.
const (
	cidAutoWhiteBalance webcam.ControlID = 0x0098090c
	cidExposureAuto     webcam.ControlID = 0x009a0901
	cidFocusAbsolute    webcam.ControlID = 0x009a090a
	cidFocusAuto        webcam.ControlID = 0x009a090c
	cidZoomAbsolute     webcam.ControlID = 0x009a090d
	cidAutoExposureBias webcam.ControlID = 0x009a0913
	cidFlashLEDMode     webcam.ControlID = 0x009c0901
)

// V4L2_CID_EXPOSURE_AUTO menu
const (
	exposureAuto             = 0
	exposureManual           = 1
	exposureAperturePriority = 3
)

// V4L2_CID_FLASH_LED_MODE menu
const (
	flashNone  = 0
	flashTorch = 2
)

// controls reads the node's control table, an unreadable node has none.
func (d *device) controls() map[webcam.ControlID]webcam.Control {
	h, err := openWebcam(d.path)
	if err != nil {
		return nil
	}
	defer h.Close()
	return h.GetControls()
}

func (d *device) control(id webcam.ControlID) (webcam.Control, bool) {
	c, ok := d.controls()[id]
	return c, ok
}

// set writes one control under the configuration lock.
func (d *device) set(op string, id webcam.ControlID, value func(webcam.Control) (int32, error)) error {
	return capability.WithConfigLock(d, op, func() error {
		h, err := openWebcam(d.path)
		if err != nil {
			return camera.CapabilityError(d.path, op, err)
		}
		defer h.Close()

		c, ok := h.GetControls()[id]
		if !ok {
			return capability.Unsupported(d.path, op)
		}
		v, err := value(c)
		if err != nil {
			return err
		}
		if v < c.Min || v > c.Max {
			return camera.CapabilityError(d.path, op, capability.ErrOutOfRange)
		}
		if err := h.SetControl(id, v); err != nil {
			return camera.CapabilityError(d.path, op, err)
		}
		return nil
	})
}

func fixed(v int32) func(webcam.Control) (int32, error) {
	return func(webcam.Control) (int32, error) { return v, nil }
}

func (d *device) FocusModes() []capability.FocusMode {
	if _, ok := d.control(cidFocusAuto); !ok {
		return nil
	}
	return []capability.FocusMode{capability.FocusLocked, capability.FocusContinuousAuto}
}

func (d *device) SetFocusMode(m capability.FocusMode) error {
	const op = "set focus mode"
	switch m {
	case capability.FocusLocked:
		return d.set(op, cidFocusAuto, fixed(0))
	case capability.FocusContinuousAuto:
		return d.set(op, cidFocusAuto, fixed(1))
	}
	return capability.Unsupported(d.path, op)
}

// SupportsFocusPoint is false, V4L2 has no focus region control.
func (d *device) SupportsFocusPoint() bool { return false }

func (d *device) SetFocusPoint(capability.Point) error {
	return capability.Unsupported(d.path, "set focus point")
}

func (d *device) ExposureModes() []capability.ExposureMode {
	if _, ok := d.control(cidExposureAuto); !ok {
		return nil
	}
	return []capability.ExposureMode{capability.ExposureLocked, capability.ExposureContinuousAuto}
}

func (d *device) SetExposureMode(m capability.ExposureMode) error {
	const op = "set exposure mode"
	switch m {
	case capability.ExposureLocked:
		return d.set(op, cidExposureAuto, fixed(exposureManual))
	case capability.ExposureContinuousAuto:
		// UVC cameras only offer manual and aperture priority
		return d.set(op, cidExposureAuto, func(c webcam.Control) (int32, error) {
			if c.Max >= exposureAperturePriority {
				return exposureAperturePriority, nil
			}
			return exposureAuto, nil
		})
	}
	return capability.Unsupported(d.path, op)
}

func (d *device) SupportsExposurePoint() bool { return false }

func (d *device) SetExposurePoint(capability.Point) error {
	return capability.Unsupported(d.path, "set exposure point")
}

// ExposureBiasRange is in EV, the control itself counts in 0.001 EV.
func (d *device) ExposureBiasRange() (float64, float64) {
	c, ok := d.control(cidAutoExposureBias)
	if !ok {
		return 0, 0
	}
	return float64(c.Min) / 1000, float64(c.Max) / 1000
}

func (d *device) SetExposureBias(bias float64) error {
	return d.set("set exposure target bias", cidAutoExposureBias, fixed(int32(math.Round(bias*1000))))
}

func (d *device) SupportsWhiteBalanceMode(m capability.WhiteBalanceMode) bool {
	if m != capability.WhiteBalanceLocked && m != capability.WhiteBalanceContinuousAuto {
		return false
	}
	_, ok := d.control(cidAutoWhiteBalance)
	return ok
}

func (d *device) SetWhiteBalanceMode(m capability.WhiteBalanceMode) error {
	const op = "set white balance mode"
	switch m {
	case capability.WhiteBalanceLocked:
		return d.set(op, cidAutoWhiteBalance, fixed(0))
	case capability.WhiteBalanceContinuousAuto:
		return d.set(op, cidAutoWhiteBalance, fixed(1))
	}
	return capability.Unsupported(d.path, op)
}

func (d *device) HasTorch() bool {
	_, ok := d.control(cidFlashLEDMode)
	return ok
}

func (d *device) SupportsTorchMode(m capability.TorchMode) bool {
	return (m == capability.TorchOff || m == capability.TorchOn) && d.HasTorch()
}

func (d *device) SetTorchMode(m capability.TorchMode) error {
	const op = "set torch mode"
	switch m {
	case capability.TorchOff:
		return d.set(op, cidFlashLEDMode, fixed(flashNone))
	case capability.TorchOn:
		return d.set(op, cidFlashLEDMode, fixed(flashTorch))
	}
	return capability.Unsupported(d.path, op)
}

// MaxZoomFactor treats the control's minimum as 1x, drivers reporting a
// zero minimum have no usable zoom scale.
func (d *device) MaxZoomFactor() float64 {
	c, ok := d.control(cidZoomAbsolute)
	if !ok || c.Min <= 0 || c.Max <= c.Min {
		return 1
	}
	return float64(c.Max) / float64(c.Min)
}

func (d *device) SetZoomFactor(f float64) error {
	const op = "set zoom factor"
	return d.set(op, cidZoomAbsolute, func(c webcam.Control) (int32, error) {
		if c.Min <= 0 {
			return 0, capability.Unsupported(d.path, op)
		}
		if f < 1 {
			return 0, camera.CapabilityError(d.path, op, capability.ErrOutOfRange)
		}
		return int32(math.Round(f * float64(c.Min))), nil
	})
}
