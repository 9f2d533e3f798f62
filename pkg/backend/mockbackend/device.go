package mockbackend

import (
	"slices"

	"github.com/google/uuid"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
)

type device struct {
	cam *Camera
}

func (d *device) ID() string { return d.cam.id }

func (d *device) Name() string { return d.cam.name }

func (d *device) SupportedFormats() (*camera.Seq[camera.FormatDescriptor], error) {
	if err := d.cam.err(&d.cam.queryErr); err != nil {
		return nil, camera.QueryError(d.cam.id, err)
	}
	return camera.SliceSeq(d.cam.formats), nil
}

func (d *device) Open(cfg camera.StreamConfig) (camera.Stream, error) {
	formats, err := d.SupportedFormats()
	if err != nil {
		return nil, err
	}
	desc, err := camera.MatchConfig(d.cam.id, formats, cfg)
	if err != nil {
		return nil, err
	}

	c := d.cam
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, camera.OpenError(c.id, c.openErr)
	}
	if c.exclusive && c.sessions > 0 {
		return nil, camera.DeviceBusyError(c.id, nil)
	}
	c.sessions++

	s := newStream(uuid.NewString(), c, desc, cfg)
	if len(c.streams) == streamHistory {
		c.streams = slices.Delete(c.streams, 0, 1)
	}
	c.streams = append(c.streams, s)
	return s, nil
}

func (d *device) LockForConfiguration() (func(), error) {
	return d.cam.lock.Acquire()
}

// configure runs fn against the camera's controls under the configuration lock.
func (d *device) configure(op string, fn func(*Controls) error) error {
	return capability.WithConfigLock(d, op, func() error {
		d.cam.mu.Lock()
		defer d.cam.mu.Unlock()
		return fn(&d.cam.controls)
	})
}

func (d *device) outOfRange(op string) error {
	return camera.CapabilityError(d.cam.id, op, capability.ErrOutOfRange)
}

func (d *device) FocusModes() []capability.FocusMode {
	return slices.Clone(d.cam.caps.FocusModes)
}

func (d *device) SetFocusMode(m capability.FocusMode) error {
	const op = "set focus mode"
	return d.configure(op, func(c *Controls) error {
		if !slices.Contains(d.cam.caps.FocusModes, m) {
			return capability.Unsupported(d.cam.id, op)
		}
		c.Focus = m
		return nil
	})
}

func (d *device) SupportsFocusPoint() bool { return d.cam.caps.FocusPoint }

func (d *device) SetFocusPoint(p capability.Point) error {
	const op = "set focus point"
	return d.configure(op, func(c *Controls) error {
		if !d.cam.caps.FocusPoint {
			return capability.Unsupported(d.cam.id, op)
		}
		if !p.Valid() {
			return d.outOfRange(op)
		}
		c.FocusPoint = p
		return nil
	})
}

func (d *device) ExposureModes() []capability.ExposureMode {
	return slices.Clone(d.cam.caps.ExposureModes)
}

func (d *device) SetExposureMode(m capability.ExposureMode) error {
	const op = "set exposure mode"
	return d.configure(op, func(c *Controls) error {
		if !slices.Contains(d.cam.caps.ExposureModes, m) {
			return capability.Unsupported(d.cam.id, op)
		}
		c.Exposure = m
		return nil
	})
}

func (d *device) SupportsExposurePoint() bool { return d.cam.caps.ExposurePoint }

func (d *device) SetExposurePoint(p capability.Point) error {
	const op = "set exposure point"
	return d.configure(op, func(c *Controls) error {
		if !d.cam.caps.ExposurePoint {
			return capability.Unsupported(d.cam.id, op)
		}
		if !p.Valid() {
			return d.outOfRange(op)
		}
		c.ExposurePoint = p
		return nil
	})
}

func (d *device) ExposureBiasRange() (float64, float64) {
	return d.cam.caps.ExposureBiasMin, d.cam.caps.ExposureBiasMax
}

func (d *device) SetExposureBias(bias float64) error {
	const op = "set exposure target bias"
	return d.configure(op, func(c *Controls) error {
		lo, hi := d.ExposureBiasRange()
		if bias < lo || bias > hi {
			return d.outOfRange(op)
		}
		c.ExposureBias = bias
		return nil
	})
}

func (d *device) SupportsWhiteBalanceMode(m capability.WhiteBalanceMode) bool {
	return slices.Contains(d.cam.caps.WhiteBalanceModes, m)
}

func (d *device) SetWhiteBalanceMode(m capability.WhiteBalanceMode) error {
	const op = "set white balance mode"
	return d.configure(op, func(c *Controls) error {
		if !d.SupportsWhiteBalanceMode(m) {
			return capability.Unsupported(d.cam.id, op)
		}
		c.WhiteBalance = m
		return nil
	})
}

func (d *device) HasTorch() bool { return len(d.cam.caps.TorchModes) > 0 }

func (d *device) SupportsTorchMode(m capability.TorchMode) bool {
	return slices.Contains(d.cam.caps.TorchModes, m)
}

func (d *device) SetTorchMode(m capability.TorchMode) error {
	const op = "set torch mode"
	return d.configure(op, func(c *Controls) error {
		if !d.SupportsTorchMode(m) {
			return capability.Unsupported(d.cam.id, op)
		}
		c.Torch = m
		return nil
	})
}

func (d *device) MaxZoomFactor() float64 {
	if d.cam.caps.MaxZoom < 1 {
		return 1
	}
	return d.cam.caps.MaxZoom
}

func (d *device) SetZoomFactor(f float64) error {
	const op = "set zoom factor"
	return d.configure(op, func(c *Controls) error {
		if f < 1 || f > d.MaxZoomFactor() {
			return d.outOfRange(op)
		}
		c.Zoom = f
		return nil
	})
}

// plainDevice hides the capability methods of device.
type plainDevice struct {
	dev *device
}

func (p plainDevice) ID() string   { return p.dev.ID() }
func (p plainDevice) Name() string { return p.dev.Name() }

func (p plainDevice) SupportedFormats() (*camera.Seq[camera.FormatDescriptor], error) {
	return p.dev.SupportedFormats()
}

func (p plainDevice) Open(cfg camera.StreamConfig) (camera.Stream, error) {
	return p.dev.Open(cfg)
}
