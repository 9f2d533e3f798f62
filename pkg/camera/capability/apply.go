package capability

import (
	"errors"
)

// Settings is a set of controls to push onto a device, nil fields are
// left alone.
type Settings struct {
	Focus         *FocusMode
	FocusPoint    *Point
	Exposure      *ExposureMode
	ExposurePoint *Point
	ExposureBias  *float64
	WhiteBalance  *WhiteBalanceMode
	Torch         *TorchMode
	Zoom          *float64
}

func (s Settings) Empty() bool {
	return s == Settings{}
}

type identified interface {
	ID() string
}

func idOf(v any) string {
	if d, ok := v.(identified); ok {
		return d.ID()
	}
	return ""
}

// Apply pushes every configured control onto v. Each control is applied
// independently and all failures are returned together.
func Apply(v any, s Settings) error {
	if s.Empty() {
		return nil
	}
	id := idOf(v)
	var errs []error

	if s.Focus != nil || s.FocusPoint != nil {
		if f, ok := AsFocuser(v); ok {
			if s.Focus != nil {
				errs = append(errs, f.SetFocusMode(*s.Focus))
			}
			if s.FocusPoint != nil {
				errs = append(errs, f.SetFocusPoint(*s.FocusPoint))
			}
		} else {
			errs = append(errs, Unsupported(id, "set focus"))
		}
	}

	if s.Exposure != nil || s.ExposurePoint != nil || s.ExposureBias != nil {
		if e, ok := AsExposer(v); ok {
			if s.Exposure != nil {
				errs = append(errs, e.SetExposureMode(*s.Exposure))
			}
			if s.ExposurePoint != nil {
				errs = append(errs, e.SetExposurePoint(*s.ExposurePoint))
			}
			if s.ExposureBias != nil {
				errs = append(errs, e.SetExposureBias(*s.ExposureBias))
			}
		} else {
			errs = append(errs, Unsupported(id, "set exposure"))
		}
	}

	if s.WhiteBalance != nil {
		if w, ok := AsWhiteBalancer(v); ok {
			errs = append(errs, w.SetWhiteBalanceMode(*s.WhiteBalance))
		} else {
			errs = append(errs, Unsupported(id, "set white balance mode"))
		}
	}

	if s.Torch != nil {
		if t, ok := AsTorch(v); ok {
			errs = append(errs, t.SetTorchMode(*s.Torch))
		} else {
			errs = append(errs, Unsupported(id, "set torch mode"))
		}
	}

	if s.Zoom != nil {
		if z, ok := AsZoomer(v); ok {
			errs = append(errs, z.SetZoomFactor(*s.Zoom))
		} else {
			errs = append(errs, Unsupported(id, "set zoom factor"))
		}
	}

	return errors.Join(errs...)
}
