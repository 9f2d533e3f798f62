package configdef

import (
	"errors"
	"fmt"

	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/config/schedule"
	"gopkg.in/dealancer/validate.v2"
)

type Camera struct {
	Title       string        `json:"title" validate:"empty=false"`
	DeviceID    string        `json:"device_id"`
	PixelFormat string        `json:"pixel_format"`
	Width       uint32        `json:"width"`
	Height      uint32        `json:"height"`
	FPS         float64       `json:"fps" validate:"gte=0 & lte=240"`
	Disabled    bool          `json:"disabled"`
	Record      bool          `json:"record"`
	Controls    Controls      `json:"controls"`
	Schedule    schedule.Week `json:"schedule"`
}

// Controls are the capability settings pushed onto a camera once it is
// opened. Blank fields are left at the device's defaults.
type Controls struct {
	Focus        string   `json:"focus,omitempty"`
	Exposure     string   `json:"exposure,omitempty"`
	ExposureBias *float64 `json:"exposure_bias,omitempty"`
	WhiteBalance string   `json:"white_balance,omitempty"`
	Torch        string   `json:"torch,omitempty"`
	Zoom         *float64 `json:"zoom,omitempty"`
}

// Values is the daemon's configuration file. A MaxRecordAgeInDays of
// zero keeps recordings forever.
type Values struct {
	Debug              bool     `json:"debug"`
	Backend            string   `json:"backend"`
	RecordDir          string   `json:"record_dir"`
	SessionHistory     bool     `json:"session_history"`
	StatsInterval      int      `json:"stats_interval" validate:"gte=0 & lte=3600"`
	MaxRecordAgeInDays int      `json:"max_record_age_in_days" validate:"gte=0 & lte=3650"`
	Cameras            []Camera `json:"cameras"`
}

// RunValidate checks struct tags then the rules tags can't express.
func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if HasDupCameraTitles(v.Cameras) {
		return fmt.Errorf(validationErrorHeader, errors.New("camera titles must be unique"))
	}
	for _, cam := range v.Cameras {
		if _, err := cam.StreamFormat(); err != nil {
			return fmt.Errorf(validationErrorHeader, err)
		}
		if _, err := cam.Controls.Settings(); err != nil {
			return fmt.Errorf(validationErrorHeader, fmt.Errorf("camera %s: %w", cam.Title, err))
		}
	}
	for _, cam := range v.Cameras {
		if cam.Record && len(v.RecordDir) == 0 {
			return fmt.Errorf(validationErrorHeader, fmt.Errorf("camera %s records but no record_dir is set", cam.Title))
		}
	}
	return nil
}

func HasDupCameraTitles(cameras []Camera) (hasDup bool) {
	seen := make(map[string]struct{}, len(cameras))
	for _, cam := range cameras {
		if _, ok := seen[cam.Title]; ok {
			return true
		}
		seen[cam.Title] = struct{}{}
	}
	return false
}

// StreamFormat parses the camera's pixel format, a blank name means any.
func (c Camera) StreamFormat() (camera.PixelFormat, error) {
	if len(c.PixelFormat) == 0 {
		return 0, nil
	}
	p, err := camera.ParsePixelFormat(c.PixelFormat)
	if err != nil {
		return 0, fmt.Errorf("camera %s: %w", c.Title, err)
	}
	return p, nil
}

// Choose picks the descriptor and rate to open the camera with. Zero
// width, height, fps or a blank pixel format match anything, and the
// first descriptor left wins at its highest rate unless fps is set.
func (c Camera) Choose(formats *camera.Seq[camera.FormatDescriptor]) (camera.StreamConfig, bool) {
	want, err := c.StreamFormat()
	if err != nil {
		return camera.StreamConfig{}, false
	}
	for d := range formats.All() {
		if len(c.PixelFormat) > 0 && d.PixelFormat() != want {
			continue
		}
		if c.Width > 0 && d.Size().Width != c.Width {
			continue
		}
		if c.Height > 0 && d.Size().Height != c.Height {
			continue
		}
		if c.FPS > 0 {
			rate := camera.FPS(c.FPS)
			if !d.Supports(rate) {
				continue
			}
			return d.Config(rate), true
		}
		return d.Config(d.MaxFrameRate()), true
	}
	return camera.StreamConfig{}, false
}

// Settings converts the named modes into capability settings.
func (c Controls) Settings() (capability.Settings, error) {
	var s capability.Settings
	if len(c.Focus) > 0 {
		m, err := capability.ParseFocusMode(c.Focus)
		if err != nil {
			return s, err
		}
		s.Focus = &m
	}
	if len(c.Exposure) > 0 {
		m, err := capability.ParseExposureMode(c.Exposure)
		if err != nil {
			return s, err
		}
		s.Exposure = &m
	}
	if len(c.WhiteBalance) > 0 {
		m, err := capability.ParseWhiteBalanceMode(c.WhiteBalance)
		if err != nil {
			return s, err
		}
		s.WhiteBalance = &m
	}
	if len(c.Torch) > 0 {
		m, err := capability.ParseTorchMode(c.Torch)
		if err != nil {
			return s, err
		}
		s.Torch = &m
	}
	s.ExposureBias = c.ExposureBias
	s.Zoom = c.Zoom
	return s, nil
}
