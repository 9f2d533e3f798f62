//go:build linux

package v4l2backend

import (
	"github.com/blackjack/webcam"
	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/backend"
	"github.com/tauraamui/camerastream/pkg/camera"
)

func init() {
	backend.Register("v4l2", func() (camera.Manager, error) {
		return New(), nil
	})
}

// Handle is the part of an open V4L2 node the backend drives.
type Handle interface {
	GetName() (string, error)
	GetBusInfo() (string, error)
	GetSupportedFormats() map[webcam.PixelFormat]string
	GetSupportedFrameSizes(f webcam.PixelFormat) []webcam.FrameSize
	GetSupportedFramerates(f webcam.PixelFormat, width, height uint32) []webcam.FrameRate
	SetImageFormat(f webcam.PixelFormat, width, height uint32) (webcam.PixelFormat, uint32, uint32, error)
	SetBufferCount(count uint32) error
	SetFramerate(fps float32) error
	StartStreaming() error
	WaitForFrame(timeout uint32) error
	GetFrame() ([]byte, uint32, error)
	ReleaseFrame(index uint32) error
	StopStreaming() error
	GetControls() map[webcam.ControlID]webcam.Control
	GetControl(id webcam.ControlID) (int32, error)
	SetControl(id webcam.ControlID, value int32) error
	Close() error
}

var fs = afero.NewOsFs()

var openWebcam = func(path string) (Handle, error) {
	w, err := webcam.Open(path)
	if err != nil {
		return nil, err
	}
	return w, nil
}
