//go:build linux

package v4l2backend

import (
	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/camera"
)

func OverloadOpenWebcam(overload func(path string) (Handle, error)) func() {
	openWebcamRef := openWebcam
	openWebcam = overload
	return func() { openWebcam = openWebcamRef }
}

func OverloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

// DeliverBuffer runs one driver buffer through the stream's delivery path.
func DeliverBuffer(s camera.Stream, data []byte) {
	s.(*Stream).deliver(0, data)
}
