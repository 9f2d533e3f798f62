//go:build opencv

package opencvbackend_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/camerastream/pkg/backend/opencvbackend"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/cameratest"
	"gocv.io/x/gocv"
)

type fakeCapture struct {
	w, h   int
	closed atomic.Bool
}

func (f *fakeCapture) Set(gocv.VideoCaptureProperties, float64) {}

func (f *fakeCapture) Get(prop gocv.VideoCaptureProperties) float64 {
	switch prop {
	case gocv.VideoCaptureFrameWidth:
		return float64(f.w)
	case gocv.VideoCaptureFrameHeight:
		return float64(f.h)
	case gocv.VideoCaptureFPS:
		return 25
	}
	return 0
}

func (f *fakeCapture) IsOpened() bool { return !f.closed.Load() }

func (f *fakeCapture) Read(m *gocv.Mat) bool {
	time.Sleep(5 * time.Millisecond)
	img := gocv.NewMatWithSize(f.h, f.w, gocv.MatTypeCV8UC3)
	defer img.Close()
	img.CopyTo(m)
	return !f.closed.Load()
}

func (f *fakeCapture) Close() error {
	f.closed.Store(true)
	return nil
}

func overloadSources(t *testing.T) {
	reset := opencvbackend.OverloadOpenVideoCapture(func(source string) (opencvbackend.VideoCapturable, error) {
		if source != "0" {
			return nil, errors.New("no camera at index " + source)
		}
		return &fakeCapture{w: 64, h: 48}, nil
	})
	t.Cleanup(reset)
}

func TestOpenCVConformance(t *testing.T) {
	overloadSources(t)
	cameratest.Conformance{Manager: opencvbackend.New()}.Run(t)
}

func TestOnlyOpenableIndexesAreEnumerated(t *testing.T) {
	overloadSources(t)
	devices, err := opencvbackend.New().EnumerateDevices()
	require.NoError(t, err)

	found := camera.Collect(devices)
	require.Len(t, found, 1)
	assert.Equal(t, "0", found[0].ID())

	formats, err := found[0].SupportedFormats()
	require.NoError(t, err)
	desc, ok := formats.Next()
	require.True(t, ok)
	assert.Equal(t, camera.BGRA32, desc.PixelFormat())
	assert.Equal(t, camera.Size{Width: 64, Height: 48}, desc.Size())
	assert.True(t, desc.Supports(camera.FPS(25)))
}

func TestSecondOpenIsBusy(t *testing.T) {
	overloadSources(t)
	d, ok, err := opencvbackend.New().DefaultDevice()
	require.NoError(t, err)
	require.True(t, ok)

	cfg := camera.StreamConfig{PixelFormat: camera.BGRA32, Size: camera.Size{Width: 64, Height: 48}, FrameRate: camera.FPS(25)}
	s, err := d.Open(cfg)
	require.NoError(t, err)
	_, err = d.Open(cfg)
	assert.ErrorIs(t, err, camera.ErrDeviceBusy)
	require.NoError(t, s.Close())
}
