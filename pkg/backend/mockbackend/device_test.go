package mockbackend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/camerastream/pkg/backend/mockbackend"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
)

func TestFullCameraOffersEveryCapability(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	d := cam.Device()
	assert.ElementsMatch(t, []capability.Kind{
		capability.Focus, capability.Exposure, capability.WhiteBalance,
		capability.Torch, capability.Zoom,
	}, capability.Kinds(d))
}

func TestPlainCameraOffersNone(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats(), mockbackend.WithoutCapabilities())
	d := cam.Device()
	assert.Empty(t, capability.Kinds(d))

	_, ok := capability.AsFocuser(d)
	assert.False(t, ok)
	_, ok = capability.AsTorch(d)
	assert.False(t, ok)
}

func TestTorchlessCameraHidesTorch(t *testing.T) {
	caps := mockbackend.FullCapabilities()
	caps.TorchModes = nil
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats(), mockbackend.WithCapabilities(caps))

	_, ok := capability.AsTorch(cam.Device())
	assert.False(t, ok)
	assert.False(t, capability.Supports(cam.Device(), capability.Torch))
}

func TestSettingControls(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	d := cam.Device()

	f, ok := capability.AsFocuser(d)
	require.True(t, ok)
	require.NoError(t, f.SetFocusMode(capability.FocusLocked))
	require.NoError(t, f.SetFocusPoint(capability.Point{X: 0.25, Y: 0.75}))

	torch, ok := capability.AsTorch(d)
	require.True(t, ok)
	assert.True(t, torch.SupportsTorchMode(capability.TorchOn))
	assert.False(t, torch.SupportsTorchMode(capability.TorchAuto))
	require.NoError(t, torch.SetTorchMode(capability.TorchOn))

	z, ok := capability.AsZoomer(d)
	require.True(t, ok)
	require.NoError(t, z.SetZoomFactor(2.5))

	c := cam.Controls()
	assert.Equal(t, capability.FocusLocked, c.Focus)
	assert.Equal(t, capability.Point{X: 0.25, Y: 0.75}, c.FocusPoint)
	assert.Equal(t, capability.TorchOn, c.Torch)
	assert.Equal(t, 2.5, c.Zoom)
}

func TestRejectedControlsLeaveStateAlone(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	d := cam.Device()

	torch, _ := capability.AsTorch(d)
	err := torch.SetTorchMode(capability.TorchAuto)
	assert.ErrorIs(t, err, camera.ErrCapability)
	assert.ErrorIs(t, err, camera.ErrUnsupportedCapability)

	z, _ := capability.AsZoomer(d)
	err = z.SetZoomFactor(9)
	assert.ErrorIs(t, err, capability.ErrOutOfRange)
	err = z.SetZoomFactor(0.5)
	assert.ErrorIs(t, err, capability.ErrOutOfRange)

	e, _ := capability.AsExposer(d)
	lo, hi := e.ExposureBiasRange()
	assert.Equal(t, -8.0, lo)
	assert.Equal(t, 8.0, hi)
	assert.ErrorIs(t, e.SetExposureBias(9), capability.ErrOutOfRange)
	assert.ErrorIs(t, e.SetExposurePoint(capability.Point{X: 1.5}), capability.ErrOutOfRange)
	assert.ErrorIs(t, e.SetExposureMode(capability.ExposureCustom), camera.ErrUnsupportedCapability)

	c := cam.Controls()
	assert.Equal(t, capability.TorchOff, c.Torch)
	assert.Equal(t, 1.0, c.Zoom)
	assert.Equal(t, 0.0, c.ExposureBias)
	assert.Equal(t, capability.ExposureContinuousAuto, c.Exposure)
}

func TestHeldConfigLockFailsMutation(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	unlock, err := cam.LockForConfiguration()
	require.NoError(t, err)

	wb, ok := capability.AsWhiteBalancer(cam.Device())
	require.True(t, ok)
	err = wb.SetWhiteBalanceMode(capability.WhiteBalanceLocked)
	assert.ErrorIs(t, err, camera.ErrCapability)
	assert.ErrorIs(t, err, camera.ErrConfigLocked)
	assert.Equal(t, capability.WhiteBalanceContinuousAuto, cam.Controls().WhiteBalance)

	unlock()
	require.NoError(t, wb.SetWhiteBalanceMode(capability.WhiteBalanceLocked))
	assert.Equal(t, capability.WhiteBalanceLocked, cam.Controls().WhiteBalance)
}

func TestConfigLockIsReleasedAfterFailure(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	z, _ := capability.AsZoomer(cam.Device())

	assert.Error(t, z.SetZoomFactor(100))
	unlock, err := cam.LockForConfiguration()
	require.NoError(t, err)
	unlock()
}

func TestConfigLockWaitsWithTimeout(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats(), mockbackend.WithLockTimeout(time.Second))
	unlock, err := cam.LockForConfiguration()
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		unlock()
	}()

	z, _ := capability.AsZoomer(cam.Device())
	require.NoError(t, z.SetZoomFactor(2))
	assert.Equal(t, 2.0, cam.Controls().Zoom)
}

func TestApplySettings(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	focus := capability.FocusAuto
	torch := capability.TorchAuto
	zoom := 3.0

	err := capability.Apply(cam.Device(), capability.Settings{Focus: &focus, Torch: &torch, Zoom: &zoom})
	assert.ErrorIs(t, err, camera.ErrUnsupportedCapability)

	c := cam.Controls()
	assert.Equal(t, capability.FocusAuto, c.Focus)
	assert.Equal(t, 3.0, c.Zoom)
	assert.Equal(t, capability.TorchOff, c.Torch)
}

func TestStreamAdjustsFrameRate(t *testing.T) {
	cam := mockbackend.NewCamera("cam", "Camera", mockbackend.StandardFormats())
	s, err := cam.Device().Open(vgaBGRA)
	require.NoError(t, err)
	defer s.Close()

	adj, ok := capability.AsFrameRateAdjuster(s)
	require.True(t, ok)
	unlock, err := cam.LockForConfiguration()
	require.NoError(t, err)
	assert.ErrorIs(t, adj.SetFrameRate(camera.FPS(10)), camera.ErrConfigLocked)
	unlock()
	require.NoError(t, adj.SetFrameRate(camera.FPS(10)))
	assert.Equal(t, camera.FPS(10), s.Config().FrameRate)
}
