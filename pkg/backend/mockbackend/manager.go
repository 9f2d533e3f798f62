// Package mockbackend is an in memory camera backend. Cameras, their
// formats and their failures are configured by the caller, frames are
// injected or rendered synthetically and delivered through the same
// lifecycle the hardware backends use.
package mockbackend

import (
	"sync"

	"github.com/tauraamui/camerastream/pkg/backend"
	"github.com/tauraamui/camerastream/pkg/camera"
)

func init() {
	backend.Register("mock", func() (camera.Manager, error) {
		return NewDefault(), nil
	})
}

// Manager discovers the cameras added to it.
type Manager struct {
	mu        sync.RWMutex
	cameras   []*Camera
	defaultID string
	enumErr   error
}

// New builds a manager over cameras, the first one is the default.
func New(cameras ...*Camera) *Manager {
	m := &Manager{cameras: cameras}
	if len(cameras) > 0 {
		m.defaultID = cameras[0].id
	}
	return m
}

// NewDefault is a manager with one generating webcam and one plain
// capture card, used when the mock backend is picked by name.
func NewDefault() *Manager {
	return New(
		NewCamera("mock-0", "Mock FaceTime HD Camera", StandardFormats(), WithGenerator()),
		NewCamera("mock-1", "Mock Capture Card", []camera.FormatDescriptor{
			camera.NewFormatDescriptor(camera.UYVY, camera.Size{Width: 1920, Height: 1080}, camera.FixedRate(camera.FPS(25)), camera.FixedRate(camera.FPS(29.97))),
		}, WithGenerator(), WithExclusive(), WithoutCapabilities()),
	)
}

func (m *Manager) AddCamera(c *Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cameras = append(m.cameras, c)
}

// RemoveCamera unplugs the camera, it is no longer enumerated.
func (m *Manager) RemoveCamera(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cameras {
		if c.id == id {
			m.cameras = append(m.cameras[:i], m.cameras[i+1:]...)
			return
		}
	}
}

func (m *Manager) Camera(id string) *Camera {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cameras {
		if c.id == id {
			return c
		}
	}
	return nil
}

// SetDefault marks id as the platform default, an empty id clears it.
func (m *Manager) SetDefault(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
}

// FailEnumeration makes discovery fail with err, nil clears it.
func (m *Manager) FailEnumeration(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enumErr = err
}

func (m *Manager) EnumerateDevices() (*camera.Seq[camera.Device], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.enumErr != nil {
		return nil, camera.EnumerationError(m.enumErr)
	}

	snapshot := make([]*Camera, len(m.cameras))
	copy(snapshot, m.cameras)
	i := 0
	return camera.NewSeq(func() (camera.Device, bool) {
		if i >= len(snapshot) {
			return nil, false
		}
		c := snapshot[i]
		i++
		return c.handle(), true
	}), nil
}

// DefaultDevice only names a camera which is currently enumerated.
func (m *Manager) DefaultDevice() (camera.Device, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.enumErr != nil {
		return nil, false, camera.EnumerationError(m.enumErr)
	}
	if len(m.defaultID) == 0 {
		return nil, false, nil
	}
	for _, c := range m.cameras {
		if c.id == m.defaultID {
			return c.handle(), true, nil
		}
	}
	return nil, false, nil
}
