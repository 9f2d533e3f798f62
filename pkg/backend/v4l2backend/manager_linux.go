//go:build linux

package v4l2backend

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/log"
)

const (
	devGlob          = "/dev/video*"
	sysClassDir      = "/sys/class/video4linux"
	configLockWait   = 500 * time.Millisecond
	defaultBufferCnt = 4
)

// Manager discovers /dev/video nodes.
type Manager struct {
	locks *capability.LockTable

	mu sync.Mutex
	// open tracks nodes this process is streaming from, the kernel only
	// reports EBUSY once buffers are requested.
	open map[string]bool
}

func New() *Manager {
	return &Manager{
		locks: capability.NewLockTable(configLockWait),
		open:  map[string]bool{},
	}
}

func (m *Manager) EnumerateDevices() (*camera.Seq[camera.Device], error) {
	paths, err := nodes()
	if err != nil {
		return nil, camera.EnumerationError(err)
	}
	i := 0
	return camera.NewSeq(func() (camera.Device, bool) {
		if i >= len(paths) {
			return nil, false
		}
		p := paths[i]
		i++
		return m.device(p), true
	}), nil
}

// DefaultDevice is the lowest numbered capture node, there is no system
// wide default camera on linux.
func (m *Manager) DefaultDevice() (camera.Device, bool, error) {
	paths, err := nodes()
	if err != nil {
		return nil, false, camera.EnumerationError(err)
	}
	for _, p := range paths {
		if isCaptureNode(p) {
			return m.device(p), true, nil
		}
	}
	return nil, false, nil
}

func (m *Manager) device(path string) *device {
	return &device{
		path:    path,
		name:    nodeName(path),
		manager: m,
		lock:    m.locks.For(path),
	}
}

func (m *Manager) claim(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[path] {
		return false
	}
	m.open[path] = true
	return true
}

func (m *Manager) unclaim(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, path)
}

func nodes() ([]string, error) {
	paths, err := afero.Glob(fs, devGlob)
	if err != nil {
		return nil, err
	}
	sort.Slice(paths, func(i, j int) bool {
		return nodeIndex(paths[i]) < nodeIndex(paths[j])
	})
	return paths, nil
}

// isCaptureNode reports whether path opens as a capture device offering a
// known pixel format. The driver refuses to open nodes without the video
// capture capability, and UVC metadata nodes offer no video formats.
func isCaptureNode(path string) bool {
	h, err := openWebcam(path)
	if err != nil {
		log.Debug("Skipping %s as a default camera: %v", path, err)
		return false
	}
	defer h.Close()
	for code := range h.GetSupportedFormats() {
		if _, ok := camera.FromV4L2FourCC(uint32(code)); ok {
			return true
		}
	}
	return false
}

func nodeIndex(path string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
	if err != nil {
		return -1
	}
	return n
}

// nodeName reads the driver supplied card name from sysfs, falling back
// to asking the node itself.
func nodeName(path string) string {
	b, err := afero.ReadFile(fs, filepath.Join(sysClassDir, filepath.Base(path), "name"))
	if err == nil {
		if name := strings.TrimSpace(string(b)); len(name) > 0 {
			return name
		}
	}

	h, err := openWebcam(path)
	if err != nil {
		log.Debug("Unable to open %s to read its name: %v", path, err)
		return path
	}
	defer h.Close()
	name, err := h.GetName()
	if err != nil || len(name) == 0 {
		return path
	}
	return name
}
