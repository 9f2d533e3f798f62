//go:build opencv

package opencvbackend

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/camerastream/pkg/backend"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

const probeCount = 4

func init() {
	backend.Register("opencv", func() (camera.Manager, error) {
		return New(), nil
	})
}

// VideoCapturable is the part of gocv.VideoCapture the backend drives.
type VideoCapturable interface {
	Set(prop gocv.VideoCaptureProperties, value float64)
	Get(prop gocv.VideoCaptureProperties) float64
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Close() error
}

var openVideoCapture = func(source string) (VideoCapturable, error) {
	var device interface{} = source
	if index, err := strconv.Atoi(source); err == nil {
		device = index
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// Manager offers local capture indexes and stream URLs. OpenCV cannot
// list cameras so local indexes are found by probing.
type Manager struct {
	sources []string

	mu   sync.Mutex
	open map[string]bool
}

// New probes the first few local indexes, or uses sources verbatim
// when given.
func New(sources ...string) *Manager {
	return &Manager{sources: sources, open: map[string]bool{}}
}

func (m *Manager) EnumerateDevices() (*camera.Seq[camera.Device], error) {
	sources := m.sources
	if len(sources) == 0 {
		for i := 0; i < probeCount; i++ {
			sources = append(sources, strconv.Itoa(i))
		}
	}

	i := 0
	return camera.NewSeq(func() (camera.Device, bool) {
		for i < len(sources) {
			src := sources[i]
			i++
			if d, ok := m.probe(src); ok {
				return d, true
			}
		}
		return nil, false
	}), nil
}

func (m *Manager) DefaultDevice() (camera.Device, bool, error) {
	devices, err := m.EnumerateDevices()
	if err != nil {
		return nil, false, err
	}
	d, ok := devices.Next()
	return d, ok, nil
}

// probe opens src to learn its native geometry. A source held by one
// of our own streams is reported from its last probe.
func (m *Manager) probe(src string) (*device, bool) {
	vc, err := openVideoCapture(src)
	if err != nil {
		log.Debug("OpenCV source [%s] unavailable: %v", src, err)
		return nil, false
	}
	defer vc.Close()
	if !vc.IsOpened() {
		return nil, false
	}

	size := camera.Size{
		Width:  uint32(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height: uint32(vc.Get(gocv.VideoCaptureFrameHeight)),
	}
	rate := camera.FPS(vc.Get(gocv.VideoCaptureFPS))
	if !rate.Valid() {
		rate = camera.FPS(30)
	}
	if size.IsZero() {
		return nil, false
	}
	return &device{
		src:     src,
		manager: m,
		desc:    camera.NewFormatDescriptor(camera.BGRA32, size, camera.FixedRate(rate)),
	}, true
}

func (m *Manager) claim(src string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[src] {
		return false
	}
	m.open[src] = true
	return true
}

func (m *Manager) unclaim(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, src)
}

type device struct {
	src     string
	manager *Manager
	desc    camera.FormatDescriptor
}

func (d *device) ID() string { return d.src }

func (d *device) Name() string {
	if _, err := strconv.Atoi(d.src); err == nil {
		return "OpenCV capture " + d.src
	}
	return d.src
}

// SupportedFormats is the single geometry the source delivers, OpenCV
// always decodes to BGR.
func (d *device) SupportedFormats() (*camera.Seq[camera.FormatDescriptor], error) {
	return camera.SliceSeq([]camera.FormatDescriptor{d.desc}), nil
}

func (d *device) Open(cfg camera.StreamConfig) (camera.Stream, error) {
	formats, _ := d.SupportedFormats()
	if _, err := camera.MatchConfig(d.src, formats, cfg); err != nil {
		return nil, err
	}
	if !d.manager.claim(d.src) {
		return nil, camera.DeviceBusyError(d.src, nil)
	}

	vc, err := openVideoCapture(d.src)
	if err == nil && !vc.IsOpened() {
		vc.Close()
		err = xerror.Errorf("capture source did not open")
	}
	if err != nil {
		d.manager.unclaim(d.src)
		return nil, camera.OpenError(d.src, err)
	}
	vc.Set(gocv.VideoCaptureFPS, cfg.FrameRate.Float64())

	return &Stream{
		id:   uuid.NewString(),
		dev:  d,
		vc:   vc,
		life: camera.NewLifecycle(d.src, cfg),
	}, nil
}

// Stream reads decoded frames and hands them over as BGRA.
type Stream struct {
	id   string
	dev  *device
	vc   VideoCapturable
	life *camera.Lifecycle

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	started time.Time
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Device() string { return s.dev.src }

func (s *Stream) Config() camera.StreamConfig { return s.life.Config() }

func (s *Stream) State() camera.State { return s.life.State() }

func (s *Stream) Stats() camera.StreamStats { return s.life.Stats() }

// Err reports why the stream stopped on its own, if it did.
func (s *Stream) Err() error { return s.life.Err() }

func (s *Stream) Start(handler camera.FrameHandler) error {
	return s.life.Start(handler, s.activate)
}

func (s *Stream) Stop() error { return s.life.Stop(s.halt) }

func (s *Stream) Close() error { return s.life.Close(s.halt, s.release) }

func (s *Stream) activate() error {
	s.mu.Lock()
	s.stop = make(chan struct{})
	s.started = time.Now()
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.capture(stop)
	return nil
}

func (s *Stream) capture(stop chan struct{}) {
	defer s.wg.Done()
	img, bgra := gocv.NewMat(), gocv.NewMat()
	defer img.Close()
	defer bgra.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if ok := s.vc.Read(&img); !ok {
			log.Warn("Capture source [%s] closed", s.dev.src)
			s.life.Fail(xerror.Errorf("capture source %s stopped returning frames", s.dev.src))
			return
		}
		if img.Empty() {
			continue
		}
		ts := time.Since(s.started)

		gocv.CvtColor(img, &bgra, gocv.ColorBGRToBGRA)
		data, err := bgra.DataPtrUint8()
		if err != nil {
			s.life.Drop()
			continue
		}
		plane := camera.Plane{Data: data, Stride: bgra.Cols() * 4}
		if err := s.life.Deliver(ts, plane); err != nil {
			log.Debug("Capture source [%s] dropped frame: %v", s.dev.src, err)
		}
	}
}

func (s *Stream) halt() error {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
		s.wg.Wait()
	}
	return nil
}

func (s *Stream) release() error {
	s.halt()
	defer s.dev.manager.unclaim(s.dev.src)
	return s.vc.Close()
}
