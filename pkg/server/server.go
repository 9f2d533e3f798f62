// Package server runs the capture daemon: it opens every configured
// camera and keeps it streaming while its schedule allows.
package server

import (
	"context"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/backend"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/config/schedule"
	"github.com/tauraamui/camerastream/pkg/configdef"
	data "github.com/tauraamui/camerastream/pkg/database"
	"github.com/tauraamui/camerastream/pkg/database/dbconn"
	"github.com/tauraamui/camerastream/pkg/database/repos"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/camerastream/pkg/rawlog"
	"github.com/tauraamui/camerastream/pkg/server/process"
	"github.com/tauraamui/xerror"
)

const backendEnvKey = "CAMERASTREAM_BACKEND"

var (
	ErrDeviceNotFound = xerror.New("camera device not found")
	ErrNoFormat       = xerror.New("no supported format matches camera settings")
)

// pruneInterval is how often the record dir is checked for old recordings.
const pruneInterval = 5 * time.Minute

var fs = afero.NewOsFs()
var connectDB = data.Connect
var resolveBackend = backend.Resolve

type Server struct {
	shutdownDone  chan interface{}
	config        configdef.Values
	backend       string
	manager       camera.Manager
	sessions      process.SessionStore
	mu            sync.Mutex
	cameras       []process.Camera
	coreProcesses []process.CoreProcess
	statsProcess  process.Process
	pruneProcess  process.Process
}

// NewServer loads the configuration and resolves the camera backend.
// A nil manager is resolved from $CAMERASTREAM_BACKEND, then the
// configured backend name.
func NewServer(cr configdef.Resolver, manager camera.Manager) (*Server, error) {
	s := &Server{manager: manager, shutdownDone: make(chan interface{})}
	if err := s.loadConfiguration(cr); err != nil {
		return nil, err
	}

	s.backend = os.Getenv(backendEnvKey)
	if len(s.backend) == 0 {
		s.backend = s.config.Backend
	}
	if s.manager == nil {
		m, err := resolveBackend(s.backend)
		if err != nil {
			return nil, err
		}
		s.manager = m
	}

	if s.config.SessionHistory {
		db, err := connectDB()
		if err != nil {
			return nil, xerror.Errorf("unable to open session history: %w", err)
		}
		s.sessions = sessionStore(db)
	}
	return s, nil
}

func sessionStore(db dbconn.GormWrapper) process.SessionStore {
	return &repos.SessionRepository{DB: db}
}

func (s *Server) loadConfiguration(cr configdef.Resolver) error {
	config, err := cr.Resolve()
	if err != nil {
		return err
	}

	s.config = config
	return nil
}

func (s *Server) Connect() []error {
	return s.connect(context.Background())
}

func (s *Server) ConnectWithCancel(cancel context.Context) []error {
	return s.connect(cancel)
}

func (s *Server) connect(cancel context.Context) []error {
	var errs []error

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cam := range s.config.Cameras {
		select {
		case <-cancel.Done():
			return errs
		default:
			if cam.Disabled {
				log.Warn("Camera [%s] is disabled... skipping...", cam.Title)
				continue
			}
			log.Info("Connecting to camera: [%s]...", cam.Title)
			c, err := s.resolveCamera(cam)
			if err != nil {
				log.Error("Unable to connect to camera [%s]: %v", cam.Title, err)
				errs = append(errs, err)
				continue
			}
			log.Info("Connected successfully to camera: [%s]", cam.Title)
			s.cameras = append(s.cameras, c)
		}
	}
	return errs
}

// resolveCamera finds the device a configured camera names and picks
// the stream configuration to open it with.
func (s *Server) resolveCamera(cam configdef.Camera) (process.Camera, error) {
	var (
		dev camera.Device
		ok  bool
		err error
	)
	if len(cam.DeviceID) == 0 {
		dev, ok, err = s.manager.DefaultDevice()
	} else {
		dev, ok, err = camera.FindDevice(s.manager, cam.DeviceID)
	}
	if err != nil {
		return process.Camera{}, err
	}
	if !ok {
		return process.Camera{}, xerror.Errorf("%w: %s [%s]", ErrDeviceNotFound, cam.Title, cam.DeviceID)
	}

	formats, err := dev.SupportedFormats()
	if err != nil {
		return process.Camera{}, err
	}
	cfg, ok := cam.Choose(formats)
	if !ok {
		return process.Camera{}, xerror.Errorf("%w: %s on %s", ErrNoFormat, cam.Title, dev.ID())
	}

	settings, err := cam.Controls.Settings()
	if err != nil {
		return process.Camera{}, err
	}

	c := process.Camera{
		Title:    cam.Title,
		Backend:  s.backend,
		Device:   dev,
		Config:   cfg,
		Settings: settings,
	}
	if !cam.Schedule.Empty() {
		c.Schedule = schedule.NewSchedule(cam.Schedule)
	}
	if cam.Record {
		c.Record = s.recorder()
	}
	return c, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func (s *Server) recorder() func(string) (process.FrameWriter, string, error) {
	dir := s.config.RecordDir
	return func(title string) (process.FrameWriter, string, error) {
		w, path, err := rawlog.Create(fs, dir, unsafeFileChars.ReplaceAllString(title, "_"))
		if err != nil {
			return nil, "", err
		}
		log.Info("Recording camera [%s] to %s", title, path)
		return w, path, nil
	}
}

func (s *Server) SetupProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sources []process.StatsSource
	for _, cam := range s.cameras {
		proc := process.NewCoreProcess(cam, s.sessions)
		proc.Setup()
		s.coreProcesses = append(s.coreProcesses, proc)
		sources = append(sources, proc)
	}
	if s.config.StatsInterval > 0 && len(sources) > 0 {
		s.statsProcess = process.NewStatsProcess(time.Duration(s.config.StatsInterval)*time.Second, sources)
	}
	if s.config.MaxRecordAgeInDays > 0 && len(s.config.RecordDir) > 0 {
		maxAge := time.Duration(s.config.MaxRecordAgeInDays) * 24 * time.Hour
		s.pruneProcess = process.NewPruneRecordingsProcess(fs, s.config.RecordDir, maxAge, pruneInterval)
	}
}

func (s *Server) RunProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proc := range s.coreProcesses {
		log.Info("Streaming video from camera [%s]", proc.Title())
		proc.Start()
	}
	if s.statsProcess != nil {
		s.statsProcess.Start()
	}
	if s.pruneProcess != nil {
		log.Info("Removing recordings older than %d days from %s", s.config.MaxRecordAgeInDays, s.config.RecordDir)
		s.pruneProcess.Start()
	}
}

func (s *Server) shutdownProcesses() {
	for _, proc := range []process.Process{s.statsProcess, s.pruneProcess} {
		if proc != nil {
			proc.Stop()
			proc.Wait()
		}
	}
	wg := sync.WaitGroup{}
	wg.Add(len(s.coreProcesses))
	for _, proc := range s.coreProcesses {
		go func(wg *sync.WaitGroup, proc process.Process) {
			proc.Stop()
			proc.Wait()
			wg.Done()
		}(&wg, proc)
	}
	wg.Wait()
}

func (s *Server) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownProcesses()
	close(s.shutdownDone)
}

// Shutdown closes every camera, finishing any in progress recordings.
func (s *Server) Shutdown() chan interface{} {
	go s.shutdown()
	return s.shutdownDone
}
