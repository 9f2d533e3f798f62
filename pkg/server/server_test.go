package server_test

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/camerastream/pkg/backend/mockbackend"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/camera/capability"
	"github.com/tauraamui/camerastream/pkg/config/schedule"
	"github.com/tauraamui/camerastream/pkg/configdef"
	"github.com/tauraamui/camerastream/pkg/database/dbconn"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/camerastream/pkg/rawlog"
	"github.com/tauraamui/camerastream/pkg/server"
)

type testConfigResolver struct {
	resolveConfigs func() configdef.Values
	err            error
}

func (tcc testConfigResolver) Resolve() (configdef.Values, error) {
	if tcc.resolveConfigs == nil {
		return configdef.Values{}, tcc.err
	}
	return tcc.resolveConfigs(), tcc.err
}

func overloadInfoLog(overload func(string, ...interface{})) func() {
	logInfoRef := log.Info
	log.Info = overload
	return func() { log.Info = logInfoRef }
}

func TestNewServer(t *testing.T) {
	is := is.New(t)
	s, err := server.NewServer(testConfigResolver{}, mockbackend.New())
	is.NoErr(err)
	is.True(s != nil)
}

func TestNewServerConfigError(t *testing.T) {
	is := is.New(t)
	_, err := server.NewServer(testConfigResolver{err: errors.New("bad config")}, nil)
	is.Equal(err.Error(), "bad config")
}

func TestNewServerResolvesConfiguredBackend(t *testing.T) {
	is := is.New(t)
	t.Setenv("CAMERASTREAM_BACKEND", "")

	var resolved string
	reset := server.OverloadResolveBackend(func(name string) (camera.Manager, error) {
		resolved = name
		return mockbackend.New(), nil
	})
	defer reset()

	_, err := server.NewServer(testConfigResolver{resolveConfigs: func() configdef.Values {
		return configdef.Values{Backend: "v4l2"}
	}}, nil)
	is.NoErr(err)
	is.Equal(resolved, "v4l2")
}

func TestNewServerBackendFromEnv(t *testing.T) {
	is := is.New(t)
	t.Setenv("CAMERASTREAM_BACKEND", "mock")

	var resolved string
	reset := server.OverloadResolveBackend(func(name string) (camera.Manager, error) {
		resolved = name
		return mockbackend.New(), nil
	})
	defer reset()

	_, err := server.NewServer(testConfigResolver{resolveConfigs: func() configdef.Values {
		return configdef.Values{Backend: "v4l2"}
	}}, nil)
	is.NoErr(err)
	is.Equal(resolved, "mock")
}

func TestNewServerUnknownBackend(t *testing.T) {
	is := is.New(t)
	t.Setenv("CAMERASTREAM_BACKEND", "")
	_, err := server.NewServer(testConfigResolver{resolveConfigs: func() configdef.Values {
		return configdef.Values{Backend: "quicktime"}
	}}, nil)
	is.True(err != nil)
}

func TestNewServerSessionHistoryConnectFailure(t *testing.T) {
	is := is.New(t)
	reset := server.OverloadConnectDB(func() (dbconn.GormWrapper, error) {
		return nil, errors.New("locked")
	})
	defer reset()

	_, err := server.NewServer(testConfigResolver{resolveConfigs: func() configdef.Values {
		return configdef.Values{SessionHistory: true}
	}}, mockbackend.New())
	is.Equal(err.Error(), "unable to open session history: locked")
}

type ServerTestSuite struct {
	suite.Suite
	fs       afero.Fs
	manager  *mockbackend.Manager
	db       dbconn.MockGormWrapper
	mu       sync.Mutex
	infoLogs []string
	resets   []func()
}

func (suite *ServerTestSuite) SetupTest() {
	suite.fs = afero.NewMemMapFs()
	suite.db = dbconn.Mock()
	suite.manager = mockbackend.New(
		mockbackend.NewCamera("mock-0", "Front Camera", mockbackend.StandardFormats(), mockbackend.WithGenerator()),
		mockbackend.NewCamera("mock-1", "Back Camera", mockbackend.StandardFormats(), mockbackend.WithGenerator()),
	)
	suite.infoLogs = nil
	suite.resets = []func(){
		server.OverloadFS(suite.fs),
		server.OverloadConnectDB(func() (dbconn.GormWrapper, error) { return suite.db, nil }),
		overloadInfoLog(func(format string, a ...interface{}) {
			suite.mu.Lock()
			defer suite.mu.Unlock()
			suite.infoLogs = append(suite.infoLogs, fmt.Sprintf(format, a...))
		}),
	}
}

func (suite *ServerTestSuite) TearDownTest() {
	for _, reset := range suite.resets {
		reset()
	}
}

func (suite *ServerTestSuite) logged() []string {
	suite.mu.Lock()
	defer suite.mu.Unlock()
	return append([]string(nil), suite.infoLogs...)
}

func (suite *ServerTestSuite) newServer(values configdef.Values) *server.Server {
	s, err := server.NewServer(testConfigResolver{resolveConfigs: func() configdef.Values { return values }}, suite.manager)
	suite.Require().NoError(err)
	return s
}

func (suite *ServerTestSuite) TestConnectSkipsDisabledAndReportsMissing() {
	s := suite.newServer(configdef.Values{
		Cameras: []configdef.Camera{
			{Title: "Front", DeviceID: "mock-0"},
			{Title: "Garage", DeviceID: "mock-9"},
			{Title: "Back", DeviceID: "mock-1", Disabled: true},
			{Title: "Wide", DeviceID: "mock-1", PixelFormat: "jpeg", Width: 640},
		},
	})

	errs := s.Connect()
	suite.Require().Len(errs, 2)
	suite.ErrorIs(errs[0], server.ErrDeviceNotFound)
	suite.ErrorIs(errs[1], server.ErrNoFormat)
	suite.Contains(suite.logged(), "Connected successfully to camera: [Front]")
}

func (suite *ServerTestSuite) TestConnectDefaultDevice() {
	s := suite.newServer(configdef.Values{Cameras: []configdef.Camera{{Title: "Default"}}})
	suite.Empty(s.Connect())
	s.SetupProcesses()
	s.RunProcesses()

	suite.Require().Eventually(func() bool {
		st := suite.manager.Camera("mock-0").LastStream()
		return st != nil && st.State() == camera.Running
	}, 2*time.Second, time.Millisecond)
	<-s.Shutdown()
}

func (suite *ServerTestSuite) TestRunProcessesRecordsAndKeepsHistory() {
	torch := "on"
	s := suite.newServer(configdef.Values{
		RecordDir:      "/recordings",
		SessionHistory: true,
		StatsInterval:  1,
		Cameras: []configdef.Camera{
			{
				Title: "Front Door", DeviceID: "mock-0",
				PixelFormat: "bgra32", Width: 640, Height: 480, FPS: 30,
				Record:   true,
				Controls: configdef.Controls{Torch: torch},
			},
		},
	})
	suite.Require().Empty(s.Connect())
	s.SetupProcesses()
	s.RunProcesses()

	cam := suite.manager.Camera("mock-0")
	suite.Require().Eventually(func() bool {
		st := cam.LastStream()
		return st != nil && st.Stats().Delivered >= 3
	}, 2*time.Second, time.Millisecond)
	suite.Equal(capability.TorchOn, cam.Controls().Torch)

	<-s.Shutdown()
	suite.Equal(camera.Stopped, cam.LastStream().State())

	files, err := afero.ReadDir(suite.fs, "/recordings")
	suite.Require().NoError(err)
	suite.Require().Len(files, 1)
	suite.Contains(files[0].Name(), "Front_Door")

	r, err := rawlog.Open(suite.fs, "/recordings/"+files[0].Name())
	suite.Require().NoError(err)
	defer r.Close()
	count := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		suite.Require().NoError(err)
		suite.Equal("mock-0", e.Record.Device)
		suite.Equal("bgra32", e.Record.PixelFormat)
		count++
	}
	suite.GreaterOrEqual(count, 1)

	suite.Require().Len(suite.db.Created(), 1)
	suite.Len(suite.db.Updated(), 1)

	suite.Subset(suite.logged(), []string{
		"Connecting to camera: [Front Door]...",
		"Connected successfully to camera: [Front Door]",
		"Streaming video from camera [Front Door]",
		"Closing camera [Front Door]...",
	})
}

func (suite *ServerTestSuite) TestScheduledOffCameraIsNotOpened() {
	off := schedule.At(0, 0, 0)
	s := suite.newServer(configdef.Values{
		Cameras: []configdef.Camera{
			{Title: "Night", DeviceID: "mock-1", Schedule: schedule.Week{Everyday: schedule.OnOffTimes{Off: &off}}},
		},
	})
	suite.Require().Empty(s.Connect())
	s.SetupProcesses()
	s.RunProcesses()
	time.Sleep(20 * time.Millisecond)
	<-s.Shutdown()

	suite.Nil(suite.manager.Camera("mock-1").LastStream())
	suite.Contains(suite.logged(), "Camera [Night] is scheduled off")
}

func (suite *ServerTestSuite) TestOldRecordingsArePrunedOnlyWhenConfigured() {
	s := suite.newServer(configdef.Values{RecordDir: "/recordings"})
	s.SetupProcesses()
	s.RunProcesses()
	<-s.Shutdown()
	suite.NotContains(suite.logged(), "Stopping removal of old recordings...")

	s = suite.newServer(configdef.Values{RecordDir: "/recordings", MaxRecordAgeInDays: 7})
	s.SetupProcesses()
	s.RunProcesses()
	<-s.Shutdown()
	suite.Subset(suite.logged(), []string{
		"Removing recordings older than 7 days from /recordings",
		"Stopping removal of old recordings...",
	})
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, &ServerTestSuite{})
}

func TestShutdownWithoutCameras(t *testing.T) {
	s, err := server.NewServer(testConfigResolver{}, mockbackend.New())
	require.NoError(t, err)
	assert.Empty(t, s.Connect())
	s.SetupProcesses()
	s.RunProcesses()
	select {
	case <-s.Shutdown():
	case <-time.After(time.Second):
		t.Fatal("shutdown never completed")
	}
}
