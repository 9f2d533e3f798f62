package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/camerastream/pkg/backend"
	_ "github.com/tauraamui/camerastream/pkg/backend/mockbackend"
	_ "github.com/tauraamui/camerastream/pkg/backend/opencvbackend"
	_ "github.com/tauraamui/camerastream/pkg/backend/v4l2backend"
	"github.com/tauraamui/camerastream/pkg/config"
	"github.com/tauraamui/camerastream/pkg/configdef"
	db "github.com/tauraamui/camerastream/pkg/database"
	"github.com/tauraamui/camerastream/pkg/log"
	"github.com/tauraamui/camerastream/pkg/server"
)

const (
	name        = "camerastream"
	description = "Camera capture service which streams and records local cameras"
)

var backendName string

type Service struct {
	daemon.Daemon
}

// Setup creates the default config and the session history database.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up camerastream service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	err = db.Setup()
	if err != nil {
		if !errors.Is(err, db.ErrDBAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for camerastream service...")
	if err := config.DefaultDestroyer().Destroy(); err != nil {
		log.Error("unable to delete config file: %s", err.Error())
	}
	if err := db.Destroy(); err != nil {
		log.Error("unable to delete database file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: camerastream list | formats | capture | dump | setup | remove-setup | install | remove | start | stop | status"

	if len(os.Args) > 1 {
		command, args := os.Args[1], os.Args[2:]
		switch command {
		case "list", "formats", "capture":
			m, err := backend.Resolve(backendName)
			if err != nil {
				return "", err
			}
			return runCameraCommand(command, m, os.Stdout, args)
		case "dump":
			return dump(os.Stdout, args)
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		default:
			return usage, nil
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting camerastream daemon...")

	server, err := server.NewServer(config.DefaultResolver(), nil)
	if err != nil {
		log.Fatal(err.Error())
	}

	ctx, cancelStartup := context.WithCancel(context.Background())
	go startupServer(ctx, server)

	killSignal := <-interrupt
	fmt.Print("\r")
	log.Error("Received signal: %s", killSignal)

	cancelStartup()
	log.Info("Shutting down server...")
	<-server.Shutdown()

	return "Shutdown successful... BYE! 👋", nil
}

func startupServer(ctx context.Context, server *server.Server) {
	connectToCameras(ctx, server)
	server.SetupProcesses()
	server.RunProcesses()
}

func connectToCameras(ctx context.Context, server *server.Server) {
	errs := server.ConnectWithCancel(ctx)
	for _, err := range errs {
		log.Error(err.Error())
	}
}

func init() {
	logging.CallbackLabelLevel = 5
	logging.ColorLogLevelLabelOnly = true
	log.SetLevel(os.Getenv("CAMERASTREAM_LOGGING_LEVEL"))

	backendName = os.Getenv("CAMERASTREAM_BACKEND")
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
