package server

import (
	"github.com/spf13/afero"
	"github.com/tauraamui/camerastream/pkg/camera"
	"github.com/tauraamui/camerastream/pkg/database/dbconn"
)

func OverloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func OverloadConnectDB(overload func() (dbconn.GormWrapper, error)) func() {
	connectDBRef := connectDB
	connectDB = overload
	return func() { connectDB = connectDBRef }
}

func OverloadResolveBackend(overload func(string) (camera.Manager, error)) func() {
	resolveBackendRef := resolveBackend
	resolveBackend = overload
	return func() { resolveBackend = resolveBackendRef }
}
