package data_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	data "github.com/tauraamui/camerastream/pkg/database"
	"github.com/tauraamui/camerastream/pkg/database/dbconn"
	"github.com/tauraamui/camerastream/pkg/database/models"
	"github.com/tauraamui/camerastream/pkg/database/repos"
)

func TestSetupCreatesDBFileAgainstBlankFS(t *testing.T) {
	t.Setenv("CAMERASTREAM_DB", "")
	memfs := afero.NewMemMapFs()
	resetFS := data.OverloadFS(memfs)
	defer resetFS()
	resetUC := data.OverloadUC(func() (string, error) { return "/home/test/.cache", nil })
	defer resetUC()

	var openedPath string
	resetOpen := data.OverloadOpenDBConnection(func(path string) (dbconn.GormWrapper, error) {
		openedPath = path
		return dbconn.Mock(), nil
	})
	defer resetOpen()

	require.NoError(t, data.Setup())

	expected := "/home/test/.cache/tacusci/camerastream/sessions.db"
	assert.Equal(t, expected, openedPath)
	exists, err := afero.Exists(memfs, expected)
	require.NoError(t, err)
	assert.True(t, exists)

	err = data.Setup()
	assert.ErrorIs(t, err, data.ErrDBAlreadyExists)

	require.NoError(t, data.Destroy())
	exists, err = afero.Exists(memfs, expected)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSetupFailsOnPathResolution(t *testing.T) {
	t.Setenv("CAMERASTREAM_DB", "")
	reset := data.OverloadUC(func() (string, error) {
		return "", errors.New("test cache dir error")
	})
	defer reset()

	err := data.Setup()
	require.Error(t, err)
	assert.EqualError(t, err, "unable to resolve sessions.db database file location: test cache dir error")
}

func TestConnectFailsOnMigration(t *testing.T) {
	t.Setenv("CAMERASTREAM_DB", "/tmp/sessions.db")
	resetOpen := data.OverloadOpenDBConnection(func(string) (dbconn.GormWrapper, error) {
		return dbconn.Mock().SetError(errors.New("disk full")), nil
	})
	defer resetOpen()

	_, err := data.Connect()
	assert.EqualError(t, err, "unable to run automigrations: disk full")
}

func TestSessionHistoryAgainstSqlite(t *testing.T) {
	t.Setenv("CAMERASTREAM_DB", filepath.Join(t.TempDir(), "sessions.db"))

	db, err := data.Connect()
	require.NoError(t, err)
	repo := repos.SessionRepository{DB: db}

	start := time.Date(2021, 3, 17, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(&models.Session{UUID: "first", Camera: "Front", StartedAt: start}))
	require.NoError(t, repo.Create(&models.Session{UUID: "second", Camera: "Back", StartedAt: start.Add(time.Minute)}))

	require.NoError(t, repo.Finish("first", start.Add(30*time.Second), 900, 3, nil))

	first, err := repo.FindByUUID("first")
	require.NoError(t, err)
	assert.Equal(t, "Front", first.Camera)
	assert.EqualValues(t, 900, first.Delivered)
	assert.EqualValues(t, 3, first.Dropped)
	require.True(t, first.Finished())
	assert.Equal(t, 30*time.Second, first.Duration())

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].UUID)

	back, err := repo.ForCamera("Back")
	require.NoError(t, err)
	require.Len(t, back, 1)

	_, err = repo.FindByUUID("missing")
	assert.EqualError(t, err, "session of uuid missing not found")
}
