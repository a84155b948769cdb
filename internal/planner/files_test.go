package planner

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

func TestCreateInputFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("local starts pending", func(t *testing.T) {
		f, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{
			Source: models.FileSourceLocal, Role: models.FileRoleBoundary, Name: "../area.kml",
		})
		require.NoError(t, err)
		assert.Equal(t, "area.kml", f.Name)
		assert.Equal(t, models.FileStatePending, f.State)
		assert.Nil(t, f.RemoteID)
	})

	t.Run("local needs role and name", func(t *testing.T) {
		_, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: models.FileSourceLocal, Name: "x.kml"})
		assert.ErrorIs(t, err, ErrInvalidInput)
		_, err = env.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: models.FileSourceLocal, Role: models.FileRoleBoundary})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("remote resolves metadata", func(t *testing.T) {
		remoteID := env.srv.AddFile("terrain.tif", rpa.FileRoleDSM, []byte("tif"))
		f, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: models.FileSourceRemote, RemoteID: remoteID})
		require.NoError(t, err)
		assert.Equal(t, "terrain.tif", f.Name)
		assert.Equal(t, models.FileRoleSurfaceModel, f.Role)
		assert.Equal(t, models.FileStateReady, f.State)
		require.NotNil(t, f.RemoteID)
		assert.Equal(t, remoteID, *f.RemoteID)
	})

	t.Run("remote unknown id", func(t *testing.T) {
		_, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: models.FileSourceRemote, RemoteID: "file-404"})
		assert.ErrorIs(t, err, ErrRemoteFileUnresolved)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: "ftp"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestUploadAndDownloadFileBytes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	f := env.localFile(t, models.FileRoleBoundary, "area.kml", "<kml>area</kml>")
	assert.Equal(t, models.FileStateReady, f.State)
	assert.True(t, env.mirror.has(mirrorKey(f)))

	body, got, err := env.svc.DownloadFileBytes(ctx, f.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "<kml>area</kml>", string(data))
	assert.Equal(t, f.ID, got.ID)

	remote := env.remoteFile(t, models.FileRoleBoundary, "far.kml")
	body, _, err = env.svc.DownloadFileBytes(ctx, remote.ID)
	require.NoError(t, err)
	data, _ = io.ReadAll(body)
	body.Close()
	assert.Equal(t, "remote far.kml", string(data))

	_, err = env.svc.UploadFileBytes(ctx, remote.ID, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotLocalFile)

	pending, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{
		Source: models.FileSourceLocal, Role: models.FileRoleBoundary, Name: "later.kml",
	})
	require.NoError(t, err)
	_, _, err = env.svc.DownloadFileBytes(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestMirrorURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.localFile(t, models.FileRoleBoundary, "area.kml", "<kml/>")

	url, err := env.svc.MirrorURL(ctx, f.ID, time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, mirrorKey(f))

	require.NoError(t, env.svc.DeleteInputFile(ctx, f.ID))
	assert.False(t, env.mirror.has(mirrorKey(f)))

	env.svc.mirror = nil
	_, err = env.svc.MirrorURL(ctx, f.ID, time.Minute)
	assert.ErrorIs(t, err, ErrMirrorDisabled)
}

func TestUpdateInputFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.localFile(t, models.FileRoleBoundary, "area.kml", "<kml/>")

	name := "renamed.kml"
	updated, err := env.svc.UpdateInputFile(ctx, f.ID, UpdateInputFileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed.kml", updated.Name)
	assert.FileExists(t, env.store.Path(f.ID, "renamed.kml"))
	assert.NoFileExists(t, env.store.Path(f.ID, "area.kml"))

	_, err = env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: env.folder(t).ID, BoundaryFileID: &f.ID})
	require.NoError(t, err)
	role := models.FileRoleSurfaceModel
	_, err = env.svc.UpdateInputFile(ctx, f.ID, UpdateInputFileRequest{Role: &role})
	assert.ErrorIs(t, err, ErrFileInUse)

	remote := env.remoteFile(t, models.FileRoleBoundary, "far.kml")
	_, err = env.svc.UpdateInputFile(ctx, remote.ID, UpdateInputFileRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotLocalFile)
}

func TestUploadFileBytesFailureKeepsContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.localFile(t, models.FileRoleBoundary, "area.kml", "<kml>complete-original</kml>")

	broken := io.MultiReader(strings.NewReader("<km"), iotest.ErrReader(errors.New("connection reset")))
	_, err := env.svc.UploadFileBytes(ctx, f.ID, broken)
	require.Error(t, err)

	got := env.reload(t, f)
	assert.Equal(t, models.FileStateReady, got.State)
	data, err := os.ReadFile(env.store.Path(f.ID, f.Name))
	require.NoError(t, err)
	assert.Equal(t, "<kml>complete-original</kml>", string(data))

	pending, err := env.svc.CreateInputFile(ctx, CreateInputFileRequest{
		Source: models.FileSourceLocal, Role: models.FileRoleBoundary, Name: "later.kml",
	})
	require.NoError(t, err)
	_, err = env.svc.UploadFileBytes(ctx, pending.ID, iotest.ErrReader(errors.New("connection reset")))
	require.Error(t, err)
	assert.Equal(t, models.FileStatePending, env.reload(t, pending).State)
	assert.NoFileExists(t, env.store.Path(pending.ID, pending.Name))
}

func TestUpdateInputFileRenameFailureKeepsRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	f := env.localFile(t, models.FileRoleBoundary, "area.kml", "<kml/>")
	require.NoError(t, os.Remove(env.store.Path(f.ID, f.Name)))

	name := "renamed.kml"
	_, err := env.svc.UpdateInputFile(ctx, f.ID, UpdateInputFileRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, "area.kml", env.reload(t, f).Name)
}

func TestDeleteInputFile(t *testing.T) {
	t.Run("detached from its single plan", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		files := env.localFiles(t)
		p := env.plan(t, env.folder(t), "p", files)

		require.NoError(t, env.svc.DeleteInputFile(ctx, files.boundary.ID))

		_, err := env.svc.GetInputFile(ctx, files.boundary.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoFileExists(t, env.store.Path(files.boundary.ID, files.boundary.Name))

		stored := env.storedPlan(t, p.ID)
		assert.Nil(t, stored.BoundaryFileID)
		assert.NotNil(t, stored.DSMFileID)
		assert.NotNil(t, stored.SitesFileID)
	})

	t.Run("shared file is refused", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		folder := env.folder(t)
		files := env.localFiles(t)
		env.plan(t, folder, "one", files)
		env.plan(t, folder, "two", files)

		err := env.svc.DeleteInputFile(ctx, files.dsm.ID)
		assert.ErrorIs(t, err, ErrFileInUse)

		_, err = env.svc.GetInputFile(ctx, files.dsm.ID)
		assert.NoError(t, err)
		assert.FileExists(t, env.store.Path(files.dsm.ID, files.dsm.Name))
	})

	t.Run("unknown file", func(t *testing.T) {
		env := newTestEnv(t)
		assert.ErrorIs(t, env.svc.DeleteInputFile(context.Background(), uuid.New()), ErrNotFound)
	})
}
