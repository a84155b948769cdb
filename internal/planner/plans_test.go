package planner

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

func launchedPlan(t *testing.T, env *testEnv) (*models.Plan, string) {
	t.Helper()
	p := env.plan(t, env.folder(t), "launched", env.remoteFiles(t))
	res, err := env.svc.LaunchPlan(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, models.PlanStateRunning, res.State, res.Errors)
	stored := env.storedPlan(t, p.ID)
	return &stored, *stored.RemoteID
}

func TestCreatePlanChecksRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folder := env.folder(t)
	files := env.remoteFiles(t)

	_, err := env.svc.CreatePlan(ctx, CreatePlanRequest{
		FolderID:  folder.ID,
		Name:      "swapped",
		DSMFileID: &files.sites.ID,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	missing := uuid.New()
	_, err = env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: folder.ID, SitesFileID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folder := env.folder(t)
	files := env.remoteFiles(t)
	p, err := env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: folder.ID})
	require.NoError(t, err)

	name := "renamed"
	boards := []string{"tg-dn-60"}
	updated, err := env.svc.UpdatePlan(ctx, p.ID, UpdatePlanRequest{
		Name:             &name,
		DSMFileID:        &files.dsm.ID,
		HardwareBoardIDs: &boards,
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	stored := env.storedPlan(t, p.ID)
	assert.Equal(t, "renamed", stored.Name)
	require.NotNil(t, stored.DSMFileID)
	assert.Equal(t, files.dsm.ID, *stored.DSMFileID)
	assert.Equal(t, []string{"tg-dn-60"}, stored.HardwareBoardIDs)

	cleared := []string{}
	_, err = env.svc.UpdatePlan(ctx, p.ID, UpdatePlanRequest{HardwareBoardIDs: &cleared})
	require.NoError(t, err)
	assert.Empty(t, env.storedPlan(t, p.ID).HardwareBoardIDs)

	_, err = env.svc.UpdatePlan(ctx, p.ID, UpdatePlanRequest{BoundaryFileID: &files.dsm.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	running, _ := launchedPlan(t, env)
	_, err = env.svc.UpdatePlan(ctx, running.ID, UpdatePlanRequest{Name: &name})
	assert.ErrorIs(t, err, ErrPlanAlreadyLaunched)
}

func TestGetPlanSyncsRunningPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, remoteID := launchedPlan(t, env)

	got, err := env.svc.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStateRunning, got.State)
	assert.Equal(t, 1, env.srv.PlanGets(remoteID))

	env.srv.SetPlanStatus(remoteID, rpa.PlanStatusSucceeded)
	got, err = env.svc.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStateSuccess, got.State)
	assert.Equal(t, models.PlanStateSuccess, env.storedPlan(t, p.ID).State)
	assert.Equal(t, 2, env.srv.PlanGets(remoteID))

	// terminal plans are not refreshed again
	got, err = env.svc.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStateSuccess, got.State)
	assert.Equal(t, 2, env.srv.PlanGets(remoteID))
}

func TestGetPlanSyncErrorPropagates(t *testing.T) {
	env := newTestEnv(t)
	p, _ := launchedPlan(t, env)

	env.srv.Forbid("token revoked")
	_, err := env.svc.GetPlan(context.Background(), p.ID)
	var apiErr *rpa.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "token revoked", apiErr.Message)
	assert.Equal(t, models.PlanStateRunning, env.storedPlan(t, p.ID).State)
}

func TestListPlansInFolder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folder := env.folder(t)
	files := env.remoteFiles(t)

	var remoteIDs []string
	for _, name := range []string{"a", "b", "c"} {
		p := env.plan(t, folder, name, files)
		res, err := env.svc.LaunchPlan(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, models.PlanStateRunning, res.State)
		remoteIDs = append(remoteIDs, *env.storedPlan(t, p.ID).RemoteID)
	}
	draft, err := env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: folder.ID, Name: "draft"})
	require.NoError(t, err)

	env.srv.SetPlanStatus(remoteIDs[0], rpa.PlanStatusFailed)
	env.srv.SetPlanStatus(remoteIDs[1], rpa.PlanStatusKilled)

	plans, err := env.svc.ListPlansInFolder(ctx, folder.ID)
	require.NoError(t, err)
	require.Len(t, plans, 4)

	states := map[string]models.PlanState{}
	for _, p := range plans {
		states[p.Name] = p.State
	}
	assert.Equal(t, map[string]models.PlanState{
		"a":     models.PlanStateError,
		"b":     models.PlanStateCancelled,
		"c":     models.PlanStateRunning,
		"draft": models.PlanStateDraft,
	}, states)
	assert.Equal(t, models.PlanStateDraft, env.storedPlan(t, draft.ID).State)

	env.srv.Forbid("expired")
	plans, err = env.svc.ListPlansInFolder(ctx, folder.ID)
	require.NoError(t, err, "a failed refresh keeps the stored row")
	assert.Len(t, plans, 4)

	_, err = env.svc.ListPlansInFolder(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	draft := env.plan(t, env.folder(t), "draft", env.remoteFiles(t))
	_, err := env.svc.CancelPlan(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrPlanNotLaunched)

	p, _ := launchedPlan(t, env)
	res, err := env.svc.CancelPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.PlanStateCancelled, env.storedPlan(t, p.ID).State)

	_, err = env.svc.CancelPlan(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	folder := env.folder(t)
	files := env.localFiles(t)
	shared := env.localFile(t, models.FileRoleSurfaceModel, "shared.tif", "shared")

	doomed := env.plan(t, folder, "doomed", files)
	keeper, err := env.svc.CreatePlan(ctx, CreatePlanRequest{FolderID: folder.ID, DSMFileID: &shared.ID})
	require.NoError(t, err)
	_, err = env.svc.UpdatePlan(ctx, doomed.ID, UpdatePlanRequest{DSMFileID: &shared.ID})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeletePlan(ctx, doomed.ID))
	_, err = env.svc.GetPlan(ctx, doomed.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, orphan := range []*models.InputFile{files.boundary, files.sites} {
		_, err := env.svc.GetInputFile(ctx, orphan.ID)
		assert.ErrorIs(t, err, ErrNotFound, orphan.Name)
		assert.NoFileExists(t, env.store.Path(orphan.ID, orphan.Name))
	}
	// the first DSM was already detached and is kept as a standalone file
	_, err = env.svc.GetInputFile(ctx, files.dsm.ID)
	assert.NoError(t, err)

	_, err = env.svc.GetInputFile(ctx, shared.ID)
	require.NoError(t, err)
	assert.FileExists(t, env.store.Path(shared.ID, shared.Name))
	_, err = env.svc.GetPlan(ctx, keeper.ID)
	assert.NoError(t, err)
}

func TestDeletePlanRefusedWhileRunning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p, remoteID := launchedPlan(t, env)

	assert.ErrorIs(t, env.svc.DeletePlan(ctx, p.ID), ErrPlanBusy)

	env.srv.SetPlanStatus(remoteID, rpa.PlanStatusSucceeded)
	_, err := env.svc.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.NoError(t, env.svc.DeletePlan(ctx, p.ID))
}

// stallPlan leaves a plan in UPLOADING_INPUTS as a launch interrupted by a
// crash would.
func stallPlan(t *testing.T, env *testEnv, p *models.Plan) {
	t.Helper()
	require.NoError(t, env.db.Model(p).Update("state", models.PlanStateUploadingInputs).Error)
}

func TestStalledPlanRecovers(t *testing.T) {
	ctx := context.Background()

	t.Run("read resets to error", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.plan(t, env.folder(t), "stalled", env.remoteFiles(t))
		stallPlan(t, env, p)

		got, err := env.svc.GetPlan(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlanStateError, got.State)
		assert.Equal(t, models.PlanStateError, env.storedPlan(t, p.ID).State)
	})

	t.Run("update and relaunch", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.plan(t, env.folder(t), "stalled", env.remoteFiles(t))
		stallPlan(t, env, p)

		name := "retried"
		_, err := env.svc.UpdatePlan(ctx, p.ID, UpdatePlanRequest{Name: &name})
		require.NoError(t, err)

		stallPlan(t, env, p)
		res, err := env.svc.LaunchPlan(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlanStateRunning, res.State, res.Errors)
		assert.NotNil(t, env.storedPlan(t, p.ID).RemoteID)
	})

	t.Run("delete", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.plan(t, env.folder(t), "stalled", env.remoteFiles(t))
		stallPlan(t, env, p)

		require.NoError(t, env.svc.DeletePlan(ctx, p.ID))
		_, err := env.svc.GetPlan(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("launch in progress stays protected", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.plan(t, env.folder(t), "in flight", env.remoteFiles(t))
		stallPlan(t, env, p)
		env.svc.launching.Store(p.ID, struct{}{})
		defer env.svc.launching.Delete(p.ID)

		assert.ErrorIs(t, env.svc.DeletePlan(ctx, p.ID), ErrPlanBusy)
		_, err := env.svc.LaunchPlan(ctx, p.ID)
		assert.ErrorIs(t, err, ErrPlanBusy)
		got, err := env.svc.GetPlan(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlanStateUploadingInputs, got.State)
	})
}

func TestCancelStalledPlanNotLaunched(t *testing.T) {
	env := newTestEnv(t)
	p := env.plan(t, env.folder(t), "stalled", env.remoteFiles(t))
	stallPlan(t, env, p)

	_, err := env.svc.CancelPlan(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrPlanNotLaunched)
}
