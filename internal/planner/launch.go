package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rohits-web03/planrelay/internal/hardware"
	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

const deviceListName = "device_list.json"

// LaunchResult reports where a launch attempt left the plan. Errors holds one
// message per problem found; it is empty when the plan is running.
type LaunchResult struct {
	State  models.PlanState `json:"state"`
	Errors []string         `json:"errors,omitempty"`
}

type launchInputs struct {
	dsm, boundary, sites *models.InputFile
}

func (in launchInputs) all() []*models.InputFile {
	return []*models.InputFile{in.dsm, in.boundary, in.sites}
}

// LaunchPlan validates the plan, pushes local inputs to the remote system,
// then creates and launches the remote plan. Business failures are reported
// in the result and recorded on the plan; the error return is reserved for
// missing plans, plans that were already launched and store failures.
func (s *Service) LaunchPlan(ctx context.Context, id uuid.UUID) (LaunchResult, error) {
	if _, running := s.launching.LoadOrStore(id, struct{}{}); running {
		return LaunchResult{}, fmt.Errorf("%w: plan %s is being launched", ErrPlanBusy, id)
	}
	defer s.launching.Delete(id)

	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return LaunchResult{}, err
	}
	if plan.State == models.PlanStateUploadingInputs && plan.RemoteID == nil {
		s.logger.Warn("recovering stalled plan launch", "plan", plan.ID)
		if err := s.setPlanState(ctx, plan, models.PlanStateError); err != nil {
			return LaunchResult{}, err
		}
	}
	switch plan.State {
	case models.PlanStateDraft, models.PlanStateError, models.PlanStateLaunchError:
	default:
		return LaunchResult{}, fmt.Errorf("%w: plan %s is %s", ErrPlanAlreadyLaunched, plan.ID, plan.State)
	}
	if plan.RemoteID != nil {
		return LaunchResult{}, fmt.Errorf("%w: plan %s", ErrPlanAlreadyLaunched, plan.ID)
	}

	inputs, problems, err := s.validateLaunch(ctx, plan)
	if err != nil {
		return LaunchResult{}, err
	}
	if len(problems) > 0 {
		return s.failLaunch(ctx, plan, models.PlanStateError, problems...)
	}

	var profiles []hardware.Profile
	if len(plan.HardwareBoardIDs) > 0 {
		if profiles, err = s.hardware.Resolve(plan.HardwareBoardIDs); err != nil {
			return s.failLaunch(ctx, plan, models.PlanStateError, err.Error())
		}
	}

	var deviceFileID string
	if len(profiles) > 0 || needsPreparation(inputs) {
		if err := s.setPlanState(ctx, plan, models.PlanStateUploadingInputs); err != nil {
			return LaunchResult{}, err
		}
		deviceFileID, err = s.prepareInputs(ctx, inputs, profiles)
		if err != nil {
			return s.failLaunch(ctx, plan, models.PlanStateError, err.Error())
		}
	}

	return s.startRemotePlan(ctx, plan, inputs, deviceFileID)
}

// validateLaunch returns one message per missing or unusable field.
func (s *Service) validateLaunch(ctx context.Context, plan *models.Plan) (launchInputs, []string, error) {
	var (
		inputs   launchInputs
		problems []string
	)
	if strings.TrimSpace(plan.Name) == "" {
		problems = append(problems, "Missing plan name")
	}

	targets := []**models.InputFile{&inputs.dsm, &inputs.boundary, &inputs.sites}
	for i, slot := range fileSlots(plan) {
		if slot.id == nil {
			problems = append(problems, fmt.Sprintf("Missing %s file", slot.label))
			continue
		}
		f, err := s.loadInputFile(ctx, *slot.id)
		if errors.Is(err, ErrNotFound) {
			problems = append(problems, fmt.Sprintf("The %s file no longer exists", slot.label))
			continue
		}
		if err != nil {
			return launchInputs{}, nil, err
		}
		switch {
		case f.Role != slot.role:
			problems = append(problems, fmt.Sprintf("The %s file has role %s", slot.label, f.Role))
		case f.Source == models.FileSourceLocal && !f.HasLocalBytes():
			problems = append(problems, fmt.Sprintf("The %s file has no uploaded content", slot.label))
		case f.Source == models.FileSourceRemote && f.RemoteID == nil:
			problems = append(problems, fmt.Sprintf("The %s file has no remote id", slot.label))
		default:
			*targets[i] = f
		}
	}
	return inputs, problems, nil
}

func needsPreparation(inputs launchInputs) bool {
	for _, f := range inputs.all() {
		if f.Source == models.FileSourceLocal || f.State != models.FileStateReady {
			return true
		}
	}
	return false
}

// prepareInputs uploads every local input and waits for every input to be
// ready on the remote system. Files are handled concurrently; the first
// failure aborts the rest. Files that already made it stay remote.
func (s *Service) prepareInputs(ctx context.Context, inputs launchInputs, profiles []hardware.Profile) (string, error) {
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range inputs.all() {
		if f.Source == models.FileSourceRemote && f.State == models.FileStateReady {
			continue
		}
		g.Go(func() error {
			return s.prepareInputFile(gctx, f)
		})
	}

	var deviceFileID string
	if len(profiles) > 0 {
		g.Go(func() error {
			id, err := s.pushDeviceList(gctx, profiles)
			deviceFileID = id
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return deviceFileID, nil
}

func (s *Service) prepareInputFile(ctx context.Context, f *models.InputFile) error {
	if f.Source == models.FileSourceLocal {
		if err := s.pushInputFile(ctx, f); err != nil {
			return err
		}
	}
	res := s.remote.PollFileReady(ctx, *f.RemoteID, s.poll)
	if err := res.Error(); err != nil {
		return fmt.Errorf("waiting for %s: %w", f.Name, err)
	}
	if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateReady).Error; err != nil {
		return err
	}
	f.State = models.FileStateReady
	s.logger.Debug("input file ready", "file", f.ID, "remote_id", *f.RemoteID, "attempts", res.Attempts)
	return nil
}

// pushInputFile sends the local bytes through the chunked upload and flips
// the row to the remote source. The flip is never undone.
func (s *Service) pushInputFile(ctx context.Context, f *models.InputFile) error {
	src, size, err := s.files.Open(f.ID, f.Name)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	prevState := f.State
	if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateUploading).Error; err != nil {
		return err
	}

	remote, err := s.remote.UploadFile(ctx, rpa.UploadRequest{
		Name:      f.Name,
		Extension: strings.TrimPrefix(filepath.Ext(f.Name), "."),
		FileType:  contentType(f.Name),
		Role:      remoteRole(f.Role),
		Size:      size,
		Reader:    src,
		ChunkSize: s.chunkSize,
	})
	if err != nil {
		// context may already be cancelled by a sibling failure
		if rerr := s.db.Model(f).Update("state", prevState).Error; rerr != nil {
			s.logger.Warn("failed to restore input file state", "file", f.ID, "error", rerr)
		}
		return fmt.Errorf("uploading %s: %w", f.Name, err)
	}

	err = s.db.WithContext(ctx).Model(f).Updates(map[string]any{
		"source":    models.FileSourceRemote,
		"remote_id": remote.ID,
		"state":     models.FileStateUploading,
	}).Error
	if err != nil {
		return err
	}
	f.Source = models.FileSourceRemote
	f.RemoteID = &remote.ID
	f.State = models.FileStateUploading
	s.metrics.upload(size)
	s.logger.Info("input file uploaded", "file", f.ID, "remote_id", remote.ID, "size", size)

	if err := s.files.Remove(f.ID, f.Name); err != nil {
		s.logger.Warn("failed to remove local copy", "file", f.ID, "error", err)
	}
	return nil
}

// pushDeviceList uploads the device-list file synthesized from hardware
// profiles and returns its remote id once ready.
func (s *Service) pushDeviceList(ctx context.Context, profiles []hardware.Profile) (string, error) {
	data, err := hardware.DeviceListJSON(profiles)
	if err != nil {
		return "", err
	}
	remote, err := s.remote.UploadFile(ctx, rpa.UploadRequest{
		Name:      deviceListName,
		Extension: "json",
		FileType:  "application/json",
		Role:      remoteRole(models.FileRoleDeviceList),
		Size:      int64(len(data)),
		Reader:    bytes.NewReader(data),
		ChunkSize: s.chunkSize,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", deviceListName, err)
	}
	s.metrics.upload(int64(len(data)))
	res := s.remote.PollFileReady(ctx, remote.ID, s.poll)
	if err := res.Error(); err != nil {
		return "", fmt.Errorf("waiting for %s: %w", deviceListName, err)
	}
	return remote.ID, nil
}

func (s *Service) startRemotePlan(ctx context.Context, plan *models.Plan, inputs launchInputs, deviceFileID string) (LaunchResult, error) {
	folder, err := s.loadFolder(ctx, plan.FolderID)
	if err != nil {
		return s.failLaunch(ctx, plan, models.PlanStateError, err.Error())
	}

	remoteID, err := s.remote.CreatePlan(ctx, rpa.CreatePlanRequest{
		FolderID:       folder.RemoteID,
		Name:           plan.Name,
		DSMFileID:      *inputs.dsm.RemoteID,
		BoundaryFileID: *inputs.boundary.RemoteID,
		SitesFileID:    *inputs.sites.RemoteID,
		DeviceFileID:   deviceFileID,
	})
	if err != nil {
		return s.failLaunch(ctx, plan, models.PlanStateError, err.Error())
	}
	if remoteID == "" {
		return s.failLaunch(ctx, plan, models.PlanStateLaunchError, "The remote plan was not created")
	}

	ok, err := s.remote.LaunchPlan(ctx, remoteID)
	if err != nil {
		return s.failLaunch(ctx, plan, models.PlanStateError, err.Error())
	}
	if !ok {
		return s.failLaunch(ctx, plan, models.PlanStateLaunchError, "The remote plan could not be launched")
	}

	if !plan.State.CanTransitionTo(models.PlanStateRunning) {
		return LaunchResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, plan.State, models.PlanStateRunning)
	}
	err = s.db.WithContext(ctx).Model(plan).Updates(map[string]any{
		"state":     models.PlanStateRunning,
		"remote_id": remoteID,
	}).Error
	if err != nil {
		return LaunchResult{}, err
	}
	plan.State = models.PlanStateRunning
	plan.RemoteID = &remoteID
	s.metrics.launch(plan.State)
	s.logger.Info("plan launched", "plan", plan.ID, "remote_id", remoteID)
	return LaunchResult{State: plan.State}, nil
}

// failLaunch records the failed state even when ctx is already done.
func (s *Service) failLaunch(ctx context.Context, plan *models.Plan, state models.PlanState, problems ...string) (LaunchResult, error) {
	if err := s.setPlanState(context.WithoutCancel(ctx), plan, state); err != nil {
		return LaunchResult{}, err
	}
	s.metrics.launch(state)
	s.logger.Warn("plan launch failed", "plan", plan.ID, "state", state, "errors", problems)
	return LaunchResult{State: state, Errors: problems}, nil
}

func contentType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
