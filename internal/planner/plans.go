package planner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rohits-web03/planrelay/internal/models"
)

const syncConcurrency = 4

type CreatePlanRequest struct {
	FolderID uuid.UUID `json:"folderId"`
	// Name may be blank while the plan is a draft; launch requires it.
	Name             string     `json:"name"`
	DSMFileID        *uuid.UUID `json:"dsmFileId,omitempty"`
	BoundaryFileID   *uuid.UUID `json:"boundaryFileId,omitempty"`
	SitesFileID      *uuid.UUID `json:"sitesFileId,omitempty"`
	HardwareBoardIDs []string   `json:"hardwareBoardIds,omitempty"`
}

// UpdatePlanRequest lists the fields a plan update may change. Nil fields are
// left as they are. The folder of a plan never changes.
type UpdatePlanRequest struct {
	Name *string `json:"name,omitempty"`
	// DSMFileID, BoundaryFileID and SitesFileID replace the file attached in
	// that slot. The file must carry the matching role.
	DSMFileID      *uuid.UUID `json:"dsmFileId,omitempty"`
	BoundaryFileID *uuid.UUID `json:"boundaryFileId,omitempty"`
	SitesFileID    *uuid.UUID `json:"sitesFileId,omitempty"`
	// HardwareBoardIDs replaces the device restriction; an empty list clears it.
	HardwareBoardIDs *[]string `json:"hardwareBoardIds,omitempty"`
}

type CancelResult struct {
	Success bool `json:"success"`
}

// ListPlansInFolder returns the folder's plans, refreshing running ones from
// the remote system. A plan whose refresh fails is returned as stored.
func (s *Service) ListPlansInFolder(ctx context.Context, folderID uuid.UUID) ([]models.Plan, error) {
	if _, err := s.loadFolder(ctx, folderID); err != nil {
		return nil, err
	}
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Where("folder_id = ?", folderID).Order("created_at").Find(&plans).Error; err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i := range plans {
		plan := &plans[i]
		if !plan.State.Synced() || plan.RemoteID == nil {
			continue
		}
		g.Go(func() error {
			if err := s.syncPlan(gctx, plan); err != nil {
				s.logger.Warn("plan sync failed", "plan", plan.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return plans, nil
}

// GetPlan returns the plan, refreshing its state from the remote system when
// it is running.
func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.recoverStalled(ctx, plan); err != nil {
		return nil, err
	}
	if plan.State.Synced() && plan.RemoteID != nil {
		if err := s.syncPlan(ctx, plan); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// syncPlan pulls the remote status of a launched plan and persists the mapped
// local state.
func (s *Service) syncPlan(ctx context.Context, plan *models.Plan) error {
	if plan.RemoteID == nil {
		return fmt.Errorf("%w: plan %s", ErrPlanNotLaunched, plan.ID)
	}
	remote, err := s.remote.GetPlan(ctx, *plan.RemoteID)
	if err != nil {
		s.metrics.sync("error")
		return fmt.Errorf("get remote plan %s: %w", *plan.RemoteID, err)
	}
	next, ok := stateForRemoteStatus(remote.Status)
	if !ok {
		s.logger.Warn("unknown remote plan status", "plan", plan.ID, "status", remote.Status)
		s.metrics.sync("unknown")
		return nil
	}
	if next == plan.State {
		s.metrics.sync("unchanged")
		return nil
	}
	if err := s.setPlanState(ctx, plan, next); err != nil {
		s.metrics.sync("error")
		return err
	}
	s.metrics.sync("changed")
	return nil
}

func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest) (*models.Plan, error) {
	if _, err := s.loadFolder(ctx, req.FolderID); err != nil {
		return nil, err
	}
	plan := models.Plan{
		FolderID:         req.FolderID,
		Name:             req.Name,
		State:            models.PlanStateDraft,
		DSMFileID:        req.DSMFileID,
		BoundaryFileID:   req.BoundaryFileID,
		SitesFileID:      req.SitesFileID,
		HardwareBoardIDs: req.HardwareBoardIDs,
	}
	if err := s.checkFileSlots(ctx, &plan); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, err
	}
	s.logger.Info("plan created", "plan", plan.ID, "folder", plan.FolderID)
	return &plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, req UpdatePlanRequest) (*models.Plan, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.recoverStalled(ctx, plan); err != nil {
		return nil, err
	}
	if plan.RemoteID != nil || plan.State == models.PlanStateUploadingInputs {
		return nil, fmt.Errorf("%w: plan %s", ErrPlanAlreadyLaunched, plan.ID)
	}

	updates := map[string]any{}
	if req.Name != nil {
		plan.Name = *req.Name
		updates["name"] = plan.Name
	}
	if req.DSMFileID != nil {
		plan.DSMFileID = req.DSMFileID
		updates["dsm_file_id"] = *req.DSMFileID
	}
	if req.BoundaryFileID != nil {
		plan.BoundaryFileID = req.BoundaryFileID
		updates["boundary_file_id"] = *req.BoundaryFileID
	}
	if req.SitesFileID != nil {
		plan.SitesFileID = req.SitesFileID
		updates["sites_file_id"] = *req.SitesFileID
	}
	if req.HardwareBoardIDs != nil {
		plan.HardwareBoardIDs = *req.HardwareBoardIDs
	}
	if err := s.checkFileSlots(ctx, plan); err != nil {
		return nil, err
	}
	if len(updates) == 0 && req.HardwareBoardIDs == nil {
		return plan, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(plan).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.HardwareBoardIDs != nil {
			// goes through Select so the json serializer runs and an empty list is written
			return tx.Model(plan).Select("hardware_board_ids").Updates(&models.Plan{HardwareBoardIDs: *req.HardwareBoardIDs}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// checkFileSlots verifies that every attached input file exists and carries
// the role of its slot.
func (s *Service) checkFileSlots(ctx context.Context, plan *models.Plan) error {
	for _, slot := range fileSlots(plan) {
		if slot.id == nil {
			continue
		}
		f, err := s.loadInputFile(ctx, *slot.id)
		if err != nil {
			return err
		}
		if f.Role != slot.role {
			return fmt.Errorf("%w: %s file %s has role %s", ErrInvalidInput, slot.label, f.ID, f.Role)
		}
	}
	return nil
}

// DeletePlan removes the plan row and input files no other plan references.
// Nothing is removed on the remote system.
func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return err
	}
	busy := plan.State == models.PlanStateRunning ||
		(plan.State == models.PlanStateUploadingInputs && !s.stalled(plan))
	if busy {
		return fmt.Errorf("%w: plan %s is %s", ErrPlanBusy, plan.ID, plan.State)
	}
	return s.removePlans(ctx, []models.Plan{*plan}, nil)
}

// CancelPlan asks the remote system to stop a launched plan and then settles
// the local state from the remote status.
func (s *Service) CancelPlan(ctx context.Context, id uuid.UUID) (CancelResult, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	if plan.RemoteID == nil {
		return CancelResult{}, fmt.Errorf("%w: plan %s", ErrPlanNotLaunched, plan.ID)
	}
	ok, err := s.remote.CancelPlan(ctx, *plan.RemoteID)
	if err != nil {
		return CancelResult{}, fmt.Errorf("cancel remote plan %s: %w", *plan.RemoteID, err)
	}
	if plan.State.Synced() {
		if err := s.syncPlan(ctx, plan); err != nil {
			return CancelResult{}, err
		}
	}
	s.logger.Info("plan cancel requested", "plan", plan.ID, "success", ok, "state", plan.State)
	return CancelResult{Success: ok}, nil
}

// removePlans deletes plans (and folder, when set) in one transaction together
// with the input files left without any referencing plan. Orphaned bytes are
// removed from disk after the commit.
func (s *Service) removePlans(ctx context.Context, plans []models.Plan, folder *models.Folder) error {
	var (
		planIDs    []uuid.UUID
		candidates []uuid.UUID
		seen       = map[uuid.UUID]bool{}
		orphans    []models.InputFile
	)
	for _, p := range plans {
		planIDs = append(planIDs, p.ID)
		for _, fid := range p.InputFileIDs() {
			if !seen[fid] {
				seen[fid] = true
				candidates = append(candidates, fid)
			}
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(planIDs) > 0 {
			if err := tx.Where("id IN ?", planIDs).Delete(&models.Plan{}).Error; err != nil {
				return err
			}
		}
		if folder != nil {
			if err := tx.Delete(folder).Error; err != nil {
				return err
			}
		}
		for _, fid := range candidates {
			n, err := countReferences(tx, fid)
			if err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			var f models.InputFile
			if err := tx.Where("id = ?", fid).Limit(1).Find(&f).Error; err != nil {
				return err
			}
			if f.ID == uuid.Nil {
				continue
			}
			if err := tx.Delete(&f).Error; err != nil {
				return err
			}
			orphans = append(orphans, f)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range orphans {
		s.discardBytes(ctx, &orphans[i])
	}
	s.logger.Info("plans deleted", "count", len(planIDs), "orphaned_files", len(orphans))
	return nil
}

const referenceQuery = "dsm_file_id = ? OR boundary_file_id = ? OR sites_file_id = ?"

func countReferences(tx *gorm.DB, fileID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.Plan{}).Where(referenceQuery, fileID, fileID, fileID).Count(&n).Error
	return n, err
}

func referencingPlans(tx *gorm.DB, fileID uuid.UUID) ([]models.Plan, error) {
	var plans []models.Plan
	err := tx.Where(referenceQuery, fileID, fileID, fileID).Find(&plans).Error
	return plans, err
}

type fileSlot struct {
	label string
	role  models.FileRole
	id    *uuid.UUID
}

func fileSlots(p *models.Plan) []fileSlot {
	return []fileSlot{
		{label: "DSM", role: models.FileRoleSurfaceModel, id: p.DSMFileID},
		{label: "boundary", role: models.FileRoleBoundary, id: p.BoundaryFileID},
		{label: "sites", role: models.FileRoleSiteList, id: p.SitesFileID},
	}
}
