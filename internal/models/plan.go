package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PlanState string

const (
	PlanStateDraft           PlanState = "DRAFT"
	PlanStateUploadingInputs PlanState = "UPLOADING_INPUTS"
	PlanStateRunning         PlanState = "RUNNING"
	PlanStateSuccess         PlanState = "SUCCESS"
	PlanStateError           PlanState = "ERROR"
	PlanStateLaunchError     PlanState = "LAUNCH_ERROR"
	PlanStateCancelled       PlanState = "CANCELLED"
)

// launchOutcomes are the states a launch attempt can end up in.
var launchOutcomes = []PlanState{PlanStateError, PlanStateUploadingInputs, PlanStateRunning, PlanStateLaunchError}

var planTransitions = map[PlanState][]PlanState{
	PlanStateDraft:           launchOutcomes,
	PlanStateError:           launchOutcomes,
	PlanStateLaunchError:     launchOutcomes,
	PlanStateUploadingInputs: {PlanStateRunning, PlanStateError, PlanStateLaunchError},
	PlanStateRunning:         {PlanStateSuccess, PlanStateError, PlanStateCancelled},
	PlanStateSuccess:         nil,
	PlanStateCancelled:       nil,
}

// CanTransitionTo is the single authority on plan state changes. Staying in
// the same state is always allowed.
func (s PlanState) CanTransitionTo(next PlanState) bool {
	if s == next {
		return true
	}
	for _, to := range planTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Synced reports whether the state is refreshed from the remote system when read.
func (s PlanState) Synced() bool {
	return s == PlanStateRunning
}

func (s PlanState) Valid() bool {
	_, ok := planTransitions[s]
	return ok
}

type Plan struct {
	ID               uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	FolderID         uuid.UUID  `json:"folderId" gorm:"column:folder_id;type:uuid;index;not null"`
	Name             string     `json:"name"`
	State            PlanState  `json:"state" gorm:"not null;default:DRAFT"`
	RemoteID         *string    `json:"remoteId" gorm:"column:remote_id"`
	DSMFileID        *uuid.UUID `json:"dsmFileId" gorm:"column:dsm_file_id;type:uuid;index"`
	BoundaryFileID   *uuid.UUID `json:"boundaryFileId" gorm:"column:boundary_file_id;type:uuid;index"`
	SitesFileID      *uuid.UUID `json:"sitesFileId" gorm:"column:sites_file_id;type:uuid;index"`
	HardwareBoardIDs []string   `json:"hardwareBoardIds" gorm:"column:hardware_board_ids;serializer:json"`
	CreatedAt        time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Plan) TableName() string {
	return "plan"
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// InputFileIDs returns the referenced input file ids in dsm, boundary, sites order.
func (p *Plan) InputFileIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, id := range []*uuid.UUID{p.DSMFileID, p.BoundaryFileID, p.SitesFileID} {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	return ids
}
