package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPlanStateTransitions(t *testing.T) {
	tests := []struct {
		from, to PlanState
		allowed  bool
	}{
		{PlanStateDraft, PlanStateError, true},
		{PlanStateDraft, PlanStateUploadingInputs, true},
		{PlanStateDraft, PlanStateRunning, true},
		{PlanStateDraft, PlanStateSuccess, false},
		{PlanStateUploadingInputs, PlanStateRunning, true},
		{PlanStateUploadingInputs, PlanStateDraft, false},
		{PlanStateRunning, PlanStateSuccess, true},
		{PlanStateRunning, PlanStateCancelled, true},
		{PlanStateRunning, PlanStateDraft, false},
		{PlanStateLaunchError, PlanStateRunning, true},
		{PlanStateSuccess, PlanStateRunning, false},
		{PlanStateCancelled, PlanStateRunning, false},
		{PlanStateSuccess, PlanStateSuccess, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestPlanInputFileIDs(t *testing.T) {
	var p Plan
	assert.Empty(t, p.InputFileIDs())

	dsm := uuid.New()
	sites := uuid.New()
	p.DSMFileID = &dsm
	p.SitesFileID = &sites
	assert.Equal(t, []uuid.UUID{dsm, sites}, p.InputFileIDs())
}

func TestInputFileHasLocalBytes(t *testing.T) {
	f := InputFile{Source: FileSourceLocal, State: FileStatePending}
	assert.False(t, f.HasLocalBytes())

	f.State = FileStateLocalReady
	assert.True(t, f.HasLocalBytes())

	f.Source = FileSourceRemote
	assert.False(t, f.HasLocalBytes())
}
