package planner

import (
	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

var remoteRoles = map[models.FileRole]rpa.FileRole{
	models.FileRoleSurfaceModel: rpa.FileRoleDSM,
	models.FileRoleBoundary:     rpa.FileRoleBoundary,
	models.FileRoleSiteList:     rpa.FileRoleSites,
	models.FileRoleDeviceList:   rpa.FileRoleDeviceList,
}

func remoteRole(r models.FileRole) rpa.FileRole {
	return remoteRoles[r]
}

func localRole(r rpa.FileRole) (models.FileRole, bool) {
	for local, remote := range remoteRoles {
		if remote == r {
			return local, true
		}
	}
	return "", false
}

var remotePlanStates = map[rpa.PlanStatus]models.PlanState{
	rpa.PlanStatusInPreparation: models.PlanStateRunning,
	rpa.PlanStatusRunning:       models.PlanStateRunning,
	rpa.PlanStatusScheduled:     models.PlanStateRunning,
	rpa.PlanStatusSucceeded:     models.PlanStateSuccess,
	rpa.PlanStatusFailed:        models.PlanStateError,
	rpa.PlanStatusKilled:        models.PlanStateCancelled,
}

// stateForRemoteStatus maps a remote plan status onto the local state.
func stateForRemoteStatus(status rpa.PlanStatus) (models.PlanState, bool) {
	state, ok := remotePlanStates[status]
	return state, ok
}
