package planner

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid plan state transition")
	ErrPlanNotLaunched      = errors.New("plan not launched")
	ErrPlanAlreadyLaunched  = errors.New("plan already launched")
	ErrPlanBusy             = errors.New("plan is uploading or running")
	ErrFileInUse            = errors.New("input file is referenced by another plan")
	ErrNotLocalFile         = errors.New("input file is not stored locally")
	ErrNoContent            = errors.New("input file has no content")
	ErrRemoteFileUnresolved = errors.New("remote input file could not be resolved")
	ErrMirrorDisabled       = errors.New("input file mirror is not configured")
)
