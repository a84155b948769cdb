package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FileRole string

const (
	FileRoleSurfaceModel FileRole = "surface-model"
	FileRoleBoundary     FileRole = "boundary"
	FileRoleSiteList     FileRole = "site-list"
	FileRoleDeviceList   FileRole = "device-list"
)

func (r FileRole) Valid() bool {
	switch r {
	case FileRoleSurfaceModel, FileRoleBoundary, FileRoleSiteList, FileRoleDeviceList:
		return true
	}
	return false
}

// FileSource tells where the authoritative bytes of an input file live.
type FileSource string

const (
	FileSourceLocal  FileSource = "local"
	FileSourceRemote FileSource = "remote"
)

type FileState string

const (
	FileStatePending    FileState = "pending"
	FileStateUploading  FileState = "uploading"
	FileStateLocalReady FileState = "local-ready"
	FileStateReady      FileState = "ready"
)

// InputFile references one uploaded artifact. RemoteID is set iff Source is remote.
type InputFile struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string     `json:"name" gorm:"not null"`
	Role      FileRole   `json:"role" gorm:"not null"`
	State     FileState  `json:"state" gorm:"not null;default:pending"`
	Source    FileSource `json:"source" gorm:"not null"`
	RemoteID  *string    `json:"remoteId" gorm:"column:remote_id;index"`
	CreatedAt time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (InputFile) TableName() string {
	return "input_file"
}

func (f *InputFile) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// HasLocalBytes reports whether a local file has content on disk that can be pushed.
func (f *InputFile) HasLocalBytes() bool {
	return f.Source == FileSourceLocal && (f.State == FileStateReady || f.State == FileStateLocalReady)
}
