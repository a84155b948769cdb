package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rohits-web03/planrelay/internal/models"
)

func (s *Service) ListFolders(ctx context.Context) ([]models.Folder, error) {
	var folders []models.Folder
	if err := s.db.WithContext(ctx).Order("created_at").Find(&folders).Error; err != nil {
		return nil, err
	}
	return folders, nil
}

func (s *Service) GetFolder(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	return s.loadFolder(ctx, id)
}

// CreateFolder creates the remote folder first so the local row always
// carries its remote id.
func (s *Service) CreateFolder(ctx context.Context, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}
	remote, err := s.remote.CreateFolder(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create remote folder: %w", err)
	}
	folder := models.Folder{Name: name, RemoteID: remote.ID}
	if err := s.db.WithContext(ctx).Create(&folder).Error; err != nil {
		return nil, err
	}
	s.logger.Info("folder created", "folder", folder.ID, "remote_id", folder.RemoteID)
	return &folder, nil
}

func (s *Service) UpdateFolder(ctx context.Context, id uuid.UUID, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}
	folder, err := s.loadFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(folder).Update("name", name).Error; err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes the folder, its plans and the input files only those
// plans referenced. Remote objects are left untouched.
func (s *Service) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	folder, err := s.loadFolder(ctx, id)
	if err != nil {
		return err
	}
	var plans []models.Plan
	if err := s.db.WithContext(ctx).Where("folder_id = ?", folder.ID).Find(&plans).Error; err != nil {
		return err
	}
	return s.removePlans(ctx, plans, folder)
}
