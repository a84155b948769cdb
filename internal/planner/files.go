package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
)

// CreateInputFileRequest describes a new input file. Local files need a role
// and a name and receive their bytes later through UploadFileBytes. Remote
// files only need RemoteID; name and role are read from the remote system.
type CreateInputFileRequest struct {
	Source   models.FileSource `json:"source"`
	Role     models.FileRole   `json:"role,omitempty"`
	Name     string            `json:"name,omitempty"`
	RemoteID string            `json:"remoteId,omitempty"`
}

// UpdateInputFileRequest changes a local input file. Renaming moves the bytes
// on disk. The role can only change while no plan references the file.
type UpdateInputFileRequest struct {
	Name *string          `json:"name,omitempty"`
	Role *models.FileRole `json:"role,omitempty"`
}

func (s *Service) CreateInputFile(ctx context.Context, req CreateInputFileRequest) (*models.InputFile, error) {
	var f models.InputFile
	switch req.Source {
	case models.FileSourceLocal:
		name, err := cleanFileName(req.Name)
		if err != nil {
			return nil, err
		}
		if !req.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown file role %q", ErrInvalidInput, req.Role)
		}
		f = models.InputFile{Name: name, Role: req.Role, Source: models.FileSourceLocal, State: models.FileStatePending}

	case models.FileSourceRemote:
		resolved, err := s.resolveRemoteFile(ctx, req.RemoteID)
		if err != nil {
			return nil, err
		}
		f = *resolved

	default:
		return nil, fmt.Errorf("%w: unknown file source %q", ErrInvalidInput, req.Source)
	}

	if err := s.db.WithContext(ctx).Create(&f).Error; err != nil {
		return nil, err
	}
	s.logger.Info("input file created", "file", f.ID, "source", f.Source, "role", f.Role)
	return &f, nil
}

// resolveRemoteFile builds an input file row from remote metadata, rejecting
// ids the remote system does not know.
func (s *Service) resolveRemoteFile(ctx context.Context, remoteID string) (*models.InputFile, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		return nil, fmt.Errorf("%w: remote id is required", ErrInvalidInput)
	}
	meta, err := s.remote.GetInputFile(ctx, remoteID)
	if err != nil {
		var apiErr *rpa.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %s: %v", ErrRemoteFileUnresolved, remoteID, err)
		}
		return nil, err
	}
	role, ok := localRole(meta.Role)
	if !ok || meta.Name == "" {
		return nil, fmt.Errorf("%w: %s has no usable metadata", ErrRemoteFileUnresolved, remoteID)
	}
	state := models.FileStateUploading
	if meta.Status == rpa.FileStatusReady {
		state = models.FileStateReady
	}
	id := meta.ID
	if id == "" {
		id = remoteID
	}
	return &models.InputFile{
		Name:     meta.Name,
		Role:     role,
		Source:   models.FileSourceRemote,
		State:    state,
		RemoteID: &id,
	}, nil
}

func (s *Service) GetInputFile(ctx context.Context, id uuid.UUID) (*models.InputFile, error) {
	return s.loadInputFile(ctx, id)
}

func (s *Service) UpdateInputFile(ctx context.Context, id uuid.UUID, req UpdateInputFileRequest) (*models.InputFile, error) {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Source != models.FileSourceLocal {
		return nil, fmt.Errorf("%w: input file %s", ErrNotLocalFile, f.ID)
	}

	updates := map[string]any{}
	if req.Role != nil && *req.Role != f.Role {
		if !req.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown file role %q", ErrInvalidInput, *req.Role)
		}
		n, err := countReferences(s.db.WithContext(ctx), f.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("%w: cannot change role of %s", ErrFileInUse, f.ID)
		}
		updates["role"] = *req.Role
	}

	oldName := f.Name
	if req.Name != nil {
		name, err := cleanFileName(*req.Name)
		if err != nil {
			return nil, err
		}
		if name != f.Name {
			updates["name"] = name
		}
	}
	if len(updates) == 0 {
		return f, nil
	}

	// bytes move first so the row never names a path that does not exist
	newName, renamed := updates["name"].(string)
	moveBytes := renamed && f.HasLocalBytes()
	if moveBytes {
		if err := s.files.Rename(f.ID, oldName, newName); err != nil {
			return nil, fmt.Errorf("move %s: %w", oldName, err)
		}
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(f).Updates(updates).Error
	})
	if err != nil {
		if moveBytes {
			if rerr := s.files.Rename(f.ID, newName, oldName); rerr != nil {
				s.logger.Error("failed to move input file back", "file", f.ID, "name", oldName, "error", rerr)
			}
		}
		return nil, err
	}
	if renamed {
		f.Name = newName
	}
	if role, ok := updates["role"].(models.FileRole); ok {
		f.Role = role
	}
	return f, nil
}

// UploadFileBytes stores the content of a local input file and marks it
// ready.
func (s *Service) UploadFileBytes(ctx context.Context, id uuid.UUID, r io.Reader) (*models.InputFile, error) {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Source != models.FileSourceLocal {
		return nil, fmt.Errorf("%w: input file %s", ErrNotLocalFile, f.ID)
	}

	prevState := f.State
	if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateUploading).Error; err != nil {
		return nil, err
	}
	n, err := s.files.Write(f.ID, f.Name, r)
	if err != nil {
		if rerr := s.db.Model(f).Update("state", prevState).Error; rerr != nil {
			s.logger.Warn("failed to restore input file state", "file", f.ID, "error", rerr)
		}
		return nil, fmt.Errorf("write %s: %w", f.Name, err)
	}
	if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateReady).Error; err != nil {
		return nil, err
	}
	f.State = models.FileStateReady
	s.logger.Info("input file stored", "file", f.ID, "size", n)

	s.mirrorBytes(ctx, f)
	return f, nil
}

// DeleteInputFile removes an input file. A file attached to more than one
// plan is refused; a file attached to a single plan is detached from it
// first. The row goes first, local bytes are removed afterwards.
func (s *Service) DeleteInputFile(ctx context.Context, id uuid.UUID) error {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plans, err := referencingPlans(tx, f.ID)
		if err != nil {
			return err
		}
		if len(plans) > 1 {
			return fmt.Errorf("%w: %s is used by %d plans", ErrFileInUse, f.ID, len(plans))
		}
		for _, p := range plans {
			if p.State == models.PlanStateUploadingInputs {
				return fmt.Errorf("%w: plan %s is uploading inputs", ErrFileInUse, p.ID)
			}
			for _, col := range []string{"dsm_file_id", "boundary_file_id", "sites_file_id"} {
				err := tx.Model(&models.Plan{}).Where("id = ? AND "+col+" = ?", p.ID, f.ID).Update(col, nil).Error
				if err != nil {
					return err
				}
			}
		}
		return tx.Delete(f).Error
	})
	if err != nil {
		return err
	}

	s.discardBytes(ctx, f)
	s.logger.Info("input file deleted", "file", f.ID)
	return nil
}

// DownloadFileBytes streams a file's content: remote files are proxied from
// the remote system, local files are read from disk.
func (s *Service) DownloadFileBytes(ctx context.Context, id uuid.UUID) (io.ReadCloser, *models.InputFile, error) {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if f.Source == models.FileSourceRemote && f.RemoteID != nil {
		body, err := s.remote.DownloadFile(ctx, *f.RemoteID)
		if err != nil {
			return nil, nil, fmt.Errorf("download %s: %w", *f.RemoteID, err)
		}
		return body, f, nil
	}
	if !f.HasLocalBytes() {
		return nil, nil, fmt.Errorf("%w: input file %s", ErrNoContent, f.ID)
	}
	src, _, err := s.files.Open(f.ID, f.Name)
	if err != nil {
		return nil, nil, err
	}
	return src, f, nil
}

// MirrorURL returns a short-lived download link for a mirrored local file.
func (s *Service) MirrorURL(ctx context.Context, id uuid.UUID, expires time.Duration) (string, error) {
	if s.mirror == nil {
		return "", ErrMirrorDisabled
	}
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return "", err
	}
	key := mirrorKey(f)
	ok, err := s.mirror.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: mirror of input file %s", ErrNotFound, f.ID)
	}
	return s.mirror.PresignGet(ctx, key, expires)
}

func (s *Service) mirrorBytes(ctx context.Context, f *models.InputFile) {
	if s.mirror == nil {
		return
	}
	src, size, err := s.files.Open(f.ID, f.Name)
	if err != nil {
		s.logger.Warn("mirror skipped", "file", f.ID, "error", err)
		return
	}
	defer src.Close()
	if err := s.mirror.Put(ctx, mirrorKey(f), src, size); err != nil {
		s.logger.Warn("mirror upload failed", "file", f.ID, "error", err)
	}
}

// discardBytes removes local and mirrored copies of a deleted file. Failures
// are logged only.
func (s *Service) discardBytes(ctx context.Context, f *models.InputFile) {
	if f.Source != models.FileSourceLocal {
		return
	}
	if err := s.files.Remove(f.ID, f.Name); err != nil {
		s.logger.Warn("failed to remove input bytes", "file", f.ID, "error", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, mirrorKey(f)); err != nil {
			s.logger.Warn("failed to remove mirrored bytes", "file", f.ID, "error", err)
		}
	}
}

func mirrorKey(f *models.InputFile) string {
	return path.Join("inputs", fmt.Sprintf("%s-%s", f.ID, f.Name))
}

func cleanFileName(name string) (string, error) {
	name = strings.TrimSpace(filepath.Base(strings.TrimSpace(name)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	return name, nil
}
