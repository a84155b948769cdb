package planner

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/sites"
)

// GetSitesFile reads and decodes a site-list input file, wherever its bytes
// currently live.
func (s *Service) GetSitesFile(ctx context.Context, id uuid.UUID) (*sites.SitesFile, error) {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Role != models.FileRoleSiteList {
		return nil, fmt.Errorf("%w: input file %s is not a sites file", ErrInvalidInput, f.ID)
	}
	body, _, err := s.DownloadFileBytes(ctx, id)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	list, err := sites.Decode(body)
	if err != nil {
		return nil, err
	}
	return &sites.SitesFile{ID: f.ID, Sites: list}, nil
}

// CreateSitesFile creates a local site-list file holding only the header row.
func (s *Service) CreateSitesFile(ctx context.Context, name string) (*models.InputFile, error) {
	f, err := s.CreateInputFile(ctx, CreateInputFileRequest{
		Source: models.FileSourceLocal,
		Role:   models.FileRoleSiteList,
		Name:   name,
	})
	if err != nil {
		return nil, err
	}
	skeleton, err := sites.Encode(nil)
	if err != nil {
		return nil, err
	}
	if _, err := s.files.Write(f.ID, f.Name, bytes.NewReader(skeleton)); err != nil {
		if derr := s.db.Delete(f).Error; derr != nil {
			s.logger.Warn("failed to drop sites file row", "file", f.ID, "error", derr)
		}
		return nil, fmt.Errorf("write %s: %w", f.Name, err)
	}
	if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateLocalReady).Error; err != nil {
		return nil, err
	}
	f.State = models.FileStateLocalReady
	return f, nil
}

// UpdateSitesFile overwrites the rows of a local sites file. Concurrent
// updates are not coordinated; the last write wins.
func (s *Service) UpdateSitesFile(ctx context.Context, id uuid.UUID, list []sites.Site) (*sites.SitesFile, error) {
	f, err := s.loadInputFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Role != models.FileRoleSiteList {
		return nil, fmt.Errorf("%w: input file %s is not a sites file", ErrInvalidInput, f.ID)
	}
	if f.Source != models.FileSourceLocal {
		return nil, fmt.Errorf("%w: input file %s", ErrNotLocalFile, f.ID)
	}

	data, err := sites.Encode(list)
	if err != nil {
		return nil, err
	}
	if _, err := s.files.Write(f.ID, f.Name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("write %s: %w", f.Name, err)
	}
	if f.State == models.FileStatePending {
		if err := s.db.WithContext(ctx).Model(f).Update("state", models.FileStateLocalReady).Error; err != nil {
			return nil, err
		}
		f.State = models.FileStateLocalReady
	}
	s.mirrorBytes(ctx, f)

	rows := make([]sites.Site, len(list))
	for i, site := range list {
		site.ID = i
		if site.Type == "" {
			site.Type = sites.SiteTypeDN
		}
		rows[i] = site
	}
	return &sites.SitesFile{ID: f.ID, Sites: rows}, nil
}

// SitesGeoJSON renders a sites file as a GeoJSON FeatureCollection.
func (s *Service) SitesGeoJSON(ctx context.Context, id uuid.UUID) ([]byte, error) {
	file, err := s.GetSitesFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return sites.ToGeoJSON(file.Sites)
}
