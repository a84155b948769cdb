// Package planner coordinates folders, plans and input files between the
// local store and the Remote Planning API.
package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rohits-web03/planrelay/internal/hardware"
	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/rpa"
	"github.com/rohits-web03/planrelay/internal/storage"
)

// RemoteAPI is the part of the Remote Planning API the orchestrator uses.
type RemoteAPI interface {
	CreateFolder(ctx context.Context, name string) (*rpa.Folder, error)
	GetPlan(ctx context.Context, id string) (*rpa.Plan, error)
	CreatePlan(ctx context.Context, req rpa.CreatePlanRequest) (string, error)
	LaunchPlan(ctx context.Context, id string) (bool, error)
	CancelPlan(ctx context.Context, id string) (bool, error)
	GetInputFile(ctx context.Context, id string) (*rpa.InputFile, error)
	UploadFile(ctx context.Context, req rpa.UploadRequest) (*rpa.InputFile, error)
	PollFileReady(ctx context.Context, id string, cfg rpa.PollConfig) rpa.PollResult
	DownloadFile(ctx context.Context, id string) (io.ReadCloser, error)
}

// Mirror stores a secondary copy of local input bytes.
type Mirror interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

type Options struct {
	DB       *gorm.DB
	Remote   RemoteAPI
	Files    *storage.LocalFileStore
	Hardware *hardware.Catalog
	// Mirror is optional.
	Mirror Mirror
	// ChunkSize overrides rpa.DefaultChunkSize for uploads.
	ChunkSize int64
	Poll      rpa.PollConfig
	Metrics   *Metrics
	Logger    *slog.Logger
}

type Service struct {
	db        *gorm.DB
	remote    RemoteAPI
	files     *storage.LocalFileStore
	hardware  *hardware.Catalog
	mirror    Mirror
	chunkSize int64
	poll      rpa.PollConfig
	metrics   *Metrics
	logger    *slog.Logger

	// launching holds the ids of plans with a launch running in this process.
	launching sync.Map
}

func New(opts Options) (*Service, error) {
	if opts.DB == nil || opts.Remote == nil || opts.Files == nil {
		return nil, errors.New("planner: DB, Remote and Files are required")
	}
	if err := opts.Files.EnsureDir(); err != nil {
		return nil, err
	}
	catalog := opts.Hardware
	if catalog == nil {
		var err error
		if catalog, err = hardware.NewCatalog(); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:        opts.DB,
		remote:    opts.Remote,
		files:     opts.Files,
		hardware:  catalog,
		mirror:    opts.Mirror,
		chunkSize: opts.ChunkSize,
		poll:      opts.Poll,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

func (s *Service) loadFolder(ctx context.Context, id uuid.UUID) (*models.Folder, error) {
	var f models.Folder
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "folder", id)
	}
	return &f, nil
}

func (s *Service) loadPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "plan", id)
	}
	return &p, nil
}

func (s *Service) loadInputFile(ctx context.Context, id uuid.UUID) (*models.InputFile, error) {
	var f models.InputFile
	if err := s.db.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "input file", id)
	}
	return &f, nil
}

func notFound(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}

// setPlanState moves a plan to next through the transition table and
// persists it.
func (s *Service) setPlanState(ctx context.Context, plan *models.Plan, next models.PlanState) error {
	if !plan.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, plan.State, next)
	}
	if plan.State == next {
		return nil
	}
	prev := plan.State
	if err := s.db.WithContext(ctx).Model(plan).Update("state", next).Error; err != nil {
		return err
	}
	plan.State = next
	s.logger.Info("plan state changed", "plan", plan.ID, "from", prev, "to", next)
	return nil
}

// stalled reports whether a plan sits in UPLOADING_INPUTS with no launch
// running for it, as left behind by a crash or a failed state write. No
// remote plan exists for it yet.
func (s *Service) stalled(plan *models.Plan) bool {
	if plan.State != models.PlanStateUploadingInputs || plan.RemoteID != nil {
		return false
	}
	_, running := s.launching.Load(plan.ID)
	return !running
}

// recoverStalled moves a stalled plan to ERROR so it can be edited and
// launched again.
func (s *Service) recoverStalled(ctx context.Context, plan *models.Plan) error {
	if !s.stalled(plan) {
		return nil
	}
	s.logger.Warn("recovering stalled plan launch", "plan", plan.ID)
	return s.setPlanState(ctx, plan, models.PlanStateError)
}
