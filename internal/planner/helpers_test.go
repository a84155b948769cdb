package planner

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rohits-web03/planrelay/internal/hardware"
	"github.com/rohits-web03/planrelay/internal/models"
	"github.com/rohits-web03/planrelay/internal/repositories"
	"github.com/rohits-web03/planrelay/internal/rpa"
	"github.com/rohits-web03/planrelay/internal/rpa/rpatest"
	"github.com/rohits-web03/planrelay/internal/storage"
)

type testEnv struct {
	svc     *Service
	srv     *rpatest.Server
	db      *gorm.DB
	store   *storage.LocalFileStore
	metrics *Metrics
	mirror  *memoryMirror
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := rpatest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	db, err := repositories.ConnectDatabase("sqlite:" + filepath.Join(dir, "planner.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	catalog, err := hardware.NewCatalog(
		hardware.Profile{BoardID: "tg-dn-60", DeviceSKU: "TG-DN", DeviceType: hardware.DeviceTypeDN, SectorCount: 4},
		hardware.Profile{BoardID: "tg-cn-60", DeviceSKU: "TG-CN", DeviceType: hardware.DeviceTypeCN},
	)
	require.NoError(t, err)

	env := &testEnv{
		srv:     srv,
		db:      db,
		store:   storage.NewLocalFileStore(filepath.Join(dir, "files")),
		metrics: NewMetrics(prometheus.NewRegistry()),
		mirror:  newMemoryMirror(),
	}
	env.svc, err = New(Options{
		DB:        db,
		Remote:    srv.NewClient(),
		Files:     env.store,
		Hardware:  catalog,
		Mirror:    env.mirror,
		ChunkSize: 8,
		Poll:      rpa.PollConfig{Interval: time.Millisecond, MaxAttempts: 20},
		Metrics:   env.metrics,
	})
	require.NoError(t, err)
	return env
}

func (e *testEnv) folder(t *testing.T) *models.Folder {
	t.Helper()
	f, err := e.svc.CreateFolder(context.Background(), "north")
	require.NoError(t, err)
	return f
}

func (e *testEnv) localFile(t *testing.T, role models.FileRole, name, content string) *models.InputFile {
	t.Helper()
	ctx := context.Background()
	f, err := e.svc.CreateInputFile(ctx, CreateInputFileRequest{Source: models.FileSourceLocal, Role: role, Name: name})
	require.NoError(t, err)
	f, err = e.svc.UploadFileBytes(ctx, f.ID, strings.NewReader(content))
	require.NoError(t, err)
	return f
}

func (e *testEnv) remoteFile(t *testing.T, role models.FileRole, name string) *models.InputFile {
	t.Helper()
	remoteID := e.srv.AddFile(name, remoteRole(role), []byte("remote "+name))
	f, err := e.svc.CreateInputFile(context.Background(), CreateInputFileRequest{
		Source:   models.FileSourceRemote,
		RemoteID: remoteID,
	})
	require.NoError(t, err)
	return f
}

type planFiles struct {
	dsm, boundary, sites *models.InputFile
}

func (e *testEnv) localFiles(t *testing.T) planFiles {
	return planFiles{
		dsm:      e.localFile(t, models.FileRoleSurfaceModel, "dsm.tif", "GEOTIFF-BYTES-0123456789"),
		boundary: e.localFile(t, models.FileRoleBoundary, "boundary.kml", "<kml></kml>"),
		sites:    e.localFile(t, models.FileRoleSiteList, "sites.csv", "lat,lon,type\n1,2,POP\n"),
	}
}

func (e *testEnv) remoteFiles(t *testing.T) planFiles {
	return planFiles{
		dsm:      e.remoteFile(t, models.FileRoleSurfaceModel, "dsm.tif"),
		boundary: e.remoteFile(t, models.FileRoleBoundary, "boundary.kml"),
		sites:    e.remoteFile(t, models.FileRoleSiteList, "sites.csv"),
	}
}

func (e *testEnv) plan(t *testing.T, folder *models.Folder, name string, files planFiles, boards ...string) *models.Plan {
	t.Helper()
	p, err := e.svc.CreatePlan(context.Background(), CreatePlanRequest{
		FolderID:         folder.ID,
		Name:             name,
		DSMFileID:        &files.dsm.ID,
		BoundaryFileID:   &files.boundary.ID,
		SitesFileID:      &files.sites.ID,
		HardwareBoardIDs: boards,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) reload(t *testing.T, f *models.InputFile) *models.InputFile {
	t.Helper()
	got, err := e.svc.GetInputFile(context.Background(), f.ID)
	require.NoError(t, err)
	return got
}

func (e *testEnv) storedPlan(t *testing.T, id any) models.Plan {
	t.Helper()
	var p models.Plan
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p
}

type memoryMirror struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryMirror() *memoryMirror {
	return &memoryMirror{objects: map[string][]byte{}}
}

func (m *memoryMirror) Put(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryMirror) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryMirror) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryMirror) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://mirror.example/" + key + "?sig=1", nil
}

func (m *memoryMirror) has(key string) bool {
	ok, _ := m.Exists(context.Background(), key)
	return ok
}

// planStates records the stored state of a plan each time the remote API
// receives a request.
func (e *testEnv) planStates(planID uuid.UUID) func() []models.PlanState {
	var (
		mu     sync.Mutex
		states []models.PlanState
	)
	e.srv.OnRequest(func(*http.Request) {
		var p models.Plan
		if err := e.db.Select("state").First(&p, "id = ?", planID).Error; err != nil {
			return
		}
		mu.Lock()
		states = append(states, p.State)
		mu.Unlock()
	})
	return func() []models.PlanState {
		mu.Lock()
		defer mu.Unlock()
		return append([]models.PlanState(nil), states...)
	}
}
