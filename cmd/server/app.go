package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/rohits-web03/planrelay/internal/config"
	"github.com/rohits-web03/planrelay/internal/hardware"
	"github.com/rohits-web03/planrelay/internal/planner"
	"github.com/rohits-web03/planrelay/internal/repositories"
	"github.com/rohits-web03/planrelay/internal/rpa"
	"github.com/rohits-web03/planrelay/internal/storage"
)

type app struct {
	db       *gorm.DB
	planner  *planner.Service
	registry *prometheus.Registry
}

// newApp connects the store and the remote client and builds the
// orchestrator from cfg.
func newApp(cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	db, err := repositories.ConnectDatabase(cfg.DB_URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err != nil {
			(&app{db: db}).Close()
		}
	}()

	catalog, err := hardware.Load(cfg.HardwareCatalog)
	if err != nil {
		return nil, err
	}
	logger.Info("hardware catalog loaded", "path", cfg.HardwareCatalog, "boards", len(catalog.BoardIDs()))

	if cfg.RPA.BaseURL == "" || cfg.RPA.TokenURL == "" {
		return nil, errors.New("RPA_BASE_URL and RPA_TOKEN_URL must be set")
	}
	httpClient := &http.Client{Timeout: cfg.RPA.RequestTimeout}
	auth := rpa.NewOAuthAuthenticator(cfg.RPA.Credentials(), httpClient)
	remote := rpa.NewClient(rpa.Config{
		BaseURL:    cfg.RPA.BaseURL,
		PartnerID:  cfg.RPA.PartnerID,
		HTTPClient: httpClient,
		Logger:     logger,
	}, auth)

	var mirror planner.Mirror
	if cfg.R2.Enabled() {
		mirror = repositories.NewR2Mirror(cfg.R2)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := planner.New(planner.Options{
		DB:        db,
		Remote:    remote,
		Files:     storage.NewLocalFileStore(cfg.StorageDir),
		Hardware:  catalog,
		Mirror:    mirror,
		ChunkSize: cfg.RPA.ChunkSize,
		Poll: rpa.PollConfig{
			Interval:    cfg.RPA.PollInterval,
			MaxAttempts: cfg.RPA.PollMaxAttempts,
		},
		Metrics: planner.NewMetrics(registry),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return &app{db: db, planner: svc, registry: registry}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
