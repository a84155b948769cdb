package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/rohits-web03/planrelay/docs"
	"github.com/rohits-web03/planrelay/internal/api/handlers"
	"github.com/rohits-web03/planrelay/internal/api/middleware"
)

func SetupRouter(h *handlers.Handler, corsOptions cors.Options, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mainMux := http.NewServeMux()
	c := cors.New(corsOptions)

	mainMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mainMux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	apiMux := http.NewServeMux()

	apiMux.HandleFunc("GET /folders", h.ListFolders)
	apiMux.HandleFunc("POST /folders", h.CreateFolder)
	apiMux.HandleFunc("GET /folders/{id}", h.GetFolder)
	apiMux.HandleFunc("PATCH /folders/{id}", h.UpdateFolder)
	apiMux.HandleFunc("DELETE /folders/{id}", h.DeleteFolder)
	apiMux.HandleFunc("GET /folders/{id}/plans", h.ListPlans)

	apiMux.HandleFunc("POST /plans", h.CreatePlan)
	apiMux.HandleFunc("GET /plans/{id}", h.GetPlan)
	apiMux.HandleFunc("PATCH /plans/{id}", h.UpdatePlan)
	apiMux.HandleFunc("DELETE /plans/{id}", h.DeletePlan)
	apiMux.HandleFunc("POST /plans/{id}/launch", h.LaunchPlan)
	apiMux.HandleFunc("POST /plans/{id}/cancel", h.CancelPlan)

	apiMux.HandleFunc("POST /files", h.CreateInputFile)
	apiMux.HandleFunc("GET /files/{id}", h.GetInputFile)
	apiMux.HandleFunc("PATCH /files/{id}", h.UpdateInputFile)
	apiMux.HandleFunc("DELETE /files/{id}", h.DeleteInputFile)
	apiMux.HandleFunc("PUT /files/{id}/content", h.UploadContent)
	apiMux.HandleFunc("GET /files/{id}/content", h.DownloadContent)
	apiMux.HandleFunc("GET /files/{id}/mirror-url", h.MirrorURL)

	apiMux.HandleFunc("POST /sites-files", h.CreateSitesFile)
	apiMux.HandleFunc("GET /sites-files/{id}", h.GetSitesFile)
	apiMux.HandleFunc("PUT /sites-files/{id}", h.UpdateSitesFile)
	apiMux.HandleFunc("GET /sites-files/{id}/geojson", h.SitesGeoJSON)

	mainMux.Handle("/api/v1/", http.StripPrefix("/api/v1", apiMux))

	logger.Info("router initialized")
	handler := c.Handler(mainMux)
	handler = middleware.Logger(logger, handler)
	return handler
}
