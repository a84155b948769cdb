package handlers

import (
	"net/http"

	"github.com/rohits-web03/planrelay/internal/sites"
)

type createSitesFileRequest struct {
	Name string `json:"name"`
}

type updateSitesFileRequest struct {
	Sites []sites.Site `json:"sites"`
}

// CreateSitesFile godoc
// @Summary Create an empty local sites file
// @Tags Sites
// @Accept json
// @Produce json
// @Param body body createSitesFileRequest true "File name"
// @Success 201 {object} utils.Payload
// @Router /api/v1/sites-files [post]
func (h *Handler) CreateSitesFile(w http.ResponseWriter, r *http.Request) {
	var req createSitesFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	f, err := h.planner.CreateSitesFile(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Sites file created successfully", f)
}

// GetSitesFile godoc
// @Summary Read the rows of a sites file
// @Tags Sites
// @Produce json
// @Param id path string true "Input file ID"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Not a sites file or malformed CSV"
// @Router /api/v1/sites-files/{id} [get]
func (h *Handler) GetSitesFile(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	file, err := h.planner.GetSitesFile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Sites retrieved successfully", file)
}

// UpdateSitesFile godoc
// @Summary Replace the rows of a local sites file
// @Tags Sites
// @Accept json
// @Produce json
// @Param id path string true "Input file ID"
// @Param body body updateSitesFileRequest true "Rows"
// @Success 200 {object} utils.Payload
// @Failure 409 {object} utils.Payload "File is not local"
// @Router /api/v1/sites-files/{id} [put]
func (h *Handler) UpdateSitesFile(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	var req updateSitesFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	file, err := h.planner.UpdateSitesFile(r.Context(), id, req.Sites)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Sites updated successfully", file)
}

// SitesGeoJSON godoc
// @Summary Sites as a GeoJSON FeatureCollection
// @Tags Sites
// @Produce json
// @Param id path string true "Input file ID"
// @Success 200 {object} object
// @Router /api/v1/sites-files/{id}/geojson [get]
func (h *Handler) SitesGeoJSON(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	data, err := h.planner.SitesGeoJSON(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
