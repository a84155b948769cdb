package handlers

import (
	"net/http"
)

type folderRequest struct {
	Name string `json:"name"`
}

// ListFolders godoc
// @Summary List plan folders
// @Tags Folders
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/folders [get]
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.planner.ListFolders(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Folders retrieved successfully", folders)
}

// CreateFolder godoc
// @Summary Create a plan folder
// @Description Creates the folder on the Remote Planning API and records it locally.
// @Tags Folders
// @Accept json
// @Produce json
// @Param body body folderRequest true "Folder name"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 502 {object} utils.Payload
// @Router /api/v1/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if !h.decode(w, r, &req) {
		return
	}
	folder, err := h.planner.CreateFolder(r.Context(), req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Folder created successfully", folder)
}

// GetFolder godoc
// @Summary Get a plan folder
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/folders/{id} [get]
func (h *Handler) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	folder, err := h.planner.GetFolder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Folder retrieved successfully", folder)
}

// UpdateFolder godoc
// @Summary Rename a plan folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param body body folderRequest true "New name"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/folders/{id} [patch]
func (h *Handler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	var req folderRequest
	if !h.decode(w, r, &req) {
		return
	}
	folder, err := h.planner.UpdateFolder(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Folder updated successfully", folder)
}

// DeleteFolder godoc
// @Summary Delete a folder with its plans
// @Description Removes the folder, its plans and the input files no other plan uses.
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/folders/{id} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	if err := h.planner.DeleteFolder(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Folder deleted successfully", nil)
}

// ListPlans godoc
// @Summary List the plans of a folder
// @Description Running plans are refreshed from the Remote Planning API.
// @Tags Plans
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/folders/{id}/plans [get]
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	plans, err := h.planner.ListPlansInFolder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Plans retrieved successfully", plans)
}
