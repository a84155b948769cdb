package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohits-web03/planrelay/internal/planner"
	"github.com/rohits-web03/planrelay/internal/utils"
)

const (
	defaultMirrorExpiry = 15 * time.Minute
	maxMirrorExpiry     = 24 * time.Hour
)

// CreateInputFile godoc
// @Summary Register an input file
// @Description Local files need a role and a name and get their bytes through the content endpoint.
// @Description Remote files need only remoteId; name and role are read from the Remote Planning API.
// @Tags Files
// @Accept json
// @Produce json
// @Param body body planner.CreateInputFileRequest true "Input file"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 422 {object} utils.Payload "Remote id could not be resolved"
// @Router /api/v1/files [post]
func (h *Handler) CreateInputFile(w http.ResponseWriter, r *http.Request) {
	var req planner.CreateInputFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	f, err := h.planner.CreateInputFile(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Input file created successfully", f)
}

// GetInputFile godoc
// @Summary Get input file metadata
// @Tags Files
// @Produce json
// @Param id path string true "Input file ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/files/{id} [get]
func (h *Handler) GetInputFile(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	f, err := h.planner.GetInputFile(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Input file retrieved successfully", f)
}

// UpdateInputFile godoc
// @Summary Rename or change the role of a local input file
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "Input file ID"
// @Param body body planner.UpdateInputFileRequest true "Changed fields"
// @Success 200 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/files/{id} [patch]
func (h *Handler) UpdateInputFile(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	var req planner.UpdateInputFileRequest
	if !h.decode(w, r, &req) {
		return
	}
	f, err := h.planner.UpdateInputFile(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Input file updated successfully", f)
}

// DeleteInputFile godoc
// @Summary Delete an input file
// @Description Refused when more than one plan uses the file.
// @Tags Files
// @Produce json
// @Param id path string true "Input file ID"
// @Success 200 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/files/{id} [delete]
func (h *Handler) DeleteInputFile(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	if err := h.planner.DeleteInputFile(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Input file deleted successfully", nil)
}

// UploadContent godoc
// @Summary Store the bytes of a local input file
// @Description Accepts either a raw request body or a multipart form with a "file" field.
// @Tags Files
// @Accept octet-stream
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Input file ID"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload "File is not local"
// @Router /api/v1/files/{id}/content [put]
func (h *Handler) UploadContent(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	body, err := uploadBody(r)
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	f, err := h.planner.UploadFileBytes(r.Context(), id, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Input file stored successfully", f)
}

// uploadBody returns the file stream of an upload request without
// buffering it.
func uploadBody(r *http.Request) (io.Reader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("invalid multipart body: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("no file provided")
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
		if part.FormName() == "file" {
			return part, nil
		}
	}
}

// DownloadContent godoc
// @Summary Download the bytes of an input file
// @Description Remote files are proxied from the Remote Planning API.
// @Tags Files
// @Produce octet-stream
// @Param id path string true "Input file ID"
// @Success 200 {file} binary
// @Failure 404 {object} utils.Payload
// @Router /api/v1/files/{id}/content [get]
func (h *Handler) DownloadContent(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	body, f, err := h.planner.DownloadFileBytes(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(f.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("download interrupted", "file", f.ID, "error", err)
	}
}

// MirrorURL godoc
// @Summary Presigned link to the mirrored copy of a local input file
// @Tags Files
// @Produce json
// @Param id path string true "Input file ID"
// @Param expires query string false "Link lifetime, e.g. 15m"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 501 {object} utils.Payload "Mirror not configured"
// @Router /api/v1/files/{id}/mirror-url [get]
func (h *Handler) MirrorURL(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	expires := defaultMirrorExpiry
	if raw := strings.TrimSpace(r.URL.Query().Get("expires")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > maxMirrorExpiry {
			utils.Fail(w, http.StatusBadRequest, "Invalid expires duration")
			return
		}
		expires = d
	}
	url, err := h.planner.MirrorURL(r.Context(), id, expires)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Mirror link created", map[string]any{
		"url":       url,
		"expiresIn": expires.String(),
	})
}
