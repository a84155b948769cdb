package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/rohits-web03/planrelay/internal/planner"
	"github.com/rohits-web03/planrelay/internal/rpa"
	"github.com/rohits-web03/planrelay/internal/sites"
	"github.com/rohits-web03/planrelay/internal/utils"
)

// maxJSONBody bounds JSON request bodies; file content goes through its own
// limit.
const maxJSONBody = 1 << 20

type Handler struct {
	planner        *planner.Service
	logger         *slog.Logger
	maxUploadBytes int64
}

func New(svc *planner.Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{planner: svc, logger: logger, maxUploadBytes: maxUploadBytes}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.Fail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := utils.PathID(r, "id")
	if err != nil {
		utils.Fail(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// fail translates orchestrator errors into HTTP status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var apiErr *rpa.APIError
	switch {
	case errors.Is(err, planner.ErrNotFound), errors.Is(err, planner.ErrNoContent):
		status = http.StatusNotFound
	case errors.Is(err, planner.ErrInvalidInput), errors.Is(err, sites.ErrSchema), errors.Is(err, sites.ErrParse):
		status = http.StatusBadRequest
	case errors.Is(err, planner.ErrRemoteFileUnresolved):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, planner.ErrInvalidTransition),
		errors.Is(err, planner.ErrPlanNotLaunched),
		errors.Is(err, planner.ErrPlanAlreadyLaunched),
		errors.Is(err, planner.ErrPlanBusy),
		errors.Is(err, planner.ErrFileInUse),
		errors.Is(err, planner.ErrNotLocalFile):
		status = http.StatusConflict
	case errors.Is(err, planner.ErrMirrorDisabled):
		status = http.StatusNotImplemented
	case errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "Internal server error"
	}
	utils.Fail(w, status, message)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	utils.JSONResponse(w, status, utils.Payload{
		Success: true,
		Message: message,
		Data:    data,
	})
}
