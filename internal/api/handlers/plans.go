package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rohits-web03/planrelay/internal/planner"
	"github.com/rohits-web03/planrelay/internal/utils"
)

// CreatePlan godoc
// @Summary Create a draft plan
// @Tags Plans
// @Accept json
// @Produce json
// @Param body body planner.CreatePlanRequest true "Plan"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/plans [post]
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planner.CreatePlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.planner.CreatePlan(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "Plan created successfully", plan)
}

// GetPlan godoc
// @Summary Get a plan
// @Description A running plan is refreshed from the Remote Planning API.
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 502 {object} utils.Payload
// @Router /api/v1/plans/{id} [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	plan, err := h.planner.GetPlan(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Plan retrieved successfully", plan)
}

// UpdatePlan godoc
// @Summary Update a plan before launch
// @Tags Plans
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param body body planner.UpdatePlanRequest true "Changed fields"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/plans/{id} [patch]
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	var req planner.UpdatePlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.planner.UpdatePlan(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Plan updated successfully", plan)
}

// DeletePlan godoc
// @Summary Delete a plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} utils.Payload
// @Failure 409 {object} utils.Payload
// @Router /api/v1/plans/{id} [delete]
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	if err := h.planner.DeletePlan(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Plan deleted successfully", nil)
}

// LaunchPlan godoc
// @Summary Launch a plan
// @Description Uploads local inputs, waits for them to be ready and launches the remote plan.
// @Description The response carries the resulting state and one message per problem.
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} utils.Payload "Plan is running"
// @Failure 422 {object} utils.Payload "Launch failed; data holds state and errors"
// @Failure 409 {object} utils.Payload
// @Router /api/v1/plans/{id}/launch [post]
func (h *Handler) LaunchPlan(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	// the launch waits for remote readiness, which outlasts the server write timeout
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("write deadline not extended", "error", err)
	}

	// a client hanging up must not abandon a half-uploaded plan
	res, err := h.planner.LaunchPlan(context.WithoutCancel(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(res.Errors) > 0 {
		utils.JSONResponse(w, http.StatusUnprocessableEntity, utils.Payload{
			Success: false,
			Message: "Plan launch failed",
			Data:    res,
		})
		return
	}
	ok(w, http.StatusOK, "Plan launched successfully", res)
}

// CancelPlan godoc
// @Summary Cancel a launched plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} utils.Payload
// @Failure 409 {object} utils.Payload "Plan not launched"
// @Router /api/v1/plans/{id}/cancel [post]
func (h *Handler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	id, valid := h.pathID(w, r)
	if !valid {
		return
	}
	res, err := h.planner.CancelPlan(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "Plan cancel requested", res)
}
