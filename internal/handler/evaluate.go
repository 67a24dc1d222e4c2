package handler

import (
	"net/http"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/planner"
	"github.com/gaia-urban/gaia/backend/internal/utils"
)

type evaluation struct {
	Plan   *planner.Plan `json:"plan"`
	Report string        `json:"report"`
}

// Evaluate 同步评估一个已确定的布局，不写入数据库
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scenario domain.Scenario      `json:"scenario"`
		Layout   []domain.LayoutEntry `json:"layout" validate:"required,min=1,dive"`
	}
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if err := utils.ValidateScenario(&req.Scenario); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := utils.ValidateLayout(&req.Scenario, req.Layout); err != nil {
		h.badRequest(w, r, err)
		return
	}

	opts := h.options.WithScenario(&req.Scenario)
	plan, err := h.planner.Evaluate(r.Context(), &req.Scenario, req.Layout, opts)
	if err != nil {
		if planner.IsInputError(err) {
			h.errorResponse(w, r, err.Error())
			return
		}
		h.internalServerError(w, r, err)
		return
	}
	h.metrics.LayoutEvaluated()

	h.successResponse(w, r, "评估完成", evaluation{Plan: plan, Report: plan.Report})
}
