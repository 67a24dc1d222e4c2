package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/progress"
	"github.com/gaia-urban/gaia/backend/internal/utils"
	"github.com/google/uuid"
)

// readScenario 解析并校验请求体中的场景
func (h *Handler) readScenario(w http.ResponseWriter, r *http.Request) (*domain.Scenario, bool) {
	var s domain.Scenario
	if !h.decodeAndValidate(w, r, &s) {
		return nil, false
	}
	if err := utils.ValidateScenario(&s); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	return &s, true
}

func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	s, ok := h.readScenario(w, r)
	if !ok {
		return
	}

	run := &domain.Run{
		ID:        uuid.New(),
		Name:      s.Name,
		Status:    domain.RunStatusQueued,
		Scenario:  *s,
		CreatedBy: myInfo.ID,
	}
	if err := h.repository.CreateRun(run); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.publish(domain.OptimizationQueue, domain.OptimizationTask{RunID: run.ID}); err != nil {
		// 投递失败的运行永远不会被执行，直接标记为失败
		run.Status = domain.RunStatusFailed
		run.Error = "无法投递优化任务"
		if finishErr := h.repository.FinishRun(run); finishErr != nil {
			slog.Error("无法标记运行失败", "run", run.ID, "error", finishErr)
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "运行已提交", run)
}

func (h *Handler) GetAllRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repository.GetAllRuns()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取运行列表成功", runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)
	h.successResponse(w, r, "获取运行成功", run)
}

func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	if run.Status == domain.RunStatusQueued {
		h.successResponse(w, r, "运行正在排队", nil)
		return
	}

	ctx, cancel := h.redisContext(r)
	defer cancel()

	p, err := progress.Get(ctx, h.redisClient, run.ID)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNotFound) && run.FinishedAt != nil:
			// 进度已过期，用数据库中的结果代替
			finished := &domain.RunProgress{Stage: domain.StageDone, UpdatedAt: *run.FinishedAt}
			if run.BestFitness != nil {
				finished.BestFitness = *run.BestFitness
			}
			h.successResponse(w, r, "运行已结束", finished)
		case errors.Is(err, progress.ErrNotFound):
			h.successResponse(w, r, "运行尚未产生进度", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取运行进度成功", p)
}

func (h *Handler) GetRunReport(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	if run.Status != domain.RunStatusSucceeded {
		h.errorResponse(w, r, "运行尚未成功完成")
		return
	}

	report, err := h.repository.GetRunReport(run.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.writeText(w, r, report)
}

func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	run := r.Context().Value(RunCtx).(*domain.Run)

	if err := h.repository.DeleteRun(run.ID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "运行中的任务不能删除")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "删除运行成功", nil)
}
