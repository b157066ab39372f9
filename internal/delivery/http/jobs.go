package http

import (
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/utils"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1/jobs")
	{
		v1.GET("", h.ListJobs)
		v1.POST("/run", h.RunJobs)
		v1.POST("/:id/run", h.RunJob)
	}
}

func (h *HttpAPIHandler) ListJobs(c echo.Context) error {
	jobs, err := h.service.SchedulerService.GetJobSchedule(c.Request().Context(), model.GetJobParam{
		IsActive: utils.ToPointer(true),
		WithTaskHistory: &model.GetTaskExecutionHistoryParam{
			Limit: utils.ToPointer(5),
		},
	})
	if err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", jobs))
}

func (h *HttpAPIHandler) RunJobs(c echo.Context) error {
	if err := h.service.SchedulerService.Execute(c.Request().Context()); err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Start running jobs", nil))
}

func (h *HttpAPIHandler) RunJob(c echo.Context) error {
	jobID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}
	if err := h.service.SchedulerService.RunJobTask(c.Request().Context(), uint(jobID)); err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job dispatched", nil))
}
