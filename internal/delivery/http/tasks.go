package http

import (
	"ashare-backtest/internal/dto"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTasks(base *echo.Group) {
	v1 := base.Group("/v1/tasks")
	{
		v1.POST("/poll", h.PollTasks)
	}
}

func (h *HttpAPIHandler) PollTasks(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("limit must be a positive integer"))
		}
		limit = n
	}

	result, err := h.service.TaskQueueService.PollAndRun(c.Request().Context(), limit)
	if err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", result))
}
