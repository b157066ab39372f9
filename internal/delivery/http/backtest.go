package http

import (
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/model"
	"ashare-backtest/pkg/logger"
	"ashare-backtest/pkg/utils"
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 100
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	v1 := base.Group("/v1/backtest")
	{
		v1.POST("", h.runBacktest)
		v1.GET("", h.listBacktestRuns)
		v1.GET("/:id", h.getBacktestRun)
		v1.GET("/:id/chart", h.getBacktestChart)
	}
}

func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.BacktestRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	req.Trigger = dto.TriggerAPI

	result, err := h.service.BacktestService.RunBacktest(ctx, req)
	if err != nil {
		h.log.WarnContext(ctx, "Backtest request failed", logger.ErrorField(err), logger.StringField("symbol", req.Symbol))
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse(result.Summary, result))
}

func (h *HttpAPIHandler) getBacktestRun(c echo.Context) error {
	run, err := h.service.BacktestService.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", run))
}

func (h *HttpAPIHandler) listBacktestRuns(c echo.Context) error {
	param := model.GetBacktestRunParam{Limit: utils.ToPointer(defaultRunListLimit)}
	if symbol := c.QueryParam("symbol"); symbol != "" {
		param.Symbol = &symbol
	}
	if status := c.QueryParam("status"); status != "" {
		st := model.BacktestRunStatus(status)
		param.Status = &st
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunListLimit {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(fmt.Sprintf("limit must be between 1 and %d", maxRunListLimit)))
		}
		param.Limit = &n
	}

	runs, err := h.service.BacktestService.ListRuns(c.Request().Context(), param)
	if err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", runs))
}

func (h *HttpAPIHandler) getBacktestChart(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.service.BacktestService.RenderChart(c.Request().Context(), c.Param("id"), &buf); err != nil {
		resp := errorResponse(err)
		return c.JSON(resp.Code, resp)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
