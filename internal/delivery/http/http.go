package http

import (
	"ashare-backtest/internal/backtest"
	"ashare-backtest/internal/dto"
	"ashare-backtest/internal/repository"
	"ashare-backtest/internal/service"
	"ashare-backtest/pkg/logger"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo    *echo.Echo
	log     *logger.Logger
	service *service.Service
}

func NewHttpAPIHandler(echo *echo.Echo, log *logger.Logger, service *service.Service) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:    echo,
		log:     log,
		service: service,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", nil))
	})

	base := h.echo.Group("/api")
	h.SetupBacktest(base)
	h.SetupJobs(base)
	h.SetupTasks(base)
	h.SetupFeishu(h.echo.Group("/feishu"))
}

// errorResponse maps service errors onto the response envelope.
func errorResponse(err error) *dto.BaseResponse {
	var verr *backtest.ValidationError
	var derr *backtest.DataUnavailableError
	switch {
	case errors.As(err, &verr):
		return dto.NewErrorResponse(http.StatusBadRequest, "invalid request", verr.Fields)
	case errors.As(err, &derr):
		return dto.NewErrorResponse(http.StatusUnprocessableEntity, derr.Error(), nil)
	case errors.Is(err, repository.ErrBacktestRunNotFound), errors.Is(err, service.ErrJobNotFound):
		return dto.NewNotFoundResponse(err.Error())
	case errors.Is(err, service.ErrStorageDisabled):
		return dto.NewErrorResponse(http.StatusServiceUnavailable, err.Error(), nil)
	default:
		return dto.NewErrorResponse(http.StatusInternalServerError, err.Error(), nil)
	}
}
