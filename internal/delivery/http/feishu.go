package http

import (
	"ashare-backtest/internal/dto"
	"ashare-backtest/pkg/logger"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupFeishu(base *echo.Group) {
	base.POST("/card-callback", h.CardCallback)
}

// CardCallback always answers 200 so Feishu does not retry the delivery.
func (h *HttpAPIHandler) CardCallback(c echo.Context) error {
	ctx := c.Request().Context()
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.log.WarnContext(ctx, "Failed to read card callback body", logger.ErrorField(err))
		return c.JSON(http.StatusOK, dto.CardCallbackResponse{OK: false, Msg: "触发失败：Error: " + err.Error()})
	}
	return c.JSON(http.StatusOK, h.service.CardCallbackService.HandleCardCallback(ctx, payload))
}
