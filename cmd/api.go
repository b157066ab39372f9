package cmd

import (
	"ashare-backtest/internal/delivery/http"
	"ashare-backtest/pkg/logger"
	"context"
	"fmt"
)

type HTTPServer struct {
	appDep  *AppDependency
	handler *http.HttpAPIHandler
}

func NewHTTPServer(appDep *AppDependency, handler *http.HttpAPIHandler) *HTTPServer {
	return &HTTPServer{
		appDep:  appDep,
		handler: handler,
	}
}

func (s *HTTPServer) Start() error {
	s.appDep.log.Info("Starting HTTP server", logger.IntField("port", s.appDep.cfg.API.Port))
	s.handler.SetupRoutes()
	return s.appDep.echo.Start(fmt.Sprintf(":%d", s.appDep.cfg.API.Port))
}

// Stop drains in-flight requests until the configured shutdown timeout.
func (s *HTTPServer) Stop() error {
	s.appDep.log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.appDep.cfg.API.ShutdownTimeout)
	defer cancel()

	if err := s.appDep.echo.Shutdown(ctx); err != nil {
		s.appDep.log.Error("Error when stopping HTTP server", logger.ErrorField(err))
		return err
	}
	s.appDep.log.Info("HTTP server stopped successfully")
	return nil
}
