package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Config holds health server configuration
type Config struct {
	Port string `envconfig:"HEALTH_PORT" default:"8086"`
}

// Server exposes the liveness endpoint
type Server struct {
	echo *echo.Echo
}

// StartHealthServer starts the liveness endpoint in the background.
func StartHealthServer(cfg Config, logger *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Health server error: %v", err)
		}
	}()

	logger.Infof("Health server listening on :%s", cfg.Port)
	return &Server{echo: e}
}

// Stop gracefully shuts down the health server
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
