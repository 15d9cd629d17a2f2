package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kaleidoswap/payflow/internal/asset"
	"github.com/kaleidoswap/payflow/internal/payflow"
)

// Config holds API server configuration
type Config struct {
	Port string `envconfig:"SERVER_PORT" default:"8080"`
}

const shutdownTimeout = 10 * time.Second

// AssetLister reads the wallet snapshot for the assets endpoint.
type AssetLister interface {
	List() []asset.Asset
	RefreshedAt() time.Time
}

// Server exposes payment drafts over HTTP to a thin UI client.
type Server struct {
	cfg     Config
	echo    *echo.Echo
	manager *payflow.Manager
	wallet  AssetLister
	log     *logrus.Entry
}

// NewServer wires the draft routes. Extra middlewares (metrics, auth) are
// applied after recovery.
func NewServer(cfg Config, manager *payflow.Manager, wallet AssetLister, logger *logrus.Logger, middlewares ...echo.MiddlewareFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	e.Use(middleware.Recover())
	e.Use(middlewares...)

	s := &Server{
		cfg:     cfg,
		echo:    e,
		manager: manager,
		wallet:  wallet,
		log:     logger.WithField("pkg", "api.Server"),
	}

	v1 := e.Group("/api/v1")
	v1.GET("/assets", s.handleListAssets)
	v1.POST("/drafts", s.handleOpenDraft)
	v1.GET("/drafts/:id", s.handleGetDraft)
	v1.DELETE("/drafts/:id", s.handleCloseDraft)
	v1.PUT("/drafts/:id/input", s.handleInput)
	v1.PUT("/drafts/:id/amount", s.handleAmount)
	v1.PUT("/drafts/:id/asset", s.handleSelectAsset)
	v1.PUT("/drafts/:id/fee", s.handleFee)
	v1.POST("/drafts/:id/max", s.handleUseMax)
	v1.POST("/drafts/:id/review", s.handleReview)
	v1.POST("/drafts/:id/confirm", s.handleConfirm)
	v1.POST("/drafts/:id/back", s.handleBack)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(fmt.Sprintf(":%s", s.cfg.Port))
	}()
	s.log.WithField("port", s.cfg.Port).Info("api server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start api server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

// Stop shuts the listener down without waiting for ctx cancellation.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestValidator adapts go-playground/validator to echo's Validator hook.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
