// Package http provides the HTTP API for patternbank.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternbank/internal/learner"
	"github.com/fyrsmithlabs/patternbank/internal/telemetry"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the learning engine to the enhancement pipeline.
type Server struct {
	echo    *echo.Echo
	learner *learner.Learner
	metrics *telemetry.EngineMetrics
	logger  *zap.Logger
	config  *Config
}

// NewServer creates the HTTP server. registry, when non-nil, is exposed
// at /metrics.
func NewServer(l *learner.Learner, metrics *telemetry.EngineMetrics, registry *prometheus.Registry, logger *zap.Logger, cfg *Config) (*Server, error) {
	if l == nil {
		return nil, fmt.Errorf("learner cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8750}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		learner: l,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}

	e.GET("/healthz", s.handleHealth)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api/v1")
	api.POST("/learn", s.handleLearn)
	api.POST("/suggest", s.handleSuggest)
	api.POST("/feedback", s.handleFeedback)
	api.GET("/patterns/:id", s.handleGetPattern)
	api.DELETE("/patterns/:id", s.handleDeletePattern)
	api.GET("/patterns", s.handleSearch)
	api.GET("/stats", s.handleStats)
	api.GET("/effectiveness", s.handleEffectiveness)
	api.POST("/cleanup", s.handleCleanup)
	api.POST("/export", s.handleExport)
	api.POST("/import", s.handleImport)

	return s, nil
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("http server starting", zap.String("addr", addr))

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
