package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// ServerConfig holds configuration for the HTTP server
type ServerConfig struct {
	Addr    string // Server bind address (e.g., ":8090")
	DevMode bool   // Enable development mode (detailed error responses)
	APIKey  string // Optional API key for authentication

	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// ServerDeps contains dependencies required to create a new Server
type ServerDeps struct {
	Handlers *Handlers
	Config   ServerConfig
}

const shutdownGrace = 10 * time.Second

// Server owns the echo instance and signals when shutdown has finished.
type Server struct {
	e      *echo.Echo
	cfg    ServerConfig
	logger *logrus.Logger

	stopOnce sync.Once
	closed   chan struct{}
}

// NewServer builds the router. Handlers must carry a swap service.
func NewServer(deps ServerDeps) (*Server, error) {
	h := deps.Handlers
	if h == nil || h.Swaps == nil {
		return nil, fmt.Errorf("server needs handlers with a swap service")
	}
	if h.Logger == nil {
		h.Logger = logrus.New()
	}
	h.DevMode = h.DevMode || deps.Config.DevMode

	e := echo.New()
	e.HideBanner, e.HidePort = true, true
	e.Server.ReadTimeout = 15 * time.Second
	// quotes and builds fan out to the indexer; leave room for HTTP_TIMEOUT
	e.Server.WriteTimeout = 75 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	e.Use(middleware.Recover(), middleware.RequestID(), requestLogger(h.Logger))
	RegisterRoutes(e, h, deps.Config)

	return &Server{e: e, cfg: deps.Config, logger: h.Logger, closed: make(chan struct{})}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.e.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests for up to shutdownGrace. Later calls
// are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		defer close(s.closed)
		ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
		defer cancel()
		if err = s.e.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("http server shutdown")
		}
	})
	return err
}

// WaitClosed returns once Shutdown has completed or ctx ends.
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestLogger logs one line per request through logrus.
func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

// SetNoCacheHeaders middleware prevents caching of API responses
func SetNoCacheHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Cache-Control", "no-store")
		return next(c)
	}
}

// SetJSONContentType middleware ensures all responses have JSON content type
func SetJSONContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return next(c)
	}
}
