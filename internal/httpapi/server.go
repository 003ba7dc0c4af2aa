package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/podharness/internal/podstate"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server provides the harness status endpoints.
type Server struct {
	echo     *echo.Echo
	pods     *podstate.Manager
	logger   *zap.Logger
	config   *Config
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// NewServer creates a status API server.
func NewServer(pods *podstate.Manager, logger *zap.Logger, cfg *Config) (*Server, error) {
	if pods == nil {
		return nil, fmt.Errorf("pod state manager cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9632,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podharness_http_requests_total",
		Help: "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})
	registry.MustRegister(requests)

	s := &Server{
		echo:     e,
		pods:     pods,
		logger:   logger,
		config:   cfg,
		registry: registry,
		requests: requests,
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			status := c.Response().Status
			s.requests.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/pods", s.handleListPods)
	v1.GET("/pods/:id", s.handleGetPod)
}

// HealthResponse is the response body for GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// PodsResponse is the response body for GET /api/v1/pods.
type PodsResponse struct {
	Pods []podstate.PodStatus `json:"pods"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListPods(c echo.Context) error {
	return c.JSON(http.StatusOK, PodsResponse{Pods: s.pods.AllStatuses()})
}

func (s *Server) handleGetPod(c echo.Context) error {
	status, ok := s.pods.GetStatus(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown pod")
	}
	return c.JSON(http.StatusOK, status)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
