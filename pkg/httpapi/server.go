// Package httpapi exposes the pairing front-end over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/wapair/internal/observability"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Server is the HTTP front-end
type Server struct {
	options     Options
	echo        *echo.Echo
	sessions    Sessions
	hub         *EventHub
	rateLimiter *RateLimiter
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
	startTime   time.Time
}

// NewServer creates the server and registers its routes
func NewServer(options Options, sessions Sessions, logger zerolog.Logger) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions are required")
	}
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 10 * time.Second
	}

	logger = logger.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = options.ReadTimeout

	s := &Server{
		options:   options,
		echo:      e,
		sessions:  sessions,
		hub:       NewEventHub(logger),
		logger:    logger,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	if options.RateLimit > 0 {
		s.rateLimiter = NewRateLimiter(options.RateLimit, options.RateWindow, nil)
	}

	observability.EnsureRegistered()

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(requestLogger(logger))

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(observability.MetricsHandler()))
	s.echo.GET("/events", s.handleEvents)

	s.echo.POST("/connect", s.handleConnect, s.rateLimit)

	s.echo.GET("/sessions", s.handleListSessions)
	s.echo.GET("/sessions/:id", s.handleGetSession)

	if s.options.StaticDir != "" {
		if fi, err := os.Stat(s.options.StaticDir); err == nil && fi.IsDir() {
			s.echo.Static("/", s.options.StaticDir)
		} else {
			s.logger.Debug().Str("dir", s.options.StaticDir).Msg("Static directory not found, not serving files")
		}
	}
}

// Hub returns the event hub; register its Publish method as a lifecycle
// observer to feed /events.
func (s *Server) Hub() *EventHub {
	return s.hub
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens until Stop is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.options.Host, s.options.Port)

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting HTTP server")

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.hub.CloseAll()

	ctx, cancel := context.WithTimeout(ctx, s.options.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
