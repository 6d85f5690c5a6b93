package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/rickgao/alice-bridge/internal/connection"
	"github.com/rickgao/alice-bridge/internal/journal"
	"github.com/rickgao/alice-bridge/internal/liveness"
	"github.com/rickgao/alice-bridge/internal/router"
)

// ConnectionSource reports the broker connection.
type ConnectionSource interface {
	Snapshot() connection.Snapshot
}

// LivenessSource reports the watchdog. It is read through the event loop, so
// it takes a context.
type LivenessSource interface {
	LivenessStatus(ctx context.Context) (liveness.Status, error)
}

// RouterSource reports message routing counters.
type RouterSource interface {
	Stats() router.Stats
}

// BrowserHub serves browser WebSockets.
type BrowserHub interface {
	http.Handler
	Clients() int
}

// JournalSource reports the optional availability journal.
type JournalSource interface {
	Stats() journal.WriterMetrics
	Ping(ctx context.Context) error
}

// Sources are the components the endpoints report on. Journal may be nil.
type Sources struct {
	Connection ConnectionSource
	Liveness   LivenessSource
	Router     RouterSource
	Hub        BrowserHub
	Journal    JournalSource
}

// Config holds HTTP server settings.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the bridge's HTTP surface.
type Server struct {
	cfg    Config
	src    Sources
	logger *slog.Logger
	e      *echo.Echo
}

// New creates a Server and registers its routes.
func New(cfg Config, src Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				logger.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.Debug("request", attrs...)
			return nil
		},
	}))

	s := &Server{
		cfg:    cfg,
		src:    src,
		logger: logger,
		e:      e,
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server", "addr", addr)
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("stopping http server")
	if err := s.e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.e.GET("/health", s.health)
	s.e.GET("/status", s.status)
	s.e.GET("/ws", echo.WrapHandler(s.src.Hub))
}
