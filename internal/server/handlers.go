package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rickgao/alice-bridge/internal/connection"
	"github.com/rickgao/alice-bridge/internal/journal"
	"github.com/rickgao/alice-bridge/internal/liveness"
	"github.com/rickgao/alice-bridge/internal/model"
	"github.com/rickgao/alice-bridge/internal/router"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// HealthResponse is the /health body.
type HealthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

// StatusResponse is the /status body.
type StatusResponse struct {
	Connection connection.Snapshot    `json:"connection"`
	Liveness   liveness.Status        `json:"liveness"`
	Router     router.Stats           `json:"router"`
	Browsers   int                    `json:"browsers"`
	Journal    *journal.WriterMetrics `json:"journal,omitempty"`
}

const probeTimeout = 5 * time.Second

// health returns 200 when the broker is connected and 503 otherwise. A quiet
// core or a failing journal degrades the status without failing it.
func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     StatusHealthy,
		Components: make(map[string]any),
	}

	conn := s.src.Connection.Snapshot()
	resp.Components["broker"] = conn.StateName
	if conn.State != model.StateConnected {
		resp.Status = StatusUnhealthy
	}

	lv, err := s.src.Liveness.LivenessStatus(ctx)
	switch {
	case err != nil:
		resp.Components["core"] = map[string]string{"status": "unknown", "error": err.Error()}
		s.degrade(&resp)
	case lv.Available:
		resp.Components["core"] = "available"
	default:
		resp.Components["core"] = "unavailable"
		s.degrade(&resp)
	}

	if s.src.Journal != nil {
		if err := s.src.Journal.Ping(ctx); err != nil {
			resp.Components["journal"] = map[string]string{"status": "disconnected", "error": err.Error()}
			s.degrade(&resp)
		} else {
			resp.Components["journal"] = "connected"
		}
	}

	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, resp)
}

func (s *Server) degrade(resp *HealthResponse) {
	if resp.Status == StatusHealthy {
		resp.Status = StatusDegraded
	}
}

func (s *Server) status(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), probeTimeout)
	defer cancel()

	lv, err := s.src.Liveness.LivenessStatus(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "liveness status unavailable").SetInternal(err)
	}

	resp := StatusResponse{
		Connection: s.src.Connection.Snapshot(),
		Liveness:   lv,
		Router:     s.src.Router.Stats(),
		Browsers:   s.src.Hub.Clients(),
	}
	if s.src.Journal != nil {
		m := s.src.Journal.Stats()
		resp.Journal = &m
	}
	return c.JSON(http.StatusOK, resp)
}
