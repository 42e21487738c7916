// Package httpapi provides the HTTP status and admin surface: health
// checking, live relay state, and persistent settings. It runs on a
// separate TCP port from the relay itself and also mounts the websocket
// bridge.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"dustmp/server/internal/core"
	"dustmp/server/internal/ws"
	"dustmp/server/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// maxSettingLength bounds the stored server name and MOTD.
const maxSettingLength = 200

// Server is the Echo application.
type Server struct {
	echo *echo.Echo
	reg  *core.Registry
	st   *store.Store
}

// New constructs an Echo app with websocket + REST routes.
func New(reg *core.Registry, st *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("api request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{echo: e, reg: reg, st: st}
	s.registerRoutes()
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/api/settings", s.handleGetSettings)
	s.echo.PUT("/api/settings", s.handlePutSettings)
	ws.NewHandler(s.reg).Register(s.echo)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	ServerName string `json:"server_name"`
	Clients    int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:     "ok",
		ServerName: s.reg.ServerName(),
		Clients:    s.reg.ClientCount(),
	})
}

type stateResponse struct {
	Clients []core.ClientInfo `json:"clients"`
	Rooms   []core.RoomInfo   `json:"rooms"`
}

func (s *Server) handleState(c echo.Context) error {
	clients, rooms := s.reg.Snapshot()
	return c.JSON(http.StatusOK, stateResponse{Clients: clients, Rooms: rooms})
}

// settingsPayload serves both GET responses and PUT requests.
type settingsPayload struct {
	ServerName string `json:"server_name"`
	Motd       string `json:"motd"`
}

func (s *Server) handleGetSettings(c echo.Context) error {
	name, _, err := s.st.GetSetting("server_name")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	motd, _, err := s.st.GetSetting("motd")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settingsPayload{ServerName: name, Motd: motd})
}

func (s *Server) handlePutSettings(c echo.Context) error {
	var req settingsPayload
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	name := strings.TrimSpace(req.ServerName)
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "server_name must not be empty")
	}
	if len(name) > maxSettingLength {
		return echo.NewHTTPError(http.StatusBadRequest, "server_name too long")
	}
	motd := strings.TrimSpace(req.Motd)
	if len(motd) > maxSettingLength {
		return echo.NewHTTPError(http.StatusBadRequest, "motd too long")
	}

	if err := s.st.SetSetting("server_name", name); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := s.st.SetSetting("motd", motd); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Update live state so fresh connections see the change without a
	// restart.
	s.reg.SetServerName(name)
	s.reg.SetMotd(motd)
	return c.NoContent(http.StatusNoContent)
}
