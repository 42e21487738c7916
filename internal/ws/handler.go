// Package ws bridges WebSocket connections into the relay's byte-stream
// session engine, so browser builds of the client can join the same rooms
// as raw TCP clients. Binary WebSocket messages are treated as chunks of
// the exact same framed stream the TCP listener reads.
package ws

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"dustmp/server/internal/core"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler owns the websocket transport for the relay.
type Handler struct {
	reg      *core.Registry
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler bound to the registry.
func NewHandler(reg *core.Registry) *Handler {
	return &Handler{
		reg: reg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds websocket routes on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket upgrades one request and serves the session until
// disconnect. The session goroutine is the request goroutine.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	client, err := h.reg.Admit(newStreamConn(conn))
	if err != nil {
		return nil // Admit already sent the capacity frame and closed.
	}
	client.Run()
	return nil
}

// streamConn adapts a websocket connection to core.Conn. Reads concatenate
// binary message payloads into one continuous stream; each write becomes
// one binary message. core's per-session Writer already serializes writes,
// which satisfies gorilla's single-writer requirement.
type streamConn struct {
	ws  *websocket.Conn
	cur io.Reader // remainder of the current binary message
}

func newStreamConn(ws *websocket.Conn) *streamConn {
	return &streamConn{ws: ws}
}

func (s *streamConn) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			mt, r, err := s.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			s.cur = r
		}
		n, err := s.cur.Read(p)
		if err == io.EOF {
			s.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *streamConn) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *streamConn) Close() error {
	return s.ws.Close()
}

func (s *streamConn) SetReadDeadline(t time.Time) error {
	return s.ws.SetReadDeadline(t)
}

func (s *streamConn) RemoteAddr() net.Addr {
	return s.ws.RemoteAddr()
}
