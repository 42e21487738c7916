package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"dustmp/server/internal/wire"
)

// Conn is the transport a session runs on. *net.TCPConn satisfies it
// directly; the websocket bridge adapts its message stream to the same
// shape.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// mirror is the per-session derived state replayed to room joiners.
type mirror struct {
	brush   int // shape steps from 0, advanced mod-cycle by op 35
	size    [2]byte
	sel     [4][2]byte
	replace byte
	deco    [4]byte
	isChat  bool
}

func newMirror() mirror {
	return mirror{
		size:    [2]byte{4, 4},
		sel:     [4][2]byte{{0, 1}, {64, 0}, {128, 0}, {192, 0}},
		replace: '0',
	}
}

// Client is one connected session. The read loop runs on its own goroutine;
// peers reach it only through writes to its Writer.
type Client struct {
	reg  *Registry
	conn Conn
	r    *wire.Reader
	w    *wire.Writer

	id   int
	nick string // set once during handshake

	room *Room // guarded by reg.mu

	mu    sync.Mutex // guards state
	state mirror

	closeOnce sync.Once
}

func newClient(reg *Registry, conn Conn, id int) *Client {
	return &Client{
		reg:   reg,
		conn:  conn,
		r:     wire.NewReader(conn),
		w:     wire.NewWriter(conn),
		id:    id,
		state: newMirror(),
	}
}

// ID returns the client's byte-sized addressing tag.
func (c *Client) ID() int { return c.id }

// Nick returns the nickname claimed at handshake; empty until identified.
func (c *Client) Nick() string { return c.nick }

// RemoteAddr returns the peer address of the underlying transport.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Room returns the room the client currently inhabits, or nil before the
// lobby join and after disconnect.
func (c *Client) Room() *Room {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	return c.room
}

func (c *Client) snapshot() mirror {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run drives the session to completion: handshake, lobby join, then the
// opcode dispatch loop. It returns when the session has disconnected.
func (c *Client) Run() {
	reason, ok := c.handshake()
	if !ok {
		c.Disconnect(reason)
		return
	}
	if h := c.reg.Hooks.Connect; h != nil && !h(c) {
		c.Disconnect("Refused")
		return
	}
	c.reg.JoinRoom(c, LobbyName)
	if motd := c.reg.Motd(); motd != "" {
		c.ServerMessage(motd)
	}
	c.Disconnect(c.loop())
}

// handshake reads the identify record and validates it. On failure it sends
// the error frame itself and returns (reason, false); transport errors
// return false without a frame.
func (c *Client) handshake() (string, bool) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.reg.cfg.IdleTimeout))
	rec, err := c.r.ReadCString()
	if err != nil {
		return readFailure(err), false
	}
	if len(rec) < 3 {
		return c.refuse("Bad handshake")
	}

	ver := Version{Major: rec[0], Minor: rec[1]}
	cfg := c.reg.cfg
	if ver.Compare(cfg.MinVersion) < 0 {
		return c.refuse(fmt.Sprintf("Client out of date (expected at least %s)", cfg.MinVersion))
	}
	if ver.Compare(cfg.MaxVersion) > 0 {
		return c.refuse(fmt.Sprintf("Client too new (expected at most %s)", cfg.MaxVersion))
	}
	if rec[2] != cfg.ScriptVersion {
		return c.refuse(fmt.Sprintf("Script version mismatch (expected %d)", cfg.ScriptVersion))
	}

	nick := rec[3:]
	if !validNameBytes(nick) {
		return c.refuse("Bad nickname")
	}
	if len(nick) > MaxNameLength {
		return c.refuse("Nick too long")
	}
	if err := c.reg.claimNick(c, string(nick)); err != nil {
		return c.refuse("This nick is already on the server")
	}

	if err := c.w.Write([]byte{wire.OpIdentifyOK}); err != nil {
		return readFailure(err), false
	}
	slog.Info("client identified", "id", c.id, "nick", c.nick, "version", ver, "addr", c.conn.RemoteAddr())
	c.reg.emitIdentified(c)
	return "", true
}

// refuse sends an error frame and reports the reason for the disconnect
// event. The connection itself is closed by Disconnect.
func (c *Client) refuse(reason string) (string, bool) {
	_ = c.w.Write(wire.ErrorFrame(reason))
	return reason, false
}

// readFailure maps a transport error to a disconnect reason.
func readFailure(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "Ping timeout"
	}
	return "Connection lost"
}

// Disconnect tears the session down. It is idempotent: the first caller
// emits the event, releases the id and nickname, closes the transport, and
// parts the current room; later calls are no-ops.
func (c *Client) Disconnect(reason string) {
	c.closeOnce.Do(func() {
		slog.Info("client disconnected", "id", c.id, "nick", c.nick, "reason", reason)
		c.reg.emitDisconnect(c, reason)
		c.reg.release(c)
		_ = c.conn.Close()
		c.reg.PartRoom(c)
	})
}

// send writes one frame, logging rather than propagating failures: a dead
// peer is detected by its own read loop, never by a broadcaster.
func (c *Client) send(frame []byte) {
	if err := c.w.Write(frame); err != nil {
		slog.Debug("frame dropped", "id", c.id, "err", err)
	}
}

// ServerMessage sends status text in the default cyan.
func (c *Client) ServerMessage(text string) {
	c.send(wire.ServerMessage(text, 127, 255, 255))
}

// ServerMessageColor sends status text in an explicit color.
func (c *Client) ServerMessageColor(text string, r, g, b byte) {
	c.send(wire.ServerMessage(text, r, g, b))
}

// Kick notifies the client it was removed by source and disconnects it.
func (c *Client) Kick(source *Client, reason string) {
	if reason == "" {
		reason = DefaultKickReason
	}
	c.ServerMessageColor(fmt.Sprintf("You were kicked by %s (%s)", source.nick, reason), 255, 50, 50)
	c.reg.emitKicked(c, source, reason)
	c.Disconnect(fmt.Sprintf("Kicked by %s (%s)", source.nick, reason))
}
