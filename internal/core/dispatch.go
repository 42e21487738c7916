package core

import (
	"log/slog"
	"time"

	"dustmp/server/internal/wire"
)

// relayLens maps opcodes whose payload is forwarded untouched to the number
// of payload bytes following the opcode. Opcodes with server-side effects
// (state mirroring, length prefixes, targeted forwards) are dispatched
// explicitly.
var relayLens = map[byte]int{
	wire.OpMousePos:       3,
	wire.OpMouseClick:     1,
	wire.OpModifier:       1,
	wire.OpCmodeDefault:   1,
	wire.OpPause:          1,
	wire.OpStepFrame:      0,
	wire.OpDecoMode:       1,
	wire.OpHUDMode:        1,
	wire.OpAmbientHeat:    1,
	wire.OpNewtonianGrav:  1,
	wire.OpDebug:          1,
	wire.OpLegacyHeat:     1,
	wire.OpWaterEq:        1,
	wire.OpGravityMode:    1,
	wire.OpAirMode:        1,
	wire.OpClearSparks:    0,
	wire.OpClearPressure:  0,
	wire.OpInvertPressure: 0,
	wire.OpClearSim:       0,
	wire.OpManualGraphics: 3,
	wire.OpClearArea:      6,
	wire.OpEdgeMode:       1,
	wire.OpLoadSaveID:     3,
	wire.OpReloadSave:     0,
}

// loop reads and dispatches opcodes until the session ends, returning the
// disconnect reason.
func (c *Client) loop() string {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.reg.cfg.IdleTimeout))
		op, err := c.r.ReadByte()
		if err != nil {
			return readFailure(err)
		}
		if reason, ok := c.dispatch(op); !ok {
			return reason
		}
	}
}

// dispatch handles one opcode. ok=false ends the session with the returned
// reason.
func (c *Client) dispatch(op byte) (string, bool) {
	switch op {
	case wire.OpPing:
		// Read activity alone resets the idle deadline.
		return "", true
	case wire.OpJoin:
		return c.handleJoin()
	case wire.OpChat, wire.OpEmote:
		return c.handleChat(op)
	case wire.OpKick:
		return c.handleKick()
	case wire.OpBrushSize:
		return c.handleBrushSize()
	case wire.OpBrushShape:
		return c.handleBrushShape()
	case wire.OpSelectElement:
		return c.handleSelectElement()
	case wire.OpReplaceMode:
		return c.handleReplaceMode()
	case wire.OpDecoColor:
		return c.handleDecoColor()
	case wire.OpStamp:
		return c.handleStamp()
	case wire.OpSyncRequest:
		return c.handleSyncStampReply()
	case wire.OpSyncProps:
		return c.handleSyncProps()
	default:
		n, known := relayLens[op]
		if !known {
			slog.Warn("unknown opcode", "id", c.id, "op", op)
			return "Protocol error", false
		}
		data, err := c.r.ReadN(n)
		if err != nil {
			return readFailure(err), false
		}
		c.relay(op, data)
		return "", true
	}
}

// relay rewrites a client frame as [op, origin id, payload...] and fans it
// out to the current room, excluding the origin.
func (c *Client) relay(op byte, payload ...[]byte) {
	size := 2
	for _, p := range payload {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, op, byte(c.id))
	for _, p := range payload {
		buf = append(buf, p...)
	}

	r := c.Room()
	if r == nil {
		return
	}
	r.Send(buf, c)
	c.reg.countRelay(len(buf))
}

func (c *Client) handleJoin() (string, bool) {
	name, err := c.r.ReadCString()
	if err != nil {
		return readFailure(err), false
	}
	if !validNameBytes(name) || len(name) > MaxNameLength {
		c.ServerMessage("Invalid room name")
		return "", true
	}
	if h := c.reg.Hooks.Join; h != nil && !h(c, string(name)) {
		return "", true
	}
	c.reg.JoinRoom(c, string(name))
	return "", true
}

func (c *Client) handleChat(op byte) (string, bool) {
	msg, err := c.r.ReadCString()
	if err != nil {
		return readFailure(err), false
	}
	if !printableText(msg) {
		c.ServerMessage("Message contains non-printable characters")
		return "", true
	}
	if len(msg) > MaxMessageLength {
		c.ServerMessage("Message too long")
		return "", true
	}
	if h := c.reg.Hooks.Message; h != nil && !h(c, string(msg)) {
		return "", true
	}
	c.reg.emitChat(c, string(msg))
	c.relay(op, msg, []byte{0})
	return "", true
}

func (c *Client) handleKick() (string, bool) {
	nick, err := c.r.ReadCString()
	if err != nil {
		return readFailure(err), false
	}
	reason, err := c.r.ReadCString()
	if err != nil {
		return readFailure(err), false
	}
	if !printableText(reason) || len(reason) > MaxMessageLength {
		c.ServerMessage("Bad kick reason")
		return "", true
	}

	r := c.Room()
	if r == nil {
		return "", true
	}
	if r.Name() == LobbyName || r.Operator() != c.id {
		c.ServerMessage("You can't kick people from here")
		return "", true
	}
	// First nickname match wins; at most one kick per request.
	if target := r.MemberByNick(string(nick)); target != nil {
		target.Kick(c, string(reason))
	}
	return "", true
}

func (c *Client) handleBrushSize() (string, bool) {
	data, err := c.r.ReadN(2)
	if err != nil {
		return readFailure(err), false
	}
	c.mu.Lock()
	c.state.size = [2]byte{data[0], data[1]}
	c.mu.Unlock()
	c.relay(wire.OpBrushSize, data)
	return "", true
}

func (c *Client) handleBrushShape() (string, bool) {
	c.mu.Lock()
	c.state.brush = (c.state.brush % 3) + 1
	c.mu.Unlock()
	c.relay(wire.OpBrushShape)
	return "", true
}

func (c *Client) handleSelectElement() (string, bool) {
	data, err := c.r.ReadN(2)
	if err != nil {
		return readFailure(err), false
	}
	a, b := data[0], data[1]
	if a == 194 && b == 195 {
		// Chat-window focus sentinel: remember it, never relay it.
		c.mu.Lock()
		c.state.isChat = true
		c.mu.Unlock()
		return "", true
	}
	c.mu.Lock()
	// Slot 0 holds the untouched initial selection; buttons land on 1..3.
	if idx := int(a)/64 + 1; idx < len(c.state.sel) {
		c.state.sel[idx] = [2]byte{a, b}
	}
	c.mu.Unlock()
	c.relay(wire.OpSelectElement, data)
	return "", true
}

func (c *Client) handleReplaceMode() (string, bool) {
	data, err := c.r.ReadN(1)
	if err != nil {
		return readFailure(err), false
	}
	c.mu.Lock()
	c.state.replace = data[0]
	c.mu.Unlock()
	c.relay(wire.OpReplaceMode, data)
	return "", true
}

func (c *Client) handleDecoColor() (string, bool) {
	data, err := c.r.ReadN(4)
	if err != nil {
		return readFailure(err), false
	}
	c.mu.Lock()
	copy(c.state.deco[:], data)
	c.mu.Unlock()
	c.relay(wire.OpDecoColor, data)
	return "", true
}

func (c *Client) handleStamp() (string, bool) {
	loc, err := c.r.ReadN(3)
	if err != nil {
		return readFailure(err), false
	}
	length, err := c.r.ReadN(3)
	if err != nil {
		return readFailure(err), false
	}
	n := wire.Uint24(length)
	if n > c.reg.cfg.MaxStampBytes {
		if err := c.r.Discard(n); err != nil {
			return readFailure(err), false
		}
		c.ServerMessage("Stamp too large")
		return "", true
	}
	payload, err := c.r.ReadN(n)
	if err != nil {
		return readFailure(err), false
	}
	c.relay(wire.OpStamp, loc, length, payload)
	return "", true
}

// handleSyncStampReply forwards a bootstrap stamp to the joiner named in the
// header. The peer was asked for it via [128, joiner] during room join.
func (c *Client) handleSyncStampReply() (string, bool) {
	hdr, err := c.r.ReadN(4)
	if err != nil {
		return readFailure(err), false
	}
	n := wire.Uint24(hdr[1:4])
	if n > c.reg.cfg.MaxStampBytes {
		if err := c.r.Discard(n); err != nil {
			return readFailure(err), false
		}
		return "", true
	}
	payload, err := c.r.ReadN(n)
	if err != nil {
		return readFailure(err), false
	}
	target := c.reg.ClientByID(int(hdr[0]))
	if target == nil {
		// The joiner left before the stamp arrived.
		return "", true
	}
	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, wire.OpSyncStamp, hdr[1], hdr[2], hdr[3])
	buf = append(buf, payload...)
	target.send(buf)
	return "", true
}

// handleSyncProps forwards one whitelisted property snapshot to the joiner.
func (c *Client) handleSyncProps() (string, bool) {
	data, err := c.r.ReadN(3)
	if err != nil {
		return readFailure(err), false
	}
	command := data[1]
	if !c.reg.syncPropAllowed(command) {
		return "", true
	}
	target := c.reg.ClientByID(int(data[0]))
	if target == nil {
		return "", true
	}
	target.send([]byte{command, byte(c.id), data[2]})
	return "", true
}
