package core

import (
	"log/slog"

	"dustmp/server/internal/wire"
)

// Room is a named, dynamically created group of sessions. Membership is
// ordered (join order) and coordinated by the registry lock, which is what
// guarantees a joiner sees the full replay before any later broadcast.
type Room struct {
	reg     *Registry
	name    string
	members []*Client // guarded by reg.mu
	op      int       // operator id, guarded by reg.mu
}

// Name returns the room name.
func (r *Room) Name() string { return r.name }

// Operator returns the id of the member with kick authority.
func (r *Room) Operator() int {
	r.reg.mu.RLock()
	defer r.reg.mu.RUnlock()
	return r.op
}

// Members returns a snapshot of the current member sessions in join order.
func (r *Room) Members() []*Client {
	r.reg.mu.RLock()
	defer r.reg.mu.RUnlock()
	out := make([]*Client, len(r.members))
	copy(out, r.members)
	return out
}

// MemberByNick returns the first member with the given nickname, or nil.
func (r *Room) MemberByNick(nick string) *Client {
	r.reg.mu.RLock()
	defer r.reg.mu.RUnlock()
	for _, m := range r.members {
		if m.nick == nick {
			return m
		}
	}
	return nil
}

// Send fans buf out to every member except the originator. Membership is
// snapshotted under the lock; the writes happen outside it so one slow peer
// only stalls its own connection.
func (r *Room) Send(buf []byte, except *Client) {
	r.reg.mu.RLock()
	targets := make([]*Client, 0, len(r.members))
	for _, m := range r.members {
		if m != except {
			targets = append(targets, m)
		}
	}
	r.reg.mu.RUnlock()

	for _, m := range targets {
		m.send(buf)
	}
}

// join admits c, streaming the replay protocol first so the joiner can
// reconstruct every existing member. Caller holds reg.mu.
func (r *Room) join(c *Client) {
	for _, m := range r.members {
		if m == c {
			return
		}
	}
	if len(r.members) == 0 {
		r.op = c.id
	}

	// Roster: member count, then one id+nick record per existing member.
	roster := []byte{wire.OpJoin, byte(len(r.members))}
	c.send(roster)
	for _, m := range r.members {
		rec := make([]byte, 0, len(m.nick)+2)
		rec = append(rec, byte(m.id))
		rec = append(rec, m.nick...)
		c.send(append(rec, 0))
	}

	// State replay, same member order. The joiner's shape counter for each
	// peer starts at 0, so the current shape is re-derived by repeating the
	// shape-change frame.
	for _, m := range r.members {
		st := m.snapshot()
		mid := byte(m.id)
		for i := 0; i < st.brush; i++ {
			c.send([]byte{wire.OpBrushShape, mid})
		}
		c.send([]byte{wire.OpBrushSize, mid, st.size[0], st.size[1]})
		for _, sel := range st.sel {
			c.send([]byte{wire.OpSelectElement, mid, sel[0], sel[1]})
		}
		c.send([]byte{wire.OpReplaceMode, mid, st.replace})
		c.send([]byte{wire.OpDecoColor, mid, st.deco[0], st.deco[1], st.deco[2], st.deco[3]})
	}

	// Announce the joiner to everyone already present, before it becomes a
	// member: existing members hear it exactly once, and the joiner never
	// sees itself in the roster.
	notice := make([]byte, 0, len(c.nick)+3)
	notice = append(notice, wire.OpMemberAdd, byte(c.id))
	notice = append(notice, c.nick...)
	notice = append(notice, 0)
	for _, m := range r.members {
		m.send(notice)
	}

	// Ask one non-chat peer to ship the joiner a simulation bootstrap.
	for _, m := range r.members {
		if !m.snapshot().isChat {
			m.send([]byte{wire.OpSyncRequest, byte(c.id)})
			break
		}
	}

	r.members = append(r.members, c)
	c.room = r
	slog.Debug("room join", "room", r.name, "id", c.id, "nick", c.nick, "members", len(r.members))
}

// part removes c, re-electing the operator if it left. Caller holds reg.mu.
func (r *Room) part(c *Client) {
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	c.room = nil
	if r.op == c.id && len(r.members) > 0 {
		r.op = r.members[0].id
	}

	notice := []byte{wire.OpMemberRemove, byte(c.id)}
	for _, m := range r.members {
		m.send(notice)
	}
	slog.Debug("room part", "room", r.name, "id", c.id, "members", len(r.members))
}
