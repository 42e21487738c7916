package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"dustmp/server/internal/wire"
)

var (
	// ErrServerFull is returned by Admit when the client table is at cap.
	ErrServerFull = errors.New("server is full")
	// ErrNickTaken is returned when a nickname is held by a live session.
	ErrNickTaken = errors.New("nickname already taken")
)

// Registry owns the global client and room tables. All lifecycle
// transitions (admit, identify, join, part, disconnect) are serialized
// under its lock so the table invariants hold at every observation point.
type Registry struct {
	cfg       Config
	syncProps map[byte]bool

	// Hooks and Events are set by the host before the accept loop starts.
	Hooks  Hooks
	Events Events

	mu      sync.RWMutex
	clients [MaxClients]*Client // index == client id
	count   int
	nicks   map[string]*Client
	rooms   map[string]*Room

	serverName string
	motd       string

	relayFrames atomic.Uint64
	relayBytes  atomic.Uint64
}

// NewRegistry builds an empty registry enforcing cfg. Zero-valued config
// fields fall back to DefaultConfig.
func NewRegistry(cfg Config) *Registry {
	cfg = cfg.withDefaults()
	props := make(map[byte]bool, len(cfg.SyncPropOps))
	for _, op := range cfg.SyncPropOps {
		props[op] = true
	}
	return &Registry{
		cfg:       cfg,
		syncProps: props,
		nicks:     make(map[string]*Client),
		rooms:     make(map[string]*Room),
	}
}

// Config returns the protocol constants the registry enforces.
func (reg *Registry) Config() Config { return reg.cfg }

func (reg *Registry) syncPropAllowed(op byte) bool { return reg.syncProps[op] }

// ServerName returns the display name shown on the status API.
func (reg *Registry) ServerName() string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.serverName
}

// SetServerName updates the display name live.
func (reg *Registry) SetServerName(name string) {
	reg.mu.Lock()
	reg.serverName = name
	reg.mu.Unlock()
}

// Motd returns the message shown to clients right after they identify.
func (reg *Registry) Motd() string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.motd
}

// SetMotd updates the greeting live. Empty disables it.
func (reg *Registry) SetMotd(motd string) {
	reg.mu.Lock()
	reg.motd = motd
	reg.mu.Unlock()
}

// Admit accepts a transport into the registry: it allocates the lowest free
// id and creates the session. At cap it writes the capacity error frame,
// closes the transport, and returns ErrServerFull.
func (reg *Registry) Admit(conn Conn) (*Client, error) {
	reg.mu.Lock()
	if reg.count >= MaxClients {
		n := reg.count
		reg.mu.Unlock()
		w := wire.NewWriter(conn)
		_ = w.Write(wire.ErrorFrame(fmt.Sprintf("Server is full (%d/%d)", n, MaxClients)))
		_ = conn.Close()
		slog.Warn("connection rejected at cap", "addr", conn.RemoteAddr())
		return nil, ErrServerFull
	}
	id := -1
	for i := range reg.clients {
		if reg.clients[i] == nil {
			id = i
			break
		}
	}
	c := newClient(reg, conn, id)
	reg.clients[id] = c
	reg.count++
	reg.mu.Unlock()

	slog.Debug("client admitted", "id", id, "addr", conn.RemoteAddr())
	reg.emitNewClient(c)
	return c, nil
}

// claimNick registers a nickname for c, failing while another live session
// holds it.
func (reg *Registry) claimNick(c *Client, nick string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if holder, ok := reg.nicks[nick]; ok && holder != c {
		return ErrNickTaken
	}
	reg.nicks[nick] = c
	c.nick = nick
	return nil
}

// release frees c's id slot and nickname. Idempotent; called only from
// Disconnect.
func (reg *Registry) release(c *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.clients[c.id] == c {
		reg.clients[c.id] = nil
		reg.count--
	}
	if c.nick != "" && reg.nicks[c.nick] == c {
		delete(reg.nicks, c.nick)
	}
}

// ClientByID returns the live session with the given id, or nil.
func (reg *Registry) ClientByID(id int) *Client {
	if id < 0 || id >= MaxClients {
		return nil
	}
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.clients[id]
}

// ClientByNick returns the live session holding nick, or nil.
func (reg *Registry) ClientByNick(nick string) *Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.nicks[nick]
}

// ClientCount returns the number of admitted sessions.
func (reg *Registry) ClientCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.count
}

// RoomCount returns the number of live rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// RoomByName returns the live room with the given name, or nil.
func (reg *Registry) RoomByName(name string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[name]
}

// JoinRoom moves c into the named room, creating it on first join and
// parting (and possibly deleting) the previous room. The replay to the
// joiner happens under the same critical section that inserts it into the
// member set, so no broadcast can slip in between.
func (reg *Registry) JoinRoom(c *Client, name string) {
	var (
		parted  *Room
		deleted *Room
		created *Room
	)

	reg.mu.Lock()
	if reg.clients[c.id] != c {
		// Already disconnected.
		reg.mu.Unlock()
		return
	}
	if old := c.room; old != nil {
		old.part(c)
		parted = old
		if len(old.members) == 0 {
			delete(reg.rooms, old.name)
			deleted = old
		}
	}
	r := reg.rooms[name]
	if r == nil {
		r = &Room{reg: reg, name: name}
		reg.rooms[name] = r
		created = r
	}
	r.join(c)
	reg.mu.Unlock()

	if parted != nil {
		reg.emitPart(c, parted)
	}
	if deleted != nil {
		reg.emitRoomDelete(deleted)
	}
	if created != nil {
		reg.emitRoomCreate(created)
	}
	reg.emitJoin(c, r)
}

// PartRoom removes c from its current room, deleting the room if it became
// empty. Used by the disconnect path; explicit room switches go through
// JoinRoom.
func (reg *Registry) PartRoom(c *Client) {
	var (
		parted  *Room
		deleted *Room
	)

	reg.mu.Lock()
	if old := c.room; old != nil {
		old.part(c)
		parted = old
		if len(old.members) == 0 {
			delete(reg.rooms, old.name)
			deleted = old
		}
	}
	reg.mu.Unlock()

	if parted != nil {
		reg.emitPart(c, parted)
	}
	if deleted != nil {
		reg.emitRoomDelete(deleted)
	}
}

// DisconnectAll tears down every live session with the given reason.
func (reg *Registry) DisconnectAll(reason string) {
	reg.mu.RLock()
	live := make([]*Client, 0, reg.count)
	for _, c := range reg.clients {
		if c != nil {
			live = append(live, c)
		}
	}
	reg.mu.RUnlock()

	for _, c := range live {
		c.Disconnect(reason)
	}
}

func (reg *Registry) countRelay(n int) {
	reg.relayFrames.Add(1)
	reg.relayBytes.Add(uint64(n))
}

// Stats returns relayed frame/byte counts since the last call (counters
// reset) plus current client and room gauges.
func (reg *Registry) Stats() (frames, bytes uint64, clients, rooms int) {
	frames = reg.relayFrames.Swap(0)
	bytes = reg.relayBytes.Swap(0)
	clients = reg.ClientCount()
	rooms = reg.RoomCount()
	return
}

// ClientInfo is a point-in-time view of one session for the status API.
type ClientInfo struct {
	ID   int    `json:"id"`
	Nick string `json:"nick"`
	Room string `json:"room,omitempty"`
}

// RoomInfo is a point-in-time view of one room for the status API.
type RoomInfo struct {
	Name     string   `json:"name"`
	Operator int      `json:"operator"`
	Members  []string `json:"members"`
}

// Snapshot returns consistent views of the client and room tables.
func (reg *Registry) Snapshot() ([]ClientInfo, []RoomInfo) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	clients := make([]ClientInfo, 0, reg.count)
	for _, c := range reg.clients {
		if c == nil {
			continue
		}
		info := ClientInfo{ID: c.id, Nick: c.nick}
		if c.room != nil {
			info.Room = c.room.name
		}
		clients = append(clients, info)
	}

	rooms := make([]RoomInfo, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		info := RoomInfo{Name: r.name, Operator: r.op, Members: make([]string, 0, len(r.members))}
		for _, m := range r.members {
			info.Members = append(info.Members, m.nick)
		}
		rooms = append(rooms, info)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Name < rooms[j].Name })
	return clients, rooms
}
