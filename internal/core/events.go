package core

// Events are lifecycle observers for the host process. All callbacks are
// optional; nil fields are skipped. Callbacks run outside the registry lock
// and may call back into the registry, but must not block for long — they
// run on session goroutines.
type Events struct {
	NewClient  func(c *Client)
	Identified func(c *Client)
	Join       func(c *Client, r *Room)
	Part       func(c *Client, r *Room)
	Disconnect func(c *Client, reason string)
	Kicked     func(c, source *Client, reason string)
	Chat       func(c *Client, text string)
	RoomCreate func(r *Room)
	RoomDelete func(r *Room)
}

// Hooks are veto predicates for the host process. A nil hook allows the
// action; returning false aborts it.
type Hooks struct {
	// Connect runs after a successful handshake, before the lobby join.
	// Refusal terminates the session without an error frame.
	Connect func(c *Client) bool
	// Join runs before a room change requested via op 16.
	Join func(c *Client, roomName string) bool
	// Message runs before a chat or emote relay.
	Message func(c *Client, text string) bool
}

func (reg *Registry) emitNewClient(c *Client) {
	if f := reg.Events.NewClient; f != nil {
		f(c)
	}
}

func (reg *Registry) emitIdentified(c *Client) {
	if f := reg.Events.Identified; f != nil {
		f(c)
	}
}

func (reg *Registry) emitJoin(c *Client, r *Room) {
	if f := reg.Events.Join; f != nil {
		f(c, r)
	}
}

func (reg *Registry) emitPart(c *Client, r *Room) {
	if f := reg.Events.Part; f != nil {
		f(c, r)
	}
}

func (reg *Registry) emitDisconnect(c *Client, reason string) {
	if f := reg.Events.Disconnect; f != nil {
		f(c, reason)
	}
}

func (reg *Registry) emitKicked(c, source *Client, reason string) {
	if f := reg.Events.Kicked; f != nil {
		f(c, source, reason)
	}
}

func (reg *Registry) emitChat(c *Client, text string) {
	if f := reg.Events.Chat; f != nil {
		f(c, text)
	}
}

func (reg *Registry) emitRoomCreate(r *Room) {
	if f := reg.Events.RoomCreate; f != nil {
		f(r)
	}
}

func (reg *Registry) emitRoomDelete(r *Room) {
	if f := reg.Events.RoomDelete; f != nil {
		f(r)
	}
}
