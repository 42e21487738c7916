package core

import (
	"strings"
	"testing"
)

func TestHandshakeAcceptsClientInWindow(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(1, 2, 0, "alice")
	c.expect(1)
	c.expect(16, 0) // empty lobby roster

	if got := reg.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}
	cl := reg.ClientByNick("alice")
	if cl == nil || cl.ID() != 0 {
		t.Fatalf("ClientByNick(alice) = %#v, want id 0", cl)
	}
	r := reg.RoomByName(LobbyName)
	if r == nil {
		t.Fatalf("lobby missing after identify")
	}
	if got := r.Operator(); got != 0 {
		t.Fatalf("lobby operator = %d, want 0", got)
	}
}

func TestHandshakeRejectsOldClient(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(1, 1, 0, "bob")
	c.expect(frame([]byte{0}, cstring("Client out of date (expected at least 1.2)"))...)
	c.expectClosed()
}

func TestHandshakeRejectsNewClient(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(2, 0, 0, "bob")
	c.expect(frame([]byte{0}, cstring("Client too new (expected at most 1.9)"))...)
	c.expectClosed()
}

func TestHandshakeRejectsScriptMismatch(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.ScriptVersion = 5
	reg := NewRegistry(cfg)
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(1, 2, 0, "bob")
	c.expect(frame([]byte{0}, cstring("Script version mismatch (expected 5)"))...)
	c.expectClosed()
}

func TestHandshakeRejectsShortRecord(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.send(1, 2, 0) // terminated before the script byte
	c.expect(frame([]byte{0}, cstring("Bad handshake"))...)
	c.expectClosed()
}

func TestHandshakeRejectsBadNickname(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	for _, nick := range []string{"", "has space", "quoted\"", "semi;colon"} {
		c := dialRelay(t, addr)
		c.handshake(1, 2, 0, nick)
		c.expect(frame([]byte{0}, cstring("Bad nickname"))...)
		c.expectClosed()
	}
}

func TestHandshakeNicknameLengthBoundary(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	ok := dialRelay(t, addr)
	ok.identify(strings.Repeat("a", MaxNameLength))

	long := dialRelay(t, addr)
	long.handshake(1, 2, 0, strings.Repeat("b", MaxNameLength+1))
	long.expect(frame([]byte{0}, cstring("Nick too long"))...)
	long.expectClosed()
}

func TestHandshakeRejectsDuplicateNick(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	first := dialRelay(t, addr)
	first.identify("alice")
	first.joinEmptyRoom("aside")

	dup := dialRelay(t, addr)
	dup.handshake(1, 2, 0, "alice")
	dup.expect(frame([]byte{0}, cstring("This nick is already on the server"))...)
	dup.expectClosed()

	if got := reg.ClientCount(); got != 1 {
		t.Fatalf("client count = %d, want 1", got)
	}
}

func TestHandshakeNickFreedAfterDisconnect(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	addr := startServer(t, reg)

	gone := make(chan struct{}, 4)
	reg.Events.Disconnect = func(c *Client, reason string) { gone <- struct{}{} }

	first := dialRelay(t, addr)
	first.identify("alice")
	_ = first.conn.Close()
	<-gone

	again := dialRelay(t, addr)
	again.identify("alice")
}

func TestConnectHookRefusal(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	reg.Hooks.Connect = func(c *Client) bool { return false }

	reasons := make(chan string, 1)
	reg.Events.Disconnect = func(c *Client, reason string) { reasons <- reason }
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(1, 2, 0, "alice")
	c.expect(1) // identify succeeds before the hook runs
	c.expectClosed()

	if got := <-reasons; got != "Refused" {
		t.Fatalf("disconnect reason = %q, want Refused", got)
	}
	if got := reg.ClientCount(); got != 0 {
		t.Fatalf("client count = %d, want 0", got)
	}
}
