package core

import (
	"testing"
)

func TestServerDeliversMotdAfterIdentify(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	reg.SetMotd("welcome to the sandbox")
	addr := startServer(t, reg)

	c := dialRelay(t, addr)
	c.handshake(1, 2, 0, "alice")
	c.expect(1)
	c.expect(16, 0)
	c.expect(frame([]byte{22}, cstring("welcome to the sandbox"), []byte{127, 255, 255})...)
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(testConfig())
	reasons := make(chan string, 1)
	reg.Events.Disconnect = func(c *Client, reason string) { reasons <- reason }

	srv := NewServer(reg)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	c := dialRelay(t, srv.Addr().String())
	c.identify("alice")

	srv.Close()
	if got := <-reasons; got != "Server shutting down" {
		t.Fatalf("disconnect reason = %q, want Server shutting down", got)
	}
	c.expectClosed()
	if got := reg.ClientCount(); got != 0 {
		t.Fatalf("client count = %d, want 0", got)
	}
}
