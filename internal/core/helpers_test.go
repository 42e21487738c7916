package core

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

// testConfig matches the windows used throughout the protocol tests:
// versions 1.2 through 1.9, script 0.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinVersion = Version{1, 2}
	cfg.MaxVersion = Version{1, 9}
	cfg.ScriptVersion = 0
	cfg.IdleTimeout = 5 * time.Second
	return cfg
}

// startServer boots a relay on a loopback port and tears it down with the
// test.
func startServer(t *testing.T, reg *Registry) string {
	t.Helper()
	srv := NewServer(reg)
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv.Addr().String()
}

// testClient drives one raw protocol connection.
type testClient struct {
	t    *testing.T
	conn net.Conn
}

func dialRelay(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(b ...byte) {
	c.t.Helper()
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) sendString(b []byte) {
	c.t.Helper()
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

// handshake sends the identify record without reading the response.
func (c *testClient) handshake(major, minor, script byte, nick string) {
	c.t.Helper()
	rec := []byte{major, minor, script}
	rec = append(rec, nick...)
	c.sendString(append(rec, 0))
}

// expect reads exactly len(want) bytes and compares them.
func (c *testClient) expect(want ...byte) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got := make([]byte, len(want))
	if _, err := io.ReadFull(c.conn, got); err != nil {
		t := c.t
		t.Fatalf("read %d bytes: %v (want %#v)", len(want), err, want)
	}
	if !bytes.Equal(got, want) {
		c.t.Fatalf("frame mismatch:\n got  %#v\n want %#v", got, want)
	}
}

// expectClosed asserts the server closed the connection with no more data.
func (c *testClient) expectClosed() {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	n, err := c.conn.Read(buf)
	if err == nil || n > 0 {
		c.t.Fatalf("expected close, read %d bytes (err=%v)", n, err)
	}
}

// expectNoData asserts nothing arrives within the window.
func (c *testClient) expectNoData(window time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(window))
	buf := make([]byte, 1)
	n, err := c.conn.Read(buf)
	if err == nil || n > 0 {
		c.t.Fatalf("expected silence, read %#v (err=%v)", buf[:n], err)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		c.t.Fatalf("expected read timeout, got %v", err)
	}
}

// identify performs a successful handshake and consumes the empty-lobby
// replay. Callers must keep the lobby empty (move earlier clients to other
// rooms first).
func (c *testClient) identify(nick string) {
	c.t.Helper()
	c.handshake(1, 2, 0, nick)
	c.expect(1)
	c.expect(16, 0)
}

// joinRoom issues op 16 for name and consumes the replay header for an
// empty target room.
func (c *testClient) joinEmptyRoom(name string) {
	c.t.Helper()
	rec := append([]byte{16}, name...)
	c.sendString(append(rec, 0))
	c.expect(16, 0)
}

// waitFor polls cond until it holds or the deadline passes. Used to wait out
// the gap between a client writing a frame and its session goroutine applying
// it.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

// cstring builds a NUL-terminated byte string.
func cstring(s string) []byte {
	return append([]byte(s), 0)
}

// frame concatenates byte groups into one expected frame.
func frame(groups ...[]byte) []byte {
	var out []byte
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// defaultStateReplay returns the mirror replay for a member with untouched
// state: no shape frames, size (4,4), stock selections, replace '0', zero
// deco.
func defaultStateReplay(id byte) []byte {
	return frame(
		[]byte{34, id, 4, 4},
		[]byte{37, id, 0, 1},
		[]byte{37, id, 64, 0},
		[]byte{37, id, 128, 0},
		[]byte{37, id, 192, 0},
		[]byte{38, id, '0'},
		[]byte{65, id, 0, 0, 0, 0},
	)
}
