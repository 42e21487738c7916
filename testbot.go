package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"time"

	"dustmp/server/internal/core"
	"dustmp/server/internal/wire"
)

// RunTestBot connects a virtual client to a live server for soak testing.
// It performs the real handshake, joins a room, and keeps the session busy
// with pings and mouse traffic until ctx is canceled.
func RunTestBot(ctx context.Context, addr string, cfg core.Config, nick string) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		slog.Error("testbot dial", "err", err)
		return
	}
	defer conn.Close()

	hello := []byte{cfg.MinVersion.Major, cfg.MinVersion.Minor, cfg.ScriptVersion}
	hello = append(hello, nick...)
	hello = append(hello, 0)
	if _, err := conn.Write(hello); err != nil {
		slog.Error("testbot handshake write", "err", err)
		return
	}

	ok := make([]byte, 1)
	if _, err := io.ReadFull(conn, ok); err != nil || ok[0] != wire.OpIdentifyOK {
		slog.Error("testbot rejected", "err", err)
		return
	}
	slog.Info("testbot connected", "addr", addr, "nick", nick)

	// Drain everything the room relays at us.
	go func() {
		_, _ = io.Copy(io.Discard, conn)
	}()

	join := append([]byte{wire.OpJoin}, "bots"...)
	if _, err := conn.Write(append(join, 0)); err != nil {
		return
	}

	pings := time.NewTicker(30 * time.Second)
	defer pings.Stop()
	moves := time.NewTicker(250 * time.Millisecond)
	defer moves.Stop()

	var x byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-pings.C:
			if _, err := conn.Write([]byte{wire.OpPing}); err != nil {
				slog.Info("testbot disconnected", "err", err)
				return
			}
		case <-moves.C:
			x++
			if _, err := conn.Write([]byte{wire.OpMousePos, x, x, 0}); err != nil {
				slog.Info("testbot disconnected", "err", err)
				return
			}
		}
	}
}
