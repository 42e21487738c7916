package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"dustmp/server/internal/core"
	"dustmp/server/internal/httpapi"
	"dustmp/server/store"
)

// Version is injected at build time with -ldflags.
var Version = "0.1.0-dev"

func main() {
	addr := flag.String("addr", ":34403", "Relay listen address")
	apiAddr := flag.String("api-addr", ":34404", "HTTP API listen address")
	dbPath := flag.String("db", "dustmp.db", "SQLite database path")
	serverName := flag.String("name", "dustmp server", "Server display name")
	minVersion := flag.String("min-version", "", "Lowest accepted client version (major.minor)")
	maxVersion := flag.String("max-version", "", "Highest accepted client version (major.minor)")
	script := flag.Int("script", int(core.DefaultConfig().ScriptVersion), "Required client script version")
	debug := flag.Bool("debug", false, "Enable debug logging (auto-enabled for dev builds)")
	testbot := flag.Bool("testbot", false, "Run an in-process soak-test client")
	flag.Parse()

	// Auto-enable debug logging for dev builds; override with -debug flag.
	level := slog.LevelInfo
	if *debug || strings.Contains(Version, "dev") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if RunCLI(flag.Args(), *dbPath) {
		return
	}

	cfg := core.DefaultConfig()
	cfg.ScriptVersion = byte(*script)
	if *minVersion != "" {
		v, err := core.ParseVersion(*minVersion)
		if err != nil {
			slog.Error("bad -min-version", "err", err)
			os.Exit(1)
		}
		cfg.MinVersion = v
	}
	if *maxVersion != "" {
		v, err := core.ParseVersion(*maxVersion)
		if err != nil {
			slog.Error("bad -max-version", "err", err)
			os.Exit(1)
		}
		cfg.MaxVersion = v
	}

	slog.Info("starting server", "version", Version, "addr", *addr, "db", *dbPath)

	st, err := store.New(*dbPath)
	if err != nil {
		slog.Error("open sqlite store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("close sqlite store", "err", closeErr)
		}
	}()

	// A stored name wins over the flag so renames survive restarts.
	name := *serverName
	if v, ok, err := st.GetSetting("server_name"); err == nil && ok {
		name = v
	}
	motd, _, _ := st.GetSetting("motd")

	reg := core.NewRegistry(cfg)
	reg.SetServerName(name)
	reg.SetMotd(motd)
	reg.Events = loggingEvents()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := core.NewServer(reg)
	if err := relay.Listen(*addr); err != nil {
		slog.Error("relay listen", "err", err)
		os.Exit(1)
	}

	api := httpapi.New(reg, st)
	go func() {
		if err := api.Run(ctx, *apiAddr); err != nil {
			slog.Error("api server", "err", err)
			cancel()
		}
	}()

	go RunMetrics(ctx, reg, time.Minute)

	if *testbot {
		go RunTestBot(ctx, relay.Addr().String(), cfg, "testbot")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	select {
	case <-sigCh:
		slog.Info("received interrupt, shutting down")
	case <-ctx.Done():
	}
	cancel()
	relay.Close()
	slog.Info("server stopped")
}

// loggingEvents wires the lifecycle events to structured logs. Hosts that
// embed the registry replace these with their own observers.
func loggingEvents() core.Events {
	return core.Events{
		Identified: func(c *core.Client) {
			slog.Info("identified", "id", c.ID(), "nick", c.Nick())
		},
		Join: func(c *core.Client, r *core.Room) {
			slog.Info("join", "id", c.ID(), "nick", c.Nick(), "room", r.Name())
		},
		Part: func(c *core.Client, r *core.Room) {
			slog.Info("part", "id", c.ID(), "nick", c.Nick(), "room", r.Name())
		},
		Kicked: func(c, source *core.Client, reason string) {
			slog.Info("kicked", "nick", c.Nick(), "by", source.Nick(), "reason", reason)
		},
		Chat: func(c *core.Client, text string) {
			slog.Debug("chat", "nick", c.Nick(), "len", len(text))
		},
		RoomCreate: func(r *core.Room) {
			slog.Info("room created", "room", r.Name())
		},
		RoomDelete: func(r *core.Room) {
			slog.Info("room deleted", "room", r.Name())
		},
	}
}
