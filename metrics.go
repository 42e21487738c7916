package main

import (
	"context"
	"log/slog"
	"time"

	"dustmp/server/internal/core"
)

// RunMetrics logs relay stats every interval until ctx is canceled.
func RunMetrics(ctx context.Context, reg *core.Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frames, bytes, clients, rooms := reg.Stats()
			if clients > 0 || frames > 0 {
				slog.Info("relay stats",
					"clients", clients,
					"rooms", rooms,
					"frames", frames,
					"bytes", bytes,
					"kbps", float64(bytes)/interval.Seconds()/1024)
			}
		}
	}
}
