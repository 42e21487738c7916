package wire

import (
	"io"
	"sync"
)

// Writer serializes outbound frames on a connection. Broadcasts from peer
// sessions and the owning session's own replies go through the same Writer,
// so each frame is written under a mutex to keep frames from interleaving.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends one complete frame.
func (w *Writer) Write(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.w.Write(frame)
	return err
}
