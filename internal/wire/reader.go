package wire

import (
	"bufio"
	"io"
)

// Reader yields protocol frames from a single connection. It buffers the
// inbound byte stream and is safe for use by exactly one goroutine (the
// session that owns the connection).
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

// ReadByte returns the next byte from the stream.
func (r *Reader) ReadByte() (byte, error) {
	return r.br.ReadByte()
}

// ReadN returns exactly n bytes from the stream. n == 0 yields an empty
// slice without touching the connection.
func (r *Reader) ReadN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadCString returns the bytes up to, and not including, the next NUL.
// The reader imposes no length cap; callers enforce semantic limits.
func (r *Reader) ReadCString() ([]byte, error) {
	buf, err := r.br.ReadBytes(0)
	if err != nil {
		return nil, err
	}
	return buf[:len(buf)-1], nil
}

// ReadUint24 reads a 3-byte big-endian length field.
func (r *Reader) ReadUint24() (int, error) {
	buf, err := r.ReadN(3)
	if err != nil {
		return 0, err
	}
	return Uint24(buf), nil
}

// Discard skips n bytes from the stream.
func (r *Reader) Discard(n int) error {
	_, err := r.br.Discard(n)
	return err
}
