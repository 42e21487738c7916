package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Version is the (major, minor) pair a client reports at handshake.
type Version struct {
	Major byte
	Minor byte
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare orders versions lexicographically, major first.
func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return int(v.Major) - int(o.Major)
	}
	return int(v.Minor) - int(o.Minor)
}

// ParseVersion parses "major.minor" into a Version.
func ParseVersion(s string) (Version, error) {
	maj, min, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("version %q: want major.minor", s)
	}
	mj, err := strconv.ParseUint(maj, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", s, err)
	}
	mn, err := strconv.ParseUint(min, 10, 8)
	if err != nil {
		return Version{}, fmt.Errorf("version %q: %w", s, err)
	}
	return Version{Major: byte(mj), Minor: byte(mn)}, nil
}

// Config carries the protocol constants the registry enforces.
type Config struct {
	// MinVersion..MaxVersion is the inclusive window of accepted client
	// versions; ScriptVersion must match exactly.
	MinVersion    Version
	MaxVersion    Version
	ScriptVersion byte

	// IdleTimeout closes a connection that produced no bytes for this long.
	IdleTimeout time.Duration

	// MaxStampBytes caps a single stamp payload. The wire format allows up
	// to 16 MiB; this keeps one client from ballooning server memory.
	MaxStampBytes int

	// SyncPropOps lists the opcodes a peer may emit in a sync-properties
	// reply (op 130). Anything else in that slot is dropped.
	SyncPropOps []byte
}

// DefaultConfig returns the stock protocol constants.
func DefaultConfig() Config {
	return Config{
		MinVersion:    Version{1, 0},
		MaxVersion:    Version{1, 255},
		ScriptVersion: 1,
		IdleTimeout:   90 * time.Second,
		MaxStampBytes: 1 << 20,
		SyncPropOps:   []byte{34, 35, 37, 38, 65},
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinVersion == (Version{}) && c.MaxVersion == (Version{}) {
		c.MinVersion = def.MinVersion
		c.MaxVersion = def.MaxVersion
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.MaxStampBytes <= 0 {
		c.MaxStampBytes = def.MaxStampBytes
	}
	if c.SyncPropOps == nil {
		c.SyncPropOps = def.SyncPropOps
	}
	return c
}
