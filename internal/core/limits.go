package core

import "regexp"

// Wire-protocol limits.
const (
	// MaxClients bounds concurrent sessions: client ids are single bytes
	// used as addressing tags, so the table tops out at 255.
	MaxClients = 255

	// MaxNameLength is the byte cap for nicknames and room names.
	MaxNameLength = 32

	// MaxMessageLength is the byte cap for chat, emote, and kick reasons.
	MaxMessageLength = 200

	// LobbyName is the implicit room every client joins after identifying.
	LobbyName = "null"

	// DefaultKickReason substitutes for an empty kick reason.
	DefaultKickReason = "No reason given"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// validNameBytes reports whether b satisfies the nickname/room-name charset.
// Length is checked separately so handshake failures stay distinguishable.
func validNameBytes(b []byte) bool {
	return nameRe.Match(b)
}

// printableText reports whether every byte of b is 7-bit printable text
// (0x20..0x7E). The empty string qualifies.
func printableText(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}
