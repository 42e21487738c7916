// Package wire implements the framed binary protocol spoken between the
// relay server and simulation clients. Frames are sequences of raw bytes
// introduced by a one-byte opcode; variable-length text fields are
// NUL-terminated and multi-byte integers (stamp lengths) are big-endian.
package wire

// Opcodes accepted from clients. Server-to-client frames reuse the same
// numbering: a relayed frame is the client frame with the origin id spliced
// in after the opcode.
const (
	OpIdentifyOK byte = 1
	OpPing       byte = 2

	OpJoin         byte = 16 // client: join request; server: roster header on replay
	OpMemberAdd    byte = 17
	OpMemberRemove byte = 18
	OpChat         byte = 19
	OpEmote        byte = 20
	OpKick         byte = 21
	OpServerMsg    byte = 22

	OpMousePos      byte = 32
	OpMouseClick    byte = 33
	OpBrushSize     byte = 34
	OpBrushShape    byte = 35
	OpModifier      byte = 36
	OpSelectElement byte = 37
	OpReplaceMode   byte = 38

	OpCmodeDefault   byte = 48
	OpPause          byte = 49
	OpStepFrame      byte = 50
	OpDecoMode       byte = 51
	OpHUDMode        byte = 52 // deprecated client-side, still relayed
	OpAmbientHeat    byte = 53
	OpNewtonianGrav  byte = 54
	OpDebug          byte = 55
	OpLegacyHeat     byte = 56
	OpWaterEq        byte = 57
	OpGravityMode    byte = 58
	OpAirMode        byte = 59
	OpClearSparks    byte = 60
	OpClearPressure  byte = 61
	OpInvertPressure byte = 62
	OpClearSim       byte = 63
	OpManualGraphics byte = 64
	OpDecoColor      byte = 65
	OpStamp          byte = 66
	OpClearArea      byte = 67
	OpEdgeMode       byte = 68
	OpLoadSaveID     byte = 69
	OpReloadSave     byte = 70

	OpSyncRequest byte = 128 // server→peer: request a bootstrap stamp for a joiner
	OpSyncStamp   byte = 129 // server→joiner: forwarded bootstrap stamp
	OpSyncProps   byte = 130 // client→server: property snapshot for a joiner
)

// ErrorFrame builds the close-notice frame sent before dropping a
// connection: a zero byte, the reason text, and a terminating NUL.
func ErrorFrame(reason string) []byte {
	buf := make([]byte, 0, len(reason)+2)
	buf = append(buf, 0)
	buf = append(buf, reason...)
	return append(buf, 0)
}

// ServerMessage builds an op-22 frame carrying colored status text.
func ServerMessage(text string, r, g, b byte) []byte {
	buf := make([]byte, 0, len(text)+6)
	buf = append(buf, OpServerMsg)
	buf = append(buf, text...)
	return append(buf, 0, r, g, b)
}

// Uint24 decodes a 3-byte big-endian length field.
func Uint24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// PutUint24 encodes v into a 3-byte big-endian length field.
func PutUint24(b []byte, v int) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
