package wire

// Order-header tags that may appear as the fifth byte of a packet payload,
// immediately following the little-endian NetFrame.
const (
	TagDisconnect byte = 0xF1
	TagSyncHash   byte = 0xF2
	TagAck        byte = 0xF3
)

// HandshakeVersion is the protocol version the relay sends at the start of
// the handshake; a client must see this value before trusting the
// connection.
const HandshakeVersion uint32 = 3

// LocalClientID is the synthetic client id used by the Echo connection
// variant (solo / shellmap games never talk to a real relay).
const LocalClientID uint32 = 1
