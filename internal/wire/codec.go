// Package wire implements the framed packet codec: the only place in this
// module that knows the on-wire byte layout described by the lockstep
// protocol (length-prefixed, little-endian, single multiplexed TCP stream).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrZeroLength is returned when a packet's length prefix is zero; the
	// protocol reserves that as an error rather than a valid empty payload.
	ErrZeroLength = errors.New("wire: zero-length packet")
	// ErrLengthMismatch is returned when a caller-supplied length prefix
	// does not equal the payload actually written.
	ErrLengthMismatch = errors.New("wire: length does not match payload")
)

// frameBody lays out `frame:u32 LE | rest` — the common prefix shared by
// order frames, sync packets, and immediates.
func frameBody(frame uint32, rest []byte) []byte {
	body := make([]byte, 4+len(rest))
	binary.LittleEndian.PutUint32(body[0:4], frame)
	copy(body[4:], rest)
	return body
}

// writeLengthPrefixed appends `len(body):u32 LE | body` to buf.
func writeLengthPrefixed(buf *bytes.Buffer, body []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)
}

// EncodeOrderFrame builds a standalone, length-prefixed order packet for
// net-frame `frame` carrying the already-concatenated order payload (see
// EncodeOrders). Frame 0 is reserved for immediates and is never passed here
// by OrderManager.SendOrders.
func EncodeOrderFrame(frame uint32, ordersPayload []byte) []byte {
	body := frameBody(frame, ordersPayload)
	var buf bytes.Buffer
	buf.Grow(4 + len(body))
	writeLengthPrefixed(&buf, body)
	return buf.Bytes()
}

// EncodeImmediate builds a standalone, length-prefixed immediate packet
// (frame=0) for a single order. Immediates are sent one packet per order and
// never enter the AwaitingAck queue.
func EncodeImmediate(order []byte) []byte {
	body := frameBody(0, order)
	var buf bytes.Buffer
	buf.Grow(4 + len(body))
	writeLengthPrefixed(&buf, body)
	return buf.Bytes()
}

// EncodeSync builds the raw `frame:u32 | SyncHash-tag:u8 | hash` body for a
// sync packet. It deliberately does NOT add a length prefix: sync packets are
// queued and only length-prefixed when piggybacked onto the next send (see
// transport.TCPConnection.flushQueuedSyncInto) — the outer framer adds the
// length at flush time, not at encode time.
func EncodeSync(frame uint32, hash []byte) []byte {
	rest := make([]byte, 1+len(hash))
	rest[0] = TagSyncHash
	copy(rest[1:], hash)
	return frameBody(frame, rest)
}

// EncodeDisconnect builds the raw 5-byte `frame | Disconnect-tag` body a
// relay emits when a client quits.
func EncodeDisconnect(frame uint32) []byte {
	return frameBody(frame, []byte{TagDisconnect})
}

// EncodeAck builds the raw 7-byte `frameReceived | Ack-tag | framesToAck`
// body a relay emits to acknowledge a batch of received order frames.
func EncodeAck(frameReceived uint32, framesToAck uint16) []byte {
	rest := make([]byte, 3)
	rest[0] = TagAck
	binary.LittleEndian.PutUint16(rest[1:3], framesToAck)
	return frameBody(frameReceived, rest)
}

// DecodeAck parses the body produced by EncodeAck (frame field already
// consumed by the caller as `frameReceived`).
func DecodeAck(body []byte) (framesToAck uint16, ok bool) {
	if len(body) != 7 || body[4] != TagAck {
		return 0, false
	}
	return binary.LittleEndian.Uint16(body[5:7]), true
}

// Frame reads the little-endian NetFrame out of a packet payload whose first
// four bytes are always the frame field.
func Frame(payload []byte) uint32 {
	return binary.LittleEndian.Uint32(payload[0:4])
}

// ReadPacket reads one `length:u32 LE | fromClient:u32 LE | payload[length]`
// record from r — the shape every inbound stream uses, whether it came from
// a relay (fromClient is the sender's assigned id) or a synthesized ack/sync
// echo (fromClient is the local client id). A zero length is a protocol
// error.
func ReadPacket(r io.Reader) (fromClient uint32, payload []byte, err error) {
	var header [8]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint32(header[0:4])
	if length == 0 {
		return 0, nil, ErrZeroLength
	}
	fromClient = binary.LittleEndian.Uint32(header[4:8])
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return fromClient, payload, nil
}

// ReadClientFrame reads one client→server record: `length:u32 LE | body`,
// where body is `frame:u32 LE | payload` with no clientId field (the client
// never sends its own id; the relay already knows it from the socket). The
// returned body is exactly the bytes a relay re-wraps via WritePacket when
// forwarding to other clients — see internal/relay.
func ReadClientFrame(r io.Reader) (frame uint32, body []byte, err error) {
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length == 0 {
		return 0, nil, ErrZeroLength
	}
	body = make([]byte, length)
	if _, err = io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	if len(body) < 4 {
		return 0, nil, ErrLengthMismatch
	}
	return binary.LittleEndian.Uint32(body[0:4]), body, nil
}

// WriteQueuedSync appends a previously-encoded sync body to buf as
// `len(body):u32 LE | body`, the piggyback shape used when flushing queued
// sync packets onto the next frame send.
func WriteQueuedSync(buf *bytes.Buffer, body []byte) {
	writeLengthPrefixed(buf, body)
}

// WritePacket appends `length:u32 LE | fromClient:u32 LE | payload` to buf —
// the exact inverse of ReadPacket. Used by the relay to forward and ack
// packets, and by tests to compose an inbound record.
func WritePacket(buf *bytes.Buffer, fromClient uint32, payload []byte) {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[4:8], fromClient)
	buf.Write(header[:])
	buf.Write(payload)
}
