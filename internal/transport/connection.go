// Package transport implements the Connection contract: a framed TCP
// transport multiplexing frame orders, immediate orders, and sync hashes
// over a single stream, plus the Echo and Replay variants that share the
// same contract for solo play and replay viewing.
package transport

import "errors"

// ConnState enumerates the four states a lockstep connection distinguishes.
type ConnState int32

const (
	PreConnecting ConnState = iota
	Connecting
	Connected
	NotConnected
)

func (s ConnState) String() string {
	switch s {
	case PreConnecting:
		return "PreConnecting"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case NotConnected:
		return "NotConnected"
	default:
		return "Unknown"
	}
}

// Visitor is called once per inbound packet drained by Receive, in arrival
// order, on the caller's (game) thread.
type Visitor func(fromClient uint32, payload []byte)

// RecorderFunc is the replay sink installed by StartRecording; it is invoked
// synchronously on the game thread for every packet Receive dispatches,
// including synthesized ack batches and local sync echoes.
type RecorderFunc func(fromClient uint32, payload []byte)

// Connection is the shared contract TCPConnection, EchoConnection, and
// ReplayConnection all implement.
type Connection interface {
	// SendFrame atomically enqueues orders onto the awaiting-ack FIFO and
	// transmits a frame-order packet. An empty orders list is a no-op: it
	// neither enqueues nor emits a main-stream packet, though any queued
	// sync packets still flush.
	SendFrame(frame uint32, orders [][]byte) error
	// SendImmediate transmits one packet per order with frame=0. Immediates
	// never enter the AwaitingAck queue.
	SendImmediate(orders [][]byte) error
	// SendSync queues a sync packet; it is piggybacked onto the next
	// SendFrame call.
	SendSync(frame uint32, hash []byte) error
	// Receive drains inbound packets and invokes visitor for each, in
	// receive order.
	Receive(visitor Visitor) error
	// StartRecording installs a replay sink called for every dispatched
	// inbound packet. A second call replaces the sink. ReplayConnection
	// ignores it.
	StartRecording(rec RecorderFunc)
	// Dispose closes the underlying transport and marks the connection
	// NotConnected. Idempotent.
	Dispose() error

	State() ConnState
	ClientID() uint32
	ErrorMessage() string
}

// ErrNotConnected is returned by send operations attempted before the
// handshake completes or after disposal.
var ErrNotConnected = errors.New("transport: connection is not connected")

// ErrAckUnderflow is raised when a server Ack claims to acknowledge more
// payloads than are outstanding — a protocol violation, fatal to the
// connection.
var ErrAckUnderflow = errors.New("transport: ack underflow")

// ErrHandshakeMismatch is raised when the peer's protocol version does not
// match wire.HandshakeVersion.
var ErrHandshakeMismatch = errors.New("transport: handshake version mismatch")
