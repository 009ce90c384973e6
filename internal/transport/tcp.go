package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"lockstep-go/internal/metrics"
	"lockstep-go/internal/wire"
)

type inboundPacket struct {
	fromClient uint32
	payload    []byte
}

// TCPConnection is the real network Connection: a single TCP stream
// multiplexing frame orders, immediates, and sync hashes, with a long-lived
// receiver goroutine draining the read half.
//
// state/clientID/errorMessage are single-writer (the receiver goroutine),
// multi-reader scalars backed by go.uber.org/atomic rather than a
// sync.RWMutex-guarded struct field; the received-packets list is
// mutex-guarded (the receiver goroutine appends inbound packets, and the
// game thread appends local sync echoes when SendFrame flushes queued
// syncs); the AwaitingAck FIFO (ackQueue) has its own lock, independent of
// both.
type TCPConnection struct {
	conn net.Conn

	state    atomic.Int32
	clientID atomic.Uint32
	errMsg   atomic.String

	recvMu   sync.Mutex
	received []inboundPacket

	ackQueue AckQueue

	// queuedSync is written and drained only on the game thread (SendSync
	// appends, SendFrame drains) — never touched by the receiver goroutine,
	// so it needs no lock.
	queuedSync [][]byte

	recMu    sync.Mutex
	recorder RecorderFunc

	logger *zap.Logger
}

// NewTCPConnectionFromDial races the candidate addresses, performs the
// handshake on the winner, and starts the receiver goroutine. See DialRace
// for the multi-endpoint connect-race semantics.
func NewTCPConnectionFromDial(addrs []string, logger *zap.Logger) (*TCPConnection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TCPConnection{logger: logger}
	c.state.Store(int32(PreConnecting))

	c.state.Store(int32(Connecting))
	conn, err := DialRace(addrs)
	if err != nil {
		c.state.Store(int32(NotConnected))
		c.errMsg.Store(err.Error())
		return nil, fmt.Errorf("transport: connect failed: %w", err)
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.state.Store(int32(NotConnected))
		c.errMsg.Store(err.Error())
		conn.Close()
		return nil, err
	}

	c.state.Store(int32(Connected))
	go c.receiveLoop()
	return c, nil
}

func (c *TCPConnection) handshake() error {
	var header [8]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return fmt.Errorf("transport: handshake read failed: %w", err)
	}
	version := binary.LittleEndian.Uint32(header[0:4])
	if version != wire.HandshakeVersion {
		return fmt.Errorf("%w: local=%d remote=%d", ErrHandshakeMismatch, wire.HandshakeVersion, version)
	}
	clientID := binary.LittleEndian.Uint32(header[4:8])
	c.clientID.Store(clientID)
	return nil
}

func (c *TCPConnection) receiveLoop() {
	for {
		fromClient, payload, err := wire.ReadPacket(c.conn)
		if err != nil {
			c.setFatal(err)
			return
		}
		if fromClient == c.clientID.Load() && len(payload) == 7 && payload[4] == wire.TagAck {
			if err := c.handleAck(payload); err != nil {
				c.setFatal(err)
				return
			}
			continue
		}
		c.enqueueReceived(fromClient, payload)
	}
}

func (c *TCPConnection) setFatal(err error) {
	c.errMsg.Store(err.Error())
	c.state.Store(int32(NotConnected))
	c.logger.Warn("connection terminated", zap.Error(err))
	c.conn.Close()
}

// handleAck parses a server Ack (frameReceived | Ack-tag | framesToAck),
// dequeues exactly framesToAck payloads from AwaitingAck, and synthesizes an
// inbound packet from the local client so the replay sink and local
// consumers see the acknowledged batch.
func (c *TCPConnection) handleAck(payload []byte) error {
	frameReceived := wire.Frame(payload)
	framesToAck, ok := wire.DecodeAck(payload)
	if !ok {
		return fmt.Errorf("transport: malformed ack payload")
	}
	dequeued, err := c.ackQueue.DequeueN(int(framesToAck))
	if err != nil {
		return err
	}
	metrics.AwaitingAckDepth.Set(float64(c.ackQueue.Len()))
	synthesized := make([]byte, 4, 4+len(dequeued)*8)
	binary.LittleEndian.PutUint32(synthesized, frameReceived)
	for _, d := range dequeued {
		synthesized = append(synthesized, d...)
	}
	c.enqueueReceived(c.clientID.Load(), synthesized)
	return nil
}

func (c *TCPConnection) enqueueReceived(fromClient uint32, payload []byte) {
	c.recvMu.Lock()
	c.received = append(c.received, inboundPacket{fromClient, payload})
	c.recvMu.Unlock()
}

// SendFrame implements Connection.SendFrame. An empty orders list
// enqueues nothing and emits no main-stream packet; queued sync packets
// still flush.
func (c *TCPConnection) SendFrame(frame uint32, orders [][]byte) error {
	if ConnState(c.state.Load()) != Connected {
		return ErrNotConnected
	}
	var buf bytes.Buffer
	if len(orders) > 0 {
		ackPayload := wire.EncodeOrders(orders)
		c.ackQueue.Enqueue(ackPayload)
		metrics.AwaitingAckDepth.Set(float64(c.ackQueue.Len()))
		buf.Write(wire.EncodeOrderFrame(frame, ackPayload))
	}
	c.flushQueuedSyncInto(&buf)
	if buf.Len() == 0 {
		return nil
	}
	// I/O errors on send are swallowed — the receiver goroutine independently
	// detects disconnection on its next read.
	_, _ = c.conn.Write(buf.Bytes())
	return nil
}

// flushQueuedSyncInto appends every queued sync packet to buf (piggybacked
// onto the frame send) and local-echoes each into the received list so the
// local client observes its own sync during Receive, then clears the queue.
func (c *TCPConnection) flushQueuedSyncInto(buf *bytes.Buffer) {
	if len(c.queuedSync) == 0 {
		return
	}
	for _, body := range c.queuedSync {
		wire.WriteQueuedSync(buf, body)
		c.enqueueReceived(c.clientID.Load(), body)
	}
	c.queuedSync = c.queuedSync[:0]
}

// SendImmediate implements Connection.SendImmediate: one packet per order,
// frame=0, never added to AwaitingAck.
func (c *TCPConnection) SendImmediate(orders [][]byte) error {
	if ConnState(c.state.Load()) != Connected {
		return ErrNotConnected
	}
	for _, o := range orders {
		_, _ = c.conn.Write(wire.EncodeImmediate(o))
	}
	return nil
}

// SendSync implements Connection.SendSync: queue for piggyback on the next
// SendFrame.
func (c *TCPConnection) SendSync(frame uint32, hash []byte) error {
	c.queuedSync = append(c.queuedSync, wire.EncodeSync(frame, hash))
	return nil
}

// Receive implements Connection.Receive.
func (c *TCPConnection) Receive(visitor Visitor) error {
	c.recvMu.Lock()
	pkts := c.received
	c.received = nil
	c.recvMu.Unlock()

	rec := c.getRecorder()
	for _, p := range pkts {
		if rec != nil {
			rec(p.fromClient, p.payload)
		}
		visitor(p.fromClient, p.payload)
	}
	return nil
}

func (c *TCPConnection) getRecorder() RecorderFunc {
	c.recMu.Lock()
	defer c.recMu.Unlock()
	return c.recorder
}

// StartRecording implements Connection.StartRecording.
func (c *TCPConnection) StartRecording(rec RecorderFunc) {
	c.recMu.Lock()
	c.recorder = rec
	c.recMu.Unlock()
}

// Dispose implements Connection.Dispose. Idempotent.
func (c *TCPConnection) Dispose() error {
	if ConnState(c.state.Load()) == NotConnected {
		return nil
	}
	c.state.Store(int32(NotConnected))
	return c.conn.Close()
}

func (c *TCPConnection) State() ConnState     { return ConnState(c.state.Load()) }
func (c *TCPConnection) ClientID() uint32     { return c.clientID.Load() }
func (c *TCPConnection) ErrorMessage() string { return c.errMsg.Load() }

var _ Connection = (*TCPConnection)(nil)
