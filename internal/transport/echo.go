package transport

import (
	"encoding/binary"
	"sync"

	"lockstep-go/internal/wire"
)

// EchoConnection is the solo-play loopback: everything sent comes straight
// back out of Receive tagged with wire.LocalClientID, with no socket in
// between. It never leaves PreConnecting — there is no handshake to
// complete and nothing to disconnect from.
type EchoConnection struct {
	mu         sync.Mutex
	received   []inboundPacket
	queuedSync [][]byte
	recorder   RecorderFunc
	disposed   bool
}

// NewEchoConnection constructs a ready-to-use loopback connection.
func NewEchoConnection() *EchoConnection {
	return &EchoConnection{}
}

func (c *EchoConnection) SendFrame(frame uint32, orders [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrNotConnected
	}
	if len(orders) > 0 {
		payload := make([]byte, 4, 4+len(orders)*8)
		binary.LittleEndian.PutUint32(payload, frame)
		payload = append(payload, wire.EncodeOrders(orders)...)
		c.received = append(c.received, inboundPacket{wire.LocalClientID, payload})
	}
	for _, body := range c.queuedSync {
		c.received = append(c.received, inboundPacket{wire.LocalClientID, body})
	}
	c.queuedSync = c.queuedSync[:0]
	return nil
}

func (c *EchoConnection) SendImmediate(orders [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrNotConnected
	}
	for _, o := range orders {
		payload := make([]byte, 4, 4+len(o))
		binary.LittleEndian.PutUint32(payload, 0)
		payload = append(payload, o...)
		c.received = append(c.received, inboundPacket{wire.LocalClientID, payload})
	}
	return nil
}

func (c *EchoConnection) SendSync(frame uint32, hash []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrNotConnected
	}
	c.queuedSync = append(c.queuedSync, wire.EncodeSync(frame, hash))
	return nil
}

func (c *EchoConnection) Receive(visitor Visitor) error {
	c.mu.Lock()
	pkts := c.received
	c.received = nil
	rec := c.recorder
	c.mu.Unlock()

	for _, p := range pkts {
		if rec != nil {
			rec(p.fromClient, p.payload)
		}
		visitor(p.fromClient, p.payload)
	}
	return nil
}

func (c *EchoConnection) StartRecording(rec RecorderFunc) {
	c.mu.Lock()
	c.recorder = rec
	c.mu.Unlock()
}

func (c *EchoConnection) Dispose() error {
	c.mu.Lock()
	c.disposed = true
	c.mu.Unlock()
	return nil
}

func (c *EchoConnection) State() ConnState { return PreConnecting }
func (c *EchoConnection) ClientID() uint32 { return wire.LocalClientID }
func (c *EchoConnection) ErrorMessage() string {
	return ""
}

var _ Connection = (*EchoConnection)(nil)
