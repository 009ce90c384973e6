package transport

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// ErrReplayExhausted names the end of a recorded stream. Receive does not
// return it: once the reader is exhausted, Receive returns nil and
// dispatches nothing further.
var ErrReplayExhausted = errors.New("transport: replay exhausted")

// ReplayConnection reads back a file written by NewFileRecorder and
// dispatches its packets through Receive exactly as they were recorded,
// one Receive call draining everything queued so far. It never connects to
// anything; the Send* methods are no-ops, matching a pure viewer that
// drives the same OrderManager a live connection would. StartRecording is
// also a no-op: no recorder is ever called.
type ReplayConnection struct {
	mu      sync.Mutex
	r       io.Reader
	done    bool
	lastErr error
}

// NewReplayConnection wraps a reader positioned at the start of a recorded
// stream.
func NewReplayConnection(r io.Reader) *ReplayConnection {
	return &ReplayConnection{r: r}
}

func (c *ReplayConnection) SendFrame(frame uint32, orders [][]byte) error { return nil }
func (c *ReplayConnection) SendImmediate(orders [][]byte) error          { return nil }
func (c *ReplayConnection) SendSync(frame uint32, hash []byte) error     { return nil }
func (c *ReplayConnection) StartRecording(rec RecorderFunc)              {}

// Receive reads every fully-buffered record available from the underlying
// reader and dispatches them in recorded order. Once the underlying reader
// is exhausted it keeps returning nil with nothing further dispatched,
// so a caller can poll it every net-tick like a live connection.
func (c *ReplayConnection) Receive(visitor Visitor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil
	}
	for {
		var header [8]byte
		if _, err := io.ReadFull(c.r, header[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				c.done = true
				return nil
			}
			c.lastErr = err
			c.done = true
			return err
		}
		fromClient := binary.LittleEndian.Uint32(header[0:4])
		length := binary.LittleEndian.Uint32(header[4:8])
		payload := make([]byte, length)
		if _, err := io.ReadFull(c.r, payload); err != nil {
			c.lastErr = err
			c.done = true
			return err
		}
		visitor(fromClient, payload)
	}
}

func (c *ReplayConnection) Dispose() error {
	c.mu.Lock()
	c.done = true
	c.mu.Unlock()
	return nil
}

func (c *ReplayConnection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return NotConnected
	}
	return Connected
}

func (c *ReplayConnection) ClientID() uint32 { return 0 }

func (c *ReplayConnection) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

var _ Connection = (*ReplayConnection)(nil)
