// Package relay implements the TCP server side of the lockstep wire
// protocol: it accepts one connection per client, relays each client's
// frame/immediate/sync/disconnect packets to every other client, and
// periodically batch-acknowledges received order frames back to their
// sender.
package relay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"lockstep-go/internal/metrics"
	"lockstep-go/internal/telemetry"
	"lockstep-go/internal/wire"
)

// ackFlushInterval is how often accumulated per-client receive counts are
// batch-acknowledged into a single Ack packet per client.
const ackFlushInterval = 50 * time.Millisecond

// handshakeRateLimit caps handshake attempts per remote IP within the
// go-cache window below.
const handshakeRateLimit = 200

// Relay is the TCP server. One instance serves one listen address.
type Relay struct {
	listenAddr string
	maxClients int

	mu      sync.Mutex
	clients map[uint32]*ClientRecord
	nextID  uint32
	ln      net.Listener
	running bool
	stopCh  chan struct{}

	ipAttempts *cache.Cache
}

// New constructs a Relay bound to listenAddr, accepting at most maxClients
// concurrent connections.
func New(listenAddr string, maxClients int) *Relay {
	return &Relay{
		listenAddr: listenAddr,
		maxClients: maxClients,
		clients:    make(map[uint32]*ClientRecord),
		nextID:     1,
		stopCh:     make(chan struct{}),
		ipAttempts: cache.New(30*time.Second, 1*time.Minute),
	}
}

// Start binds the listener, launches the ack-flush loop, and blocks
// accepting connections until Stop is called.
func (r *Relay) Start() error {
	ln, err := net.Listen("tcp", r.listenAddr)
	if err != nil {
		return fmt.Errorf("relay: failed to bind %s: %w", r.listenAddr, err)
	}
	r.mu.Lock()
	r.ln = ln
	r.running = true
	r.mu.Unlock()

	telemetry.Info("relay listening on %s", r.listenAddr)

	go r.ackFlushLoop()
	return r.acceptLoop()
}

// Addr returns the listener's bound address. Only meaningful after Start has
// returned from binding (racy otherwise) — tests use it to discover the
// actual port when listenAddr requests an ephemeral one (":0").
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// Stop closes the listener and every accepted connection. Idempotent.
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	ln := r.ln
	clients := make([]*ClientRecord, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	for _, c := range clients {
		c.Conn.Close()
	}
	if ln != nil {
		return ln.Close()
	}
	return nil
}

func (r *Relay) acceptLoop() error {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			r.mu.Lock()
			running := r.running
			r.mu.Unlock()
			if !running {
				return nil
			}
			telemetry.Warn("relay: accept failed: %v", err)
			continue
		}

		ip := remoteIP(conn)
		if r.rateLimited(ip) {
			telemetry.Warn("relay: rate-limited handshake attempt from %s", ip)
			conn.Close()
			continue
		}

		r.mu.Lock()
		full := len(r.clients) >= r.maxClients
		r.mu.Unlock()
		if full {
			telemetry.Warn("relay: rejecting %s, server full", ip)
			conn.Close()
			continue
		}

		go r.handleConn(conn)
	}
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if i := strings.LastIndex(addr, ":"); i != -1 {
		return addr[:i]
	}
	return addr
}

func (r *Relay) rateLimited(ip string) bool {
	if count, found := r.ipAttempts.Get(ip); found && count.(int) >= handshakeRateLimit {
		return true
	} else if found {
		r.ipAttempts.Increment(ip, 1)
	} else {
		r.ipAttempts.Set(ip, 1, cache.DefaultExpiration)
	}
	return false
}

func (r *Relay) handleConn(conn net.Conn) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	record := newClientRecord(id, conn)
	r.clients[id] = record
	r.mu.Unlock()
	metrics.ConnectedClients.Inc()

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], wire.HandshakeVersion)
	binary.LittleEndian.PutUint32(header[4:8], id)
	if _, err := conn.Write(header[:]); err != nil {
		telemetry.Warn("relay: handshake write failed for client %d: %v", id, err)
		r.dropClient(id)
		return
	}
	telemetry.Info("client %d connected from %s (trace=%s)", id, record.Addr, record.TraceID)

	for {
		frame, body, err := wire.ReadClientFrame(conn)
		if err != nil {
			break
		}
		r.dispatchClientFrame(id, frame, body)
	}

	r.dropClient(id)
}

func (r *Relay) dispatchClientFrame(sender uint32, frame uint32, body []byte) {
	r.mu.Lock()
	record, ok := r.clients[sender]
	if ok {
		record.LastSeen = time.Now()
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	switch {
	case len(body) == 5 && body[4] == wire.TagDisconnect:
		metrics.PacketsReceived.WithLabelValues("disconnect").Inc()
		r.broadcastExcept(sender, body)
		r.dropClient(sender)

	case len(body) >= 5 && body[4] == wire.TagSyncHash:
		metrics.PacketsReceived.WithLabelValues("sync").Inc()
		r.broadcastExcept(sender, body)

	case frame == 0:
		metrics.PacketsReceived.WithLabelValues("immediate").Inc()
		r.broadcastExcept(sender, body)

	default:
		metrics.PacketsReceived.WithLabelValues("order").Inc()
		r.mu.Lock()
		if record, ok := r.clients[sender]; ok {
			record.pendingAckCount++
			record.lastFrameReceived = frame
		}
		r.mu.Unlock()
		r.broadcastExcept(sender, body)
	}
}

// broadcastExcept re-wraps body (a client→server `frame | payload` blob, no
// clientId) with sender's id via wire.WritePacket and forwards it to every
// other connected client.
func (r *Relay) broadcastExcept(sender uint32, body []byte) {
	var buf bytes.Buffer
	wire.WritePacket(&buf, sender, body)
	framed := buf.Bytes()

	r.mu.Lock()
	targets := make([]*ClientRecord, 0, len(r.clients))
	for id, c := range r.clients {
		if id == sender {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		if _, err := c.Conn.Write(framed); err != nil {
			telemetry.Warn("relay: forward to client %d failed: %v", c.ID, err)
		} else {
			metrics.PacketsSent.WithLabelValues("relayed").Inc()
		}
	}
}

func (r *Relay) dropClient(id uint32) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	c.Conn.Close()
	metrics.ConnectedClients.Dec()
	telemetry.Info("client %d disconnected", id)
}

// ackFlushLoop periodically batch-acknowledges every client's pending
// receive count on a fixed ticker.
func (r *Relay) ackFlushLoop() {
	ticker := time.NewTicker(ackFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.flushAcks()
		}
	}
}

func (r *Relay) flushAcks() {
	r.mu.Lock()
	type pending struct {
		id            uint32
		conn          net.Conn
		count         uint16
		frameReceived uint32
	}
	var toAck []pending
	for _, c := range r.clients {
		if c.pendingAckCount > 0 {
			toAck = append(toAck, pending{c.ID, c.Conn, c.pendingAckCount, c.lastFrameReceived})
			c.pendingAckCount = 0
		}
	}
	r.mu.Unlock()

	for _, p := range toAck {
		// fromClient must be the receiving client's own id: TCPConnection's
		// receiveLoop only routes a packet to handleAck when fromClient
		// equals its own clientID.
		ackBody := wire.EncodeAck(p.frameReceived, p.count)
		var buf bytes.Buffer
		wire.WritePacket(&buf, p.id, ackBody)
		if _, err := p.conn.Write(buf.Bytes()); err != nil {
			telemetry.Warn("relay: ack flush write failed: %v", err)
			continue
		}
		metrics.PacketsSent.WithLabelValues("ack").Inc()
	}
}
