package relay

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// ClientRecord is the relay's per-connection bookkeeping: identity, the
// underlying socket, and the batching state for periodic Ack flushes.
// Position/health/skin fields that a player-roster record would normally
// carry are simulation state the relay never inspects, so they have no home
// here.
type ClientRecord struct {
	ID        uint32
	Addr      string
	Conn      net.Conn
	Connected bool
	LastSeen  time.Time
	TraceID   uuid.UUID

	pendingAckCount   uint16
	lastFrameReceived uint32
}

func newClientRecord(id uint32, conn net.Conn) *ClientRecord {
	return &ClientRecord{
		ID:        id,
		Addr:      conn.RemoteAddr().String(),
		Conn:      conn,
		Connected: true,
		LastSeen:  time.Now(),
		TraceID:   uuid.New(),
	}
}
