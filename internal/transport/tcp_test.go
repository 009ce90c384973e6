package transport

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"lockstep-go/internal/wire"
)

func listenAndDial(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	serverCh := make(chan net.Conn, 1)
	go func() {
		conn, _ := ln.Accept()
		serverCh <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	server := <-serverCh
	return client, server
}

func writeHandshake(t *testing.T, conn net.Conn, clientID uint32) {
	t.Helper()
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], wire.HandshakeVersion)
	binary.LittleEndian.PutUint32(header[4:8], clientID)
	if _, err := conn.Write(header[:]); err != nil {
		t.Fatalf("handshake write failed: %v", err)
	}
}

func TestTCPConnectionHandshakeAssignsClientID(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer serverConn.Close()

	writeHandshake(t, serverConn, 4)

	c := &TCPConnection{conn: clientConn}
	if err := c.handshake(); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	if c.ClientID() != 4 {
		t.Errorf("expected clientID 4, got %d", c.ClientID())
	}
}

func TestTCPConnectionHandshakeVersionMismatch(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer serverConn.Close()
	defer clientConn.Close()

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], wire.HandshakeVersion+1)
	binary.LittleEndian.PutUint32(header[4:8], 1)
	serverConn.Write(header[:])

	c := &TCPConnection{conn: clientConn}
	err := c.handshake()
	if err == nil {
		t.Fatal("expected handshake to fail on version mismatch")
	}
}

func TestTCPConnectionSendFrameWiresOntoSocket(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer clientConn.Close()
	defer serverConn.Close()

	c := &TCPConnection{conn: clientConn}
	c.state.Store(int32(Connected))
	c.clientID.Store(9)

	if err := c.SendFrame(7, [][]byte{{0x01, 0x02}}); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}

	serverConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, body, err := wire.ReadClientFrame(serverConn)
	if err != nil {
		t.Fatalf("ReadClientFrame failed: %v", err)
	}
	if frame != 7 {
		t.Errorf("expected frame 7, got %d", frame)
	}
	orders, err := wire.DecodeOrders(body[4:])
	if err != nil {
		t.Fatalf("DecodeOrders failed: %v", err)
	}
	if len(orders) != 1 || !bytes.Equal(orders[0], []byte{0x01, 0x02}) {
		t.Errorf("unexpected orders: %v", orders)
	}
	if c.ackQueue.Len() != 1 {
		t.Errorf("expected 1 payload awaiting ack, got %d", c.ackQueue.Len())
	}
}

func TestTCPConnectionAckDrainsQueueAndSynthesizesLocalPacket(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer clientConn.Close()
	defer serverConn.Close()

	c := &TCPConnection{conn: clientConn}
	c.state.Store(int32(Connected))
	c.clientID.Store(9)

	ordersPayload := wire.EncodeOrders([][]byte{{0xAA}})
	c.ackQueue.Enqueue(ordersPayload)

	ackBody := wire.EncodeAck(5, 1)
	if err := c.handleAck(ackBody); err != nil {
		t.Fatalf("handleAck failed: %v", err)
	}
	if c.ackQueue.Len() != 0 {
		t.Errorf("expected ack queue drained, got len %d", c.ackQueue.Len())
	}

	var got []byte
	c.Receive(func(fromClient uint32, payload []byte) {
		if fromClient != 9 {
			t.Errorf("expected synthesized packet from local clientID 9, got %d", fromClient)
		}
		got = payload
	})
	if wire.Frame(got) != 5 {
		t.Errorf("expected synthesized frame 5, got %d", wire.Frame(got))
	}
	orders, err := wire.DecodeOrders(got[4:])
	if err != nil {
		t.Fatalf("DecodeOrders on synthesized payload failed: %v", err)
	}
	if len(orders) != 1 || !bytes.Equal(orders[0], []byte{0xAA}) {
		t.Errorf("unexpected synthesized orders: %v", orders)
	}
}

func TestTCPConnectionAckUnderflowIsFatal(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer clientConn.Close()
	defer serverConn.Close()

	c := &TCPConnection{conn: clientConn}
	c.state.Store(int32(Connected))

	ackBody := wire.EncodeAck(1, 3)
	if err := c.handleAck(ackBody); err != ErrAckUnderflow {
		t.Errorf("expected ErrAckUnderflow, got %v", err)
	}
}

func TestTCPConnectionReceiveLoopDeliversServerPackets(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer clientConn.Close()
	defer serverConn.Close()

	c := &TCPConnection{conn: clientConn}
	c.state.Store(int32(Connected))
	c.clientID.Store(9)
	go c.receiveLoop()

	var buf bytes.Buffer
	wire.WritePacket(&buf, 2, []byte{0x00, 0x00, 0x00, 0x00, 0xFF})
	serverConn.Write(buf.Bytes())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.recvMu.Lock()
		n := len(c.received)
		c.recvMu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var got inboundPacket
	c.Receive(func(fromClient uint32, payload []byte) {
		got = inboundPacket{fromClient, payload}
	})
	if got.fromClient != 2 {
		t.Errorf("expected fromClient 2, got %d", got.fromClient)
	}
	if !bytes.Equal(got.payload, []byte{0x00, 0x00, 0x00, 0x00, 0xFF}) {
		t.Errorf("unexpected payload: %v", got.payload)
	}
}

func TestTCPConnectionDisposeIsIdempotent(t *testing.T) {
	clientConn, serverConn := listenAndDial(t)
	defer serverConn.Close()

	c := &TCPConnection{conn: clientConn}
	c.state.Store(int32(Connected))

	if err := c.Dispose(); err != nil {
		t.Fatalf("first Dispose failed: %v", err)
	}
	if err := c.Dispose(); err != nil {
		t.Fatalf("second Dispose should be a no-op, got %v", err)
	}
}
