package transport

import (
	"bytes"
	"testing"

	"lockstep-go/internal/wire"
)

// Orders sent via SendFrame must re-appear in Receive with
// fromClient == LocalClientID, in the same frame.
func TestEchoConnectionRoundTrip(t *testing.T) {
	c := NewEchoConnection()
	if err := c.SendFrame(5, [][]byte{{0xAA}, {0xBB, 0xCC}}); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}

	var gotFrom uint32
	var gotPayload []byte
	seen := 0
	err := c.Receive(func(fromClient uint32, payload []byte) {
		seen++
		gotFrom = fromClient
		gotPayload = payload
	})
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected exactly 1 dispatched packet, got %d", seen)
	}
	if gotFrom != wire.LocalClientID {
		t.Errorf("expected fromClient %d, got %d", wire.LocalClientID, gotFrom)
	}
	if wire.Frame(gotPayload) != 5 {
		t.Errorf("expected frame 5, got %d", wire.Frame(gotPayload))
	}
	orders, err := wire.DecodeOrders(gotPayload[4:])
	if err != nil {
		t.Fatalf("DecodeOrders failed: %v", err)
	}
	if len(orders) != 2 || !bytes.Equal(orders[0], []byte{0xAA}) || !bytes.Equal(orders[1], []byte{0xBB, 0xCC}) {
		t.Errorf("unexpected orders: %v", orders)
	}
}

func TestEchoConnectionEmptyFrameNoOp(t *testing.T) {
	c := NewEchoConnection()
	if err := c.SendFrame(1, nil); err != nil {
		t.Fatalf("SendFrame failed: %v", err)
	}
	seen := 0
	c.Receive(func(uint32, []byte) { seen++ })
	if seen != 0 {
		t.Errorf("expected no packets from an empty frame, got %d", seen)
	}
}

func TestEchoConnectionSyncFlushesOnNextFrame(t *testing.T) {
	c := NewEchoConnection()
	if err := c.SendSync(3, []byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("SendSync failed: %v", err)
	}

	seen := 0
	c.Receive(func(uint32, []byte) { seen++ })
	if seen != 0 {
		t.Fatalf("sync packet should not flush before the next SendFrame, got %d", seen)
	}

	c.SendFrame(4, nil)
	seen = 0
	var gotPayload []byte
	c.Receive(func(fromClient uint32, payload []byte) {
		seen++
		gotPayload = payload
	})
	if seen != 1 {
		t.Fatalf("expected the queued sync to flush, got %d packets", seen)
	}
	if wire.Frame(gotPayload) != 3 {
		t.Errorf("expected sync frame 3, got %d", wire.Frame(gotPayload))
	}
	if gotPayload[4] != wire.TagSyncHash {
		t.Errorf("expected SyncHash tag, got 0x%02X", gotPayload[4])
	}
}

func TestEchoConnectionStateNeverAdvances(t *testing.T) {
	c := NewEchoConnection()
	if c.State() != PreConnecting {
		t.Errorf("expected PreConnecting, got %v", c.State())
	}
	c.SendFrame(1, [][]byte{{0x01}})
	if c.State() != PreConnecting {
		t.Errorf("expected state to remain PreConnecting, got %v", c.State())
	}
}

func TestEchoConnectionRecorderSeesEveryPacket(t *testing.T) {
	c := NewEchoConnection()
	var recorded int
	c.StartRecording(func(uint32, []byte) { recorded++ })

	c.SendFrame(1, [][]byte{{0x01}})
	c.Receive(func(uint32, []byte) {})
	if recorded != 1 {
		t.Errorf("expected recorder to observe 1 packet, got %d", recorded)
	}
}

func TestEchoConnectionDisposeRejectsSends(t *testing.T) {
	c := NewEchoConnection()
	c.Dispose()
	if err := c.SendFrame(1, [][]byte{{0x01}}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected after Dispose, got %v", err)
	}
}
