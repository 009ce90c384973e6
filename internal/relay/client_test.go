package relay

import (
	"net"
	"testing"
)

func TestNewClientRecordPopulatesIdentity(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	rec := newClientRecord(5, server)
	if rec.ID != 5 {
		t.Fatalf("expected ID 5, got %d", rec.ID)
	}
	if !rec.Connected {
		t.Fatal("expected a freshly created record to be Connected")
	}
	if rec.TraceID.String() == "" {
		t.Fatal("expected a populated TraceID")
	}
}

func TestNewClientRecordAssignsDistinctTraceIDs(t *testing.T) {
	server1, client1 := net.Pipe()
	defer server1.Close()
	defer client1.Close()
	server2, client2 := net.Pipe()
	defer server2.Close()
	defer client2.Close()

	rec1 := newClientRecord(1, server1)
	rec2 := newClientRecord(2, server2)
	if rec1.TraceID == rec2.TraceID {
		t.Fatal("expected distinct trace ids across records")
	}
}
