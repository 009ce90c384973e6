package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncatedOrder is returned by DecodeOrders when an order's declared
// length runs past the end of the packet.
var ErrTruncatedOrder = errors.New("wire: truncated order in packet")

// EncodeOrders concatenates several opaque order payloads into the single
// blob a frame/immediate packet carries, each prefixed with its own u32 LE
// length so DecodeOrders can split them back apart in the order they were
// written — client dispatch order depends on this surviving intact.
func EncodeOrders(orders [][]byte) []byte {
	size := 0
	for _, o := range orders {
		size += 4 + len(o)
	}
	out := make([]byte, 0, size)
	var lenBuf [4]byte
	for _, o := range orders {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(o)))
		out = append(out, lenBuf[:]...)
		out = append(out, o...)
	}
	return out
}

// DecodeOrders splits a blob produced by EncodeOrders back into the
// individual order payloads, preserving serialization order.
func DecodeOrders(blob []byte) ([][]byte, error) {
	var orders [][]byte
	for len(blob) > 0 {
		if len(blob) < 4 {
			return nil, ErrTruncatedOrder
		}
		n := binary.LittleEndian.Uint32(blob[0:4])
		blob = blob[4:]
		if uint64(n) > uint64(len(blob)) {
			return nil, ErrTruncatedOrder
		}
		orders = append(orders, blob[:n])
		blob = blob[n:]
	}
	return orders, nil
}
