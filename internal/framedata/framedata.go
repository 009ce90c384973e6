// Package framedata implements the per-client packet FIFOs that gate when a
// net-frame is ready to process: every client still playing must have
// contributed at least one packet before the frame can advance.
package framedata

import (
	"errors"
	"sort"
)

// ErrUnknownClient is returned by AddFrameOrders when the client was never
// registered via AddClient.
var ErrUnknownClient = errors.New("framedata: unknown client")

// OrderDispatcher receives deserialized orders in deterministic dispatch
// order. Implemented by the simulation side (see internal/demoworld).
type OrderDispatcher interface {
	DispatchOrder(client uint32, order []byte)
}

// OrderDecoder splits a raw frame packet's payload (post frame-field) into
// the individual orders it carries. Kept as a function value rather than a
// hard dependency on internal/wire so FrameData stays codec-agnostic.
type OrderDecoder func(ordersPayload []byte) ([][]byte, error)

// FrameData tracks { live_clients, queues, quit_clients }, mutated
// exclusively by OrderManager's receive-drain and order-process steps —
// single-writer, no internal locking, since only the game thread ever
// touches it.
type FrameData struct {
	live    map[uint32]struct{}
	quit    map[uint32]struct{}
	queues  map[uint32][][]byte
	decoder OrderDecoder
}

// New constructs an empty FrameData. decoder splits a raw orders payload
// (a packet's bytes past the frame field) into individual order blobs.
func New(decoder OrderDecoder) *FrameData {
	return &FrameData{
		live:    make(map[uint32]struct{}),
		quit:    make(map[uint32]struct{}),
		queues:  make(map[uint32][][]byte),
		decoder: decoder,
	}
}

// AddClient registers a client as live and gives it an empty queue. A
// repeated call for an already-known client is a no-op.
func (f *FrameData) AddClient(client uint32) {
	f.live[client] = struct{}{}
	if _, ok := f.queues[client]; !ok {
		f.queues[client] = nil
	}
}

// ClientQuit marks a client as no longer playing. Idempotent: quitting a
// client twice, or a client never added, is a no-op rather than an error —
// a quit racing a late disconnect notification is expected, not exceptional.
func (f *FrameData) ClientQuit(client uint32) {
	f.quit[client] = struct{}{}
}

// isPlaying reports whether client is live and has not quit.
func (f *FrameData) isPlaying(client uint32) bool {
	if _, live := f.live[client]; !live {
		return false
	}
	_, quit := f.quit[client]
	return !quit
}

// ClientsPlayingInFrame returns every currently-playing client, sorted
// ascending — the same ordering orders_for_frame dispatches in.
func (f *FrameData) ClientsPlayingInFrame() []uint32 {
	out := make([]uint32, 0, len(f.live))
	for c := range f.live {
		if f.isPlaying(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddFrameOrders appends packet to client's FIFO. Returns ErrUnknownClient
// if AddClient was never called for this client.
func (f *FrameData) AddFrameOrders(client uint32, packet []byte) error {
	if _, ok := f.queues[client]; !ok {
		return ErrUnknownClient
	}
	f.queues[client] = append(f.queues[client], packet)
	return nil
}

// IsReadyForFrame reports whether every playing client's FIFO currently
// holds at least one packet.
func (f *FrameData) IsReadyForFrame() bool {
	for c := range f.live {
		if !f.isPlaying(c) {
			continue
		}
		if len(f.queues[c]) == 0 {
			return false
		}
	}
	return true
}

// ClientsNotReadyForFrame enumerates playing clients whose FIFO is empty,
// sorted ascending.
func (f *FrameData) ClientsNotReadyForFrame() []uint32 {
	var out []uint32
	for c := range f.live {
		if !f.isPlaying(c) {
			continue
		}
		if len(f.queues[c]) == 0 {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// OrdersForFrame pops exactly one packet per playing client, in ascending
// ClientId order (the tie-break for deterministic cross-peer execution),
// deserializes each into its constituent orders, and dispatches them
// through disp in that deterministic order: client-major, then
// serialization order within the client's packet.
//
// Precondition: IsReadyForFrame() — callers (OrderManager.ProcessOrders)
// only invoke this once every playing client has queued a packet.
func (f *FrameData) OrdersForFrame(disp OrderDispatcher) error {
	for _, client := range f.ClientsPlayingInFrame() {
		queue := f.queues[client]
		if len(queue) == 0 {
			continue
		}
		packet := queue[0]
		f.queues[client] = queue[1:]

		orders, err := f.decoder(packet)
		if err != nil {
			return err
		}
		for _, order := range orders {
			disp.DispatchOrder(client, order)
		}
	}
	return nil
}

// BufferSizeForClient reports the backlog depth for client — used by
// OrderManager's catch-up computation against the local client's id.
func (f *FrameData) BufferSizeForClient(client uint32) int {
	return len(f.queues[client])
}
