// Package synccheck implements SyncForFrame: the append-once map that
// catches simulation divergence by comparing sync-hash packets across
// clients for the same net-frame.
package synccheck

import (
	"bytes"
	"fmt"

	"lockstep-go/internal/metrics"
	"lockstep-go/internal/wire"
)

// OutOfSyncError is raised when a second sync packet for a frame does not
// byte-for-byte match the first one recorded. It is fatal: the caller is
// expected to trigger a sync report dump and then stop the game.
type OutOfSyncError struct {
	Frame uint32
}

func (e *OutOfSyncError) Error() string {
	return fmt.Sprintf("synccheck: out of sync at frame %d", e.Frame)
}

// SyncChecker tracks the first sync packet observed per net-frame and
// rejects any later one that disagrees. Owned exclusively by the game
// thread — no internal locking.
type SyncChecker struct {
	seen map[uint32][]byte
}

// New constructs an empty SyncChecker.
func New() *SyncChecker {
	return &SyncChecker{seen: make(map[uint32][]byte)}
}

// Check extracts the frame field from packet and either records it as the
// first observation for that frame, or compares it against the recorded
// one. A mismatch — including a length mismatch — returns *OutOfSyncError.
func (s *SyncChecker) Check(packet []byte) error {
	frame := wire.Frame(packet)
	existing, ok := s.seen[frame]
	if !ok {
		stored := make([]byte, len(packet))
		copy(stored, packet)
		s.seen[frame] = stored
		metrics.SyncChecksTotal.WithLabelValues("first_observation").Inc()
		return nil
	}
	if !bytes.Equal(existing, packet) {
		metrics.SyncChecksTotal.WithLabelValues("mismatch").Inc()
		return &OutOfSyncError{Frame: frame}
	}
	metrics.SyncChecksTotal.WithLabelValues("match").Inc()
	return nil
}

// SeenFrames reports how many distinct frames currently have a recorded
// sync packet — used for test assertions and diagnostics.
func (s *SyncChecker) SeenFrames() int {
	return len(s.seen)
}
