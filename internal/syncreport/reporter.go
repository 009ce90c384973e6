// Package syncreport implements the SyncReport collaborator: an append-only
// per-net-frame snapshot log that gets dumped to a writer the moment the
// lockstep core raises an out-of-sync fault, so a postmortem can diff
// divergent peers' reports off-band.
package syncreport

import (
	"fmt"
	"io"
	"sync"

	"lockstep-go/internal/lockstep"
)

// Snapshot is one captured net-frame: its frame number and the world's sync
// hash at that point, the only fields the World collaborator exposes
// deterministically.
type Snapshot struct {
	Frame uint32
	Hash  uint32
}

// Reporter is a lockstep.SyncReporter backed by an in-memory ring of
// captured frames and a writer it dumps to on fault. It is driven from the
// game thread, same as OrderManager — the mutex only guards against a
// concurrent Dump from, say, a signal handler tearing the game down.
type Reporter struct {
	mu        sync.Mutex
	snapshots []Snapshot
	w         io.Writer
	keep      int
}

// New constructs a Reporter dumping to w, retaining at most keep recent
// snapshots. keep <= 0 means unbounded.
func New(w io.Writer, keep int) *Reporter {
	return &Reporter{w: w, keep: keep}
}

// CaptureFrame implements lockstep.SyncReporter.
func (r *Reporter) CaptureFrame(frame uint32, world lockstep.World) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, Snapshot{Frame: frame, Hash: world.SyncHash()})
	if r.keep > 0 && len(r.snapshots) > r.keep {
		r.snapshots = r.snapshots[len(r.snapshots)-r.keep:]
	}
}

// Dump implements lockstep.SyncReporter: writes every retained snapshot
// alongside the triggering frame and cause to w. A nil writer makes Dump a
// no-op, so a Reporter can be built purely to exercise CaptureFrame in
// tests that never fault.
func (r *Reporter) Dump(frame uint32, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return
	}
	fmt.Fprintf(r.w, "sync report: out-of-sync at frame %d: %v\n", frame, cause)
	for _, s := range r.snapshots {
		fmt.Fprintf(r.w, "  frame=%d hash=%08x\n", s.Frame, s.Hash)
	}
}

// Snapshots returns a copy of the currently retained snapshots.
func (r *Reporter) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}

var _ lockstep.SyncReporter = (*Reporter)(nil)
