package syncreport

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type fakeWorld struct{ hash uint32 }

func (w fakeWorld) SyncHash() uint32                        { return w.hash }
func (w fakeWorld) RunUnsynced(checkEnabled bool, fn func()) { fn() }

func TestReporterDumpsCapturedSnapshots(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, 0)

	r.CaptureFrame(1, fakeWorld{hash: 0xAA})
	r.CaptureFrame(2, fakeWorld{hash: 0xBB})

	r.Dump(2, errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "frame 2") {
		t.Fatalf("expected dump to mention the fault frame, got: %s", out)
	}
	if !strings.Contains(out, "hash=000000aa") || !strings.Contains(out, "hash=000000bb") {
		t.Fatalf("expected dump to list both captured hashes, got: %s", out)
	}
}

func TestReporterKeepBoundsRetention(t *testing.T) {
	r := New(nil, 2)
	r.CaptureFrame(1, fakeWorld{hash: 1})
	r.CaptureFrame(2, fakeWorld{hash: 2})
	r.CaptureFrame(3, fakeWorld{hash: 3})

	snaps := r.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected retention capped at 2, got %d", len(snaps))
	}
	if snaps[0].Frame != 2 || snaps[1].Frame != 3 {
		t.Fatalf("expected the oldest snapshot evicted, got %+v", snaps)
	}
}

func TestReporterDumpIsNoOpWithoutWriter(t *testing.T) {
	r := New(nil, 0)
	r.CaptureFrame(1, fakeWorld{hash: 1})
	r.Dump(1, errors.New("boom")) // must not panic
}
