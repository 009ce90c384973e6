package synccheck

import "testing"

// S5 — frame=42, hash 0xDEADBEEF sent twice: no error. A third packet with
// 0xDEADBEF0 at the same frame: OUT-OF-SYNC naming frame 42.
func TestSyncCheckerScenarioS5(t *testing.T) {
	s := New()
	packet := func(lowByte byte) []byte {
		return []byte{42, 0, 0, 0, 0xF2, lowByte, 0xBE, 0xAD, 0xDE}
	}

	if err := s.Check(packet(0xEF)); err != nil {
		t.Fatalf("first observation should not error: %v", err)
	}
	if err := s.Check(packet(0xEF)); err != nil {
		t.Fatalf("identical repeat should not error: %v", err)
	}
	err := s.Check(packet(0xF0))
	if err == nil {
		t.Fatal("expected OUT-OF-SYNC on mismatching repeat")
	}
	oos, ok := err.(*OutOfSyncError)
	if !ok {
		t.Fatalf("expected *OutOfSyncError, got %T", err)
	}
	if oos.Frame != 42 {
		t.Errorf("expected frame 42, got %d", oos.Frame)
	}
}

func TestSyncCheckerLengthMismatchIsOutOfSync(t *testing.T) {
	s := New()
	frame42a := []byte{42, 0, 0, 0, 0xF2, 0xAA, 0xBB, 0xCC, 0xDD}
	frame42b := []byte{42, 0, 0, 0, 0xF2, 0xAA, 0xBB, 0xCC}

	if err := s.Check(frame42a); err != nil {
		t.Fatalf("first observation should not error: %v", err)
	}
	if err := s.Check(frame42b); err == nil {
		t.Fatal("expected OUT-OF-SYNC on length mismatch")
	}
}

func TestSyncCheckerIndependentFramesDoNotInterfere(t *testing.T) {
	s := New()
	f1 := []byte{1, 0, 0, 0, 0xF2, 0xAA}
	f2 := []byte{2, 0, 0, 0, 0xF2, 0xBB}

	if err := s.Check(f1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Check(f2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SeenFrames() != 2 {
		t.Errorf("expected 2 seen frames, got %d", s.SeenFrames())
	}
}
