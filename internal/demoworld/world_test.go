package demoworld

import (
	"testing"

	"lockstep-go/internal/lockstep"
)

func TestWorldSpawnMoveDestroy(t *testing.T) {
	w := New()
	id := w.SpawnEntity(1, 2, 3, 7)
	if w.EntityCount() != 1 {
		t.Fatalf("expected 1 entity, got %d", w.EntityCount())
	}
	e, ok := w.Entity(id)
	if !ok || e.X != 1 || e.Y != 2 || e.Z != 3 || e.Owner != 7 {
		t.Fatalf("unexpected entity state: %+v", e)
	}

	if !w.MoveEntity(id, 10, -5, 0) {
		t.Fatal("expected MoveEntity to succeed")
	}
	e, _ = w.Entity(id)
	if e.X != 11 || e.Y != -3 || e.Z != 3 {
		t.Fatalf("unexpected position after move: %+v", e)
	}

	if !w.DestroyEntity(id) {
		t.Fatal("expected DestroyEntity to succeed")
	}
	if w.EntityCount() != 0 {
		t.Fatalf("expected 0 entities after destroy, got %d", w.EntityCount())
	}
	if w.DestroyEntity(id) {
		t.Fatal("expected a second destroy of the same id to report false")
	}
}

func TestWorldMoveUnknownEntityReportsFalse(t *testing.T) {
	w := New()
	if w.MoveEntity(99, 1, 1, 1) {
		t.Fatal("expected MoveEntity on an unknown id to report false")
	}
}

func TestWorldSyncHashDeterministicForIdenticalWorlds(t *testing.T) {
	w1 := New()
	w1.SpawnEntity(1, 1, 1, 1)
	w1.SpawnEntity(2, 2, 2, 2)

	w2 := New()
	w2.SpawnEntity(1, 1, 1, 1)
	w2.SpawnEntity(2, 2, 2, 2)

	if w1.SyncHash() != w2.SyncHash() {
		t.Fatalf("expected identical hashes for identical entity sets, got %d vs %d",
			w1.SyncHash(), w2.SyncHash())
	}
}

func TestWorldSyncHashChangesOnMutation(t *testing.T) {
	w := New()
	id := w.SpawnEntity(0, 0, 0, 1)
	before := w.SyncHash()
	w.MoveEntity(id, 1, 0, 0)
	after := w.SyncHash()
	if before == after {
		t.Fatal("expected SyncHash to change after a mutation")
	}
}

func TestProcessorDispatchesSpawnMoveDestroy(t *testing.T) {
	w := New()
	var proc Processor

	proc.ProcessOrder(nil, w, 1, EncodeSpawn(5, 5, 5, 1))
	if w.EntityCount() != 1 {
		t.Fatalf("expected spawn to create 1 entity, got %d", w.EntityCount())
	}

	var id uint32
	for _, e := range []uint32{1} {
		if _, ok := w.Entity(e); ok {
			id = e
		}
	}
	if id == 0 {
		t.Fatal("expected entity id 1 to exist")
	}

	proc.ProcessOrder(nil, w, 1, EncodeMove(id, 1, 1, 1))
	e, _ := w.Entity(id)
	if e.X != 6 || e.Y != 6 || e.Z != 6 {
		t.Fatalf("unexpected position after processed move: %+v", e)
	}

	proc.ProcessOrder(nil, w, 1, EncodeDestroy(id))
	if w.EntityCount() != 0 {
		t.Fatalf("expected destroy to remove the entity, got count %d", w.EntityCount())
	}
}

func TestProcessorIgnoresTruncatedOrder(t *testing.T) {
	w := New()
	var proc Processor
	proc.ProcessOrder(nil, w, 1, []byte{byte(OpSpawn), 0x01})
	if w.EntityCount() != 0 {
		t.Fatalf("expected truncated spawn order to be ignored, got count %d", w.EntityCount())
	}
}

var _ lockstep.World = (*World)(nil)
