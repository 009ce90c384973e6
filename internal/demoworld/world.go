// Package demoworld is a minimal deterministic simulation: entities at
// fixed-point positions, spawned/moved/destroyed by orders dispatched
// through the lockstep core. Positions are fixed-point int32, not float32 —
// floating point arithmetic is not guaranteed bit-identical across peers'
// CPUs/compilers, and SyncHash must be.
package demoworld

import (
	"encoding/binary"
	"hash/fnv"
	"log"
	"sort"
)

// Entity is a single simulated object: a position and an owning client.
type Entity struct {
	ID       uint32
	X, Y, Z  int32
	Owner    uint32
}

// World is the deterministic entity set the lockstep core drives through
// order dispatch. It is owned exclusively by the game thread — no locking.
type World struct {
	entities map[uint32]*Entity
	nextID   uint32
}

// New constructs an empty world.
func New() *World {
	return &World{
		entities: make(map[uint32]*Entity),
		nextID:   1,
	}
}

// SpawnEntity creates a new entity at (x, y, z) owned by owner and returns
// its assigned id.
func (w *World) SpawnEntity(x, y, z int32, owner uint32) uint32 {
	id := w.nextID
	w.nextID++
	w.entities[id] = &Entity{ID: id, X: x, Y: y, Z: z, Owner: owner}
	log.Printf("entity %d spawned by client %d at (%d,%d,%d)", id, owner, x, y, z)
	return id
}

// MoveEntity displaces an entity by (dx, dy, dz). Reports false if the
// entity does not exist — a stale order targeting an already-destroyed
// entity is silently dropped, not an error, since destruction and movement
// orders from different clients can race within the same net-frame.
func (w *World) MoveEntity(id uint32, dx, dy, dz int32) bool {
	e, ok := w.entities[id]
	if !ok {
		return false
	}
	e.X += dx
	e.Y += dy
	e.Z += dz
	return true
}

// DestroyEntity removes an entity. Reports false if it did not exist.
func (w *World) DestroyEntity(id uint32) bool {
	if _, ok := w.entities[id]; !ok {
		return false
	}
	delete(w.entities, id)
	return true
}

// Entity returns the entity by id, if present.
func (w *World) Entity(id uint32) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// EntityCount reports how many entities currently exist.
func (w *World) EntityCount() int {
	return len(w.entities)
}

// SyncHash folds every entity's state, in ascending-ID order, through FNV-1a
// — an order-sensitive, deterministic fingerprint two peers can compare to
// detect divergence. Iteration order must not depend on map ranging, which
// Go deliberately randomizes.
func (w *World) SyncHash() uint32 {
	ids := make([]uint32, 0, len(w.entities))
	for id := range w.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := fnv.New32a()
	var buf [20]byte
	for _, id := range ids {
		e := w.entities[id]
		binary.LittleEndian.PutUint32(buf[0:4], e.ID)
		binary.LittleEndian.PutUint32(buf[4:8], uint32(e.X))
		binary.LittleEndian.PutUint32(buf[8:12], uint32(e.Y))
		binary.LittleEndian.PutUint32(buf[12:16], uint32(e.Z))
		binary.LittleEndian.PutUint32(buf[16:20], e.Owner)
		h.Write(buf[:])
	}
	return h.Sum32()
}

// RunUnsynced implements lockstep.World: it runs fn with the sync-check
// guard conceptually relaxed. The demo world has no guard to relax — fn
// just runs — but the hook exists so an order-processor applying an
// immediate order has a single place to route through regardless of which
// World implementation is wired in.
func (w *World) RunUnsynced(checkEnabled bool, fn func()) {
	fn()
}
