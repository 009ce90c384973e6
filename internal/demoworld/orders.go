package demoworld

import (
	"encoding/binary"

	"lockstep-go/internal/lockstep"
)

// Opcode identifies which entity operation an order encodes.
type Opcode byte

const (
	OpSpawn Opcode = iota
	OpMove
	OpDestroy
)

// EncodeSpawn builds an order requesting a new entity at (x, y, z) owned by
// owner.
func EncodeSpawn(x, y, z int32, owner uint32) []byte {
	buf := make([]byte, 17)
	buf[0] = byte(OpSpawn)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(x))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(y))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(z))
	binary.LittleEndian.PutUint32(buf[13:17], owner)
	return buf
}

// EncodeMove builds an order requesting entity id move by (dx, dy, dz).
func EncodeMove(id uint32, dx, dy, dz int32) []byte {
	buf := make([]byte, 17)
	buf[0] = byte(OpMove)
	binary.LittleEndian.PutUint32(buf[1:5], id)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(dx))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(dy))
	binary.LittleEndian.PutUint32(buf[13:17], uint32(dz))
	return buf
}

// EncodeDestroy builds an order requesting entity id be destroyed.
func EncodeDestroy(id uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(OpDestroy)
	binary.LittleEndian.PutUint32(buf[1:5], id)
	return buf
}

// Processor applies demoworld orders to a World. It implements
// lockstep.OrderProcessor.
type Processor struct{}

// ProcessOrder implements lockstep.OrderProcessor.
func (Processor) ProcessOrder(om *lockstep.OrderManager, world lockstep.World, fromClient uint32, order []byte) {
	if len(order) == 0 {
		return
	}
	w, ok := world.(*World)
	if !ok {
		return
	}
	switch Opcode(order[0]) {
	case OpSpawn:
		if len(order) < 17 {
			return
		}
		x := int32(binary.LittleEndian.Uint32(order[1:5]))
		y := int32(binary.LittleEndian.Uint32(order[5:9]))
		z := int32(binary.LittleEndian.Uint32(order[9:13]))
		owner := binary.LittleEndian.Uint32(order[13:17])
		w.SpawnEntity(x, y, z, owner)
	case OpMove:
		if len(order) < 17 {
			return
		}
		id := binary.LittleEndian.Uint32(order[1:5])
		dx := int32(binary.LittleEndian.Uint32(order[5:9]))
		dy := int32(binary.LittleEndian.Uint32(order[9:13]))
		dz := int32(binary.LittleEndian.Uint32(order[13:17]))
		w.MoveEntity(id, dx, dy, dz)
	case OpDestroy:
		if len(order) < 5 {
			return
		}
		id := binary.LittleEndian.Uint32(order[1:5])
		w.DestroyEntity(id)
	}
}

var _ lockstep.OrderProcessor = Processor{}
