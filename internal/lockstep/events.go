package lockstep

import "sync"

// EventType enumerates the lockstep-domain notifications OrderManager
// raises for interested observers (UI, telemetry, replay tooling).
type EventType int

const (
	EventClientJoined EventType = iota
	EventClientQuit
	EventOutOfSync
	EventGameStarted
)

func (t EventType) String() string {
	switch t {
	case EventClientJoined:
		return "ClientJoined"
	case EventClientQuit:
		return "ClientQuit"
	case EventOutOfSync:
		return "OutOfSync"
	case EventGameStarted:
		return "GameStarted"
	default:
		return "Unknown"
	}
}

// Event is the payload handed to every registered handler. Client and Frame
// are zero when not meaningful for the given Type (e.g. GameStarted carries
// neither).
type Event struct {
	Type   EventType
	Client uint32
	Frame  uint32
	Err    error
}

// EventHandler observes one Event.
type EventHandler func(Event)

// EventManager is a small synchronous fan-out registry: Trigger invokes
// every handler registered for the event's type, on the caller's thread, in
// registration order. OrderManager only ever calls Trigger from the game
// thread, so no handler needs to be reentrant-safe across goroutines — it
// just must not block.
type EventManager struct {
	mu       sync.Mutex
	handlers map[EventType][]EventHandler
}

// NewEventManager constructs an empty registry.
func NewEventManager() *EventManager {
	return &EventManager{handlers: make(map[EventType][]EventHandler)}
}

// Register adds a handler for the given event type.
func (m *EventManager) Register(t EventType, h EventHandler) {
	m.mu.Lock()
	m.handlers[t] = append(m.handlers[t], h)
	m.mu.Unlock()
}

// Trigger invokes every handler registered for e.Type, in registration
// order.
func (m *EventManager) Trigger(e Event) {
	m.mu.Lock()
	handlers := append([]EventHandler(nil), m.handlers[e.Type]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
