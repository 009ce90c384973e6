// Package lockstep implements OrderManager, the tick state machine that
// drives the packet codec, Connection, FrameData, and SyncChecker into a
// deterministic net-tick/local-tick loop.
package lockstep

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"lockstep-go/internal/framedata"
	"lockstep-go/internal/metrics"
	"lockstep-go/internal/synccheck"
	"lockstep-go/internal/transport"
	"lockstep-go/internal/wire"
)

// orderKeepaliveInterval: when nextOrderFrame is a multiple of this value,
// SendOrders calls Connection.SendFrame even with an empty order buffer. An
// empty SendFrame emits no order packet (only queued sync packets flush), so
// on such a frame nextOrderFrame advances without an order packet on the
// wire. Not a protocol constant.
const orderKeepaliveInterval = 30

// World is the simulation side's deterministic-snapshot collaborator.
type World interface {
	// SyncHash returns an order-sensitive, deterministic fingerprint of
	// world state, used to detect divergence across peers.
	SyncHash() uint32
	// RunUnsynced runs fn with the sync-check guard transiently relaxed,
	// for work (like applying an out-of-band immediate order) that may
	// legitimately mutate hash-affecting state outside the normal
	// net-tick dispatch.
	RunUnsynced(checkEnabled bool, fn func())
}

// OrderProcessor applies one deserialized order to world. Implementations
// must be pure with respect to identical (client, order, world-state)
// inputs — the determinism invariant depends on it.
type OrderProcessor interface {
	ProcessOrder(om *OrderManager, world World, fromClient uint32, order []byte)
}

// SyncReporter captures per-net-frame world snapshots while sync reporting
// is enabled and dumps the accumulated report the moment an out-of-sync
// fault is raised, so a postmortem can diff divergent peers' reports
// off-band. A nil reporter (the default) makes both calls no-ops.
type SyncReporter interface {
	// CaptureFrame records a snapshot of world at the given net-frame.
	CaptureFrame(frame uint32, world World)
	// Dump flushes every captured snapshot alongside the frame and cause
	// that triggered the fault.
	Dump(frame uint32, cause error)
}

type immediatePacket struct {
	client  uint32
	payload []byte
}

// SaveReplayState, when non-nil, marks the manager as resuming from a saved
// game: SendOrders and the sync-hash send in ProcessOrders defer to the
// recorded frame counters instead of live values until they catch up.
type SaveReplayState struct {
	LastOrderFrame uint32
	LastSyncFrame  uint32
}

// OrderManager is the central lockstep tick state machine. One instance is
// owned exclusively by the game thread; it in turn exclusively
// owns FrameData, the SyncChecker, and the local order buffers. Connection
// is shared by reference — OrderManager only ever observes its state and
// drives its Send*/Receive methods.
type OrderManager struct {
	conn      transport.Connection
	world     World
	processor OrderProcessor
	events    *EventManager

	syncReporter      SyncReporter
	syncReportEnabled bool

	localClientID  uint32
	netTickScale   uint32
	syncFrameScale uint32
	shouldCatchup  bool
	save           *SaveReplayState

	frameData *framedata.FrameData
	sync      *synccheck.SyncChecker

	localFrame      uint64
	netFrame        uint32
	nextOrderFrame  uint32
	localOrders     [][]byte
	localImmediate  [][]byte
	receivedImm     []immediatePacket
	isCatchingUp    bool
	catchupFrames   int
	gameStarted     bool
	disposed        bool
}

// New constructs an OrderManager bound to conn. decoder splits a raw frame
// packet's orders payload into individual orders; it is threaded through to
// the internal FrameData so the codec dependency stays explicit rather than
// hidden behind an import cycle.
func New(conn transport.Connection, localClientID uint32, world World, processor OrderProcessor, decoder framedata.OrderDecoder, netTickScale, syncFrameScale uint32) *OrderManager {
	return &OrderManager{
		conn:           conn,
		world:          world,
		processor:      processor,
		events:         NewEventManager(),
		localClientID:  localClientID,
		netTickScale:   netTickScale,
		syncFrameScale: syncFrameScale,
		shouldCatchup:  true,
		frameData:      framedata.New(decoder),
		sync:           synccheck.New(),
	}
}

// Events exposes the manager's event registry for observers (UI, telemetry).
func (om *OrderManager) Events() *EventManager { return om.events }

// SetSaveReplayState marks the manager as resuming a saved game.
func (om *OrderManager) SetSaveReplayState(s *SaveReplayState) { om.save = s }

// SetShouldUseCatchup toggles whether TryTick's catch-up computation is
// allowed to request extra ticks per render frame.
func (om *OrderManager) SetShouldUseCatchup(v bool) { om.shouldCatchup = v }

// SetSyncReporter installs the collaborator ProcessOrders and the
// out-of-sync path report through. Install before StartGame so the first
// net-frame is captured.
func (om *OrderManager) SetSyncReporter(r SyncReporter) { om.syncReporter = r }

// NetFrame returns the current net-frame counter.
func (om *OrderManager) NetFrame() uint32 { return om.netFrame }

// LocalFrame returns the current local-frame counter.
func (om *OrderManager) LocalFrame() uint64 { return om.localFrame }

// IsCatchingUp reports whether the outer game loop should call TryTick more
// than once this render frame to drain backlog.
func (om *OrderManager) IsCatchingUp() bool { return om.isCatchingUp }

// CatchupFrames reports how many extra ticks the catch-up computation wants.
func (om *OrderManager) CatchupFrames() int { return om.catchupFrames }

// Issue appends order to the local immediate or frame-order buffer,
// depending on isImmediate.
func (om *OrderManager) Issue(order []byte, isImmediate bool) {
	if isImmediate {
		om.localImmediate = append(om.localImmediate, order)
	} else {
		om.localOrders = append(om.localOrders, order)
	}
}

// StartGame registers every lobby client (and the local client) into
// FrameData, resets the frame counters, and makes one initial SendOrders
// call. With no local orders buffered that call transmits nothing: order
// frame 1 is not a keepalive frame, and an empty SendFrame emits no order
// packet. Idempotent.
func (om *OrderManager) StartGame(lobbyClients []uint32, syncReportEnabled bool) error {
	if om.gameStarted {
		return nil
	}
	for _, c := range lobbyClients {
		om.frameData.AddClient(c)
	}
	om.frameData.AddClient(om.localClientID)
	om.netFrame = 1
	om.nextOrderFrame = 1
	om.gameStarted = true
	om.syncReportEnabled = syncReportEnabled

	om.events.Trigger(Event{Type: EventGameStarted})
	return om.SendOrders()
}

// SendImmediateOrders transmits any buffered immediate orders and clears
// the buffer.
func (om *OrderManager) SendImmediateOrders() error {
	if len(om.localImmediate) == 0 {
		return nil
	}
	err := om.conn.SendImmediate(om.localImmediate)
	om.localImmediate = om.localImmediate[:0]
	return err
}

// SendOrders transmits the buffered local orders for nextOrderFrame, unless
// net_frame is still 0, or a save-replay is still catching up to its
// recorded last order frame. An empty buffer is passed to SendFrame only on
// keepalive frames (see orderKeepaliveInterval).
func (om *OrderManager) SendOrders() error {
	if om.netFrame < 1 {
		return nil
	}
	if om.save != nil && om.save.LastOrderFrame >= om.nextOrderFrame {
		om.nextOrderFrame++
		om.localOrders = om.localOrders[:0]
		return nil
	}
	keepalive := om.nextOrderFrame%orderKeepaliveInterval == 0
	if len(om.localOrders) == 0 && !keepalive {
		return nil
	}
	err := om.conn.SendFrame(om.nextOrderFrame, om.localOrders)
	om.localOrders = om.localOrders[:0]
	om.nextOrderFrame++
	return err
}

// ReceiveAllAndCheckSync drains Connection.Receive and classifies every
// packet: disconnects mark FrameData, sync packets feed the SyncChecker,
// frame==0 packets buffer as immediates, everything else goes onto
// FrameData's per-client queue. The first classification error (OutOfSync
// or UnknownClient) is returned after the full drain completes.
func (om *OrderManager) ReceiveAllAndCheckSync() error {
	var firstErr error
	om.conn.Receive(func(fromClient uint32, payload []byte) {
		switch {
		case len(payload) == 5 && payload[4] == wire.TagDisconnect:
			om.frameData.ClientQuit(fromClient)
			om.events.Trigger(Event{Type: EventClientQuit, Client: fromClient, Frame: wire.Frame(payload)})

		case len(payload) >= 5 && payload[4] == wire.TagSyncHash:
			if err := om.sync.Check(payload); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				if om.syncReportEnabled && om.syncReporter != nil {
					om.syncReporter.Dump(wire.Frame(payload), err)
				}
				metrics.OutOfSyncTotal.Inc()
				om.events.Trigger(Event{Type: EventOutOfSync, Client: fromClient, Frame: wire.Frame(payload), Err: err})
			}

		case wire.Frame(payload) == 0:
			om.receivedImm = append(om.receivedImm, immediatePacket{fromClient, payload})

		default:
			if err := om.frameData.AddFrameOrders(fromClient, payload[4:]); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("lockstep: client %d: %w", fromClient, err)
			} else if err == nil {
				metrics.FrameDataBacklog.WithLabelValues(strconv.FormatUint(uint64(fromClient), 10)).
					Set(float64(om.frameData.BufferSizeForClient(fromClient)))
			}
		}
	})
	return firstErr
}

// ProcessImmediateOrders dispatches every buffered immediate, re-checking
// the disposed flag between each since an immediate may itself trigger
// teardown (mod-switch, disconnect).
func (om *OrderManager) ProcessImmediateOrders() {
	pending := om.receivedImm
	om.receivedImm = nil
	for _, p := range pending {
		if om.disposed {
			return
		}
		order := p.payload[4:]
		om.world.RunUnsynced(true, func() {
			om.processor.ProcessOrder(om, om.world, p.client, order)
		})
	}
}

// compensateForLatency computes buffer-depth catch-up: how many extra local
// ticks to run this pass so the local simulation doesn't trail behind the
// order buffer it's accumulated. A latency-based alternative is future
// work and is not implemented here.
func (om *OrderManager) compensateForLatency() {
	b := om.frameData.BufferSizeForClient(om.localClientID)
	catchup := b - 1
	if catchup < 0 {
		catchup = 0
	}
	om.catchupFrames = catchup
	om.isCatchingUp = om.shouldCatchup && catchup > 0
}

type frameDispatcher struct{ om *OrderManager }

func (d frameDispatcher) DispatchOrder(client uint32, order []byte) {
	d.om.processor.ProcessOrder(d.om, d.om.world, client, order)
}

// ProcessOrders drains one packet per playing client from FrameData,
// dispatches every order in deterministic (ascending-ClientId,
// serialization) order, emits a sync hash every syncFrameScale frames,
// captures a SyncReport snapshot when enabled, and advances net_frame by
// exactly one.
func (om *OrderManager) ProcessOrders() error {
	if err := om.frameData.OrdersForFrame(frameDispatcher{om}); err != nil {
		return err
	}
	for _, c := range om.frameData.ClientsPlayingInFrame() {
		metrics.FrameDataBacklog.WithLabelValues(strconv.FormatUint(uint64(c), 10)).
			Set(float64(om.frameData.BufferSizeForClient(c)))
	}

	if om.syncFrameScale > 0 && om.netFrame%om.syncFrameScale == 0 {
		var hash uint32
		if om.save != nil && om.save.LastSyncFrame >= om.netFrame {
			hash = 0
		} else {
			hash = om.world.SyncHash()
		}
		var hashBytes [4]byte
		binary.LittleEndian.PutUint32(hashBytes[:], hash)
		if err := om.conn.SendSync(om.netFrame, hashBytes[:]); err != nil {
			return err
		}
	}

	if om.syncReportEnabled && om.syncReporter != nil {
		om.syncReporter.CaptureFrame(om.netFrame, om.world)
	}

	om.netFrame++
	return nil
}

// GameReady reports whether every currently playing client has queued at
// least one packet for the pending frame — the condition a TickPregame
// loop waits for before its caller switches over to TryTick.
func (om *OrderManager) GameReady() bool {
	return om.frameData.IsReadyForFrame()
}

// TickPregame drains connection traffic and dispatches any buffered
// immediates while the game waits for every lobby client's first frame
// order to arrive after StartGame. Unlike TryTick it never
// calls ProcessOrders and never advances net_frame or local_frame — callers
// invoke it repeatedly between StartGame and the live TryTick loop, until
// GameReady reports true.
func (om *OrderManager) TickPregame() error {
	if err := om.ReceiveAllAndCheckSync(); err != nil {
		return err
	}
	om.ProcessImmediateOrders()
	return nil
}

// TryTick is the master state machine: one call attempts at
// most one net-frame's worth of work, advancing local_frame only if a
// net-frame was actually processed. The caller should call it once per
// render frame, or more when IsCatchingUp reports a backlog.
func (om *OrderManager) TryTick() (willTick bool, err error) {
	isNetTick := uint32(om.localFrame)%om.netTickScale == 0

	shouldTick := false
	if isNetTick {
		shouldTick = true
		for _, c := range om.frameData.ClientsNotReadyForFrame() {
			if c == om.localClientID {
				continue
			}
			shouldTick = false
			break
		}
		if shouldTick {
			if err := om.SendOrders(); err != nil {
				return false, err
			}
		}
	}

	if err := om.SendImmediateOrders(); err != nil {
		return false, err
	}

	if err := om.ReceiveAllAndCheckSync(); err != nil {
		return false, err
	}

	om.ProcessImmediateOrders()

	om.compensateForLatency()

	if shouldTick && isNetTick && om.frameData.IsReadyForFrame() {
		if err := om.ProcessOrders(); err != nil {
			return false, err
		}
		willTick = true
	}

	if willTick {
		om.localFrame++
	}
	return willTick, nil
}

// Dispose marks the manager as torn down; ProcessImmediateOrders consults
// this between dispatches to stop mid-batch if an immediate order itself
// disposed the manager (e.g. a mod switch).
func (om *OrderManager) Dispose() error {
	if om.disposed {
		return nil
	}
	om.disposed = true
	return om.conn.Dispose()
}

// Disposed reports whether Dispose has been called.
func (om *OrderManager) Disposed() bool { return om.disposed }
