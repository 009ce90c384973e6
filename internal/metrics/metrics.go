// Package metrics exposes the relay and client's Prometheus instrumentation:
// packet throughput, AwaitingAck/FrameData backlog depth, and sync-check
// outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSent counts packets the relay writes to the wire, labeled by
	// kind (relayed, ack).
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lockstep",
		Name:      "packets_sent_total",
		Help:      "Packets written to the wire, by kind.",
	}, []string{"kind"})

	// PacketsReceived counts client packets classified by the relay's
	// dispatchClientFrame, labeled by kind (disconnect, sync, immediate,
	// order).
	PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lockstep",
		Name:      "packets_received_total",
		Help:      "Packets classified on receive, by kind.",
	}, []string{"kind"})

	// AwaitingAckDepth reports the current AwaitingAck FIFO backlog for a
	// connection.
	AwaitingAckDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lockstep",
		Name:      "awaiting_ack_depth",
		Help:      "Current depth of the AwaitingAck FIFO.",
	})

	// FrameDataBacklog reports the per-client FrameData queue depth,
	// labeled by client id.
	FrameDataBacklog = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lockstep",
		Name:      "framedata_backlog",
		Help:      "Queued-but-undispatched packet count per client.",
	}, []string{"client"})

	// SyncChecksTotal counts sync-hash comparisons, labeled by outcome
	// (first_observation, match, mismatch).
	SyncChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lockstep",
		Name:      "sync_checks_total",
		Help:      "Sync-hash comparisons, by outcome.",
	}, []string{"outcome"})

	// OutOfSyncTotal counts fatal OUT-OF-SYNC faults.
	OutOfSyncTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "lockstep",
		Name:      "out_of_sync_total",
		Help:      "Fatal sync-hash mismatches detected.",
	})

	// ConnectedClients reports the relay's current accepted-connection
	// count.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lockstep",
		Name:      "connected_clients",
		Help:      "Currently connected relay clients.",
	})
)
