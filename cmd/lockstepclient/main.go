package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lockstep-go/internal/config"
	"lockstep-go/internal/demoworld"
	"lockstep-go/internal/lockstep"
	"lockstep-go/internal/syncreport"
	"lockstep-go/internal/telemetry"
	"lockstep-go/internal/transport"
	"lockstep-go/internal/wire"
)

const version = "1.0.0"

func main() {
	telemetry.Banner("Lockstep Client", version)

	var (
		configPath = flag.String("config", "", "path to lockstep.json")
		relayAddrs = flag.String("relay", "", "comma-separated relay addresses; empty runs solo via an in-process loopback")
		clientID   = flag.Uint("client-id", uint(wire.LocalClientID), "local client id to use in solo mode")
	)
	flag.Parse()

	if err := config.Load(*configPath); err != nil {
		telemetry.Fatal("failed to load configuration: %v", err)
	}
	if err := telemetry.Init(config.Global.Log.Level, config.Global.Log.Path); err != nil {
		telemetry.Fatal("failed to initialize logging: %v", err)
	}
	telemetry.Success("configuration loaded")

	var conn transport.Connection
	var localID uint32
	var lobby []uint32

	if *relayAddrs == "" {
		telemetry.Info("no relay address given, running solo against an in-process loopback")
		conn = transport.NewEchoConnection()
		localID = uint32(*clientID)
		lobby = []uint32{localID}
	} else {
		addrs := strings.Split(*relayAddrs, ",")
		logger := telemetry.L()
		tcp, err := transport.NewTCPConnectionFromDial(addrs, logger)
		if err != nil {
			telemetry.Fatal("failed to connect to relay: %v", err)
		}
		conn = tcp
		localID = tcp.ClientID()
		lobby = []uint32{localID}
		telemetry.Info("connected to relay, assigned client id %d", localID)
	}

	world := demoworld.New()
	processor := demoworld.Processor{}

	manager := lockstep.New(conn, localID, world, processor, wire.DecodeOrders,
		config.Global.Lockstep.NetTickScale, config.Global.Lockstep.SyncFrameScale)
	manager.SetShouldUseCatchup(config.Global.Lockstep.ShouldUseCatchup)

	manager.Events().Register(lockstep.EventOutOfSync, func(e lockstep.Event) {
		telemetry.Fatal("out of sync detected at frame %d: %v", e.Frame, e.Err)
	})
	manager.Events().Register(lockstep.EventClientQuit, func(e lockstep.Event) {
		telemetry.Warn("client %d quit", e.Client)
	})

	manager.SetSyncReporter(syncreport.New(os.Stderr, 64))

	if err := manager.StartGame(lobby, true); err != nil {
		telemetry.Fatal("failed to start game: %v", err)
	}
	telemetry.Success("game started with %d lobby client(s)", len(lobby))

	const maxPregameTicks = 50
	for i := 0; i < maxPregameTicks && !manager.GameReady(); i++ {
		if err := manager.TickPregame(); err != nil {
			telemetry.Fatal("pregame tick failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			telemetry.Warn("received signal: %v", sig)
			manager.Dispose()
			telemetry.Success("client stopped")
			os.Exit(0)
		case <-ticker.C:
			if _, err := manager.TryTick(); err != nil {
				telemetry.Fatal("lockstep tick failed: %v", err)
			}
		}
	}
}
