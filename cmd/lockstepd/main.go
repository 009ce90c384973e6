package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lockstep-go/internal/config"
	"lockstep-go/internal/relay"
	"lockstep-go/internal/telemetry"
)

const version = "1.0.0"

func main() {
	telemetry.Banner("Lockstep Relay", version)

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := config.Load(configPath); err != nil {
		telemetry.Fatal("failed to load configuration: %v", err)
	}
	if err := telemetry.Init(config.Global.Log.Level, config.Global.Log.Path); err != nil {
		telemetry.Fatal("failed to initialize logging: %v", err)
	}

	telemetry.Info("relay version %s", version)
	telemetry.Info("listen address: %s", config.Global.Relay.Listen)
	telemetry.Info("max clients: %d", config.Global.Relay.MaxClients)
	telemetry.Success("configuration loaded")

	r := relay.New(config.Global.Relay.Listen, config.Global.Relay.MaxClients)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		if err := r.Start(); err != nil {
			errChan <- err
		}
	}()

	var metricsServer *http.Server
	if config.Global.Relay.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: config.Global.Relay.MetricsListen, Handler: mux}
		go func() {
			telemetry.Info("metrics served on %s/metrics", config.Global.Relay.MetricsListen)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				telemetry.Warn("metrics server stopped: %v", err)
			}
		}()
	}

	select {
	case err := <-errChan:
		telemetry.Fatal("relay error: %v", err)
	case sig := <-sigChan:
		telemetry.Warn("received signal: %v", sig)
		telemetry.Info("shutting down gracefully...")

		r.Stop()
		if metricsServer != nil {
			metricsServer.Close()
		}
		time.Sleep(200 * time.Millisecond)

		telemetry.Success("relay stopped")
		os.Exit(0)
	}
}
