package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/coordinator/pkg/config"
	"github.com/cuemby/coordinator/pkg/log"
	"github.com/cuemby/coordinator/pkg/metrics"
	"github.com/cuemby/coordinator/pkg/statemachine"
)

// coordinatord loads config, opens the store, and constructs the state
// machine so it can be registered as a raft.FSM by whatever consensus
// wiring runs alongside it. It deliberately stops there: no RPC transport,
// no cluster bootstrap/join, no CLI subcommands.
func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	dataDir := flag.String("data-dir", "", "override the configured data directory")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "coordinatord: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.JSONLogs,
	})
	mainLog := log.WithComponent("coordinatord")

	sm, err := statemachine.Open(cfg.DataDir)
	if err != nil {
		log.Errorf("failed to open state machine", err)
		os.Exit(1)
	}
	defer sm.Close()

	collector := metrics.NewCollector(sm.Indexes())
	collector.Start()
	defer collector.Stop()

	mainLog.Info().Str("data_dir", cfg.DataDir).Msg("coordinatord state machine ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	mainLog.Info().Msg("shutting down")
}
