// craftflow is a multi-version Minecraft protocol server.
//
// It accepts players from every supported protocol version, answers the
// server list ping, logs players in and hands them a configured session,
// while an admin API, an operator CLI and MQTT telemetry watch over the
// live connections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/energizer-project/craftflow/internal/api"
	"github.com/energizer-project/craftflow/internal/cli"
	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/health"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/scheduler"
	"github.com/energizer-project/craftflow/internal/server"
	"github.com/energizer-project/craftflow/internal/telemetry"
	"github.com/energizer-project/craftflow/internal/util"
)

const (
	AppName = "craftflow"
	Banner  = `
                  __ _    __ _
   ___ _ __ __ _ / _| |_ / _| | _____      __
  / __| '__/ _' | |_| __| |_| |/ _ \ \ /\ / /
 | (__| | | (_| |  _| |_|  _| | (_) \ V  V /
  \___|_|  \__,_|_|  \__|_| |_|\___/ \_/\_/  v%s
 Multi-version Minecraft protocol server
`
	shutdownTimeout = 30 * time.Second
	kickGrace       = 2 * time.Second
	kickReason      = "Server closed"
)

func main() {
	configDir := pflag.StringP("config-dir", "c", config.DefaultConfigDir, "directory holding config.json")
	logLevel := pflag.StringP("log-level", "l", "", "override the configured log level")
	noCLI := pflag.Bool("no-cli", false, "disable the interactive console")
	pflag.Parse()

	fmt.Printf(Banner, telemetry.AppVersion)
	fmt.Println()

	// Defaults until the config is loaded
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", telemetry.AppVersion).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting craftflow")

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging := cfg.GetLogging()
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		Console:    true,
	}
	if *logLevel != "" {
		logCfg.Level = *logLevel
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Str("path", cfg.Path()).Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Str("go", sysInfo.GoVersion).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")
	if ip, err := util.GetLocalIP(); err == nil {
		log.Info().Str("local_ip", ip).Int("port", cfg.GetServer().Port).Msg("players can join on this address")
	}

	log.Info().
		Str("min", protocol.MinVersion().String()).
		Str("max", protocol.MaxVersion().String()).
		Int("versions", len(protocol.SupportedVersions)).
		Msg("protocol support")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventBus := events.NewEventBus()

	mgr, err := server.NewManager(cfg, eventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server manager")
	}

	// The ledger stays a nil interface when disabled.
	var ledger api.SessionLister
	if store := mgr.Sessions(); store != nil {
		ledger = store
	}

	var apiServer *api.Server
	if cfg.GetAPI().Enabled {
		apiServer = api.NewServer(cfg, eventBus, mgr.Connections())
		apiServer.SetDependencies(ledger, mgr.Metrics())
	}

	var mqttHandler *telemetry.MQTTHandler
	if mqttCfg := cfg.GetMQTT(); mqttCfg.Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(mqttCfg, eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		}
	}

	var pruner scheduler.Pruner
	var pinger health.Pinger
	diskPath := "."
	if store := mgr.Sessions(); store != nil {
		pruner = store
		pinger = store
		diskPath = filepath.Dir(cfg.GetDatabase().Path)
	}
	sched := scheduler.NewScheduler(cfg, mgr.Connections(), pruner)
	healthMgr := health.NewManager(eventBus, mgr.Connections(), pinger, diskPath)
	if apiServer != nil {
		apiServer.SetHealth(healthMgr)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	// The game listener is the only fatal task.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mgr.Start(ctx); err != nil {
			log.Error().Err(err).Msg("game listener failed")
			errCh <- fmt.Errorf("game listener: %w", err)
		}
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Int("port", cfg.GetAPI().Port).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting health check manager")
		healthMgr.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		sched.Start(ctx)
	}()

	if !*noCLI {
		// The CLI blocks on stdin, so it is not waited for.
		cliHandler := cli.NewCLI(cfg, eventBus, mgr.Connections(), ledger)
		go cliHandler.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-mgr.ShutdownRequested():
		log.Info().Msg("shutdown requested from console")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")

	kickAll(mgr, kickGrace)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(shutdownTimeout):
		log.Warn().Dur("timeout", shutdownTimeout).Msg("shutdown timed out, forcing exit")
	}

	if mqttHandler != nil {
		mqttHandler.PublishShutdown()
	}

	eventBus.Stop()
	mgr.Stop()

	log.Info().Msg("craftflow stopped")
}

// kickAll sends every player a disconnect message and waits up to grace for
// the connections to finish writing it. Cancelling the root context first
// would close the sockets with the message still queued.
func kickAll(mgr *server.Manager, grace time.Duration) {
	connections := mgr.Connections()
	for _, conn := range connections.GetAll() {
		_ = conn.Disconnect(kickReason)
	}
	deadline := time.Now().Add(grace)
	for connections.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if n := connections.Count(); n > 0 {
		log.Warn().Int("connections", n).Msg("closing connections that did not drain")
	}
}
