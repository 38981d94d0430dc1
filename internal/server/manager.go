// Package server wires the craftflow engine together: the reactor, the
// event bus, the connection registry, the listener and the modules that
// give connections their behaviour.
package server

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/db"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/modules/login"
	"github.com/energizer-project/craftflow/internal/modules/ping"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/telemetry"
	"github.com/energizer-project/craftflow/internal/util"
)

// Manager owns the engine and everything registered on it. It is the
// modules.Host the modules are added to.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus

	reactor     *events.Reactor
	connections *network.ConnectionRegistry
	metrics     *telemetry.Metrics
	engine      *network.Engine
	listener    *network.Listener
	modules     *modules.Registry

	// nil when the ledger is disabled
	sessions *db.SessionStore

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewManager builds the engine from cfg and registers the modules.
func NewManager(cfg *config.Config, eventBus *events.EventBus) (*Manager, error) {
	srv := cfg.GetServer()
	reactor := events.NewReactor()
	connections := network.NewConnectionRegistry()
	metrics := telemetry.NewMetrics()

	engine := &network.Engine{
		Reactor:  reactor,
		Bus:      eventBus,
		Codec:    protocol.DefaultRegistry(),
		Registry: connections,
		Metrics:  metrics,
		Settings: network.SettingsFromConfig(srv),
	}

	mgr := &Manager{
		cfg:         cfg,
		eventBus:    eventBus,
		reactor:     reactor,
		connections: connections,
		metrics:     metrics,
		engine:      engine,
		listener:    network.NewListener(srv.Address(), engine),
		modules:     modules.NewRegistry(),
		shutdownCh:  make(chan struct{}),
	}

	if err := mgr.openLedger(); err != nil {
		return nil, err
	}
	if err := mgr.registerModules(); err != nil {
		mgr.closeLedger()
		return nil, err
	}
	mgr.subscribeEvents()

	return mgr, nil
}

func (m *Manager) openLedger() error {
	dbCfg := m.cfg.GetDatabase()
	if !dbCfg.Enabled {
		log.Info().Msg("session ledger disabled")
		return nil
	}
	if err := util.EnsureDir(filepath.Dir(dbCfg.Path)); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	store, err := db.NewSessionStore(dbCfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open session ledger: %w", err)
	}
	store.Subscribe(m.eventBus)
	m.sessions = store
	return nil
}

func (m *Manager) closeLedger() {
	if m.sessions == nil {
		return
	}
	if err := m.sessions.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close session ledger")
	}
}

// registerModules adds the modules in order. Ping goes first so its
// status handler sees requests before anything else.
func (m *Manager) registerModules() error {
	for _, mod := range []modules.Module{
		ping.New(),
		login.New(login.Options{}),
	} {
		if err := m.modules.Add(m, mod); err != nil {
			return err
		}
	}
	log.Info().Strs("modules", m.modules.Names()).Msg("modules registered")
	return nil
}

// subscribeEvents registers the manager's bus handlers.
func (m *Manager) subscribeEvents() {
	m.eventBus.Subscribe(events.EventConfigChanged, "manager.configChanged", m.onConfigChanged)
	m.eventBus.Subscribe(events.EventShutdown, "manager.shutdown", m.onShutdown)
}

func (m *Manager) onConfigChanged(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(*events.ConfigChangedPayload)
	if !ok {
		return nil
	}
	// Settings are copied into the engine at startup; new values apply
	// after a restart.
	log.Info().
		Str("section", p.Section).
		Str("key", p.Key).
		Str("source", event.Source).
		Msg("configuration changed, restart to apply")
	return nil
}

func (m *Manager) onShutdown(ctx context.Context, event events.Event) error {
	m.shutdownOnce.Do(func() {
		log.Info().Str("source", event.Source).Msg("shutdown requested")
		close(m.shutdownCh)
	})
	return nil
}

// ShutdownRequested is closed once a shutdown event has been seen.
func (m *Manager) ShutdownRequested() <-chan struct{} { return m.shutdownCh }

func (m *Manager) Reactor() *events.Reactor                 { return m.reactor }
func (m *Manager) Connections() *network.ConnectionRegistry { return m.connections }
func (m *Manager) Config() *config.Config                   { return m.cfg }

// Metrics returns the Prometheus collectors fed by the engine.
func (m *Manager) Metrics() *telemetry.Metrics { return m.metrics }

// Sessions returns the session ledger, or nil when it is disabled.
func (m *Manager) Sessions() *db.SessionStore { return m.sessions }

// Modules returns the registered modules.
func (m *Manager) Modules() *modules.Registry { return m.modules }

// Listener returns the game listener.
func (m *Manager) Listener() *network.Listener { return m.listener }

// Start accepts players until ctx is cancelled. The LAN announcer runs
// alongside when enabled; its failure is logged and does not stop the
// listener.
func (m *Manager) Start(ctx context.Context) error {
	srv := m.cfg.GetServer()
	if srv.LANBroadcast {
		announcer := network.NewLANAnnouncer(srv.MOTD, srv.Port)
		go func() {
			if err := announcer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("LAN announcer stopped")
			}
		}()
	}

	log.Info().
		Str("addr", srv.Address()).
		Str("min_version", protocol.MinVersion().String()).
		Str("max_version", protocol.MaxVersion().String()).
		Msg("starting game listener")
	return m.listener.Start(ctx)
}

// Stop closes every connection and the ledger.
func (m *Manager) Stop() {
	m.listener.Stop()
	m.connections.CloseAll()
	m.closeLedger()
	log.Info().Msg("server manager stopped")
}
