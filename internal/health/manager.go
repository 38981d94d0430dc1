// Package health runs periodic checks on the running server: connections
// stuck before play, disk space and the session ledger. Results feed the
// admin API and a heartbeat event published over MQTT.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/util"
)

const (
	DefaultStuckAfter        = 2 * time.Minute
	DefaultHeartbeatInterval = time.Minute

	connectionsInterval = 30 * time.Second
	diskInterval        = 5 * time.Minute
	ledgerInterval      = time.Minute
)

// Severity levels of a check result.
const (
	LevelOK       = "ok"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping() error
}

// Result is the outcome of one check run.
type Result struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

type check struct {
	name     string
	interval time.Duration
	fn       func() Result
}

// Manager runs the health checks.
type Manager struct {
	eventBus    *events.EventBus
	connections *network.ConnectionRegistry
	ledger      Pinger
	diskPath    string

	StuckAfter        time.Duration
	HeartbeatInterval time.Duration

	mu      sync.RWMutex
	results map[string]Result
}

// NewManager creates a health manager. ledger may be nil when the session
// ledger is disabled; diskPath is the directory whose volume is watched.
func NewManager(eventBus *events.EventBus, connections *network.ConnectionRegistry, ledger Pinger, diskPath string) *Manager {
	if diskPath == "" {
		diskPath = "."
	}
	return &Manager{
		eventBus:          eventBus,
		connections:       connections,
		ledger:            ledger,
		diskPath:          diskPath,
		StuckAfter:        DefaultStuckAfter,
		HeartbeatInterval: DefaultHeartbeatInterval,
		results:           make(map[string]Result),
	}
}

func (m *Manager) checks() []check {
	checks := []check{
		{"connections", connectionsInterval, m.checkConnections},
		{"disk", diskInterval, m.checkDisk},
	}
	if m.ledger != nil {
		checks = append(checks, check{"ledger", ledgerInterval, m.checkLedger})
	}
	return checks
}

// Start runs every check on its own ticker until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	checks := m.checks()
	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(c.interval)
			defer ticker.Stop()

			m.record(c.fn())
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.record(c.fn())
				}
			}
		}()
	}

	go m.heartbeatLoop(ctx)

	log.Info().Int("checks", len(checks)).Msg("health check manager started")
	<-ctx.Done()
	log.Info().Msg("health check manager stopped")
}

// RunChecks runs every check once and returns the results.
func (m *Manager) RunChecks() []Result {
	for _, c := range m.checks() {
		m.record(c.fn())
	}
	return m.Results()
}

func (m *Manager) record(r Result) {
	r.CheckedAt = time.Now()
	m.mu.Lock()
	prev, seen := m.results[r.Name]
	m.results[r.Name] = r
	m.mu.Unlock()

	switch {
	case !r.Healthy && (!seen || prev.Healthy):
		log.Warn().Str("check", r.Name).Str("level", r.Level).Msg(r.Message)
	case r.Healthy && seen && !prev.Healthy:
		log.Info().Str("check", r.Name).Msg("check recovered")
	}
}

// Results returns the latest result of every check, sorted by name.
func (m *Manager) Results() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Result, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Failing returns the names of checks whose latest result is unhealthy.
func (m *Manager) Failing() []string {
	var failing []string
	for _, r := range m.Results() {
		if !r.Healthy {
			failing = append(failing, r.Name)
		}
	}
	return failing
}

// Healthy reports whether every check passed on its latest run.
func (m *Manager) Healthy() bool {
	return len(m.Failing()) == 0
}

// checkConnections flags connections that have sat before play without
// traffic for longer than StuckAfter. They are reported, not closed.
func (m *Manager) checkConnections() Result {
	cutoff := time.Now().Add(-m.StuckAfter)
	stuck := 0
	for _, info := range m.connections.Snapshot() {
		if info.WriteState != protocol.StatePlay && info.LastActivity.Before(cutoff) {
			stuck++
		}
	}
	if stuck > 0 {
		return Result{
			Name:    "connections",
			Level:   LevelWarning,
			Message: fmt.Sprintf("%d connections idle before play for over %s", stuck, m.StuckAfter),
		}
	}
	return Result{
		Name:    "connections",
		Healthy: true,
		Level:   LevelOK,
		Message: fmt.Sprintf("%d connections", m.connections.Count()),
	}
}

// checkDisk grades disk usage at 80, 90, 95 and 100 percent.
func (m *Manager) checkDisk() Result {
	usage, err := util.GetDiskUsage(m.diskPath)
	if err != nil {
		return Result{Name: "disk", Level: LevelError, Message: fmt.Sprintf("disk check failed: %v", err)}
	}
	return diskResult(usage)
}

func diskResult(usage *util.DiskUsage) Result {
	message := fmt.Sprintf("disk usage at %.1f%% (%d GB free of %d GB)", usage.UsedPercent, usage.Free, usage.Total)
	r := Result{Name: "disk", Message: message}
	switch {
	case usage.UsedPercent >= 100:
		r.Level = LevelCritical
	case usage.UsedPercent >= 95:
		r.Level = LevelError
	case usage.UsedPercent >= 90:
		r.Level = LevelWarning
	case usage.UsedPercent >= 80:
		r.Level, r.Healthy = LevelInfo, true
	default:
		r.Level, r.Healthy = LevelOK, true
	}
	return r
}

func (m *Manager) checkLedger() Result {
	if err := m.ledger.Ping(); err != nil {
		return Result{Name: "ledger", Level: LevelError, Message: fmt.Sprintf("session ledger unreachable: %v", err)}
	}
	return Result{Name: "ledger", Healthy: true, Level: LevelOK, Message: "session ledger reachable"}
}

// heartbeatLoop publishes a heartbeat event every HeartbeatInterval.
func (m *Manager) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(m.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Heartbeat(ctx)
		}
	}
}

// Heartbeat publishes the current health summary on the bus.
func (m *Manager) Heartbeat(ctx context.Context) {
	failing := m.Failing()
	m.eventBus.Emit(context.WithoutCancel(ctx), events.Event{
		Type:   events.EventHeartbeat,
		Source: "health_check",
		Payload: &events.HeartbeatPayload{
			Connections: m.connections.Count(),
			Players:     m.connections.CountInState(protocol.StatePlay),
			Healthy:     len(failing) == 0,
			Failing:     failing,
		},
	})
}
