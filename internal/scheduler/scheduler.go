// Package scheduler runs the periodic background tasks of craftflow: the
// daily session ledger prune and the connection statistics log.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
)

const (
	// DefaultPruneTime is the local time of day the ledger is pruned.
	DefaultPruneTime = "04:00"
	// DefaultStatsInterval is how often connection statistics are logged.
	DefaultStatsInterval = 5 * time.Minute
)

// Pruner removes old sessions. db.SessionStore implements it.
type Pruner interface {
	Prune(olderThan time.Duration) (int64, error)
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg         *config.Config
	connections *network.ConnectionRegistry
	pruner      Pruner

	pruneTime     string
	statsInterval time.Duration
}

// NewScheduler creates a new task scheduler. pruner may be nil when the
// ledger is disabled.
func NewScheduler(cfg *config.Config, connections *network.ConnectionRegistry, pruner Pruner) *Scheduler {
	return &Scheduler{
		cfg:           cfg,
		connections:   connections,
		pruner:        pruner,
		pruneTime:     DefaultPruneTime,
		statsInterval: DefaultStatsInterval,
	}
}

// Start runs the tasks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	if s.pruner != nil {
		go s.runPruneLoop(ctx)
	}
	go s.runStatsLoop(ctx)

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

// runPruneLoop prunes the ledger once a day at the prune time.
func (s *Scheduler) runPruneLoop(ctx context.Context) {
	for {
		nextRun := nextDailyRun(time.Now(), s.pruneTime)
		log.Info().
			Time("next_run", nextRun).
			Msg("session prune scheduled")

		timer := time.NewTimer(time.Until(nextRun))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.PruneSessions()
		}
	}
}

// PruneSessions drops sessions older than the configured retention.
func (s *Scheduler) PruneSessions() {
	if s.pruner == nil {
		return
	}
	days := s.cfg.GetDatabase().RetentionDays
	if days <= 0 {
		log.Debug().Msg("session retention disabled, nothing pruned")
		return
	}

	removed, err := s.pruner.Prune(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("session prune failed")
		return
	}
	log.Info().
		Int64("removed", removed).
		Int("retention_days", days).
		Msg("session prune completed")
}

func (s *Scheduler) runStatsLoop(ctx context.Context) {
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.LogStats()
		}
	}
}

// Stats counts registered connections per write state.
func (s *Scheduler) Stats() map[protocol.State]int {
	out := make(map[protocol.State]int)
	for _, info := range s.connections.Snapshot() {
		out[info.WriteState]++
	}
	return out
}

// LogStats writes the current connection counts to the log.
func (s *Scheduler) LogStats() {
	stats := s.Stats()
	total := 0
	parts := make([]string, 0, len(stats))
	for _, state := range []protocol.State{protocol.StateStatus, protocol.StateLogin, protocol.StateConfiguration, protocol.StatePlay} {
		total += stats[state]
		parts = append(parts, fmt.Sprintf("%s=%d", state, stats[state]))
	}
	log.Info().
		Int("connections", total).
		Str("by_state", strings.Join(parts, " ")).
		Msg("connection stats")
}

// nextDailyRun returns the next time after now at hh:mm local time. A
// malformed clock falls back to 04:00.
func nextDailyRun(now time.Time, clock string) time.Time {
	hour, minute := 4, 0
	if t, err := time.Parse("15:04", clock); err == nil {
		hour, minute = t.Hour(), t.Minute()
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
