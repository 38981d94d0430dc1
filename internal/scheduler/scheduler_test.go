package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
)

type fakePruner struct {
	olderThan time.Duration
	calls     int
	err       error
}

func (p *fakePruner) Prune(olderThan time.Duration) (int64, error) {
	p.calls++
	p.olderThan = olderThan
	return 3, p.err
}

func TestNextDailyRun(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		name  string
		now   time.Time
		clock string
		want  time.Time
	}{
		{"later today", time.Date(2024, 5, 1, 1, 0, 0, 0, loc), "04:00", time.Date(2024, 5, 1, 4, 0, 0, 0, loc)},
		{"tomorrow", time.Date(2024, 5, 1, 5, 0, 0, 0, loc), "04:00", time.Date(2024, 5, 2, 4, 0, 0, 0, loc)},
		{"exactly now", time.Date(2024, 5, 1, 4, 0, 0, 0, loc), "04:00", time.Date(2024, 5, 2, 4, 0, 0, 0, loc)},
		{"month end", time.Date(2024, 5, 31, 23, 0, 0, 0, loc), "22:30", time.Date(2024, 6, 1, 22, 30, 0, 0, loc)},
		{"malformed", time.Date(2024, 5, 1, 1, 0, 0, 0, loc), "soon", time.Date(2024, 5, 1, 4, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextDailyRun(tt.now, tt.clock))
		})
	}
}

func TestPruneSessionsUsesRetention(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.RetentionDays = 7
	p := &fakePruner{}

	s := NewScheduler(cfg, network.NewConnectionRegistry(), p)
	s.PruneSessions()
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 7*24*time.Hour, p.olderThan)

	p.err = errors.New("locked")
	s.PruneSessions()
	assert.Equal(t, 2, p.calls)

	cfg.Database.RetentionDays = 0
	s.PruneSessions()
	assert.Equal(t, 2, p.calls)
}

func TestStatsOnEmptyRegistry(t *testing.T) {
	s := NewScheduler(config.DefaultConfig(), network.NewConnectionRegistry(), nil)
	assert.Empty(t, s.Stats())
	assert.Zero(t, s.Stats()[protocol.StatePlay])
	s.LogStats()
	s.PruneSessions()
}
