package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/protocol"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(filepath.Join(t.TempDir(), "data", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	player := uuid.New()

	require.NoError(t, s.RecordHandshake(1, "10.0.0.1:4000", protocol.V1_21, 2))
	require.NoError(t, s.RecordLogin(1, "Steve", player))
	require.NoError(t, s.RecordDisconnect(1, "kicked"))

	sessions, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	got := sessions[0]
	assert.Equal(t, s.SessionID(1), got.ID)
	assert.Equal(t, uint64(1), got.ConnID)
	assert.Equal(t, "10.0.0.1:4000", got.Remote)
	assert.Equal(t, protocol.V1_21, got.Version)
	assert.Equal(t, int32(2), got.Intent)
	assert.Equal(t, "Steve", got.Username)
	assert.Equal(t, player.String(), got.PlayerUUID)
	require.NotNil(t, got.LoggedInAt)
	require.NotNil(t, got.DisconnectedAt)
	assert.Equal(t, "kicked", got.Reason)
}

func TestSessionForConnection(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordHandshake(4, "10.0.0.4:4000", protocol.V1_20_2, 1))

	got, ok, err := s.ForConnection(4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, s.SessionID(4), got.ID)
	assert.Equal(t, protocol.V1_20_2, got.Version)
	assert.Nil(t, got.DisconnectedAt)

	_, ok, err = s.ForConnection(5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRecordsInAnyOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.RecordDisconnect(5, ""))
	require.NoError(t, s.RecordLogin(5, "Alex", uuid.Nil))
	require.NoError(t, s.RecordHandshake(5, "10.0.0.2:4000", protocol.V1_8, 2))

	sessions, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "10.0.0.2:4000", sessions[0].Remote)
	assert.Equal(t, "Alex", sessions[0].Username)
	assert.NotNil(t, sessions[0].DisconnectedAt)
}

func TestRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, s.RecordHandshake(i, "r", protocol.V1_21, 1))
		time.Sleep(2 * time.Millisecond)
	}

	sessions, err := s.Recent(2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, uint64(3), sessions[0].ConnID)
	assert.Equal(t, uint64(2), sessions[1].ConnID)
}

func TestPruneKeepsOpenSessions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RecordHandshake(1, "r", protocol.V1_21, 2))
	require.NoError(t, s.RecordDisconnect(1, ""))
	require.NoError(t, s.RecordHandshake(2, "r", protocol.V1_21, 2))

	removed, err := s.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	time.Sleep(5 * time.Millisecond)
	removed, err = s.Prune(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	sessions, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, uint64(2), sessions[0].ConnID)
}

func TestSubscribeRecordsBusEvents(t *testing.T) {
	s := newTestStore(t)
	bus := events.NewEventBus()
	s.Subscribe(bus)
	ctx := context.Background()

	require.NoError(t, bus.EmitSync(ctx, events.Event{Type: events.EventHandshake, Payload: &events.HandshakePayload{
		ConnID: 9, Remote: "peer", Version: protocol.V1_20_3, Intent: 2,
	}}))
	require.NoError(t, bus.EmitSync(ctx, events.Event{Type: events.EventLogin, Payload: &events.LoginPayload{
		ConnID: 9, Username: "Notch", UUID: uuid.New(),
	}}))
	require.NoError(t, bus.EmitSync(ctx, events.Event{Type: events.EventDisconnect, Payload: &events.ConnectionPayload{
		ConnID: 9, Reason: "bye",
	}}))
	assert.Error(t, bus.EmitSync(ctx, events.Event{Type: events.EventLogin, Payload: "bad"}))

	sessions, err := s.Recent(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Notch", sessions[0].Username)
	assert.Equal(t, "bye", sessions[0].Reason)
	assert.Equal(t, protocol.V1_20_3, sessions[0].Version)
}
