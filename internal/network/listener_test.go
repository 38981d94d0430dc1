package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/protocol"
)

func TestListenerServesConnections(t *testing.T) {
	h := newHarness(t)
	h.onAbstract("status", answerStatus)

	l := NewListener("127.0.0.1:0", h.engine)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Listen(ctx))

	stopped := make(chan error, 1)
	go func() { stopped <- l.Start(ctx) }()

	for i := 0; i < 2; i++ {
		nc, err := net.DialTimeout("tcp", l.Addr().String(), testTimeout)
		require.NoError(t, err)
		client := newTestClient(t, nc)
		client.handshake(protocol.V1_20_3, protocol.IntentStatus)
		client.send(protocol.StateStatus, &protocol.StatusRequest{})
		_, ok := client.recv(protocol.StateStatus).(*protocol.StatusResponse)
		require.True(t, ok)
		nc.Close()
	}

	require.Eventually(t, func() bool { return h.disconnect.Load() == 2 }, testTimeout, 5*time.Millisecond)
	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("listener did not stop")
	}
}

func TestListenerAssignsIncreasingIDs(t *testing.T) {
	h := newHarness(t)
	l := NewListener("127.0.0.1:0", h.engine)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Listen(ctx))
	go func() { _ = l.Start(ctx) }()

	var conns []net.Conn
	for i := 0; i < 3; i++ {
		nc, err := net.DialTimeout("tcp", l.Addr().String(), testTimeout)
		require.NoError(t, err)
		conns = append(conns, nc)
		client := newTestClient(t, nc)
		client.handshake(protocol.V1_21, protocol.IntentLogin)
		require.Eventually(t, func() bool { return h.registry.Count() == i+1 }, testTimeout, 5*time.Millisecond)
	}

	snapshot := h.registry.Snapshot()
	require.Len(t, snapshot, 3)
	for i, info := range snapshot {
		assert.Equal(t, uint64(i+1), info.ID)
		assert.Equal(t, protocol.StateLogin, info.WriteState)
		assert.Equal(t, protocol.V1_21, info.Version)
	}
	assert.Equal(t, 3, h.registry.CountInState(protocol.StateLogin))

	h.registry.CloseAll()
	require.Eventually(t, func() bool { return h.registry.Count() == 0 }, testTimeout, 5*time.Millisecond)
	for _, nc := range conns {
		nc.Close()
	}
}

func TestLANAnnouncer(t *testing.T) {
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	a := NewLANAnnouncer("§aHello §lworld", 25565)
	a.target = pc.LocalAddr().String()
	a.interval = 10 * time.Millisecond
	assert.Equal(t, "[MOTD]Hello world[/MOTD][AD]25565[/AD]", string(a.Message()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Start(ctx) }()

	buf := make([]byte, 256)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(testTimeout)))
	for i := 0; i < 2; i++ {
		n, _, err := pc.ReadFrom(buf)
		require.NoError(t, err)
		assert.Equal(t, a.Message(), buf[:n])
	}
}
