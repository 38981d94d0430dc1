// Package moduletest runs modules against real connections over in-memory
// pipes.
package moduletest

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
)

// Timeout bounds every read and write of the test client.
const Timeout = 2 * time.Second

// Host is a modules.Host with a fresh reactor and registry.
type Host struct {
	t        *testing.T
	reactor  *events.Reactor
	registry *network.ConnectionRegistry
	cfg      *config.Config
	engine   *network.Engine
	nextID   atomic.Uint64
}

// NewHost creates a host around cfg, or the default config when cfg is nil.
func NewHost(t *testing.T, cfg *config.Config) *Host {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Host{
		t:        t,
		reactor:  events.NewReactor(),
		registry: network.NewConnectionRegistry(),
		cfg:      cfg,
	}
	settings := network.SettingsFromConfig(cfg.GetServer())
	settings.HandshakeTimeout = time.Second
	settings.LegacyLinger = 10 * time.Millisecond
	h.engine = &network.Engine{Reactor: h.reactor, Registry: h.registry, Settings: settings}
	return h
}

func (h *Host) Reactor() *events.Reactor                 { return h.reactor }
func (h *Host) Connections() *network.ConnectionRegistry { return h.registry }
func (h *Host) Config() *config.Config                   { return h.cfg }

// Connect serves a new connection and returns the client end of it.
func (h *Host) Connect() (*network.Conn, *Client) {
	server, client := net.Pipe()
	conn := network.NewConn(h.nextID.Add(1), server, h.engine)
	go func() { _ = conn.Serve(context.Background()) }()
	h.t.Cleanup(func() {
		client.Close()
		conn.Close()
	})
	return conn, NewClient(h.t, client)
}

// Client plays the client side of a connection.
type Client struct {
	t     *testing.T
	conn  net.Conn
	r     *transport.FrameReader
	w     *transport.FrameWriter
	codec *protocol.Registry
	v     protocol.Version
}

// NewClient wraps the client end of a pipe.
func NewClient(t *testing.T, conn net.Conn) *Client {
	return &Client{
		t:     t,
		conn:  conn,
		r:     transport.NewFrameReader(0),
		w:     transport.NewFrameWriter(0),
		codec: protocol.DefaultRegistry(),
	}
}

// Conn returns the raw client socket.
func (c *Client) Conn() net.Conn { return c.conn }

// Handshake announces version v with the given intent.
func (c *Client) Handshake(v protocol.Version, intent int32) {
	c.t.Helper()
	c.v = protocol.NearestSupported(v)
	payload, err := c.codec.EncodePayload(protocol.StateHandshake, protocol.ServerBound, protocol.MinVersion(),
		&protocol.SetProtocol{ProtocolVersion: int32(v), ServerHost: "localhost", ServerPort: 25565, NextState: intent})
	require.NoError(c.t, err)
	c.write(payload)
}

func (c *Client) write(payload []byte) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(Timeout)))
	require.NoError(c.t, c.w.WriteFrame(c.conn, payload))
}

// Send encodes p for state and writes it.
func (c *Client) Send(state protocol.State, p protocol.Packet) {
	c.t.Helper()
	payload, err := c.codec.EncodePayload(state, protocol.ServerBound, c.v, p)
	require.NoError(c.t, err)
	c.write(payload)
}

// Recv reads and decodes the next packet in state.
func (c *Client) Recv(state protocol.State) protocol.Packet {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(Timeout)))
	frame, err := c.r.ReadFrame(c.conn)
	require.NoError(c.t, err)
	p, _, err := c.codec.DecodePayload(state, protocol.ClientBound, c.v, frame)
	require.NoError(c.t, err)
	return p
}

// EnableCompression mirrors a SetCompression from the server.
func (c *Client) EnableCompression(threshold int) {
	c.t.Helper()
	require.NoError(c.t, c.r.SetCompression(threshold))
	require.NoError(c.t, c.w.SetCompression(threshold))
}

// EnableEncryption mirrors the server's cipher setup for secret.
func (c *Client) EnableEncryption(secret []byte) {
	c.t.Helper()
	enc, err := transport.NewCFB8Encrypter(secret)
	require.NoError(c.t, err)
	dec, err := transport.NewCFB8Decrypter(secret)
	require.NoError(c.t, err)
	require.NoError(c.t, c.r.SetCipher(dec))
	require.NoError(c.t, c.w.SetCipher(enc))
}
