// Package network runs player connections: the TCP listener, the
// per-connection state machine with its read and write tasks, the registry
// of live connections and the LAN announcer.
package network

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/c2s"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
)

const eventSource = "connection"

// Settings are the connection limits taken from the server config.
type Settings struct {
	MaxFrameSize       int
	HandshakeTimeout   time.Duration
	LegacyLinger       time.Duration
	UnsupportedMessage string
}

// DefaultSettings returns the settings used when no config is given.
func DefaultSettings() Settings {
	return Settings{
		MaxFrameSize:       transport.DefaultMaxFrameSize,
		HandshakeTimeout:   transport.LegacyDetectTimeout,
		LegacyLinger:       transport.LegacyLinger,
		UnsupportedMessage: config.DefaultUnsupportedMessage,
	}
}

// SettingsFromConfig converts the server section of the config.
func SettingsFromConfig(s config.ServerConfig) Settings {
	out := DefaultSettings()
	if s.MaxFrameSize > 0 {
		out.MaxFrameSize = s.MaxFrameSize
	}
	if s.HandshakeTimeoutMs > 0 {
		out.HandshakeTimeout = s.HandshakeTimeout()
	}
	if s.LegacyLingerMs >= 0 {
		out.LegacyLinger = s.LegacyLinger()
	}
	if s.UnsupportedMessage != "" {
		out.UnsupportedMessage = s.UnsupportedMessage
	}
	return out
}

// Metrics receives connection counters.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	PacketReceived(state protocol.State, name string, size int)
	PacketSent(state protocol.State, name string, size int)
	UnknownPacket(state protocol.State)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()                          {}
func (nopMetrics) ConnectionClosed()                          {}
func (nopMetrics) PacketReceived(protocol.State, string, int) {}
func (nopMetrics) PacketSent(protocol.State, string, int)     {}
func (nopMetrics) UnknownPacket(protocol.State)               {}

// Engine holds what every connection shares. Nil fields get defaults from
// NewConn.
type Engine struct {
	Reactor  *events.Reactor
	Bus      *events.EventBus
	Codec    *protocol.Registry
	Registry *ConnectionRegistry
	Metrics  Metrics
	Settings Settings
}

func (e *Engine) withDefaults() *Engine {
	out := *e
	if out.Reactor == nil {
		out.Reactor = events.NewReactor()
	}
	if out.Codec == nil {
		out.Codec = protocol.DefaultRegistry()
	}
	if out.Registry == nil {
		out.Registry = NewConnectionRegistry()
	}
	if out.Metrics == nil {
		out.Metrics = nopMetrics{}
	}
	if out.Settings == (Settings{}) {
		out.Settings = DefaultSettings()
	}
	return &out
}

// Conn is one player connection. Serve drives it; every other method is
// safe to call from any goroutine, including event callbacks.
type Conn struct {
	id     uint64
	conn   net.Conn
	remote string
	engine *Engine
	logger zerolog.Logger

	version       versionCell
	clientVersion atomic.Int32
	readState     stateCell
	writeState    stateCell

	reader      *transport.FrameReader
	writer      *transport.FrameWriter
	compression atomic.Bool
	encryption  atomic.Bool

	queue      *outboundQueue
	dispatcher *abstract.Dispatcher

	connectedAt  time.Time
	lastActivity atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
	closeErr  error
}

// NewConn wraps an accepted socket. Nothing is read until Serve is called.
func NewConn(id uint64, nc net.Conn, engine *Engine) *Conn {
	if engine == nil {
		engine = &Engine{}
	}
	engine = engine.withDefaults()
	remote := nc.RemoteAddr().String()
	now := time.Now()
	c := &Conn{
		id:     id,
		conn:   nc,
		remote: remote,
		engine: engine,
		logger: log.With().
			Str("component", "connection").
			Uint64("conn_id", id).
			Str("remote", remote).
			Logger(),
		reader:      transport.NewFrameReader(engine.Settings.MaxFrameSize),
		writer:      transport.NewFrameWriter(engine.Settings.MaxFrameSize),
		queue:       newOutboundQueue(),
		dispatcher:  abstract.NewDispatcher(c2s.Kinds()),
		connectedAt: now,
		done:        make(chan struct{}),
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

// ID returns the connection id assigned by the listener.
func (c *Conn) ID() uint64 { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.remote }

// ConnectedAt returns when the socket was accepted.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// LastActivity returns when a frame was last read or written.
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Conn) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Version returns the protocol version the codecs use, or 0 before the
// handshake. It differs from ClientVersion only for status requests from
// unsupported clients.
func (c *Conn) Version() protocol.Version { return c.version.Load() }

// ClientVersion returns the version the client announced in its handshake.
func (c *Conn) ClientVersion() protocol.Version {
	return protocol.Version(c.clientVersion.Load())
}

// State returns the state outgoing packets are converted for.
func (c *Conn) State() protocol.State { return c.writeState.Load() }

// ReadState returns the state incoming packets are decoded in.
func (c *Conn) ReadState() protocol.State { return c.readState.Load() }

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns why the connection shut down. It is nil while the connection
// is open and after a clean close.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

func (c *Conn) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send queues an abstract packet. It is converted for the state and version
// current when the write task reaches it.
func (c *Conn) Send(p abstract.Packet) error {
	return c.queue.push(outbound{abstract: p})
}

// SendConcrete queues a packet that is encoded as is.
func (c *Conn) SendConcrete(p protocol.Packet) error {
	return c.queue.push(outbound{concrete: p})
}

// Disconnect sends the client a disconnect packet with the given reason and
// closes the connection once it is written. Packets queued before it are
// written first. In states without a disconnect packet the connection is
// just closed.
func (c *Conn) Disconnect(reason string) error {
	return c.queue.push(outbound{
		abstract: &s2c.Disconnect{Reason: abstract.PlainText(reason)},
		kick:     &reason,
	})
}

// Close closes the connection without telling the client.
func (c *Conn) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown records the first reason given, stops the write task and closes
// the socket, which ends the read task.
func (c *Conn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.closeErr = reason
		close(c.done)
		c.queue.close()
		_ = c.conn.Close()
	})
}

// EnableCompression turns on compression for every frame after the current
// one, in both directions. It is valid once, while the connection is in
// the login state; misuse tears the connection down.
func (c *Conn) EnableCompression(threshold int) error {
	const op = "enable compression"
	if threshold < 0 {
		return c.misuse(op, "negative threshold")
	}
	if err := c.requireLogin(op); err != nil {
		return err
	}
	if !c.compression.CompareAndSwap(false, true) {
		return c.misuse(op, "already enabled")
	}
	if err := c.reader.SetCompression(threshold); err != nil {
		return c.misuse(op, err.Error())
	}
	if err := c.writer.SetCompression(threshold); err != nil {
		return c.misuse(op, err.Error())
	}
	c.logger.Debug().Int("threshold", threshold).Msg("compression enabled")
	return nil
}

// EnableEncryption installs AES-128-CFB8 keyed with the shared secret in both
// directions. The rules of EnableCompression apply.
func (c *Conn) EnableEncryption(secret [transport.SecretSize]byte) error {
	const op = "enable encryption"
	if err := c.requireLogin(op); err != nil {
		return err
	}
	if !c.encryption.CompareAndSwap(false, true) {
		return c.misuse(op, "already enabled")
	}
	enc, err := transport.NewCFB8Encrypter(secret[:])
	if err != nil {
		return c.misuse(op, err.Error())
	}
	dec, err := transport.NewCFB8Decrypter(secret[:])
	if err != nil {
		return c.misuse(op, err.Error())
	}
	if err := c.reader.SetCipher(dec); err != nil {
		return c.misuse(op, err.Error())
	}
	if err := c.writer.SetCipher(enc); err != nil {
		return c.misuse(op, err.Error())
	}
	c.logger.Debug().Msg("encryption enabled")
	return nil
}

func (c *Conn) requireLogin(op string) error {
	if state := c.writeState.Load(); state != protocol.StateLogin {
		return c.misuse(op, "only allowed during login")
	}
	return nil
}

func (c *Conn) misuse(op, reason string) error {
	err := &MisuseError{Op: op, State: c.writeState.Load(), Reason: reason}
	c.logger.Error().Err(err).Msg("engine misuse, closing connection")
	c.shutdown(err)
	return err
}

// Info returns a point-in-time view of the connection.
func (c *Conn) Info() ConnInfo {
	return ConnInfo{
		ID:            c.id,
		Remote:        c.remote,
		Version:       c.Version(),
		ClientVersion: c.ClientVersion(),
		ReadState:     c.ReadState(),
		WriteState:    c.State(),
		Compressed:    c.compression.Load(),
		Encrypted:     c.encryption.Load(),
		ConnectedAt:   c.connectedAt,
		LastActivity:  c.LastActivity(),
	}
}

func (c *Conn) fire(ctx context.Context, eventType events.EventType, payload interface{}) events.Flow {
	return c.engine.Reactor.Dispatch(ctx, &events.Event{Type: eventType, Source: eventSource, Payload: payload})
}

// publish hands a lifecycle event to the bus. Bus handlers outlive the
// connection, so they do not inherit its cancellation.
func (c *Conn) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	if c.engine.Bus == nil {
		return
	}
	c.engine.Bus.Emit(context.WithoutCancel(ctx), events.Event{Type: eventType, Source: eventSource, Payload: payload})
}

func (c *Conn) packetPayload(state protocol.State, dir protocol.Direction) *events.PacketPayload {
	return &events.PacketPayload{
		ConnID:    c.id,
		Version:   c.Version(),
		State:     state,
		Direction: dir,
	}
}

func (c *Conn) connectionPayload(reason string) *events.ConnectionPayload {
	return &events.ConnectionPayload{
		ConnID:      c.id,
		Remote:      c.remote,
		Version:     c.Version(),
		State:       c.State(),
		ConnectedAt: c.connectedAt,
		Reason:      reason,
	}
}
