// Package login runs the offline-mode login sequence: optional encryption,
// compression, login success, and for 1.20.2+ the configuration phase up
// to play. It also keeps logged in connections alive.
package login

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/craftflow/internal/abstract/c2s"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
	"github.com/energizer-project/craftflow/internal/util"
)

const (
	DefaultKeepAliveInterval = 15 * time.Second
	DefaultKeepAliveTimeout  = 30 * time.Second

	verifyTokenSize = 4
)

// Disconnect reasons.
const (
	ReasonInvalidUsername   = "Invalid username"
	ReasonUnexpectedPacket  = "Unexpected login packet"
	ReasonEncryptionFailed  = "Encryption verification failed"
	ReasonKeepAliveTimedOut = "Timed out"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// Options tune the login sequence.
type Options struct {
	// CompressionThreshold of -1 leaves compression off.
	CompressionThreshold int
	Encryption           bool
	KeepAliveInterval    time.Duration
	KeepAliveTimeout     time.Duration
}

// session is the login progress of one connection.
type session struct {
	username    string
	verifyToken []byte
	loggedIn    bool
	keepAlive   keepAliveState
}

// Module performs logins.
type Module struct {
	host   modules.Host
	opts   Options
	key    *util.LoginKey
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[uint64]*session
}

// New creates the login module. Zero keep alive settings get the defaults;
// the compression and encryption settings are read from the host config
// when the module is registered.
func New(opts Options) *Module {
	if opts.KeepAliveInterval <= 0 {
		opts.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if opts.KeepAliveTimeout <= 0 {
		opts.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	return &Module{
		opts:     opts,
		logger:   util.ComponentLogger("login"),
		sessions: make(map[uint64]*session),
	}
}

func (m *Module) Name() string { return "login" }

// Register hooks the login callbacks into the reactor.
func (m *Module) Register(h modules.Host) error {
	m.host = h
	server := h.Config().GetServer()
	m.opts.CompressionThreshold = server.CompressionThreshold
	m.opts.Encryption = server.OnlineEncryption

	if m.opts.Encryption {
		key, err := util.GenerateRSAKey()
		if err != nil {
			return err
		}
		m.key = key
	}

	r := h.Reactor()
	return errors.Join(
		events.On(r, events.EventAbstractInbound, "login.inbound", m.onInbound),
		events.On(r, events.EventConcreteSent, "login.compression", m.onConcreteSent),
		events.On(r, events.EventAbstractSent, "login.sent", m.onAbstractSent),
		events.On(r, events.EventUnsupportedVersion, "login.unsupported", m.onUnsupported),
		events.On(r, events.EventDisconnect, "login.cleanup", m.onDisconnect),
	)
}

// OfflineUUID is the version 3 UUID of "OfflinePlayer:<name>" that servers
// without authentication give players.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.UUID(sum)
}

func (m *Module) session(id uint64) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the number of connections the module is tracking.
func (m *Module) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Module) onInbound(_ context.Context, p *events.PacketPayload) events.Flow {
	if p.Abstract == nil {
		return events.Continue
	}
	conn, ok := m.host.Connections().Get(p.ConnID)
	if !ok {
		return events.Continue
	}

	var err error
	switch pkt := p.Abstract.(type) {
	case *c2s.LoginStart:
		err = m.start(conn, pkt)
	case *c2s.LoginEncryption:
		err = m.encryption(conn, pkt)
	case *c2s.LoginAcknowledge:
		err = m.configure(conn)
	case *c2s.KnownPacks:
		err = m.sendRegistries(conn, knowsCorePack(pkt.Packs))
	case *c2s.ConfFinish:
		m.logger.Debug().Uint64("conn_id", conn.ID()).Msg("configuration finished")
	case *c2s.ConfKeepAlive:
		m.ackKeepAlive(conn, pkt.ID)
	case *c2s.PlayKeepAlive:
		m.ackKeepAlive(conn, pkt.ID)
	default:
		return events.Continue
	}
	if err != nil && !errors.Is(err, network.ErrClosed) {
		m.logger.Warn().Err(err).Uint64("conn_id", conn.ID()).Str("packet", p.Abstract.Name()).Msg("login step failed")
	}
	return events.Continue
}

func (m *Module) start(conn *network.Conn, p *c2s.LoginStart) error {
	if !usernamePattern.MatchString(p.Username) {
		return conn.Disconnect(ReasonInvalidUsername)
	}

	m.mu.Lock()
	if _, ok := m.sessions[conn.ID()]; ok {
		m.mu.Unlock()
		return conn.Disconnect(ReasonUnexpectedPacket)
	}
	s := &session{username: p.Username}
	m.sessions[conn.ID()] = s
	m.mu.Unlock()

	if !m.opts.Encryption {
		return m.finish(conn, s)
	}

	token, err := util.RandomBytes(verifyTokenSize)
	if err != nil {
		return err
	}
	m.mu.Lock()
	s.verifyToken = token
	m.mu.Unlock()
	return conn.Send(&s2c.LoginEncryptionBegin{
		PublicKey:   m.key.PublicDER(),
		VerifyToken: token,
	})
}

func (m *Module) encryption(conn *network.Conn, p *c2s.LoginEncryption) error {
	s, ok := m.session(conn.ID())
	m.mu.Lock()
	var expected []byte
	if ok {
		expected = s.verifyToken
		s.verifyToken = nil
	}
	m.mu.Unlock()
	if expected == nil || m.key == nil {
		return conn.Disconnect(ReasonUnexpectedPacket)
	}

	// Signed nonces need the player's chat key, which offline mode never
	// learns.
	if p.VerifyToken == nil {
		return conn.Disconnect(ReasonEncryptionFailed)
	}
	token, err := m.key.Decrypt(p.VerifyToken)
	if err != nil || !bytes.Equal(token, expected) {
		return conn.Disconnect(ReasonEncryptionFailed)
	}
	secret, err := m.key.Decrypt(p.SharedSecret)
	if err != nil || len(secret) != transport.SecretSize {
		return conn.Disconnect(ReasonEncryptionFailed)
	}

	if err := conn.EnableEncryption([transport.SecretSize]byte(secret)); err != nil {
		return err
	}
	return m.finish(conn, s)
}

// finish announces compression and completes the login. Compression itself
// is switched on once the announcement has been written.
func (m *Module) finish(conn *network.Conn, s *session) error {
	if m.opts.CompressionThreshold >= 0 && conn.Version() >= protocol.V1_8 {
		if err := conn.Send(&s2c.LoginCompress{Threshold: int32(m.opts.CompressionThreshold)}); err != nil {
			return err
		}
	}
	return conn.Send(&s2c.LoginSuccess{
		UUID:     OfflineUUID(s.username),
		Username: s.username,
	})
}

// configure starts the configuration phase once the client acknowledged
// the login. 1.20.5+ clients are first asked which packs they know.
func (m *Module) configure(conn *network.Conn) error {
	if conn.Version() >= protocol.V1_20_5 {
		return conn.Send(&s2c.ConfKnownPacks{Packs: []protocol.KnownPack{corePack(conn.Version())}})
	}
	return m.sendRegistries(conn, false)
}

func (m *Module) sendRegistries(conn *network.Conn, clientHasCore bool) error {
	if err := conn.Send(defaultRegistries(!clientHasCore)); err != nil {
		return err
	}
	return conn.Send(&s2c.ConfFinish{})
}

func (m *Module) onConcreteSent(_ context.Context, p *events.PacketPayload) events.Flow {
	sc, ok := p.Concrete.(*protocol.SetCompression)
	if !ok {
		return events.Continue
	}
	if conn, ok := m.host.Connections().Get(p.ConnID); ok {
		if err := conn.EnableCompression(int(sc.Threshold)); err != nil {
			m.logger.Error().Err(err).Uint64("conn_id", p.ConnID).Msg("failed to enable compression")
		}
	}
	return events.Continue
}

func (m *Module) onAbstractSent(_ context.Context, p *events.PacketPayload) events.Flow {
	switch pkt := p.Abstract.(type) {
	case *s2c.LoginSuccess:
		conn, ok := m.host.Connections().Get(p.ConnID)
		if !ok {
			return events.Continue
		}
		m.mu.Lock()
		s, tracked := m.sessions[p.ConnID]
		start := tracked && !s.loggedIn
		if start {
			s.loggedIn = true
		}
		m.mu.Unlock()
		if start {
			go m.keepAliveLoop(conn, s)
		}
	case *s2c.ConfKeepAlive:
		m.keepAliveSent(p.ConnID, pkt.ID)
	case *s2c.PlayKeepAlive:
		m.keepAliveSent(p.ConnID, pkt.ID)
	}
	return events.Continue
}

func (m *Module) onUnsupported(_ context.Context, p *events.UnsupportedVersionPayload) events.Flow {
	p.Message = fmt.Sprintf("%s Use %s to %s.", p.Message, protocol.MinVersion(), protocol.MaxVersion())
	return events.Continue
}

func (m *Module) onDisconnect(_ context.Context, p *events.ConnectionPayload) events.Flow {
	m.mu.Lock()
	delete(m.sessions, p.ConnID)
	m.mu.Unlock()
	return events.Continue
}
