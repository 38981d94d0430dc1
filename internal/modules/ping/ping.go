// Package ping answers server list pings: the modern status exchange and
// the pre-1.7 legacy ping.
package ping

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/c2s"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/modules"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
	"github.com/energizer-project/craftflow/internal/util"
)

// LegacyProtocol is reported to legacy clients so they list the server as
// incompatible instead of trying to join.
const LegacyProtocol = 127

// Module answers status requests with the configured server info.
type Module struct {
	host    modules.Host
	favicon []byte
	logger  zerolog.Logger
}

// New creates the ping module.
func New() *Module {
	return &Module{logger: util.ComponentLogger("ping")}
}

func (m *Module) Name() string { return "ping" }

// Register loads the favicon and hooks the status and legacy ping handlers.
func (m *Module) Register(h modules.Host) error {
	m.host = h
	if path := h.Config().GetServer().FaviconPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read favicon %s: %w", path, err)
		}
		m.favicon = data
	}

	if err := events.On(h.Reactor(), events.EventAbstractInbound, "ping.status", m.onStatus); err != nil {
		return err
	}
	return events.On(h.Reactor(), events.EventLegacyPing, "ping.legacy", m.onLegacyPing)
}

// VersionName is shown by clients that cannot join.
func VersionName() string {
	return fmt.Sprintf("craftflow %s-%s", protocol.MinVersion(), protocol.MaxVersion())
}

// Status builds the status response for a client of the given version.
// Supported versions are echoed so the client lists the server as
// compatible.
func (m *Module) Status(client protocol.Version) *s2c.StatusInfo {
	cfg := m.host.Config().GetServer()
	reported := client
	if !protocol.IsSupported(client) {
		reported = protocol.MaxVersion()
	}
	return &s2c.StatusInfo{
		Version: s2c.StatusVersion{Name: VersionName(), Protocol: int32(reported)},
		Players: &s2c.StatusPlayers{
			Max:    int32(cfg.MaxPlayers),
			Online: int32(m.host.Connections().CountInState(protocol.StatePlay)),
		},
		Description: abstract.PlainText(cfg.MOTD),
		Favicon:     m.favicon,
	}
}

func (m *Module) onStatus(_ context.Context, p *events.PacketPayload) events.Flow {
	if p.State != protocol.StateStatus || p.Abstract == nil {
		return events.Continue
	}
	conn, ok := m.host.Connections().Get(p.ConnID)
	if !ok {
		return events.Continue
	}

	var err error
	switch pkt := p.Abstract.(type) {
	case *c2s.StatusRequest:
		err = conn.Send(m.Status(conn.ClientVersion()))
	case *c2s.StatusPing:
		err = conn.Send(&s2c.StatusPong{Payload: pkt.Payload})
	default:
		return events.Continue
	}
	if err != nil && !errors.Is(err, network.ErrClosed) {
		m.logger.Warn().Err(err).Uint64("conn_id", p.ConnID).Msg("failed to queue status reply")
	}
	return events.Continue
}

func (m *Module) onLegacyPing(_ context.Context, p *events.LegacyPingPayload) events.Flow {
	cfg := m.host.Config().GetServer()
	p.Response = &transport.LegacyResponse{
		ProtocolVersion: LegacyProtocol,
		Version:         VersionName(),
		Description:     cfg.MOTD,
		OnlinePlayers:   int32(m.host.Connections().CountInState(protocol.StatePlay)),
		MaxPlayers:      int32(cfg.MaxPlayers),
	}
	return events.Continue
}
