package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/transport"
)

const (
	// LANMulticastAddr is where clients listen for servers on the local
	// network.
	LANMulticastAddr = "224.0.2.60:4445"
	// LANAnnounceInterval is how often the server announces itself.
	LANAnnounceInterval = 1500 * time.Millisecond
)

// LANAnnouncer advertises the server in the multiplayer menu of clients on
// the same network.
type LANAnnouncer struct {
	motd     string
	port     int
	target   string
	interval time.Duration
}

// NewLANAnnouncer creates an announcer for a server listening on port.
// Formatting codes are stripped from motd.
func NewLANAnnouncer(motd string, port int) *LANAnnouncer {
	return &LANAnnouncer{
		motd:     transport.StripFormatting(motd),
		port:     port,
		target:   LANMulticastAddr,
		interval: LANAnnounceInterval,
	}
}

// Message returns the announcement datagram.
func (a *LANAnnouncer) Message() []byte {
	return []byte(fmt.Sprintf("[MOTD]%s[/MOTD][AD]%d[/AD]", a.motd, a.port))
}

// Start sends an announcement every interval until ctx is cancelled.
func (a *LANAnnouncer) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp4", a.target)
	if err != nil {
		return fmt.Errorf("failed to resolve LAN announce address %s: %w", a.target, err)
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to start LAN announcer: %w", err)
	}
	defer conn.Close()

	log.Info().Str("target", a.target).Int("port", a.port).Msg("LAN announcer started")

	msg := a.Message()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		if _, err := conn.Write(msg); err != nil {
			log.Warn().Err(err).Msg("failed to send LAN announcement")
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("LAN announcer stopping")
			return nil
		case <-ticker.C:
		}
	}
}
