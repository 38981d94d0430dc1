// Package events defines the event types, payloads and the two dispatch
// mechanisms of craftflow: the ordered synchronous Reactor that drives
// packet handling and the asynchronous EventBus for lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
)

// EventType names an event.
type EventType string

const (
	// Packet events, fired by the connection tasks through the Reactor.
	EventConcreteInbound  EventType = "concrete_inbound"
	EventAbstractInbound  EventType = "abstract_inbound"
	EventConcreteOutbound EventType = "concrete_outbound"
	EventConcreteSent     EventType = "concrete_sent"
	EventAbstractOutbound EventType = "abstract_outbound"
	EventAbstractSent     EventType = "abstract_sent"

	// Connection lifecycle events
	EventNewConnection      EventType = "new_connection"
	EventDisconnect         EventType = "disconnect"
	EventHandshake          EventType = "handshake"
	EventLogin              EventType = "login"
	EventLegacyPing         EventType = "legacy_ping"
	EventUnsupportedVersion EventType = "unsupported_version"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventHeartbeat     EventType = "heartbeat"
	EventShutdown      EventType = "shutdown"
)

// Flow tells the caller of a Reactor dispatch whether to carry on.
type Flow int

const (
	Continue Flow = iota
	// Break stops the callback chain. For packet events the packet is
	// dropped; for new_connection the connection is rejected.
	Break
)

var flowStrings = map[Flow]string{
	Continue: "continue",
	Break:    "break",
}

// String returns the string representation of Flow.
func (f Flow) String() string {
	if s, ok := flowStrings[f]; ok {
		return s
	}
	return "continue"
}

// Event is a single event. Payload holds one of the payload structs below,
// always by pointer so callbacks can fill in responses.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// PacketPayload accompanies every packet event. Exactly one of Concrete and
// Abstract is set. Callbacks may modify the packet in place.
type PacketPayload struct {
	ConnID    uint64
	Version   protocol.Version
	State     protocol.State
	Direction protocol.Direction
	Concrete  protocol.Packet
	Abstract  abstract.Packet
}

// Name returns the name of the carried packet.
func (p *PacketPayload) Name() string {
	if p.Abstract != nil {
		return p.Abstract.Name()
	}
	if p.Concrete != nil {
		return protocol.PacketName(p.Concrete)
	}
	return ""
}

// ConnectionPayload accompanies new_connection and disconnect.
type ConnectionPayload struct {
	ConnID      uint64
	Remote      string
	Version     protocol.Version
	State       protocol.State
	ConnectedAt time.Time
	// Reason is set on disconnect. It is empty for a clean close.
	Reason string
}

// HandshakePayload is emitted once the handshake has been decoded.
type HandshakePayload struct {
	ConnID  uint64
	Remote  string
	Version protocol.Version
	Address string
	Port    uint16
	Intent  int32
}

// LoginPayload is emitted when a player finishes logging in.
type LoginPayload struct {
	ConnID   uint64
	Remote   string
	Version  protocol.Version
	Username string
	UUID     uuid.UUID
}

// LegacyPingPayload is emitted for a pre-1.7 server list ping. A callback
// answers by setting Response; returning Break without one closes the
// connection silently.
type LegacyPingPayload struct {
	ConnID   uint64
	Remote   string
	Format   transport.LegacyFormat
	Response *transport.LegacyResponse
}

// UnsupportedVersionPayload is emitted when a client logs in with a version
// the engine cannot speak. Message is sent as the disconnect reason.
type UnsupportedVersionPayload struct {
	ConnID  uint64
	Remote  string
	Version protocol.Version
	Message string
}

// HeartbeatPayload is emitted periodically by the health manager.
type HeartbeatPayload struct {
	Connections int
	Players     int
	Healthy     bool
	Failing     []string
}

// ConfigChangedPayload is emitted when configuration changes occur.
type ConfigChangedPayload struct {
	Section string
	Key     string
	Value   interface{}
}
