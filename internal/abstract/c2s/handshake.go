// Package c2s holds the abstract packets sent by the client.
package c2s

import (
	"fmt"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// Intent is the state a client asks for in its handshake.
type Intent int32

const (
	IntentStatus   = Intent(protocol.IntentStatus)
	IntentLogin    = Intent(protocol.IntentLogin)
	IntentTransfer = Intent(protocol.IntentTransfer)
)

var intentNames = map[Intent]string{
	IntentStatus:   "status",
	IntentLogin:    "login",
	IntentTransfer: "transfer",
}

func (i Intent) String() string {
	if name, ok := intentNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intent(%d)", int32(i))
}

// NextState is the connection state the intent leads to.
func (i Intent) NextState() protocol.State {
	if i == IntentStatus {
		return protocol.StateStatus
	}
	return protocol.StateLogin
}

// Handshake is the first packet of every modern connection.
type Handshake struct {
	ProtocolVersion protocol.Version
	Address         string
	Port            uint16
	Intent          Intent
}

func (*Handshake) Name() string                  { return "Handshake" }
func (*Handshake) Direction() protocol.Direction { return protocol.ServerBound }

func (p *Handshake) Convert(_ protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateHandshake {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.SetProtocol{
		ProtocolVersion: int32(p.ProtocolVersion),
		ServerHost:      p.Address,
		ServerPort:      p.Port,
		NextState:       int32(p.Intent),
	}), nil
}

func constructHandshake(p protocol.Packet) (abstract.Packet, error) {
	sp, ok := p.(*protocol.SetProtocol)
	if !ok {
		return nil, nil
	}
	intent := Intent(sp.NextState)
	if _, known := intentNames[intent]; !known {
		return nil, abstract.Invalid("Handshake", "Intent", "unknown next state %d", sp.NextState)
	}
	return &Handshake{
		ProtocolVersion: protocol.Version(sp.ProtocolVersion),
		Address:         sp.ServerHost,
		Port:            sp.ServerPort,
		Intent:          intent,
	}, nil
}

// StatusRequest asks the server for its status.
type StatusRequest struct{}

func (*StatusRequest) Name() string                  { return "StatusRequest" }
func (*StatusRequest) Direction() protocol.Direction { return protocol.ServerBound }

func (*StatusRequest) Convert(_ protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateStatus {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.StatusRequest{}), nil
}

func constructStatusRequest(p protocol.Packet) (abstract.Packet, error) {
	if _, ok := p.(*protocol.StatusRequest); !ok {
		return nil, nil
	}
	return &StatusRequest{}, nil
}

// StatusPing carries a payload the server echoes back.
type StatusPing struct {
	Payload int64
}

func (*StatusPing) Name() string                  { return "StatusPing" }
func (*StatusPing) Direction() protocol.Direction { return protocol.ServerBound }

func (p *StatusPing) Convert(_ protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateStatus {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.StatusPing{Payload: p.Payload}), nil
}

func constructStatusPing(p protocol.Packet) (abstract.Packet, error) {
	sp, ok := p.(*protocol.StatusPing)
	if !ok {
		return nil, nil
	}
	return &StatusPing{Payload: sp.Payload}, nil
}
