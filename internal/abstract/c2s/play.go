package c2s

import (
	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// PlayKeepAlive echoes a play keep alive. Before 1.12.2 the id is 32 bits
// wide and is truncated on conversion.
type PlayKeepAlive struct {
	ID int64
}

func (*PlayKeepAlive) Name() string                  { return "PlayKeepAlive" }
func (*PlayKeepAlive) Direction() protocol.Direction { return protocol.ServerBound }

func (p *PlayKeepAlive) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StatePlay {
		return abstract.Unsupported(), nil
	}
	switch {
	case v < protocol.V1_8:
		return abstract.Success(&protocol.PlayKeepAliveV5{ID: int32(p.ID)}), nil
	case v < protocol.V1_12_2:
		return abstract.Success(&protocol.PlayKeepAliveV47{ID: int32(p.ID)}), nil
	}
	return abstract.Success(&protocol.PlayKeepAliveV340{ID: p.ID}), nil
}

func constructPlayKeepAlive(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.PlayKeepAliveV5:
		return &PlayKeepAlive{ID: int64(c.ID)}, nil
	case *protocol.PlayKeepAliveV47:
		return &PlayKeepAlive{ID: int64(c.ID)}, nil
	case *protocol.PlayKeepAliveV340:
		return &PlayKeepAlive{ID: c.ID}, nil
	}
	return nil, nil
}
