package s2c

import (
	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// PlayKeepAlive pings the client during play. Before 1.12.2 the id is 32
// bits wide and is truncated on conversion.
type PlayKeepAlive struct {
	ID int64
}

func (*PlayKeepAlive) Name() string                  { return "PlayKeepAlive" }
func (*PlayKeepAlive) Direction() protocol.Direction { return protocol.ClientBound }

func (p *PlayKeepAlive) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StatePlay {
		return abstract.Unsupported(), nil
	}
	switch {
	case v < protocol.V1_8:
		return abstract.Success(&protocol.PlayKeepAliveS2CV5{PlayKeepAliveV5: protocol.PlayKeepAliveV5{ID: int32(p.ID)}}), nil
	case v < protocol.V1_12_2:
		return abstract.Success(&protocol.PlayKeepAliveS2CV47{PlayKeepAliveV47: protocol.PlayKeepAliveV47{ID: int32(p.ID)}}), nil
	}
	return abstract.Success(&protocol.PlayKeepAliveS2CV340{PlayKeepAliveV340: protocol.PlayKeepAliveV340{ID: p.ID}}), nil
}

func constructPlayKeepAlive(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.PlayKeepAliveS2CV5:
		return &PlayKeepAlive{ID: int64(c.ID)}, nil
	case *protocol.PlayKeepAliveS2CV47:
		return &PlayKeepAlive{ID: int64(c.ID)}, nil
	case *protocol.PlayKeepAliveS2CV340:
		return &PlayKeepAlive{ID: c.ID}, nil
	}
	return nil, nil
}
