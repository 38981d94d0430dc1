package s2c

import (
	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// Feature flag identifiers.
const (
	FlagVanilla        = "minecraft:vanilla"
	FlagBundle         = "minecraft:bundle"
	FlagTradeRebalance = "minecraft:trade_rebalance"
)

func configuration(v protocol.Version, s protocol.State) bool {
	return s == protocol.StateConfiguration && v >= protocol.V1_20_2
}

// ConfPlugin is a plugin message sent during configuration.
type ConfPlugin struct {
	Channel string
	Data    []byte
}

func (*ConfPlugin) Name() string                  { return "ConfPlugin" }
func (*ConfPlugin) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfPlugin) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfCustomPayloadS2C{Channel: p.Channel, Data: p.Data}), nil
}

func constructConfPlugin(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfCustomPayloadS2C)
	if !ok {
		return nil, nil
	}
	return &ConfPlugin{Channel: c.Channel, Data: c.Data}, nil
}

// ConfFinish tells the client configuration is over.
type ConfFinish struct{}

func (*ConfFinish) Name() string                  { return "ConfFinish" }
func (*ConfFinish) Direction() protocol.Direction { return protocol.ClientBound }

func (*ConfFinish) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfFinishS2C{}), nil
}

func constructConfFinish(p protocol.Packet) (abstract.Packet, error) {
	if _, ok := p.(*protocol.ConfFinishS2C); !ok {
		return nil, nil
	}
	return &ConfFinish{}, nil
}

// ConfKeepAlive pings the client during configuration.
type ConfKeepAlive struct {
	ID int64
}

func (*ConfKeepAlive) Name() string                  { return "ConfKeepAlive" }
func (*ConfKeepAlive) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfKeepAlive) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfKeepAliveS2C{ID: p.ID}), nil
}

func constructConfKeepAlive(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfKeepAliveS2C)
	if !ok {
		return nil, nil
	}
	return &ConfKeepAlive{ID: c.ID}, nil
}

// ConfPing expects a matching pong.
type ConfPing struct {
	ID int32
}

func (*ConfPing) Name() string                  { return "ConfPing" }
func (*ConfPing) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfPing) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfPingS2C{ID: p.ID}), nil
}

func constructConfPing(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfPingS2C)
	if !ok {
		return nil, nil
	}
	return &ConfPing{ID: c.ID}, nil
}

// ConfRemoveResourcePack removes one pack, or every pack when UUID is nil.
type ConfRemoveResourcePack struct {
	UUID *uuid.UUID
}

func (*ConfRemoveResourcePack) Name() string                  { return "ConfRemoveResourcePack" }
func (*ConfRemoveResourcePack) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfRemoveResourcePack) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) || v < protocol.V1_20_3 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.RemoveResourcePack{UUID: p.UUID}), nil
}

func constructConfRemoveResourcePack(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.RemoveResourcePack)
	if !ok {
		return nil, nil
	}
	return &ConfRemoveResourcePack{UUID: c.UUID}, nil
}

// ConfAddResourcePack offers a resource pack.
type ConfAddResourcePack struct {
	UUID   uuid.UUID
	URL    string
	Hash   string
	Forced bool
	Prompt *abstract.Text
}

func (*ConfAddResourcePack) Name() string                  { return "ConfAddResourcePack" }
func (*ConfAddResourcePack) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfAddResourcePack) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) || v < protocol.V1_20_3 {
		return abstract.Unsupported(), nil
	}
	out := &protocol.AddResourcePack{UUID: p.UUID, URL: p.URL, Hash: p.Hash, Forced: p.Forced}
	if p.Prompt != nil {
		tag, err := p.Prompt.NBT()
		if err != nil {
			return abstract.WriteResult{}, err
		}
		out.Prompt = tag
	}
	return abstract.Success(out), nil
}

func constructConfAddResourcePack(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.AddResourcePack)
	if !ok {
		return nil, nil
	}
	out := &ConfAddResourcePack{UUID: c.UUID, URL: c.URL, Hash: c.Hash, Forced: c.Forced}
	if c.Prompt != nil {
		prompt, err := abstract.TextFromNBT(c.Prompt)
		if err != nil {
			return nil, abstract.Invalid("ConfAddResourcePack", "Prompt", "%v", err)
		}
		out.Prompt = &prompt
	}
	return out, nil
}

// ConfResetChat clears the client's chat session state.
type ConfResetChat struct{}

func (*ConfResetChat) Name() string                  { return "ConfResetChat" }
func (*ConfResetChat) Direction() protocol.Direction { return protocol.ClientBound }

func (*ConfResetChat) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) || v < protocol.V1_20_5 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ResetChat{}), nil
}

func constructConfResetChat(p protocol.Packet) (abstract.Packet, error) {
	if _, ok := p.(*protocol.ResetChat); !ok {
		return nil, nil
	}
	return &ConfResetChat{}, nil
}

// ConfFeatureFlags enables experimental features. Unrecognised flags are
// kept in Other.
type ConfFeatureFlags struct {
	Vanilla        bool
	Bundle         bool
	TradeRebalance bool
	Other          []string
}

func (*ConfFeatureFlags) Name() string                  { return "ConfFeatureFlags" }
func (*ConfFeatureFlags) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfFeatureFlags) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	var flags []string
	if p.Vanilla {
		flags = append(flags, FlagVanilla)
	}
	if p.Bundle {
		flags = append(flags, FlagBundle)
	}
	if p.TradeRebalance {
		flags = append(flags, FlagTradeRebalance)
	}
	flags = append(flags, p.Other...)
	return abstract.Success(&protocol.FeatureFlags{Flags: flags}), nil
}

func constructConfFeatureFlags(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.FeatureFlags)
	if !ok {
		return nil, nil
	}
	out := &ConfFeatureFlags{}
	for _, f := range c.Flags {
		switch f {
		case FlagVanilla:
			out.Vanilla = true
		case FlagBundle:
			out.Bundle = true
		case FlagTradeRebalance:
			out.TradeRebalance = true
		default:
			out.Other = append(out.Other, f)
		}
	}
	return out, nil
}

// ConfTags sends tag definitions.
type ConfTags struct {
	Registries []protocol.TagRegistry
}

func (*ConfTags) Name() string                  { return "ConfTags" }
func (*ConfTags) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfTags) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.UpdateTags{Registries: p.Registries}), nil
}

func constructConfTags(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.UpdateTags)
	if !ok {
		return nil, nil
	}
	return &ConfTags{Registries: c.Registries}, nil
}

// ConfKnownPacks lists the data packs the server wants to reuse.
type ConfKnownPacks struct {
	Packs []protocol.KnownPack
}

func (*ConfKnownPacks) Name() string                  { return "ConfKnownPacks" }
func (*ConfKnownPacks) Direction() protocol.Direction { return protocol.ClientBound }

func (p *ConfKnownPacks) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) || v < protocol.V1_20_5 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.SelectKnownPacksS2C{Packs: p.Packs}), nil
}

func constructConfKnownPacks(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.SelectKnownPacksS2C)
	if !ok {
		return nil, nil
	}
	return &ConfKnownPacks{Packs: c.Packs}, nil
}
