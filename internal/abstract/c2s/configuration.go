package c2s

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// ChatMode selects which chat messages the client wants.
type ChatMode int32

const (
	ChatEnabled ChatMode = iota
	ChatCommandsOnly
	ChatHidden
)

// MainHand is the player's dominant hand.
type MainHand int32

const (
	MainHandLeft MainHand = iota
	MainHandRight
)

// ParticleStatus is the client's particle setting, sent from 1.21.2.
type ParticleStatus int32

const (
	ParticlesAll ParticleStatus = iota
	ParticlesDecreased
	ParticlesMinimal
)

// SkinParts is the bitfield of displayed skin layers.
type SkinParts uint8

const (
	SkinCape SkinParts = 1 << iota
	SkinJacket
	SkinLeftSleeve
	SkinRightSleeve
	SkinLeftPants
	SkinRightPants
	SkinHat
)

// Has reports whether every part in q is shown.
func (s SkinParts) Has(q SkinParts) bool { return s&q == q }

// ClientSettings is the client information sent during configuration.
type ClientSettings struct {
	Locale        string
	ViewDistance  uint8
	ChatMode      ChatMode
	ChatColors    bool
	SkinParts     SkinParts
	MainHand      MainHand
	TextFiltering bool
	ServerListing bool
	Particles     ParticleStatus
}

func (*ClientSettings) Name() string                  { return "ClientSettings" }
func (*ClientSettings) Direction() protocol.Direction { return protocol.ServerBound }

func (p *ClientSettings) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateConfiguration || v < protocol.V1_20_2 {
		return abstract.Unsupported(), nil
	}
	info := protocol.ClientInformationV764{
		Locale:              p.Locale,
		ViewDistance:        int8(p.ViewDistance),
		ChatMode:            int32(p.ChatMode),
		ChatColors:          p.ChatColors,
		DisplayedSkinParts:  uint8(p.SkinParts),
		MainHand:            int32(p.MainHand),
		EnableTextFiltering: p.TextFiltering,
		AllowServerListings: p.ServerListing,
	}
	if v < protocol.V1_21_2 {
		return abstract.Success(&info), nil
	}
	return abstract.Success(&protocol.ClientInformationV768{ClientInformationV764: info, ParticleStatus: int32(p.Particles)}), nil
}

func settingsFrom(c *protocol.ClientInformationV764, particles int32) (*ClientSettings, error) {
	if c.ChatMode < int32(ChatEnabled) || c.ChatMode > int32(ChatHidden) {
		return nil, abstract.Invalid("ClientSettings", "ChatMode", "unknown chat mode %d", c.ChatMode)
	}
	if c.MainHand < int32(MainHandLeft) || c.MainHand > int32(MainHandRight) {
		return nil, abstract.Invalid("ClientSettings", "MainHand", "unknown main hand %d", c.MainHand)
	}
	if particles < int32(ParticlesAll) || particles > int32(ParticlesMinimal) {
		return nil, abstract.Invalid("ClientSettings", "Particles", "unknown particle status %d", particles)
	}
	return &ClientSettings{
		Locale:        c.Locale,
		ViewDistance:  uint8(c.ViewDistance),
		ChatMode:      ChatMode(c.ChatMode),
		ChatColors:    c.ChatColors,
		SkinParts:     SkinParts(c.DisplayedSkinParts),
		MainHand:      MainHand(c.MainHand),
		TextFiltering: c.EnableTextFiltering,
		ServerListing: c.AllowServerListings,
		Particles:     ParticleStatus(particles),
	}, nil
}

func constructClientSettings(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.ClientInformationV764:
		return settingsFrom(c, int32(ParticlesAll))
	case *protocol.ClientInformationV768:
		return settingsFrom(&c.ClientInformationV764, c.ParticleStatus)
	}
	return nil, nil
}

// ConfPlugin is a plugin message sent during configuration.
type ConfPlugin struct {
	Channel string
	Data    []byte
}

func (*ConfPlugin) Name() string                  { return "ConfPlugin" }
func (*ConfPlugin) Direction() protocol.Direction { return protocol.ServerBound }

func (p *ConfPlugin) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfCustomPayloadC2S{Channel: p.Channel, Data: p.Data}), nil
}

func constructConfPlugin(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfCustomPayloadC2S)
	if !ok {
		return nil, nil
	}
	return &ConfPlugin{Channel: c.Channel, Data: c.Data}, nil
}

// ConfFinish acknowledges the end of configuration.
type ConfFinish struct{}

func (*ConfFinish) Name() string                  { return "ConfFinish" }
func (*ConfFinish) Direction() protocol.Direction { return protocol.ServerBound }

func (*ConfFinish) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfFinishC2S{}), nil
}

func constructConfFinish(p protocol.Packet) (abstract.Packet, error) {
	if _, ok := p.(*protocol.ConfFinishC2S); !ok {
		return nil, nil
	}
	return &ConfFinish{}, nil
}

// ConfKeepAlive echoes a configuration keep alive.
type ConfKeepAlive struct {
	ID int64
}

func (*ConfKeepAlive) Name() string                  { return "ConfKeepAlive" }
func (*ConfKeepAlive) Direction() protocol.Direction { return protocol.ServerBound }

func (p *ConfKeepAlive) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfKeepAliveC2S{ID: p.ID}), nil
}

func constructConfKeepAlive(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfKeepAliveC2S)
	if !ok {
		return nil, nil
	}
	return &ConfKeepAlive{ID: c.ID}, nil
}

// ConfPong answers a configuration ping.
type ConfPong struct {
	ID int32
}

func (*ConfPong) Name() string                  { return "ConfPong" }
func (*ConfPong) Direction() protocol.Direction { return protocol.ServerBound }

func (p *ConfPong) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.ConfPongC2S{ID: p.ID}), nil
}

func constructConfPong(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.ConfPongC2S)
	if !ok {
		return nil, nil
	}
	return &ConfPong{ID: c.ID}, nil
}

// ResourcePackResult is the client's progress report on a resource pack.
type ResourcePackResult int32

const (
	PackLoaded ResourcePackResult = iota
	PackDeclined
	PackDownloadFailed
	PackAccepted
	PackDownloaded
	PackInvalidURL
	PackReloadFailed
	PackDiscarded
)

// ResourcePackResponse reports the state of a resource pack.
type ResourcePackResponse struct {
	// UUID is uuid.Nil before 1.20.3, which had a single pack.
	UUID   uuid.UUID
	Result ResourcePackResult
}

func (*ResourcePackResponse) Name() string                  { return "ResourcePackResponse" }
func (*ResourcePackResponse) Direction() protocol.Direction { return protocol.ServerBound }

func (p *ResourcePackResponse) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	if v < protocol.V1_20_3 {
		if p.Result > PackAccepted {
			return abstract.WriteResult{}, fmt.Errorf("resource pack result %d not available before 1.20.3", p.Result)
		}
		return abstract.Success(&protocol.ResourcePackResponseV764{Result: int32(p.Result)}), nil
	}
	return abstract.Success(&protocol.ResourcePackResponseV765{UUID: p.UUID, Result: int32(p.Result)}), nil
}

func packResult(r int32) (ResourcePackResult, error) {
	if r < int32(PackLoaded) || r > int32(PackDiscarded) {
		return 0, abstract.Invalid("ResourcePackResponse", "Result", "unknown result %d", r)
	}
	return ResourcePackResult(r), nil
}

func constructResourcePackResponse(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.ResourcePackResponseV764:
		res, err := packResult(c.Result)
		if err != nil {
			return nil, err
		}
		return &ResourcePackResponse{Result: res}, nil
	case *protocol.ResourcePackResponseV765:
		res, err := packResult(c.Result)
		if err != nil {
			return nil, err
		}
		return &ResourcePackResponse{UUID: c.UUID, Result: res}, nil
	}
	return nil, nil
}

// KnownPacks lists the data packs the client already has.
type KnownPacks struct {
	Packs []protocol.KnownPack
}

func (*KnownPacks) Name() string                  { return "KnownPacks" }
func (*KnownPacks) Direction() protocol.Direction { return protocol.ServerBound }

func (p *KnownPacks) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) || v < protocol.V1_20_5 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.SelectKnownPacksC2S{Packs: p.Packs}), nil
}

func constructKnownPacks(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.SelectKnownPacksC2S)
	if !ok {
		return nil, nil
	}
	return &KnownPacks{Packs: c.Packs}, nil
}

func configuration(v protocol.Version, s protocol.State) bool {
	return s == protocol.StateConfiguration && v >= protocol.V1_20_2
}
