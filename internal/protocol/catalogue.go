package protocol

import (
	"sort"
	"sync"
)

// versionIDs lists the id a packet has in each supported version.
type versionIDs map[Version]int32

// within returns one exact range per listed version in [from, to].
func (m versionIDs) within(from, to Version) []IDRange {
	var out []IDRange
	for v, id := range m {
		if v >= from && v <= to {
			out = append(out, IDRange{From: v, To: v, ID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out
}

func always(id int32) []IDRange {
	return []IDRange{{From: 0, To: Latest, ID: id}}
}

func since(v Version, id int32) []IDRange {
	return []IDRange{{From: v, To: Latest, ID: id}}
}

var (
	playKeepAliveC2S = versionIDs{
		V1_7_6: 0x00, V1_8: 0x00, V1_12_2: 0x0B, V1_13: 0x0E, V1_14: 0x0F,
		V1_15_2: 0x0F, V1_16: 0x10, V1_16_4: 0x10, V1_17: 0x0F, V1_18_2: 0x0F,
		V1_19: 0x11, V1_19_2: 0x12, V1_19_3: 0x11, V1_20: 0x12, V1_20_2: 0x14,
		V1_20_3: 0x15, V1_20_5: 0x18, V1_21: 0x18, V1_21_2: 0x1A,
	}
	playKeepAliveS2C = versionIDs{
		V1_7_6: 0x00, V1_8: 0x00, V1_12_2: 0x1F, V1_13: 0x21, V1_14: 0x20,
		V1_15_2: 0x21, V1_16: 0x1F, V1_16_4: 0x1F, V1_17: 0x21, V1_18_2: 0x21,
		V1_19: 0x1E, V1_19_2: 0x20, V1_19_3: 0x1F, V1_20: 0x23, V1_20_2: 0x24,
		V1_20_3: 0x24, V1_20_5: 0x26, V1_21: 0x26, V1_21_2: 0x27,
	}
	playDisconnectS2C = versionIDs{
		V1_7_6: 0x40, V1_8: 0x40, V1_12_2: 0x1A, V1_13: 0x1B, V1_14: 0x1A,
		V1_15_2: 0x1B, V1_16: 0x1A, V1_16_4: 0x19, V1_17: 0x1A, V1_18_2: 0x1A,
		V1_19: 0x17, V1_19_2: 0x19, V1_19_3: 0x17, V1_20: 0x1A, V1_20_2: 0x1B,
		V1_20_3: 0x1B, V1_20_5: 0x1D, V1_21: 0x1D, V1_21_2: 0x1D,
	}
)

// DefaultCatalogue returns fresh shapes for every packet the engine knows,
// in registration order.
func DefaultCatalogue() []*Shape {
	var shapes []*Shape
	register := func(name string, state State, dir Direction, ids []IDRange, newFn func() Packet) {
		shapes = append(shapes, &Shape{Name: name, State: state, Direction: dir, IDs: ids, New: newFn})
	}

	// handshake
	register("SetProtocol", StateHandshake, ServerBound, always(0x00), func() Packet { return &SetProtocol{} })

	// status
	register("StatusRequest", StateStatus, ServerBound, always(0x00), func() Packet { return &StatusRequest{} })
	register("StatusPing", StateStatus, ServerBound, always(0x01), func() Packet { return &StatusPing{} })
	register("StatusResponse", StateStatus, ClientBound, always(0x00), func() Packet { return &StatusResponse{} })
	register("StatusPong", StateStatus, ClientBound, always(0x01), func() Packet { return &StatusPong{} })

	// login, server bound
	register("LoginStart", StateLogin, ServerBound, []IDRange{{0, V1_18_2, 0x00}},
		func() Packet { return &LoginStartV5{} })
	register("LoginStart", StateLogin, ServerBound, []IDRange{{V1_19, V1_19, 0x00}},
		func() Packet { return &LoginStartV759{} })
	register("LoginStart", StateLogin, ServerBound, []IDRange{{V1_19_2, V1_19_2, 0x00}},
		func() Packet { return &LoginStartV760{} })
	register("LoginStart", StateLogin, ServerBound, []IDRange{{V1_19_3, V1_20, 0x00}},
		func() Packet { return &LoginStartV761{} })
	register("LoginStart", StateLogin, ServerBound, since(V1_20_2, 0x00),
		func() Packet { return &LoginStartV764{} })
	register("EncryptionResponse", StateLogin, ServerBound, []IDRange{{0, V1_8 - 1, 0x01}},
		func() Packet { return &EncryptionResponseV5{} })
	register("EncryptionResponse", StateLogin, ServerBound, []IDRange{{V1_8, V1_18_2, 0x01}, {V1_19_3, Latest, 0x01}},
		func() Packet { return &EncryptionResponseV47{} })
	register("EncryptionResponse", StateLogin, ServerBound, []IDRange{{V1_19, V1_19_2, 0x01}},
		func() Packet { return &EncryptionResponseV759{} })
	register("LoginPluginResponse", StateLogin, ServerBound, since(V1_13, 0x02),
		func() Packet { return &LoginPluginResponse{} })
	register("LoginAcknowledged", StateLogin, ServerBound, since(V1_20_2, 0x03),
		func() Packet { return &LoginAcknowledged{} })

	// login, client bound
	register("LoginDisconnect", StateLogin, ClientBound, always(0x00), func() Packet { return &LoginDisconnect{} })
	register("EncryptionRequest", StateLogin, ClientBound, []IDRange{{0, V1_8 - 1, 0x01}},
		func() Packet { return &EncryptionRequestV5{} })
	register("EncryptionRequest", StateLogin, ClientBound, []IDRange{{V1_8, V1_20_3, 0x01}},
		func() Packet { return &EncryptionRequestV47{} })
	register("EncryptionRequest", StateLogin, ClientBound, since(V1_20_5, 0x01),
		func() Packet { return &EncryptionRequestV766{} })
	register("LoginSuccess", StateLogin, ClientBound, []IDRange{{0, V1_16 - 1, 0x02}},
		func() Packet { return &LoginSuccessV5{} })
	register("LoginSuccess", StateLogin, ClientBound, []IDRange{{V1_16, V1_18_2, 0x02}},
		func() Packet { return &LoginSuccessV735{} })
	register("LoginSuccess", StateLogin, ClientBound, []IDRange{{V1_19, V1_20_3, 0x02}, {V1_21_2, Latest, 0x02}},
		func() Packet { return &LoginSuccessV759{} })
	register("LoginSuccess", StateLogin, ClientBound, []IDRange{{V1_20_5, V1_21, 0x02}},
		func() Packet { return &LoginSuccessV766{} })
	register("SetCompression", StateLogin, ClientBound, since(V1_8, 0x03),
		func() Packet { return &SetCompression{} })
	register("LoginPluginRequest", StateLogin, ClientBound, since(V1_13, 0x04),
		func() Packet { return &LoginPluginRequest{} })

	// configuration, server bound
	register("ClientInformation", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_21, 0x00}},
		func() Packet { return &ClientInformationV764{} })
	register("ClientInformation", StateConfiguration, ServerBound, since(V1_21_2, 0x00),
		func() Packet { return &ClientInformationV768{} })
	register("ConfCustomPayload", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_20_3, 0x01}, {V1_20_5, Latest, 0x02}},
		func() Packet { return &ConfCustomPayloadC2S{} })
	register("ConfFinish", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_20_3, 0x02}, {V1_20_5, Latest, 0x03}},
		func() Packet { return &ConfFinishC2S{} })
	register("ConfKeepAlive", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_20_3, 0x03}, {V1_20_5, Latest, 0x04}},
		func() Packet { return &ConfKeepAliveC2S{} })
	register("ConfPong", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_20_3, 0x04}, {V1_20_5, Latest, 0x05}},
		func() Packet { return &ConfPongC2S{} })
	register("ResourcePackResponse", StateConfiguration, ServerBound, []IDRange{{V1_20_2, V1_20_2, 0x05}},
		func() Packet { return &ResourcePackResponseV764{} })
	register("ResourcePackResponse", StateConfiguration, ServerBound, []IDRange{{V1_20_3, V1_20_3, 0x05}, {V1_20_5, Latest, 0x06}},
		func() Packet { return &ResourcePackResponseV765{} })
	register("SelectKnownPacks", StateConfiguration, ServerBound, since(V1_20_5, 0x07),
		func() Packet { return &SelectKnownPacksC2S{} })

	// configuration, client bound
	register("ConfCustomPayload", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_3, 0x00}, {V1_20_5, Latest, 0x01}},
		func() Packet { return &ConfCustomPayloadS2C{} })
	register("ConfDisconnect", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_2, 0x01}},
		func() Packet { return &ConfDisconnectV764{} })
	register("ConfDisconnect", StateConfiguration, ClientBound, []IDRange{{V1_20_3, V1_20_3, 0x01}, {V1_20_5, Latest, 0x02}},
		func() Packet { return &ConfDisconnectV765{} })
	register("ConfFinish", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_3, 0x02}, {V1_20_5, Latest, 0x03}},
		func() Packet { return &ConfFinishS2C{} })
	register("ConfKeepAlive", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_3, 0x03}, {V1_20_5, Latest, 0x04}},
		func() Packet { return &ConfKeepAliveS2C{} })
	register("ConfPing", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_3, 0x04}, {V1_20_5, Latest, 0x05}},
		func() Packet { return &ConfPingS2C{} })
	register("RegistryData", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_3, 0x05}},
		func() Packet { return &RegistryDataV764{} })
	register("RegistryData", StateConfiguration, ClientBound, since(V1_20_5, 0x07),
		func() Packet { return &RegistryDataV766{} })
	register("RemoveResourcePack", StateConfiguration, ClientBound, []IDRange{{V1_20_3, V1_20_3, 0x06}, {V1_20_5, Latest, 0x08}},
		func() Packet { return &RemoveResourcePack{} })
	register("AddResourcePack", StateConfiguration, ClientBound, []IDRange{{V1_20_3, V1_20_3, 0x07}, {V1_20_5, Latest, 0x09}},
		func() Packet { return &AddResourcePack{} })
	register("ResetChat", StateConfiguration, ClientBound, since(V1_20_5, 0x06),
		func() Packet { return &ResetChat{} })
	register("FeatureFlags", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_2, 0x07}, {V1_20_3, V1_20_3, 0x08}, {V1_20_5, Latest, 0x0C}},
		func() Packet { return &FeatureFlags{} })
	register("UpdateTags", StateConfiguration, ClientBound, []IDRange{{V1_20_2, V1_20_2, 0x08}, {V1_20_3, V1_20_3, 0x09}, {V1_20_5, Latest, 0x0D}},
		func() Packet { return &UpdateTags{} })
	register("SelectKnownPacks", StateConfiguration, ClientBound, since(V1_20_5, 0x0E),
		func() Packet { return &SelectKnownPacksS2C{} })

	// play
	register("PlayKeepAlive", StatePlay, ServerBound, playKeepAliveC2S.within(0, V1_8-1),
		func() Packet { return &PlayKeepAliveV5{} })
	register("PlayKeepAlive", StatePlay, ServerBound, playKeepAliveC2S.within(V1_8, V1_12_2-1),
		func() Packet { return &PlayKeepAliveV47{} })
	register("PlayKeepAlive", StatePlay, ServerBound, playKeepAliveC2S.within(V1_12_2, Latest),
		func() Packet { return &PlayKeepAliveV340{} })
	register("PlayKeepAlive", StatePlay, ClientBound, playKeepAliveS2C.within(0, V1_8-1),
		func() Packet { return &PlayKeepAliveS2CV5{} })
	register("PlayKeepAlive", StatePlay, ClientBound, playKeepAliveS2C.within(V1_8, V1_12_2-1),
		func() Packet { return &PlayKeepAliveS2CV47{} })
	register("PlayKeepAlive", StatePlay, ClientBound, playKeepAliveS2C.within(V1_12_2, Latest),
		func() Packet { return &PlayKeepAliveS2CV340{} })
	register("PlayDisconnect", StatePlay, ClientBound, playDisconnectS2C.within(0, V1_20_3-1),
		func() Packet { return &PlayDisconnectV5{} })
	register("PlayDisconnect", StatePlay, ClientBound, playDisconnectS2C.within(V1_20_3, Latest),
		func() Packet { return &PlayDisconnectV765{} })

	return shapes
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return MustRegistry(DefaultCatalogue()...)
})

// DefaultRegistry returns the shared registry built from DefaultCatalogue.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}
