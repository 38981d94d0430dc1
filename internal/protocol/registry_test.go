package protocol

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/nbt"
)

var testUUID = uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

func textNBT(s string) nbt.Value {
	return nbt.Compound{{Name: "text", Value: nbt.String(s)}}
}

// sample returns a populated instance of the shape's packet type.
func sample(s *Shape) Packet {
	sig := "c2lnbmF0dXJl"
	u := testUUID
	info := ClientInformationV764{
		Locale: "en_us", ViewDistance: 12, ChatMode: 1, ChatColors: true,
		DisplayedSkinParts: 0x7F, MainHand: 1, EnableTextFiltering: false, AllowServerListings: true,
	}
	switch s.New().(type) {
	case *SetProtocol:
		return &SetProtocol{ProtocolVersion: 767, ServerHost: "play.example.net", ServerPort: 25565, NextState: 2}
	case *StatusRequest:
		return &StatusRequest{}
	case *StatusPing:
		return &StatusPing{Payload: 1234567890123}
	case *StatusResponse:
		return &StatusResponse{JSON: `{"version":{"name":"1.21","protocol":767}}`}
	case *StatusPong:
		return &StatusPong{Payload: -42}
	case *LoginStartV5:
		return &LoginStartV5{Username: "Notch"}
	case *LoginStartV759:
		return &LoginStartV759{Username: "Notch", Signature: &LoginSignatureData{Timestamp: 99, PublicKey: []byte{1, 2}, Signature: []byte{3}}}
	case *LoginStartV760:
		return &LoginStartV760{Username: "Notch", UUID: &u}
	case *LoginStartV761:
		return &LoginStartV761{Username: "Notch", UUID: &u}
	case *LoginStartV764:
		return &LoginStartV764{Username: "Notch", UUID: u}
	case *EncryptionResponseV5:
		return &EncryptionResponseV5{SharedSecret: []byte{1, 2, 3}, VerifyToken: []byte{4, 5}}
	case *EncryptionResponseV47:
		return &EncryptionResponseV47{SharedSecret: []byte{1, 2, 3}, VerifyToken: []byte{4, 5}}
	case *EncryptionResponseV759:
		return &EncryptionResponseV759{SharedSecret: []byte{1}, Signature: &MessageSignature{Salt: 7, Signature: []byte{8, 9}}}
	case *LoginPluginResponse:
		return &LoginPluginResponse{MessageID: 3, Successful: true, Data: []byte("pong")}
	case *LoginAcknowledged:
		return &LoginAcknowledged{}
	case *LoginDisconnect:
		return &LoginDisconnect{Reason: `{"text":"bye"}`}
	case *EncryptionRequestV5:
		return &EncryptionRequestV5{ServerID: "", PublicKey: []byte{0x30, 0x81}, VerifyToken: []byte{1, 2, 3, 4}}
	case *EncryptionRequestV47:
		return &EncryptionRequestV47{ServerID: "", PublicKey: []byte{0x30, 0x81}, VerifyToken: []byte{1, 2, 3, 4}}
	case *EncryptionRequestV766:
		return &EncryptionRequestV766{PublicKey: []byte{0x30}, VerifyToken: []byte{1}, ShouldAuthenticate: true}
	case *LoginSuccessV5:
		return &LoginSuccessV5{UUID: u, Username: "Notch"}
	case *LoginSuccessV735:
		return &LoginSuccessV735{UUID: u, Username: "Notch"}
	case *LoginSuccessV759:
		return &LoginSuccessV759{UUID: u, Username: "Notch", Properties: []GameProfileProperty{{Name: "textures", Value: "e30=", Signature: &sig}}}
	case *LoginSuccessV766:
		return &LoginSuccessV766{UUID: u, Username: "Notch", StrictErrorHandling: true}
	case *SetCompression:
		return &SetCompression{Threshold: 256}
	case *LoginPluginRequest:
		return &LoginPluginRequest{MessageID: 3, Channel: "velocity:player_info", Data: []byte{1}}
	case *ClientInformationV764:
		return &info
	case *ClientInformationV768:
		return &ClientInformationV768{ClientInformationV764: info, ParticleStatus: 2}
	case *ConfCustomPayloadC2S:
		return &ConfCustomPayloadC2S{Channel: "minecraft:brand", Data: []byte("\x07vanilla")}
	case *ConfFinishC2S:
		return &ConfFinishC2S{}
	case *ConfKeepAliveC2S:
		return &ConfKeepAliveC2S{ID: 77}
	case *ConfPongC2S:
		return &ConfPongC2S{ID: 5}
	case *ResourcePackResponseV764:
		return &ResourcePackResponseV764{Result: 3}
	case *ResourcePackResponseV765:
		return &ResourcePackResponseV765{UUID: u, Result: 0}
	case *SelectKnownPacksC2S:
		return &SelectKnownPacksC2S{Packs: []KnownPack{{Namespace: "minecraft", ID: "core", Version: "1.21"}}}
	case *ConfCustomPayloadS2C:
		return &ConfCustomPayloadS2C{Channel: "minecraft:brand", Data: []byte("\x09craftflow")}
	case *ConfDisconnectV764:
		return &ConfDisconnectV764{Reason: `{"text":"bye"}`}
	case *ConfDisconnectV765:
		return &ConfDisconnectV765{Reason: textNBT("bye")}
	case *ConfFinishS2C:
		return &ConfFinishS2C{}
	case *ConfKeepAliveS2C:
		return &ConfKeepAliveS2C{ID: 77}
	case *ConfPingS2C:
		return &ConfPingS2C{ID: 5}
	case *RegistryDataV764:
		return &RegistryDataV764{Codec: nbt.Compound{{Name: "minecraft:chat_type", Value: nbt.Compound{
			{Name: "type", Value: nbt.String("minecraft:chat_type")},
		}}}}
	case *RegistryDataV766:
		return &RegistryDataV766{RegistryID: "minecraft:dimension_type", Entries: []RegistryEntry{
			{ID: "minecraft:overworld"},
			{ID: "craftflow:void", Data: nbt.Compound{{Name: "height", Value: nbt.Int(256)}}},
		}}
	case *RemoveResourcePack:
		return &RemoveResourcePack{UUID: &u}
	case *AddResourcePack:
		return &AddResourcePack{UUID: u, URL: "https://example.net/pack.zip", Hash: "0123456789abcdef0123456789abcdef01234567", Forced: true, Prompt: textNBT("please")}
	case *ResetChat:
		return &ResetChat{}
	case *FeatureFlags:
		return &FeatureFlags{Flags: []string{"minecraft:vanilla", "minecraft:bundle"}}
	case *UpdateTags:
		return &UpdateTags{Registries: []TagRegistry{{Registry: "minecraft:block", Tags: []Tag{{Name: "minecraft:logs", Entries: []int32{1, 2, 300}}}}}}
	case *SelectKnownPacksS2C:
		return &SelectKnownPacksS2C{Packs: []KnownPack{{Namespace: "minecraft", ID: "core", Version: "1.21"}}}
	case *PlayKeepAliveV5:
		return &PlayKeepAliveV5{ID: -9}
	case *PlayKeepAliveV47:
		return &PlayKeepAliveV47{ID: 300}
	case *PlayKeepAliveV340:
		return &PlayKeepAliveV340{ID: 1 << 40}
	case *PlayKeepAliveS2CV5:
		return &PlayKeepAliveS2CV5{PlayKeepAliveV5{ID: -9}}
	case *PlayKeepAliveS2CV47:
		return &PlayKeepAliveS2CV47{PlayKeepAliveV47{ID: 300}}
	case *PlayKeepAliveS2CV340:
		return &PlayKeepAliveS2CV340{PlayKeepAliveV340{ID: 1 << 40}}
	case *PlayDisconnectV5:
		return &PlayDisconnectV5{Reason: `{"text":"bye"}`}
	case *PlayDisconnectV765:
		return &PlayDisconnectV765{Reason: textNBT("bye")}
	}
	return nil
}

func TestRegistryRoundTripEveryShape(t *testing.T) {
	reg := DefaultRegistry()
	for _, s := range reg.Shapes() {
		p := sample(s)
		require.NotNil(t, p, "no sample for %T", s.New())
		for _, v := range SupportedVersions {
			if !s.Supports(v) {
				continue
			}
			id, body, err := reg.Encode(s.State, s.Direction, v, p)
			require.NoError(t, err, "%s @%d", s.Name, v)

			got, err := reg.Decode(s.State, s.Direction, v, id, body)
			require.NoError(t, err, "%s @%d", s.Name, v)
			assert.Equal(t, p, got, "%s @%d", s.Name, v)

			_, again, err := reg.Encode(s.State, s.Direction, v, got)
			require.NoError(t, err)
			assert.Equal(t, body, again, "%s @%d re-encode", s.Name, v)
		}
	}
}

func TestEveryStateHasAShapePerVersion(t *testing.T) {
	reg := DefaultRegistry()
	for _, v := range SupportedVersions {
		assert.NotEmpty(t, reg.IDs(StateHandshake, ServerBound, v))
		assert.NotEmpty(t, reg.IDs(StateStatus, ClientBound, v))
		assert.NotEmpty(t, reg.IDs(StateLogin, ClientBound, v))
		assert.NotEmpty(t, reg.IDs(StatePlay, ServerBound, v))
		if v >= V1_20_2 {
			assert.NotEmpty(t, reg.IDs(StateConfiguration, ServerBound, v), "protocol %d", v)
		} else {
			assert.Empty(t, reg.IDs(StateConfiguration, ServerBound, v), "protocol %d", v)
		}
	}
}

func TestHandshakeByteIdentical(t *testing.T) {
	body := []byte{
		0xFF, 0x05, // 767
		0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't',
		0x63, 0xDD, // 25565
		0x02, // login
	}
	reg := DefaultRegistry()
	p, err := reg.Decode(StateHandshake, ServerBound, MinVersion(), 0x00, body)
	require.NoError(t, err)

	hs := p.(*SetProtocol)
	assert.Equal(t, int32(767), hs.ProtocolVersion)
	assert.Equal(t, "localhost", hs.ServerHost)
	assert.Equal(t, uint16(25565), hs.ServerPort)
	assert.Equal(t, IntentLogin, hs.NextState)

	id, out, err := reg.Encode(StateHandshake, ServerBound, V1_21, hs)
	require.NoError(t, err)
	assert.Equal(t, int32(0), id)
	assert.Equal(t, body, out)
}

func TestDecodeUnknownID(t *testing.T) {
	reg := DefaultRegistry()
	_, err := reg.Decode(StateStatus, ServerBound, V1_21, 0x7F, nil)
	var unk *UnknownPacketError
	require.ErrorAs(t, err, &unk)
	assert.Equal(t, int32(0x7F), unk.ID)
	assert.True(t, errors.Is(err, ErrUnknownPacket))

	// login acknowledged does not exist before 1.20.2
	_, err = reg.Decode(StateLogin, ServerBound, V1_20, 0x03, nil)
	assert.ErrorIs(t, err, ErrUnknownPacket)
}

func TestDecodeErrors(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Decode(StateStatus, ServerBound, V1_21, 0x01, []byte{1, 2, 3})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "StatusPing", de.Name)
	assert.False(t, errors.Is(err, ErrUnknownPacket))

	_, err = reg.Decode(StateStatus, ServerBound, V1_21, 0x00, []byte{0})
	require.ErrorAs(t, err, &de, "trailing bytes are rejected")

	long := NewWriter().VarInt(17).Raw([]byte("abcdefghijklmnopq")).Bytes()
	_, err = reg.Decode(StateLogin, ServerBound, V1_8, 0x00, long)
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestEncodeMisusePanics(t *testing.T) {
	reg := DefaultRegistry()

	assert.PanicsWithError(t,
		"packet LoginAcknowledged misused (c2s login, protocol 763): packet shape not defined for this version",
		func() { _, _, _ = reg.Encode(StateLogin, ServerBound, V1_20, &LoginAcknowledged{}) })

	assert.Panics(t, func() {
		_, _, _ = reg.Encode(StatePlay, ServerBound, V1_21, &StatusPing{})
	})
}

func TestEncodeErrorOnOversizedField(t *testing.T) {
	reg := DefaultRegistry()
	_, _, err := reg.Encode(StateLogin, ServerBound, V1_8, &LoginStartV5{Username: "this_name_is_far_too_long"})
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, ErrStringTooLong)
}

func TestPayloadHelpers(t *testing.T) {
	reg := DefaultRegistry()
	payload, err := reg.EncodePayload(StatePlay, ClientBound, V1_21_2, &PlayKeepAliveS2CV340{PlayKeepAliveV340{ID: 5}})
	require.NoError(t, err)
	assert.Equal(t, byte(0x27), payload[0])

	p, id, err := reg.DecodePayload(StatePlay, ClientBound, V1_21_2, payload)
	require.NoError(t, err)
	assert.Equal(t, int32(0x27), id)
	assert.Equal(t, int64(5), p.(*PlayKeepAliveS2CV340).ID)
}

func TestDuplicateIDRejected(t *testing.T) {
	_, err := NewRegistry(
		&Shape{Name: "A", State: StateStatus, Direction: ServerBound, IDs: always(0), New: func() Packet { return &StatusRequest{} }},
		&Shape{Name: "B", State: StateStatus, Direction: ServerBound, IDs: always(0), New: func() Packet { return &StatusPing{} }},
	)
	assert.Error(t, err)
}

func TestVersionHelpers(t *testing.T) {
	assert.True(t, IsSupported(767))
	assert.False(t, IsSupported(762))
	assert.Equal(t, V1_20, NearestSupported(762))
	assert.Equal(t, V1_7_6, NearestSupported(1))
	assert.Equal(t, V1_21_2, NearestSupported(9999))
	assert.Equal(t, V1_7_6, MinVersion())
	assert.Equal(t, "1.21", V1_21.String())
}
