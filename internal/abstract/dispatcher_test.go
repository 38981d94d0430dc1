package abstract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/c2s"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/nbt"
	"github.com/energizer-project/craftflow/internal/protocol"
)

func registryPacket(id string) *protocol.RegistryDataV766 {
	return &protocol.RegistryDataV766{
		RegistryID: id,
		Entries:    []protocol.RegistryEntry{{ID: "minecraft:only", Data: nbt.Compound{}}},
	}
}

func TestDispatchFirstKindWins(t *testing.T) {
	var order []string
	claim := func(name string) abstract.Kind {
		return abstract.Single(name, func(p protocol.Packet) (abstract.Packet, error) {
			order = append(order, name)
			return &c2s.StatusRequest{}, nil
		})
	}
	d := abstract.NewDispatcher([]abstract.Kind{claim("first"), claim("second")})

	out, err := d.Dispatch(&protocol.StatusRequest{})
	require.NoError(t, err)
	assert.NotNil(t, out.Packet)
	assert.Equal(t, []string{"first"}, order)
}

func TestDispatchUnclaimedPassesThrough(t *testing.T) {
	d := abstract.NewDispatcher(c2s.Kinds())
	raw := &protocol.StatusResponse{JSON: "{}"}

	out, err := d.Dispatch(raw)
	require.NoError(t, err)
	assert.Nil(t, out.Packet)
	assert.Same(t, raw, out.Unclaimed)
	assert.False(t, out.Pending())
}

func TestDispatchMultiPacketRegistry(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	for i, id := range s2c.RequiredRegistries {
		out, err := d.Dispatch(registryPacket(id))
		require.NoError(t, err)
		if i < len(s2c.RequiredRegistries)-1 {
			assert.True(t, out.Pending())
			assert.Equal(t, 1, d.Active())
			continue
		}
		reg, ok := out.Packet.(*s2c.ConfRegistry)
		require.True(t, ok)
		assert.Empty(t, reg.Missing())
	}
	assert.Zero(t, d.Active())
}

func TestDispatchIgnoreDropsConstructor(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	out, err := d.Dispatch(registryPacket(s2c.RegistryTrimMaterial))
	require.NoError(t, err)
	require.True(t, out.Pending())

	out, err = d.Dispatch(&protocol.FeatureFlags{Flags: []string{s2c.FlagVanilla}})
	require.NoError(t, err)
	flags, ok := out.Packet.(*s2c.ConfFeatureFlags)
	require.True(t, ok)
	assert.True(t, flags.Vanilla)
	assert.Zero(t, d.Active(), "the interrupted constructor is discarded")

	// the remaining registries start a fresh constructor that never completes
	for _, id := range s2c.RequiredRegistries[1:] {
		out, err = d.Dispatch(registryPacket(id))
		require.NoError(t, err)
		assert.True(t, out.Pending())
	}
	assert.Equal(t, 1, d.Active())

	d.Reset()
	assert.Zero(t, d.Active())
}

func TestRegistryRoundTripThroughDispatcher(t *testing.T) {
	reg := registrySample()
	res, err := reg.Convert(protocol.V1_21, protocol.StateConfiguration)
	require.NoError(t, err)

	d := abstract.NewDispatcher(s2c.Kinds())
	var built []abstract.Packet
	for _, p := range append(res.Packets, &protocol.ConfFinishS2C{}) {
		out, err := d.Dispatch(p)
		require.NoError(t, err)
		if out.Packet != nil {
			built = append(built, out.Packet)
		}
	}
	require.Len(t, built, 2)
	assert.Equal(t, reg, built[0])
	assert.IsType(t, &s2c.ConfFinish{}, built[1])
	assert.Zero(t, d.Active())
}

func TestRegistryRejectsExtraRegistry(t *testing.T) {
	reg := registrySample()
	reg.Registries = append(reg.Registries, s2c.Registry{
		ID:      "minecraft:painting_variant",
		Entries: []s2c.RegistryElement{{Key: "minecraft:kebab", Value: nbt.Compound{}}},
	})
	var semantic *abstract.SemanticError
	for _, v := range []protocol.Version{protocol.V1_20_2, protocol.V1_21} {
		_, err := reg.Convert(v, protocol.StateConfiguration)
		require.ErrorAs(t, err, &semantic, "%d", v)
		assert.Equal(t, "RegistryID", semantic.Field)
	}

	dup := registrySample()
	dup.Registries = append(dup.Registries, dup.Registries[0])
	_, err := dup.Convert(protocol.V1_21, protocol.StateConfiguration)
	assert.ErrorAs(t, err, &semantic)
}

func TestDispatchExtraRegistryIsAnError(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	var semantic *abstract.SemanticError

	// as the first packet, with no constructor running
	_, err := d.Dispatch(registryPacket("minecraft:painting_variant"))
	require.ErrorAs(t, err, &semantic)
	assert.Zero(t, d.Active())

	// in the middle of a running constructor
	for _, id := range s2c.RequiredRegistries[:3] {
		out, err := d.Dispatch(registryPacket(id))
		require.NoError(t, err)
		require.True(t, out.Pending())
	}
	_, err = d.Dispatch(registryPacket("minecraft:wolf_variant"))
	require.ErrorAs(t, err, &semantic)
	assert.Zero(t, d.Active())

	// before 1.20.5, inside the codec
	codec := nbt.Compound{}
	codec.Set("minecraft:painting_variant", nbt.Compound{
		{Name: "type", Value: nbt.String("minecraft:painting_variant")},
		{Name: "value", Value: nbt.List{Elem: nbt.TagEnd}},
	})
	_, err = d.Dispatch(&protocol.RegistryDataV764{Codec: codec})
	assert.ErrorAs(t, err, &semantic)
}

func TestDispatchResetDropsUnfinishedRegistry(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	for _, id := range s2c.RequiredRegistries[:len(s2c.RequiredRegistries)-1] {
		out, err := d.Dispatch(registryPacket(id))
		require.NoError(t, err)
		require.True(t, out.Pending())
	}
	require.Equal(t, 1, d.Active())

	// the state changes before the last registry arrives
	d.Reset()
	assert.Zero(t, d.Active())

	out, err := d.Dispatch(registryPacket(s2c.RegistryDimensionType))
	require.NoError(t, err)
	assert.True(t, out.Pending(), "a lone registry starts over")
	assert.Equal(t, 1, d.Active())
}

func TestDispatchCompetingPacketMidRegistry(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	_, err := d.Dispatch(registryPacket(s2c.RegistryTrimMaterial))
	require.NoError(t, err)
	_, err = d.Dispatch(registryPacket(s2c.RegistryTrimPattern))
	require.NoError(t, err)

	out, err := d.Dispatch(&protocol.ConfKeepAliveS2C{ID: 5})
	require.NoError(t, err)
	ka, ok := out.Packet.(*s2c.ConfKeepAlive)
	require.True(t, ok)
	assert.EqualValues(t, 5, ka.ID)
	assert.Zero(t, d.Active())
}

func TestDispatchConstructorError(t *testing.T) {
	d := abstract.NewDispatcher(s2c.Kinds())
	_, err := d.Dispatch(registryPacket(s2c.RegistryBiome))
	require.NoError(t, err)

	_, err = d.Dispatch(registryPacket(s2c.RegistryBiome))
	var semantic *abstract.SemanticError
	assert.ErrorAs(t, err, &semantic)
	assert.Zero(t, d.Active())
}

func TestDispatchSemanticErrors(t *testing.T) {
	d := abstract.NewDispatcher(c2s.Kinds())
	var semantic *abstract.SemanticError

	_, err := d.Dispatch(&protocol.SetProtocol{ProtocolVersion: 767, NextState: 7})
	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "Intent", semantic.Field)

	_, err = d.Dispatch(&protocol.ClientInformationV764{ChatMode: 3})
	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "ChatMode", semantic.Field)

	_, err = d.Dispatch(&protocol.ClientInformationV764{MainHand: 2})
	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "MainHand", semantic.Field)

	_, err = d.Dispatch(&protocol.ResourcePackResponseV765{Result: 8})
	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, "Result", semantic.Field)
}

func TestCodecRegistryOrderedByID(t *testing.T) {
	entry := func(name string, id int32) nbt.Value {
		return nbt.Compound{
			{Name: "name", Value: nbt.String(name)},
			{Name: "id", Value: nbt.Int(id)},
			{Name: "element", Value: nbt.Compound{}},
		}
	}
	codec := nbt.Compound{}
	for _, id := range s2c.RequiredRegistries {
		list, err := nbt.NewList(entry("minecraft:b", 1), entry("minecraft:a", 0))
		require.NoError(t, err)
		codec.Set(id, nbt.Compound{
			{Name: "type", Value: nbt.String(id)},
			{Name: "value", Value: list},
		})
	}

	d := abstract.NewDispatcher(s2c.Kinds())
	out, err := d.Dispatch(&protocol.RegistryDataV764{Codec: codec})
	require.NoError(t, err)
	reg := out.Packet.(*s2c.ConfRegistry)
	biome, ok := reg.Registry(s2c.RegistryBiome)
	require.True(t, ok)
	require.Len(t, biome.Entries, 2)
	assert.Equal(t, "minecraft:a", biome.Entries[0].Key)
	assert.Equal(t, "minecraft:b", biome.Entries[1].Key)
}
