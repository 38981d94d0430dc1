package login

import (
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/nbt"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// corePack is the vanilla data pack every 1.20.5+ client ships with.
func corePack(v protocol.Version) protocol.KnownPack {
	return protocol.KnownPack{Namespace: "minecraft", ID: "core", Version: v.String()}
}

func knowsCorePack(packs []protocol.KnownPack) bool {
	for _, p := range packs {
		if p.Namespace == "minecraft" && p.ID == "core" {
			return true
		}
	}
	return false
}

func stringList(items ...string) nbt.List {
	out := nbt.List{Elem: nbt.TagString}
	for _, s := range items {
		out.Items = append(out.Items, nbt.String(s))
	}
	return out
}

func boolByte(b bool) nbt.Byte {
	if b {
		return 1
	}
	return 0
}

// damageTypes are the ids the client looks up by name.
var damageTypes = []string{
	"minecraft:generic",
	"minecraft:generic_kill",
	"minecraft:in_fire",
	"minecraft:lava",
	"minecraft:fall",
	"minecraft:out_of_world",
	"minecraft:player_attack",
	"minecraft:mob_attack",
	"minecraft:drown",
	"minecraft:starve",
}

// defaultRegistries returns the minimal registry data that lets a client
// leave configuration. With inline false every element is left to the core
// pack.
func defaultRegistries(inline bool) *s2c.ConfRegistry {
	element := func(v nbt.Compound) nbt.Value {
		if !inline {
			return nil
		}
		return v
	}

	damage := make([]s2c.RegistryElement, 0, len(damageTypes))
	for _, id := range damageTypes {
		damage = append(damage, s2c.RegistryElement{Key: id, Value: element(nbt.Compound{
			{Name: "message_id", Value: nbt.String(id[len("minecraft:"):])},
			{Name: "scaling", Value: nbt.String("when_caused_by_living_non_player")},
			{Name: "exhaustion", Value: nbt.Float(0)},
		})})
	}

	return &s2c.ConfRegistry{Registries: []s2c.Registry{
		{ID: s2c.RegistryTrimMaterial},
		{ID: s2c.RegistryTrimPattern},
		{ID: s2c.RegistryBiome, Entries: []s2c.RegistryElement{{
			Key: "minecraft:plains",
			Value: element(nbt.Compound{
				{Name: "has_precipitation", Value: boolByte(true)},
				{Name: "temperature", Value: nbt.Float(0.8)},
				{Name: "downfall", Value: nbt.Float(0.4)},
				{Name: "effects", Value: nbt.Compound{
					{Name: "sky_color", Value: nbt.Int(7907327)},
					{Name: "water_fog_color", Value: nbt.Int(329011)},
					{Name: "fog_color", Value: nbt.Int(12638463)},
					{Name: "water_color", Value: nbt.Int(4159204)},
				}},
			}),
		}}},
		{ID: s2c.RegistryChatType, Entries: []s2c.RegistryElement{{
			Key: "minecraft:chat",
			Value: element(nbt.Compound{
				{Name: "chat", Value: nbt.Compound{
					{Name: "translation_key", Value: nbt.String("chat.type.text")},
					{Name: "parameters", Value: stringList("sender", "content")},
				}},
				{Name: "narration", Value: nbt.Compound{
					{Name: "translation_key", Value: nbt.String("chat.type.text.narrate")},
					{Name: "parameters", Value: stringList("sender", "content")},
				}},
			}),
		}}},
		{ID: s2c.RegistryDamageType, Entries: damage},
		{ID: s2c.RegistryDimensionType, Entries: []s2c.RegistryElement{{
			Key: "minecraft:overworld",
			Value: element(nbt.Compound{
				{Name: "has_skylight", Value: boolByte(true)},
				{Name: "has_ceiling", Value: boolByte(false)},
				{Name: "ultrawarm", Value: boolByte(false)},
				{Name: "natural", Value: boolByte(true)},
				{Name: "coordinate_scale", Value: nbt.Double(1)},
				{Name: "bed_works", Value: boolByte(true)},
				{Name: "respawn_anchor_works", Value: boolByte(false)},
				{Name: "min_y", Value: nbt.Int(-64)},
				{Name: "height", Value: nbt.Int(384)},
				{Name: "logical_height", Value: nbt.Int(384)},
				{Name: "infiniburn", Value: nbt.String("#minecraft:infiniburn_overworld")},
				{Name: "effects", Value: nbt.String("minecraft:overworld")},
				{Name: "ambient_light", Value: nbt.Float(0)},
				{Name: "piglin_safe", Value: boolByte(false)},
				{Name: "has_raids", Value: boolByte(true)},
				{Name: "monster_spawn_light_level", Value: nbt.Int(0)},
				{Name: "monster_spawn_block_light_limit", Value: nbt.Int(0)},
			}),
		}}},
	}}
}
