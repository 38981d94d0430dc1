package protocol

import (
	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/nbt"
)

// ClientInformationV764 reports client settings during configuration.
// Enum fields are kept raw; the abstract layer validates them.
type ClientInformationV764 struct {
	Locale              string
	ViewDistance        int8
	ChatMode            int32
	ChatColors          bool
	DisplayedSkinParts  uint8
	MainHand            int32
	EnableTextFiltering bool
	AllowServerListings bool
}

func (p *ClientInformationV764) Encode(w *Writer) {
	w.String(p.Locale, 16).Int8(p.ViewDistance).VarInt(p.ChatMode).Bool(p.ChatColors).
		Uint8(p.DisplayedSkinParts).VarInt(p.MainHand).Bool(p.EnableTextFiltering).
		Bool(p.AllowServerListings)
}

func (p *ClientInformationV764) Decode(r *Reader) {
	p.Locale = r.String(16)
	p.ViewDistance = r.Int8()
	p.ChatMode = r.VarInt()
	p.ChatColors = r.Bool()
	p.DisplayedSkinParts = r.Uint8()
	p.MainHand = r.VarInt()
	p.EnableTextFiltering = r.Bool()
	p.AllowServerListings = r.Bool()
}

// ClientInformationV768 adds the particle setting.
type ClientInformationV768 struct {
	ClientInformationV764
	ParticleStatus int32
}

func (p *ClientInformationV768) Encode(w *Writer) {
	p.ClientInformationV764.Encode(w)
	w.VarInt(p.ParticleStatus)
}

func (p *ClientInformationV768) Decode(r *Reader) {
	p.ClientInformationV764.Decode(r)
	p.ParticleStatus = r.VarInt()
}

// ConfCustomPayloadC2S is a plugin message sent by the client.
type ConfCustomPayloadC2S struct {
	Channel string
	Data    []byte
}

func (p *ConfCustomPayloadC2S) Encode(w *Writer) {
	w.String(p.Channel, DefaultStringLimit).Raw(p.Data)
}

func (p *ConfCustomPayloadC2S) Decode(r *Reader) {
	p.Channel = r.String(DefaultStringLimit)
	p.Data = r.Rest()
}

// ConfFinishC2S acknowledges the end of configuration.
type ConfFinishC2S struct{}

func (p *ConfFinishC2S) Encode(*Writer) {}
func (p *ConfFinishC2S) Decode(*Reader) {}

// ConfKeepAliveC2S answers a configuration keep alive.
type ConfKeepAliveC2S struct {
	ID int64
}

func (p *ConfKeepAliveC2S) Encode(w *Writer) { w.Int64(p.ID) }
func (p *ConfKeepAliveC2S) Decode(r *Reader) { p.ID = r.Int64() }

// ConfPongC2S answers a configuration ping.
type ConfPongC2S struct {
	ID int32
}

func (p *ConfPongC2S) Encode(w *Writer) { w.Int32(p.ID) }
func (p *ConfPongC2S) Decode(r *Reader) { p.ID = r.Int32() }

// ResourcePackResponseV764 reports the status of the single resource pack.
type ResourcePackResponseV764 struct {
	Result int32
}

func (p *ResourcePackResponseV764) Encode(w *Writer) { w.VarInt(p.Result) }
func (p *ResourcePackResponseV764) Decode(r *Reader) { p.Result = r.VarInt() }

// ResourcePackResponseV765 identifies the pack by UUID.
type ResourcePackResponseV765 struct {
	UUID   uuid.UUID
	Result int32
}

func (p *ResourcePackResponseV765) Encode(w *Writer) { w.UUID(p.UUID).VarInt(p.Result) }

func (p *ResourcePackResponseV765) Decode(r *Reader) {
	p.UUID = r.UUID()
	p.Result = r.VarInt()
}

// KnownPack names a data pack both sides may already have.
type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

func encodeKnownPacks(w *Writer, packs []KnownPack) {
	w.VarInt(int32(len(packs)))
	for _, k := range packs {
		w.String(k.Namespace, DefaultStringLimit).String(k.ID, DefaultStringLimit).String(k.Version, DefaultStringLimit)
	}
}

func decodeKnownPacks(r *Reader) []KnownPack {
	n := r.Count(3)
	if n == 0 {
		return nil
	}
	packs := make([]KnownPack, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		packs = append(packs, KnownPack{
			Namespace: r.String(DefaultStringLimit),
			ID:        r.String(DefaultStringLimit),
			Version:   r.String(DefaultStringLimit),
		})
	}
	return packs
}

// SelectKnownPacksC2S lists the packs the client has.
type SelectKnownPacksC2S struct {
	Packs []KnownPack
}

func (p *SelectKnownPacksC2S) Encode(w *Writer) { encodeKnownPacks(w, p.Packs) }
func (p *SelectKnownPacksC2S) Decode(r *Reader) { p.Packs = decodeKnownPacks(r) }

// ConfCustomPayloadS2C is a plugin message sent by the server.
type ConfCustomPayloadS2C struct {
	Channel string
	Data    []byte
}

func (p *ConfCustomPayloadS2C) Encode(w *Writer) {
	w.String(p.Channel, DefaultStringLimit).Raw(p.Data)
}

func (p *ConfCustomPayloadS2C) Decode(r *Reader) {
	p.Channel = r.String(DefaultStringLimit)
	p.Data = r.Rest()
}

// ConfDisconnectV764 carries a JSON text reason.
type ConfDisconnectV764 struct {
	Reason string
}

func (p *ConfDisconnectV764) Encode(w *Writer) { w.String(p.Reason, maxTextLength) }
func (p *ConfDisconnectV764) Decode(r *Reader) { p.Reason = r.String(maxTextLength) }

// ConfDisconnectV765 carries an NBT text reason.
type ConfDisconnectV765 struct {
	Reason nbt.Value
}

func (p *ConfDisconnectV765) Encode(w *Writer) { w.NBT(p.Reason) }
func (p *ConfDisconnectV765) Decode(r *Reader) { p.Reason = r.NBT() }

// ConfFinishS2C ends configuration; the client answers with ConfFinishC2S.
type ConfFinishS2C struct{}

func (p *ConfFinishS2C) Encode(*Writer) {}
func (p *ConfFinishS2C) Decode(*Reader) {}

// ConfKeepAliveS2C must be echoed by the client.
type ConfKeepAliveS2C struct {
	ID int64
}

func (p *ConfKeepAliveS2C) Encode(w *Writer) { w.Int64(p.ID) }
func (p *ConfKeepAliveS2C) Decode(r *Reader) { p.ID = r.Int64() }

// ConfPingS2C must be answered with ConfPongC2S.
type ConfPingS2C struct {
	ID int32
}

func (p *ConfPingS2C) Encode(w *Writer) { w.Int32(p.ID) }
func (p *ConfPingS2C) Decode(r *Reader) { p.ID = r.Int32() }

// RegistryDataV764 sends every registry in one NBT codec.
type RegistryDataV764 struct {
	Codec nbt.Value
}

func (p *RegistryDataV764) Encode(w *Writer) { w.NBT(p.Codec) }
func (p *RegistryDataV764) Decode(r *Reader) { p.Codec = r.NBT() }

// RegistryEntry is one element of a registry. A nil Data means the client
// takes the value from a known pack.
type RegistryEntry struct {
	ID   string
	Data nbt.Value
}

// RegistryDataV766 sends a single registry.
type RegistryDataV766 struct {
	RegistryID string
	Entries    []RegistryEntry
}

func (p *RegistryDataV766) Encode(w *Writer) {
	w.String(p.RegistryID, DefaultStringLimit)
	w.VarInt(int32(len(p.Entries)))
	for _, e := range p.Entries {
		w.String(e.ID, DefaultStringLimit)
		w.Bool(e.Data != nil)
		if e.Data != nil {
			w.NBT(e.Data)
		}
	}
}

func (p *RegistryDataV766) Decode(r *Reader) {
	p.RegistryID = r.String(DefaultStringLimit)
	n := r.Count(2)
	if n == 0 {
		return
	}
	p.Entries = make([]RegistryEntry, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		e := RegistryEntry{ID: r.String(DefaultStringLimit)}
		if r.Bool() {
			e.Data = r.NBT()
		}
		p.Entries = append(p.Entries, e)
	}
}

// RemoveResourcePack removes one pack, or all when UUID is nil.
type RemoveResourcePack struct {
	UUID *uuid.UUID
}

func (p *RemoveResourcePack) Encode(w *Writer) {
	w.Bool(p.UUID != nil)
	if p.UUID != nil {
		w.UUID(*p.UUID)
	}
}

func (p *RemoveResourcePack) Decode(r *Reader) {
	if r.Bool() {
		u := r.UUID()
		p.UUID = &u
	}
}

// AddResourcePack offers a resource pack download.
type AddResourcePack struct {
	UUID   uuid.UUID
	URL    string
	Hash   string
	Forced bool
	Prompt nbt.Value
}

func (p *AddResourcePack) Encode(w *Writer) {
	w.UUID(p.UUID).String(p.URL, DefaultStringLimit).String(p.Hash, 40).Bool(p.Forced)
	w.Bool(p.Prompt != nil)
	if p.Prompt != nil {
		w.NBT(p.Prompt)
	}
}

func (p *AddResourcePack) Decode(r *Reader) {
	p.UUID = r.UUID()
	p.URL = r.String(DefaultStringLimit)
	p.Hash = r.String(40)
	p.Forced = r.Bool()
	if r.Bool() {
		p.Prompt = r.NBT()
	}
}

// ResetChat clears chat signing state on the client.
type ResetChat struct{}

func (p *ResetChat) Encode(*Writer) {}
func (p *ResetChat) Decode(*Reader) {}

// FeatureFlags lists the enabled feature flags.
type FeatureFlags struct {
	Flags []string
}

func (p *FeatureFlags) Encode(w *Writer) {
	w.VarInt(int32(len(p.Flags)))
	for _, f := range p.Flags {
		w.String(f, DefaultStringLimit)
	}
}

func (p *FeatureFlags) Decode(r *Reader) {
	n := r.Count(1)
	if n == 0 {
		return
	}
	p.Flags = make([]string, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		p.Flags = append(p.Flags, r.String(DefaultStringLimit))
	}
}

// Tag is a named list of registry entry ids.
type Tag struct {
	Name    string
	Entries []int32
}

// TagRegistry groups the tags of one registry.
type TagRegistry struct {
	Registry string
	Tags     []Tag
}

// UpdateTags sends tag definitions for a set of registries.
type UpdateTags struct {
	Registries []TagRegistry
}

func (p *UpdateTags) Encode(w *Writer) {
	w.VarInt(int32(len(p.Registries)))
	for _, reg := range p.Registries {
		w.String(reg.Registry, DefaultStringLimit).VarInt(int32(len(reg.Tags)))
		for _, t := range reg.Tags {
			w.String(t.Name, DefaultStringLimit).VarInt(int32(len(t.Entries)))
			for _, e := range t.Entries {
				w.VarInt(e)
			}
		}
	}
}

func (p *UpdateTags) Decode(r *Reader) {
	n := r.Count(2)
	for i := 0; i < n && r.Err() == nil; i++ {
		reg := TagRegistry{Registry: r.String(DefaultStringLimit)}
		tn := r.Count(2)
		for j := 0; j < tn && r.Err() == nil; j++ {
			t := Tag{Name: r.String(DefaultStringLimit)}
			en := r.Count(1)
			for k := 0; k < en && r.Err() == nil; k++ {
				t.Entries = append(t.Entries, r.VarInt())
			}
			reg.Tags = append(reg.Tags, t)
		}
		p.Registries = append(p.Registries, reg)
	}
}

// SelectKnownPacksS2C lists the packs the server would like to reuse.
type SelectKnownPacksS2C struct {
	Packs []KnownPack
}

func (p *SelectKnownPacksS2C) Encode(w *Writer) { encodeKnownPacks(w, p.Packs) }
func (p *SelectKnownPacksS2C) Decode(r *Reader) { p.Packs = decodeKnownPacks(r) }
