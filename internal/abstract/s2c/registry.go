package s2c

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/nbt"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// Registry ids the client needs before it will leave configuration.
const (
	RegistryTrimMaterial  = "minecraft:trim_material"
	RegistryTrimPattern   = "minecraft:trim_pattern"
	RegistryBiome         = "minecraft:worldgen/biome"
	RegistryChatType      = "minecraft:chat_type"
	RegistryDamageType    = "minecraft:damage_type"
	RegistryDimensionType = "minecraft:dimension_type"
)

// RequiredRegistries lists the registries in the order 1.20.5+ sends them.
// They are also the only registries ConfRegistry carries.
var RequiredRegistries = []string{
	RegistryTrimMaterial,
	RegistryTrimPattern,
	RegistryBiome,
	RegistryChatType,
	RegistryDamageType,
	RegistryDimensionType,
}

var requiredSet = mapset.NewSet(RequiredRegistries...)

func unknownRegistry(id string) error {
	return abstract.Invalid("ConfRegistry", "RegistryID", "unknown registry id %q", id)
}

// RegistryElement is one named entry of a registry. A nil Value leaves the
// data to a known pack, which 1.20.5+ clients support.
type RegistryElement struct {
	Key   string
	Value nbt.Value
}

// Registry is one synchronised registry with its entries in id order.
type Registry struct {
	ID      string
	Entries []RegistryElement
}

// ConfRegistry carries the registry data. Before 1.20.5 it is a single codec
// packet, after that one packet per registry.
type ConfRegistry struct {
	Registries []Registry
}

func (*ConfRegistry) Name() string                  { return "ConfRegistry" }
func (*ConfRegistry) Direction() protocol.Direction { return protocol.ClientBound }

// Registry returns the registry with the given id.
func (p *ConfRegistry) Registry(id string) (Registry, bool) {
	for _, r := range p.Registries {
		if r.ID == id {
			return r, true
		}
	}
	return Registry{}, false
}

func (p *ConfRegistry) ids() mapset.Set[string] {
	set := mapset.NewSet[string]()
	for _, r := range p.Registries {
		set.Add(r.ID)
	}
	return set
}

// validate rejects registries outside RequiredRegistries and ids listed
// twice. A 1.20.5+ client reading them back would otherwise finish the
// packet before the extra registry arrives.
func (p *ConfRegistry) validate() error {
	seen := mapset.NewSetWithSize[string](len(p.Registries))
	for _, r := range p.Registries {
		if !requiredSet.Contains(r.ID) {
			return unknownRegistry(r.ID)
		}
		if !seen.Add(r.ID) {
			return abstract.Invalid("ConfRegistry", "RegistryID", "registry %s listed twice", r.ID)
		}
	}
	return nil
}

// Missing returns the required registries that are absent, in send order.
func (p *ConfRegistry) Missing() []string {
	have := p.ids()
	var out []string
	for _, id := range RequiredRegistries {
		if !have.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

func (p *ConfRegistry) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if !configuration(v, s) {
		return abstract.Unsupported(), nil
	}
	if err := p.validate(); err != nil {
		return abstract.WriteResult{}, err
	}
	if missing := p.Missing(); len(missing) > 0 {
		return abstract.WriteResult{}, fmt.Errorf("registry data incomplete, missing %v", missing)
	}
	if v < protocol.V1_20_5 {
		return abstract.Success(&protocol.RegistryDataV764{Codec: p.codec()}), nil
	}
	pkts := make([]protocol.Packet, 0, len(p.Registries))
	for _, r := range p.Registries {
		out := &protocol.RegistryDataV766{RegistryID: r.ID}
		for _, e := range r.Entries {
			out.Entries = append(out.Entries, protocol.RegistryEntry{ID: e.Key, Data: e.Value})
		}
		pkts = append(pkts, out)
	}
	return abstract.Success(pkts...), nil
}

// codec builds the single compound sent before 1.20.5:
// {<registry>: {type: <registry>, value: [{name, id, element}...]}}.
func (p *ConfRegistry) codec() nbt.Compound {
	root := make(nbt.Compound, 0, len(p.Registries))
	for _, r := range p.Registries {
		items := make([]nbt.Value, 0, len(r.Entries))
		for i, e := range r.Entries {
			element := e.Value
			if element == nil {
				element = nbt.Compound{}
			}
			items = append(items, nbt.Compound{
				{Name: "name", Value: nbt.String(e.Key)},
				{Name: "id", Value: nbt.Int(i)},
				{Name: "element", Value: element},
			})
		}
		list := nbt.List{Elem: nbt.TagEnd}
		if len(items) > 0 {
			list = nbt.List{Elem: nbt.TagCompound, Items: items}
		}
		root = append(root, nbt.Entry{Name: r.ID, Value: nbt.Compound{
			{Name: "type", Value: nbt.String(r.ID)},
			{Name: "value", Value: list},
		}})
	}
	return root
}

func invalidCodec(format string, args ...any) error {
	return abstract.Invalid("ConfRegistry", "Codec", format, args...)
}

func parseCodec(v nbt.Value) (*ConfRegistry, error) {
	root, ok := v.(nbt.Compound)
	if !ok {
		return nil, invalidCodec("root is not a compound")
	}
	out := &ConfRegistry{}
	for _, reg := range root {
		if !requiredSet.Contains(reg.Name) {
			return nil, unknownRegistry(reg.Name)
		}
		body, ok := reg.Value.(nbt.Compound)
		if !ok {
			return nil, invalidCodec("registry %s is not a compound", reg.Name)
		}
		raw, ok := body.Get("value")
		if !ok {
			return nil, invalidCodec("registry %s has no value list", reg.Name)
		}
		list, ok := raw.(nbt.List)
		if !ok || (len(list.Items) > 0 && list.Elem != nbt.TagCompound) {
			return nil, invalidCodec("registry %s value is not a compound list", reg.Name)
		}

		type indexed struct {
			id int32
			RegistryElement
		}
		elems := make([]indexed, 0, len(list.Items))
		for _, item := range list.Items {
			c := item.(nbt.Compound)
			name, ok := c.GetString("name")
			if !ok {
				return nil, invalidCodec("registry %s entry without name", reg.Name)
			}
			idv, _ := c.Get("id")
			id, ok := idv.(nbt.Int)
			if !ok {
				return nil, invalidCodec("registry %s entry %s without id", reg.Name, name)
			}
			element, _ := c.Get("element")
			elems = append(elems, indexed{id: int32(id), RegistryElement: RegistryElement{Key: name, Value: element}})
		}
		sort.SliceStable(elems, func(i, j int) bool { return elems[i].id < elems[j].id })

		r := Registry{ID: reg.Name}
		for _, e := range elems {
			r.Entries = append(r.Entries, e.RegistryElement)
		}
		out.Registries = append(out.Registries, r)
	}
	return out, nil
}

// registryConstructor collects the per-registry packets of 1.20.5+ until
// every required registry has arrived.
type registryConstructor struct {
	packet *ConfRegistry
	seen   mapset.Set[string]
}

func (c *registryConstructor) add(p *protocol.RegistryDataV766) (abstract.ConstructResult, error) {
	if !requiredSet.Contains(p.RegistryID) {
		return abstract.ConstructResult{}, unknownRegistry(p.RegistryID)
	}
	if c.seen.Contains(p.RegistryID) {
		return abstract.ConstructResult{}, abstract.Invalid("ConfRegistry", "RegistryID", "registry %s sent twice", p.RegistryID)
	}
	c.seen.Add(p.RegistryID)
	r := Registry{ID: p.RegistryID}
	for _, e := range p.Entries {
		r.Entries = append(r.Entries, RegistryElement{Key: e.ID, Value: e.Data})
	}
	c.packet.Registries = append(c.packet.Registries, r)

	if c.seen.IsSuperset(requiredSet) {
		return abstract.Done(c.packet), nil
	}
	return abstract.Continue(c), nil
}

func (c *registryConstructor) Next(p protocol.Packet) (abstract.ConstructResult, error) {
	rd, ok := p.(*protocol.RegistryDataV766)
	if !ok {
		return abstract.Ignore(p), nil
	}
	return c.add(rd)
}

func constructConfRegistry(p protocol.Packet) (abstract.ConstructResult, error) {
	switch c := p.(type) {
	case *protocol.RegistryDataV764:
		reg, err := parseCodec(c.Codec)
		if err != nil {
			return abstract.ConstructResult{}, err
		}
		return abstract.Done(reg), nil
	case *protocol.RegistryDataV766:
		rc := &registryConstructor{packet: &ConfRegistry{}, seen: mapset.NewSet[string]()}
		return rc.add(c)
	}
	return abstract.Ignore(p), nil
}
