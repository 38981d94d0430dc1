package protocol

import (
	"fmt"
	"reflect"
	"sort"
)

// Packet is a concrete, version-specific packet body. Implementations are
// pointer types; the registry identifies them by their dynamic type.
type Packet interface {
	Encode(w *Writer)
	Decode(r *Reader)
}

// IDRange assigns a packet id to an inclusive range of versions.
type IDRange struct {
	From Version
	To   Version
	ID   int32
}

// Shape describes one concrete packet layout: where it lives and which
// versions use it, with the id it has in each.
type Shape struct {
	Name      string
	State     State
	Direction Direction
	IDs       []IDRange
	New       func() Packet

	typ reflect.Type
}

// Versions returns the version group of the shape.
func (s *Shape) Versions() []VersionRange {
	out := make([]VersionRange, len(s.IDs))
	for i, r := range s.IDs {
		out[i] = VersionRange{From: r.From, To: r.To}
	}
	return out
}

// Supports reports whether v belongs to the shape's version group.
func (s *Shape) Supports(v Version) bool {
	_, ok := s.idFor(v)
	return ok
}

func (s *Shape) idFor(v Version) (int32, bool) {
	for _, r := range s.IDs {
		if v >= r.From && v <= r.To {
			return r.ID, true
		}
	}
	return 0, false
}

type decodeKey struct {
	state   State
	dir     Direction
	version Version
	id      int32
}

type encodeKey struct {
	typ     reflect.Type
	version Version
}

type encodeEntry struct {
	shape *Shape
	id    int32
}

// Registry maps packet ids to shapes for every supported version. It is
// built once and only read afterwards, so it is safe for concurrent use.
type Registry struct {
	shapes []*Shape
	byType map[reflect.Type]*Shape
	decode map[decodeKey]*Shape
	encode map[encodeKey]encodeEntry
}

// NewRegistry indexes shapes for every version in SupportedVersions. Two
// shapes claiming the same id in the same state, direction and version is a
// configuration error.
func NewRegistry(shapes ...*Shape) (*Registry, error) {
	r := &Registry{
		byType: make(map[reflect.Type]*Shape),
		decode: make(map[decodeKey]*Shape),
		encode: make(map[encodeKey]encodeEntry),
	}
	for _, s := range shapes {
		if err := r.add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(shapes ...*Shape) *Registry {
	r, err := NewRegistry(shapes...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(s *Shape) error {
	if s.New == nil {
		return fmt.Errorf("shape %s has no constructor", s.Name)
	}
	s.typ = reflect.TypeOf(s.New())
	if prev, ok := r.byType[s.typ]; ok {
		return fmt.Errorf("type %s registered for both %s and %s", s.typ, prev.Name, s.Name)
	}
	r.byType[s.typ] = s
	r.shapes = append(r.shapes, s)

	for _, v := range SupportedVersions {
		id, ok := s.idFor(v)
		if !ok {
			continue
		}
		key := decodeKey{state: s.State, dir: s.Direction, version: v, id: id}
		if prev, ok := r.decode[key]; ok {
			return fmt.Errorf("packet id 0x%02X (%s %s, protocol %d) claimed by %s and %s",
				id, s.Direction, s.State, v, prev.Name, s.Name)
		}
		r.decode[key] = s
		r.encode[encodeKey{typ: s.typ, version: v}] = encodeEntry{shape: s, id: id}
	}
	return nil
}

// Shapes returns every registered shape in registration order.
func (r *Registry) Shapes() []*Shape {
	return r.shapes
}

// ShapeOf returns the shape of a concrete packet.
func (r *Registry) ShapeOf(p Packet) (*Shape, bool) {
	s, ok := r.byType[reflect.TypeOf(p)]
	return s, ok
}

// PacketName returns the catalogue name of a concrete packet, or its Go type
// name when the default registry does not know it.
func PacketName(p Packet) string {
	if s, ok := DefaultRegistry().ShapeOf(p); ok {
		return s.Name
	}
	t := reflect.TypeOf(p)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}

// Lookup returns the shape registered for an id.
func (r *Registry) Lookup(state State, dir Direction, v Version, id int32) (*Shape, bool) {
	s, ok := r.decode[decodeKey{state: state, dir: dir, version: v, id: id}]
	return s, ok
}

// IDs lists the packet ids known for a state, direction and version, in
// ascending order.
func (r *Registry) IDs(state State, dir Direction, v Version) []int32 {
	var ids []int32
	for k := range r.decode {
		if k.state == state && k.dir == dir && k.version == v {
			ids = append(ids, k.id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Decode decodes a packet body. Unknown ids return *UnknownPacketError.
// Malformed bodies, including trailing bytes, return *DecodeError.
func (r *Registry) Decode(state State, dir Direction, v Version, id int32, body []byte) (Packet, error) {
	s, ok := r.Lookup(state, dir, v, id)
	if !ok {
		return nil, &UnknownPacketError{State: state, Direction: dir, Version: v, ID: id}
	}
	p := s.New()
	rd := NewReader(body)
	p.Decode(rd)
	err := rd.Err()
	if err == nil && rd.Remaining() > 0 {
		err = fmt.Errorf("%d trailing bytes", rd.Remaining())
	}
	if err != nil {
		return nil, &DecodeError{State: state, Direction: dir, Version: v, ID: id, Name: s.Name, Err: err}
	}
	return p, nil
}

// Encode encodes p for the given state, direction and version and returns
// its packet id and body. A packet that does not belong there panics with
// *MisuseError.
func (r *Registry) Encode(state State, dir Direction, v Version, p Packet) (int32, []byte, error) {
	typ := reflect.TypeOf(p)
	e, ok := r.encode[encodeKey{typ: typ, version: v}]
	if !ok {
		name := typ.String()
		if s, known := r.byType[typ]; known {
			name = s.Name
		}
		panic(&MisuseError{Name: name, State: state, Direction: dir, Version: v,
			Reason: "packet shape not defined for this version"})
	}
	if e.shape.State != state || e.shape.Direction != dir {
		panic(&MisuseError{Name: e.shape.Name, State: state, Direction: dir, Version: v,
			Reason: fmt.Sprintf("packet belongs to %s %s", e.shape.Direction, e.shape.State)})
	}
	w := NewWriter()
	p.Encode(w)
	if err := w.Err(); err != nil {
		return 0, nil, &EncodeError{Name: e.shape.Name, Version: v, Err: err}
	}
	return e.id, w.Bytes(), nil
}

// DecodePayload splits a frame payload into its VarInt id and body and
// decodes it. The id is returned even when decoding fails.
func (r *Registry) DecodePayload(state State, dir Direction, v Version, payload []byte) (Packet, int32, error) {
	id, n, err := DecodeVarInt(payload)
	if err != nil {
		return nil, 0, &DecodeError{State: state, Direction: dir, Version: v, ID: -1, Name: "packet id", Err: err}
	}
	p, err := r.Decode(state, dir, v, id, payload[n:])
	return p, id, err
}

// EncodePayload encodes p and prepends its VarInt id.
func (r *Registry) EncodePayload(state State, dir Direction, v Version, p Packet) ([]byte, error) {
	id, body, err := r.Encode(state, dir, v, p)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, VarIntSize(id)+len(body))
	out = AppendVarInt(out, id)
	return append(out, body...), nil
}
