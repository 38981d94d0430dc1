// Package nbt implements the Named Binary Tag value format used inside packet
// bodies: registry data, text components and resource pack prompts.
//
// Compounds keep insertion order so that a decoded value re-encodes to the
// exact same bytes.
package nbt

import "fmt"

// Tag identifies the type of an NBT value on the wire.
type Tag byte

const (
	TagEnd Tag = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

// maxDepth bounds nesting of lists and compounds while decoding.
const maxDepth = 512

var tagNames = map[Tag]string{
	TagEnd:       "TAG_End",
	TagByte:      "TAG_Byte",
	TagShort:     "TAG_Short",
	TagInt:       "TAG_Int",
	TagLong:      "TAG_Long",
	TagFloat:     "TAG_Float",
	TagDouble:    "TAG_Double",
	TagByteArray: "TAG_Byte_Array",
	TagString:    "TAG_String",
	TagList:      "TAG_List",
	TagCompound:  "TAG_Compound",
	TagIntArray:  "TAG_Int_Array",
	TagLongArray: "TAG_Long_Array",
}

// String returns the conventional tag name.
func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TAG_Unknown(%d)", byte(t))
}

// Value is any NBT payload.
type Value interface {
	Tag() Tag
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
)

func (Byte) Tag() Tag      { return TagByte }
func (Short) Tag() Tag     { return TagShort }
func (Int) Tag() Tag       { return TagInt }
func (Long) Tag() Tag      { return TagLong }
func (Float) Tag() Tag     { return TagFloat }
func (Double) Tag() Tag    { return TagDouble }
func (ByteArray) Tag() Tag { return TagByteArray }
func (String) Tag() Tag    { return TagString }
func (IntArray) Tag() Tag  { return TagIntArray }
func (LongArray) Tag() Tag { return TagLongArray }

// List is a homogeneous sequence. Elem is TagEnd only for an empty list.
type List struct {
	Elem  Tag
	Items []Value
}

func (List) Tag() Tag { return TagList }

// NewList builds a list from items, which must all share one tag.
func NewList(items ...Value) (List, error) {
	if len(items) == 0 {
		return List{Elem: TagEnd}, nil
	}
	elem := items[0].Tag()
	for i, it := range items {
		if it.Tag() != elem {
			return List{}, fmt.Errorf("list element %d is %s, expected %s", i, it.Tag(), elem)
		}
	}
	return List{Elem: elem, Items: items}, nil
}

// Entry is one named field of a compound.
type Entry struct {
	Name  string
	Value Value
}

// Compound is an ordered set of named values.
type Compound []Entry

func (Compound) Tag() Tag { return TagCompound }

// Get returns the value stored under name.
func (c Compound) Get(name string) (Value, bool) {
	for _, e := range c {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under name, or appends it.
func (c *Compound) Set(name string, v Value) {
	for i := range *c {
		if (*c)[i].Name == name {
			(*c)[i].Value = v
			return
		}
	}
	*c = append(*c, Entry{Name: name, Value: v})
}

// GetString returns a string field, if present and of the right type.
func (c Compound) GetString(name string) (string, bool) {
	v, ok := c.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}
