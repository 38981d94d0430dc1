package nbt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	ErrInvalidTag    = errors.New("invalid nbt tag")
	ErrTooDeep       = errors.New("nbt nesting too deep")
	ErrNegativeCount = errors.New("negative nbt length")
)

// EncodeNetwork writes v with an anonymous root: the tag byte followed by
// the payload. A nil value is written as TAG_End.
func EncodeNetwork(buf *bytes.Buffer, v Value) error {
	if v == nil {
		buf.WriteByte(byte(TagEnd))
		return nil
	}
	buf.WriteByte(byte(v.Tag()))
	return writePayload(buf, v)
}

// EncodeNamed writes v with a named root, the layout used before the network
// format dropped root names.
func EncodeNamed(buf *bytes.Buffer, name string, v Value) error {
	if v == nil {
		buf.WriteByte(byte(TagEnd))
		return nil
	}
	buf.WriteByte(byte(v.Tag()))
	writeString(buf, name)
	return writePayload(buf, v)
}

// DecodeNetwork reads an anonymous-root value from data and reports how many
// bytes it consumed. A TAG_End root decodes to nil.
func DecodeNetwork(data []byte) (Value, int, error) {
	d := &decoder{data: data}
	tag, err := d.u8()
	if err != nil {
		return nil, 0, err
	}
	if Tag(tag) == TagEnd {
		return nil, d.pos, nil
	}
	v, err := d.payload(Tag(tag), 0)
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

// DecodeNamed reads a named-root value from data.
func DecodeNamed(data []byte) (string, Value, int, error) {
	d := &decoder{data: data}
	tag, err := d.u8()
	if err != nil {
		return "", nil, 0, err
	}
	if Tag(tag) == TagEnd {
		return "", nil, d.pos, nil
	}
	name, err := d.str()
	if err != nil {
		return "", nil, 0, err
	}
	v, err := d.payload(Tag(tag), 0)
	if err != nil {
		return "", nil, 0, err
	}
	return name, v, d.pos, nil
}

// Marshal returns the network encoding of v.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeNetwork(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	enc := encodeMUTF8(s)
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(enc)))
	buf.Write(n[:])
	buf.Write(enc)
}

func writePayload(buf *bytes.Buffer, v Value) error {
	var scratch [8]byte
	switch t := v.(type) {
	case Byte:
		buf.WriteByte(byte(t))
	case Short:
		binary.BigEndian.PutUint16(scratch[:2], uint16(t))
		buf.Write(scratch[:2])
	case Int:
		binary.BigEndian.PutUint32(scratch[:4], uint32(t))
		buf.Write(scratch[:4])
	case Long:
		binary.BigEndian.PutUint64(scratch[:], uint64(t))
		buf.Write(scratch[:])
	case Float:
		binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(float32(t)))
		buf.Write(scratch[:4])
	case Double:
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(float64(t)))
		buf.Write(scratch[:])
	case ByteArray:
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(t)))
		buf.Write(scratch[:4])
		buf.Write(t)
	case String:
		if len(encodeMUTF8(string(t))) > math.MaxUint16 {
			return fmt.Errorf("nbt string too long: %d bytes", len(t))
		}
		writeString(buf, string(t))
	case List:
		elem := t.Elem
		if len(t.Items) == 0 {
			elem = TagEnd
		}
		buf.WriteByte(byte(elem))
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(t.Items)))
		buf.Write(scratch[:4])
		for i, it := range t.Items {
			if it.Tag() != elem {
				return fmt.Errorf("list element %d is %s, expected %s", i, it.Tag(), elem)
			}
			if err := writePayload(buf, it); err != nil {
				return err
			}
		}
	case Compound:
		for _, e := range t {
			if e.Value == nil {
				continue
			}
			buf.WriteByte(byte(e.Value.Tag()))
			writeString(buf, e.Name)
			if err := writePayload(buf, e.Value); err != nil {
				return fmt.Errorf("field %q: %w", e.Name, err)
			}
		}
		buf.WriteByte(byte(TagEnd))
	case IntArray:
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(t)))
		buf.Write(scratch[:4])
		for _, x := range t {
			binary.BigEndian.PutUint32(scratch[:4], uint32(x))
			buf.Write(scratch[:4])
		}
	case LongArray:
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(t)))
		buf.Write(scratch[:4])
		for _, x := range t {
			binary.BigEndian.PutUint64(scratch[:], uint64(x))
			buf.Write(scratch[:])
		}
	default:
		return fmt.Errorf("%w: unsupported value type %T", ErrInvalidTag, v)
	}
	return nil
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.pos < n {
		return nil, io.ErrUnexpectedEOF
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u8() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) u64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) count() (int, error) {
	n, err := d.u32()
	if err != nil {
		return 0, err
	}
	if int32(n) < 0 {
		return 0, ErrNegativeCount
	}
	// every element occupies at least one byte
	if int(n) > len(d.data)-d.pos {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return decodeMUTF8(b)
}

func (d *decoder) payload(tag Tag, depth int) (Value, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	switch tag {
	case TagByte:
		b, err := d.u8()
		return Byte(int8(b)), err
	case TagShort:
		v, err := d.u16()
		return Short(int16(v)), err
	case TagInt:
		v, err := d.u32()
		return Int(int32(v)), err
	case TagLong:
		v, err := d.u64()
		return Long(int64(v)), err
	case TagFloat:
		v, err := d.u32()
		return Float(math.Float32frombits(v)), err
	case TagDouble:
		v, err := d.u64()
		return Double(math.Float64frombits(v)), err
	case TagByteArray:
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		b, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return ByteArray(append([]byte(nil), b...)), nil
	case TagString:
		s, err := d.str()
		return String(s), err
	case TagList:
		elem, err := d.u8()
		if err != nil {
			return nil, err
		}
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		if Tag(elem) == TagEnd && n > 0 {
			return nil, fmt.Errorf("%w: non-empty list of TAG_End", ErrInvalidTag)
		}
		l := List{Elem: Tag(elem)}
		if n > 0 {
			l.Items = make([]Value, 0, n)
		}
		for i := 0; i < n; i++ {
			v, err := d.payload(Tag(elem), depth+1)
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, v)
		}
		return l, nil
	case TagCompound:
		c := Compound{}
		for {
			t, err := d.u8()
			if err != nil {
				return nil, err
			}
			if Tag(t) == TagEnd {
				return c, nil
			}
			name, err := d.str()
			if err != nil {
				return nil, err
			}
			v, err := d.payload(Tag(t), depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", name, err)
			}
			c = append(c, Entry{Name: name, Value: v})
		}
	case TagIntArray:
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		out := make(IntArray, n)
		for i := range out {
			v, err := d.u32()
			if err != nil {
				return nil, err
			}
			out[i] = int32(v)
		}
		return out, nil
	case TagLongArray:
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		out := make(LongArray, n)
		for i := range out {
			v, err := d.u64()
			if err != nil {
				return nil, err
			}
			out[i] = int64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidTag, byte(tag))
}
