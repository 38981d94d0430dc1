package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/nbt"
)

var (
	ErrStringTooLong  = errors.New("string too long")
	ErrNegativeLength = errors.New("negative length")
	ErrInvalidUTF8    = errors.New("invalid utf-8 string")
)

// DefaultStringLimit is the character limit used where the protocol does not
// specify a tighter one.
const DefaultStringLimit = 32767

// Reader decodes wire primitives from a packet body. The first error sticks:
// every later call returns a zero value and Err reports the failure.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader returns a Reader over body. The Reader never retains data beyond
// the fields it hands out, which are always copies.
func NewReader(body []byte) *Reader {
	return &Reader{buf: body}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Fail records err unless an earlier error is already stored.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.err = fmt.Errorf("%s: %w", what, ErrNegativeLength)
		return nil
	}
	if r.Remaining() < n {
		r.err = fmt.Errorf("%s: %w", what, io.ErrUnexpectedEOF)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// VarInt reads a VarInt.
func (r *Reader) VarInt() int32 {
	if r.err != nil {
		return 0
	}
	v, n, err := DecodeVarInt(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("varint: %w", err)
		return 0
	}
	r.pos += n
	return v
}

// VarLong reads a VarLong.
func (r *Reader) VarLong() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := DecodeVarLong(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("varlong: %w", err)
		return 0
	}
	r.pos += n
	return v
}

func (r *Reader) Bool() bool {
	b := r.take(1, "bool")
	return b != nil && b[0] != 0
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1, "u8")
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Int8() int8 { return int8(r.Uint8()) }

func (r *Reader) Uint16() uint16 {
	b := r.take(2, "u16")
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

func (r *Reader) Int32() int32 {
	b := r.take(4, "i32")
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) Int64() int64 {
	b := r.take(8, "i64")
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *Reader) Float32() float32 { return math.Float32frombits(uint32(r.Int32())) }

func (r *Reader) Float64() float64 { return math.Float64frombits(uint64(r.Int64())) }

// String reads a VarInt-prefixed UTF-8 string of at most maxChars characters.
func (r *Reader) String(maxChars int) string {
	n := r.VarInt()
	if r.err != nil {
		return ""
	}
	// a character is at most 4 bytes
	if int(n) > maxChars*4 {
		r.err = fmt.Errorf("string of %d bytes: %w", n, ErrStringTooLong)
		return ""
	}
	b := r.take(int(n), "string")
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = ErrInvalidUTF8
		return ""
	}
	if utf8.RuneCount(b) > maxChars {
		r.err = fmt.Errorf("string of %d chars: %w", utf8.RuneCount(b), ErrStringTooLong)
		return ""
	}
	return string(b)
}

// ByteArray reads a VarInt-prefixed byte array.
func (r *Reader) ByteArray() []byte {
	n := r.VarInt()
	return r.copyOf(int(n), "byte array")
}

// ShortByteArray reads an i16-prefixed byte array, the pre-1.8 layout.
func (r *Reader) ShortByteArray() []byte {
	n := r.Int16()
	return r.copyOf(int(n), "short byte array")
}

// Fixed reads exactly n bytes.
func (r *Reader) Fixed(n int) []byte {
	return r.copyOf(n, "fixed bytes")
}

// Rest reads every remaining byte.
func (r *Reader) Rest() []byte {
	return r.copyOf(r.Remaining(), "rest")
}

func (r *Reader) copyOf(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	b := r.take(n, what)
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// UUID reads a 128-bit big-endian UUID.
func (r *Reader) UUID() uuid.UUID {
	b := r.take(16, "uuid")
	if b == nil {
		return uuid.Nil
	}
	var u uuid.UUID
	copy(u[:], b)
	return u
}

// UUIDString reads a hyphenated UUID string, the pre-1.16 login layout.
func (r *Reader) UUIDString() uuid.UUID {
	s := r.String(36)
	if r.err != nil {
		return uuid.Nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		r.err = fmt.Errorf("uuid string: %w", err)
		return uuid.Nil
	}
	return u
}

// Position reads a packed block position with the layout for v.
func (r *Reader) Position(v Version) Position {
	return UnpackPosition(uint64(r.Int64()), PositionLayoutFor(v))
}

// NBT reads an anonymous-root NBT value. A TAG_End root yields nil.
func (r *Reader) NBT() nbt.Value {
	if r.err != nil {
		return nil
	}
	v, n, err := nbt.DecodeNetwork(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("nbt: %w", err)
		return nil
	}
	r.pos += n
	return v
}

// NamedNBT reads a named-root NBT value, discarding the root name.
func (r *Reader) NamedNBT() nbt.Value {
	if r.err != nil {
		return nil
	}
	_, v, n, err := nbt.DecodeNamed(r.buf[r.pos:])
	if err != nil {
		r.err = fmt.Errorf("nbt: %w", err)
		return nil
	}
	r.pos += n
	return v
}

// Count reads a VarInt element count and rejects counts that cannot fit in
// the remaining body given at least min bytes per element.
func (r *Reader) Count(min int) int {
	n := r.VarInt()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.err = fmt.Errorf("count: %w", ErrNegativeLength)
		return 0
	}
	if min > 0 && int(n) > r.Remaining()/min {
		r.err = fmt.Errorf("count %d: %w", n, io.ErrUnexpectedEOF)
		return 0
	}
	return int(n)
}
