package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/nbt"
)

// Writer builds packet bodies. Methods chain; the first encoding error sticks
// and is reported by Err.
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Reset clears the writer for reuse.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.err = nil
}

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Bytes returns the encoded body.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return w.buf.Len() }

// Fail records err unless an earlier error is already stored.
func (w *Writer) Fail(err error) *Writer {
	if w.err == nil {
		w.err = err
	}
	return w
}

func (w *Writer) VarInt(v int32) *Writer {
	var scratch [MaxVarIntLen]byte
	w.buf.Write(AppendVarInt(scratch[:0], v))
	return w
}

func (w *Writer) VarLong(v int64) *Writer {
	var scratch [MaxVarLongLen]byte
	w.buf.Write(AppendVarLong(scratch[:0], v))
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

func (w *Writer) Uint8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) Int8(v int8) *Writer { return w.Uint8(uint8(v)) }

func (w *Writer) Uint16(v uint16) *Writer {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *Writer) Int16(v int16) *Writer { return w.Uint16(uint16(v)) }

func (w *Writer) Int32(v int32) *Writer {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
	return w
}

func (w *Writer) Int64(v int64) *Writer {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
	return w
}

func (w *Writer) Float32(v float32) *Writer { return w.Int32(int32(math.Float32bits(v))) }

func (w *Writer) Float64(v float64) *Writer { return w.Int64(int64(math.Float64bits(v))) }

// String writes a VarInt-prefixed UTF-8 string of at most maxChars characters.
func (w *Writer) String(s string, maxChars int) *Writer {
	if n := utf8.RuneCountInString(s); n > maxChars {
		return w.Fail(fmt.Errorf("string of %d chars (max %d): %w", n, maxChars, ErrStringTooLong))
	}
	w.VarInt(int32(len(s)))
	w.buf.WriteString(s)
	return w
}

// ByteArray writes a VarInt-prefixed byte array.
func (w *Writer) ByteArray(b []byte) *Writer {
	w.VarInt(int32(len(b)))
	w.buf.Write(b)
	return w
}

// ShortByteArray writes an i16-prefixed byte array.
func (w *Writer) ShortByteArray(b []byte) *Writer {
	if len(b) > math.MaxInt16 {
		return w.Fail(fmt.Errorf("short byte array of %d bytes: %w", len(b), ErrStringTooLong))
	}
	w.Int16(int16(len(b)))
	w.buf.Write(b)
	return w
}

// Raw writes b without a prefix.
func (w *Writer) Raw(b []byte) *Writer {
	w.buf.Write(b)
	return w
}

func (w *Writer) UUID(u uuid.UUID) *Writer {
	w.buf.Write(u[:])
	return w
}

// UUIDString writes u as a hyphenated string.
func (w *Writer) UUIDString(u uuid.UUID) *Writer {
	return w.String(u.String(), 36)
}

// Position writes a packed block position with the layout for v.
func (w *Writer) Position(p Position, v Version) *Writer {
	packed, err := p.Pack(PositionLayoutFor(v))
	if err != nil {
		return w.Fail(err)
	}
	return w.Int64(int64(packed))
}

// NBT writes an anonymous-root NBT value. Nil is written as TAG_End.
func (w *Writer) NBT(v nbt.Value) *Writer {
	if err := nbt.EncodeNetwork(&w.buf, v); err != nil {
		w.Fail(fmt.Errorf("nbt: %w", err))
	}
	return w
}

// NamedNBT writes a named-root NBT value with an empty root name.
func (w *Writer) NamedNBT(v nbt.Value) *Writer {
	if err := nbt.EncodeNamed(&w.buf, "", v); err != nil {
		w.Fail(fmt.Errorf("nbt: %w", err))
	}
	return w
}
