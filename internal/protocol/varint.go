package protocol

import (
	"errors"
	"io"
)

const (
	// MaxVarIntLen is the longest legal VarInt encoding.
	MaxVarIntLen = 5
	// MaxVarLongLen is the longest legal VarLong encoding.
	MaxVarLongLen = 10
)

var (
	ErrVarIntTooLong  = errors.New("varint too long")
	ErrVarLongTooLong = errors.New("varlong too long")
)

// DecodeVarInt reads a VarInt from the front of b. It returns the value and
// the number of bytes used. When b ends before the last byte of the VarInt
// the error is io.ErrUnexpectedEOF, so callers can wait for more input.
// A fifth byte carrying bits beyond 32 is ErrVarIntTooLong.
func DecodeVarInt(b []byte) (int32, int, error) {
	var v uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c := b[i]
		if i == MaxVarIntLen-1 && c&0xF0 != 0 {
			return 0, 0, ErrVarIntTooLong
		}
		v |= uint32(c&0x7F) << (7 * i)
		if c&0x80 == 0 {
			return int32(v), i + 1, nil
		}
	}
	return 0, 0, ErrVarIntTooLong
}

// AppendVarInt appends the VarInt encoding of v.
func AppendVarInt(b []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}

// VarIntSize returns the encoded length of v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

// DecodeVarLong reads a VarLong from the front of b.
func DecodeVarLong(b []byte) (int64, int, error) {
	var v uint64
	for i := 0; i < MaxVarLongLen; i++ {
		if i >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c := b[i]
		if i == MaxVarLongLen-1 && c&0xFE != 0 {
			return 0, 0, ErrVarLongTooLong
		}
		v |= uint64(c&0x7F) << (7 * i)
		if c&0x80 == 0 {
			return int64(v), i + 1, nil
		}
	}
	return 0, 0, ErrVarLongTooLong
}

// AppendVarLong appends the VarLong encoding of v.
func AppendVarLong(b []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		b = append(b, byte(u)|0x80)
		u >>= 7
	}
	return append(b, byte(u))
}
