package protocol

import (
	"errors"
	"fmt"
)

// ErrPositionRange is returned when a coordinate does not fit its bit field.
var ErrPositionRange = errors.New("position out of range")

// Position is a block coordinate packed into 64 bits: 26 bits each for x and
// z, 12 bits for y.
type Position struct {
	X, Y, Z int32
}

// PositionLayout selects the field order of a packed position.
type PositionLayout uint8

const (
	// PositionXYZ packs x<<38 | y<<26 | z, used before 1.14.
	PositionXYZ PositionLayout = iota
	// PositionXZY packs x<<38 | z<<12 | y, used from 1.14 on.
	PositionXZY
)

// PositionLayoutFor returns the packing used by version v.
func PositionLayoutFor(v Version) PositionLayout {
	if v >= V1_14 {
		return PositionXZY
	}
	return PositionXYZ
}

const (
	mask26 = 1<<26 - 1
	mask12 = 1<<12 - 1
)

func fits(v int32, bits uint) bool {
	lim := int32(1) << (bits - 1)
	return v >= -lim && v < lim
}

// Pack encodes p with the given layout.
func (p Position) Pack(layout PositionLayout) (uint64, error) {
	if !fits(p.X, 26) || !fits(p.Z, 26) || !fits(p.Y, 12) {
		return 0, fmt.Errorf("%w: (%d, %d, %d)", ErrPositionRange, p.X, p.Y, p.Z)
	}
	x := uint64(p.X) & mask26
	y := uint64(p.Y) & mask12
	z := uint64(p.Z) & mask26
	if layout == PositionXZY {
		return x<<38 | z<<12 | y, nil
	}
	return x<<38 | y<<26 | z, nil
}

// UnpackPosition decodes a packed position, sign-extending every field.
func UnpackPosition(v uint64, layout PositionLayout) Position {
	x := signExtend(v>>38, 26)
	var y, z int32
	if layout == PositionXZY {
		z = signExtend(v>>12, 26)
		y = signExtend(v, 12)
	} else {
		y = signExtend(v>>26, 12)
		z = signExtend(v, 26)
	}
	return Position{X: x, Y: y, Z: z}
}

func signExtend(v uint64, bits uint) int32 {
	v &= 1<<bits - 1
	shift := 64 - bits
	return int32(int64(v<<shift) >> shift)
}
