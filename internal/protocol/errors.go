package protocol

import (
	"errors"
	"fmt"
)

// ErrUnknownPacket matches any UnknownPacketError through errors.Is.
var ErrUnknownPacket = errors.New("unknown packet id")

// UnknownPacketError is returned when no shape is registered for a packet id
// in the given state and version. The frame itself was well formed, so the
// connection can skip it and continue.
type UnknownPacketError struct {
	State     State
	Direction Direction
	Version   Version
	ID        int32
}

func (e *UnknownPacketError) Error() string {
	return fmt.Sprintf("unknown packet 0x%02X (%s %s, protocol %d)", e.ID, e.Direction, e.State, e.Version)
}

// Is reports whether target is ErrUnknownPacket.
func (e *UnknownPacketError) Is(target error) bool {
	return target == ErrUnknownPacket
}

// DecodeError is returned when a known packet body fails to decode.
type DecodeError struct {
	State     State
	Direction Direction
	Version   Version
	ID        int32
	Name      string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s 0x%02X (%s %s, protocol %d): %v",
		e.Name, e.ID, e.Direction, e.State, e.Version, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned when a packet's fields cannot be represented on the
// wire, for example an over-long string.
type EncodeError struct {
	Name    string
	Version Version
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode %s (protocol %d): %v", e.Name, e.Version, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// MisuseError is the panic value raised when a packet is encoded in a state,
// direction or version its shape does not belong to. It indicates a
// programming error, not bad input.
type MisuseError struct {
	Name      string
	State     State
	Direction Direction
	Version   Version
	Reason    string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("packet %s misused (%s %s, protocol %d): %s",
		e.Name, e.Direction, e.State, e.Version, e.Reason)
}
