package network

import (
	"slices"
	"sync/atomic"

	"github.com/energizer-project/craftflow/internal/protocol"
)

// transitions lists the states each state may move to. Status and Play have
// no successors.
var transitions = map[protocol.State][]protocol.State{
	protocol.StateHandshake:     {protocol.StateStatus, protocol.StateLogin},
	protocol.StateLogin:         {protocol.StateConfiguration, protocol.StatePlay},
	protocol.StateConfiguration: {protocol.StatePlay},
}

// CanAdvance reports whether a connection half may move from one state to
// another.
func CanAdvance(from, to protocol.State) bool {
	return slices.Contains(transitions[from], to)
}

// stateCell is the state of one half of a connection. It only moves
// forward; the zero value is the handshake state.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) Load() protocol.State {
	return protocol.State(c.v.Load())
}

// advance moves the cell to the given state and reports whether it changed.
func (c *stateCell) advance(to protocol.State) bool {
	for {
		from := c.Load()
		if !CanAdvance(from, to) {
			return false
		}
		if c.v.CompareAndSwap(int32(from), int32(to)) {
			return true
		}
	}
}

// versionCell holds the codec version. It is written once, after the
// handshake, and read by both connection tasks.
type versionCell struct {
	v atomic.Int32
}

func (c *versionCell) Load() protocol.Version {
	return protocol.Version(c.v.Load())
}

func (c *versionCell) set(v protocol.Version) bool {
	return v > 0 && c.v.CompareAndSwap(0, int32(v))
}
