package abstract

import (
	"slices"

	"github.com/energizer-project/craftflow/internal/protocol"
)

// Outcome is what the dispatcher made of one concrete packet. Exactly one of
// the fields is set, or neither when a constructor absorbed the packet and
// is waiting for more.
type Outcome struct {
	Packet    Packet
	Unclaimed protocol.Packet
}

// Pending reports whether the packet was absorbed by a constructor.
func (o Outcome) Pending() bool {
	return o.Packet == nil && o.Unclaimed == nil
}

// Dispatcher turns the concrete packets of one connection direction into
// abstract packets. It is not safe for concurrent use; the read task owns it.
type Dispatcher struct {
	kinds  []Kind
	active []Constructor
}

// NewDispatcher creates a dispatcher over the given kinds, tried in order.
func NewDispatcher(kinds []Kind) *Dispatcher {
	return &Dispatcher{kinds: kinds}
}

// Active returns the number of in-progress constructors.
func (d *Dispatcher) Active() int {
	return len(d.active)
}

// Reset drops every in-progress constructor.
func (d *Dispatcher) Reset() {
	d.active = nil
}

// Dispatch offers p to the in-progress constructors, newest first, then to
// each kind. A constructor that ignores the packet is dropped. An error from
// a constructor drops it as well.
func (d *Dispatcher) Dispatch(p protocol.Packet) (Outcome, error) {
	for i := len(d.active) - 1; i >= 0; i-- {
		c := d.active[i]
		d.active = slices.Delete(d.active, i, i+1)

		res, err := c.Next(p)
		if err != nil {
			return Outcome{}, err
		}
		switch {
		case res.IsDone():
			return Outcome{Packet: res.Packet()}, nil
		case res.IsContinue():
			d.active = slices.Insert(d.active, i, res.Constructor())
			return Outcome{}, nil
		}
		p = res.Ignored()
	}

	res, err := Construct(d.kinds, p)
	if err != nil {
		return Outcome{}, err
	}
	switch {
	case res.IsDone():
		return Outcome{Packet: res.Packet()}, nil
	case res.IsContinue():
		d.active = append(d.active, res.Constructor())
		return Outcome{}, nil
	}
	return Outcome{Unclaimed: res.Ignored()}, nil
}
