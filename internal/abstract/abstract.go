// Package abstract defines version-independent packets and the machinery
// that converts them to and from the concrete packets of a specific protocol
// version. The packet kinds themselves live in the c2s and s2c subpackages.
package abstract

import (
	"fmt"

	"github.com/energizer-project/craftflow/internal/protocol"
)

// Packet is a version-independent packet.
type Packet interface {
	// Name identifies the abstract kind, for logs and metrics.
	Name() string
	// Direction is the direction the packet travels.
	Direction() protocol.Direction
	// Convert produces the concrete packets that carry this packet for the
	// given version and state, in the order they must be sent. A version or
	// state without a representation yields Unsupported, not an error.
	Convert(v protocol.Version, s protocol.State) (WriteResult, error)
}

// WriteResult is the outcome of Packet.Convert.
type WriteResult struct {
	Packets   []protocol.Packet
	Supported bool
}

// Success wraps the concrete packets of a supported conversion. It may be
// empty when the version needs nothing sent.
func Success(pkts ...protocol.Packet) WriteResult {
	return WriteResult{Packets: pkts, Supported: true}
}

// Unsupported reports that the packet has no form in the requested version
// or state.
func Unsupported() WriteResult {
	return WriteResult{}
}

type resultKind uint8

const (
	resultIgnore resultKind = iota
	resultDone
	resultContinue
)

// ConstructResult is the outcome of offering a concrete packet to a kind or
// to an in-progress constructor.
type ConstructResult struct {
	kind        resultKind
	packet      Packet
	constructor Constructor
	ignored     protocol.Packet
}

// Done means the abstract packet is complete.
func Done(p Packet) ConstructResult {
	return ConstructResult{kind: resultDone, packet: p}
}

// Continue means more concrete packets are needed; c accumulates them.
func Continue(c Constructor) ConstructResult {
	return ConstructResult{kind: resultContinue, constructor: c}
}

// Ignore hands the concrete packet back untouched.
func Ignore(p protocol.Packet) ConstructResult {
	return ConstructResult{kind: resultIgnore, ignored: p}
}

func (r ConstructResult) IsDone() bool     { return r.kind == resultDone }
func (r ConstructResult) IsContinue() bool { return r.kind == resultContinue }
func (r ConstructResult) IsIgnore() bool   { return r.kind == resultIgnore }

// Packet returns the finished packet of a Done result.
func (r ConstructResult) Packet() Packet { return r.packet }

// Constructor returns the accumulator of a Continue result.
func (r ConstructResult) Constructor() Constructor { return r.constructor }

// Ignored returns the concrete packet of an Ignore result.
func (r ConstructResult) Ignored() protocol.Packet { return r.ignored }

// Constructor accumulates the concrete packets of a multi-packet abstract
// packet.
type Constructor interface {
	Next(p protocol.Packet) (ConstructResult, error)
}

// Kind is one abstract packet type and its single-packet entry point.
type Kind struct {
	Name      string
	Construct func(p protocol.Packet) (ConstructResult, error)
}

// Construct offers p to kinds in order and returns the first Done or
// Continue. If every kind ignores it, the result is Ignore(p).
func Construct(kinds []Kind, p protocol.Packet) (ConstructResult, error) {
	for _, k := range kinds {
		res, err := k.Construct(p)
		if err != nil {
			return ConstructResult{}, err
		}
		if !res.IsIgnore() {
			return res, nil
		}
		p = res.Ignored()
	}
	return Ignore(p), nil
}

// SemanticError reports a concrete packet that decoded fine but holds a
// value the abstract packet cannot represent, such as an unknown enum tag.
type SemanticError struct {
	Kind  string
	Field string
	Err   error
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("invalid %s.%s: %v", e.Kind, e.Field, e.Err)
}

func (e *SemanticError) Unwrap() error { return e.Err }

// Invalid builds a SemanticError.
func Invalid(kind, field string, format string, args ...any) error {
	return &SemanticError{Kind: kind, Field: field, Err: fmt.Errorf(format, args...)}
}

// Single builds a kind whose packets map onto exactly one concrete packet.
// fn returns nil for concrete packets that are not its own.
func Single(name string, fn func(p protocol.Packet) (Packet, error)) Kind {
	return Kind{
		Name: name,
		Construct: func(p protocol.Packet) (ConstructResult, error) {
			a, err := fn(p)
			if err != nil {
				return ConstructResult{}, err
			}
			if a == nil {
				return Ignore(p), nil
			}
			return Done(a), nil
		},
	}
}
