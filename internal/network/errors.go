package network

import (
	"errors"
	"fmt"

	"github.com/energizer-project/craftflow/internal/protocol"
)

var (
	// ErrClosed is returned when sending on a connection that has shut down.
	ErrClosed = errors.New("connection closed")
	// ErrRejected ends a connection refused by a new_connection callback.
	ErrRejected = errors.New("connection rejected")
	// ErrUnsupportedVersion ends a login attempt from a client whose protocol
	// version has no codec.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	// ErrKicked ends a connection closed through Disconnect.
	ErrKicked = errors.New("disconnected by server")
)

// MisuseError reports an engine operation called at the wrong time, such as
// enabling compression twice or outside the login state. The connection is
// torn down after one.
type MisuseError struct {
	Op     string
	State  protocol.State
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("cannot %s in %s state: %s", e.Op, e.State, e.Reason)
}
