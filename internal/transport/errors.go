// Package transport turns a byte stream into packet frames and back. A frame
// is a VarInt length followed by the packet id and body, optionally
// zlib-compressed and optionally encrypted with AES-128-CFB8.
//
// Reading is restartable: bytes received so far are kept in the reader's
// buffer until a complete frame is available, so an interrupted read (a
// deadline, a cancelled context) never loses data.
package transport

import (
	"errors"
	"fmt"

	"github.com/energizer-project/craftflow/internal/protocol"
)

var (
	// ErrNeedMoreData is returned by FrameReader.Next when the buffer does
	// not yet hold a complete frame. Nothing has been consumed.
	ErrNeedMoreData = errors.New("need more data")
	// ErrVarIntTooLong is the same sentinel the protocol package uses.
	ErrVarIntTooLong = protocol.ErrVarIntTooLong
	// ErrFrameTooLarge covers declared lengths above the configured maximum
	// and zero-length frames.
	ErrFrameTooLarge = errors.New("frame length out of range")
	// ErrDecompressedLength is returned when the decompressed size does not
	// match the declared one or is below the compression threshold.
	ErrDecompressedLength = errors.New("bad decompressed length")
	// ErrClosedMidFrame is returned when the peer closes the stream while a
	// frame is partially received.
	ErrClosedMidFrame = errors.New("stream closed mid-frame")
	// ErrAlreadyEnabled is returned when compression or encryption is enabled
	// a second time.
	ErrAlreadyEnabled = errors.New("already enabled")
)

// FrameError marks an unrecoverable framing failure. The connection must be
// closed after one.
type FrameError struct {
	Op  string
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("framing error during %s: %v", e.Op, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(op string, err error) error {
	return &FrameError{Op: op, Err: err}
}
