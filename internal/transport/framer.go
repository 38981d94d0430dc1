package transport

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/energizer-project/craftflow/internal/protocol"
)

const (
	// DefaultMaxFrameSize bounds the declared frame length (2 MiB).
	DefaultMaxFrameSize = 1 << 21
	// MaxDecompressedSize bounds the declared decompressed length (8 MiB).
	MaxDecompressedSize = 1 << 23

	readChunkSize = 4096
)

type streamBox struct {
	cipher.Stream
}

// compressionCell holds a threshold that can be set once. A negative value
// means compression is off.
type compressionCell struct {
	threshold atomic.Int32
}

func newCompressionCell() *compressionCell {
	c := &compressionCell{}
	c.threshold.Store(-1)
	return c
}

func (c *compressionCell) set(threshold int) error {
	if threshold < 0 {
		return fmt.Errorf("invalid compression threshold %d", threshold)
	}
	if !c.threshold.CompareAndSwap(-1, int32(threshold)) {
		return fmt.Errorf("compression: %w", ErrAlreadyEnabled)
	}
	return nil
}

func (c *compressionCell) load() (int, bool) {
	t := c.threshold.Load()
	return int(t), t >= 0
}

// FrameReader decodes frames from a byte stream. It must be driven by a
// single goroutine; SetCompression and SetCipher may be called from any
// goroutine and take effect from the next unconsumed byte.
type FrameReader struct {
	buf      []byte
	start    int
	maxFrame int

	compression *compressionCell
	pending     atomic.Pointer[streamBox]
	stream      cipher.Stream

	scratch []byte
}

// NewFrameReader creates a reader that rejects frames longer than maxFrame
// bytes. A non-positive maxFrame selects DefaultMaxFrameSize.
func NewFrameReader(maxFrame int) *FrameReader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &FrameReader{
		maxFrame:    maxFrame,
		compression: newCompressionCell(),
	}
}

// SetCompression enables decompression with the given threshold. It can be
// called once.
func (r *FrameReader) SetCompression(threshold int) error {
	return r.compression.set(threshold)
}

// SetCipher installs the decryption stream. It can be called once. Bytes
// already buffered but not yet consumed are treated as ciphertext.
func (r *FrameReader) SetCipher(stream cipher.Stream) error {
	if !r.pending.CompareAndSwap(nil, &streamBox{stream}) {
		return fmt.Errorf("encryption: %w", ErrAlreadyEnabled)
	}
	return nil
}

// Encrypted reports whether a cipher has been installed.
func (r *FrameReader) Encrypted() bool {
	return r.pending.Load() != nil
}

// Compressed reports whether compression has been enabled.
func (r *FrameReader) Compressed() bool {
	_, ok := r.compression.load()
	return ok
}

func (r *FrameReader) applyCipher() {
	if r.stream != nil {
		return
	}
	box := r.pending.Load()
	if box == nil {
		return
	}
	r.stream = box.Stream
	rest := r.buf[r.start:]
	r.stream.XORKeyStream(rest, rest)
}

// Buffered returns the number of received but unconsumed bytes.
func (r *FrameReader) Buffered() int {
	return len(r.buf) - r.start
}

// Peek returns a copy of up to n unconsumed bytes without consuming them.
func (r *FrameReader) Peek(n int) []byte {
	r.applyCipher()
	if n > r.Buffered() {
		n = r.Buffered()
	}
	return append([]byte(nil), r.buf[r.start:r.start+n]...)
}

// Feed appends raw bytes from the network. They are decrypted exactly once,
// here, if a cipher is active.
func (r *FrameReader) Feed(p []byte) {
	r.applyCipher()
	if r.start > 0 && r.start == len(r.buf) {
		r.buf = r.buf[:0]
		r.start = 0
	} else if r.start > 0 && r.start >= cap(r.buf)/2 {
		n := copy(r.buf, r.buf[r.start:])
		r.buf = r.buf[:n]
		r.start = 0
	}
	off := len(r.buf)
	r.buf = append(r.buf, p...)
	if r.stream != nil {
		fresh := r.buf[off:]
		r.stream.XORKeyStream(fresh, fresh)
	}
}

// Next decodes one frame from the buffer and returns its payload: the VarInt
// packet id followed by the body. If the buffer holds only part of a frame
// it returns ErrNeedMoreData and consumes nothing.
func (r *FrameReader) Next() ([]byte, error) {
	r.applyCipher()
	data := r.buf[r.start:]
	length, n, err := protocol.DecodeVarInt(data)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, ErrNeedMoreData
	}
	if err != nil {
		return nil, frameErr("read frame length", err)
	}
	if length <= 0 || int(length) > r.maxFrame {
		return nil, frameErr("read frame length", fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, length, r.maxFrame))
	}
	if len(data) < n+int(length) {
		return nil, ErrNeedMoreData
	}
	frame := data[n : n+int(length)]
	r.start += n + int(length)

	threshold, compressed := r.compression.load()
	if !compressed {
		return append([]byte(nil), frame...), nil
	}
	return r.inflate(frame, threshold)
}

func (r *FrameReader) inflate(frame []byte, threshold int) ([]byte, error) {
	size, m, err := protocol.DecodeVarInt(frame)
	if err != nil {
		return nil, frameErr("read data length", err)
	}
	if size == 0 {
		return append([]byte(nil), frame[m:]...), nil
	}
	if size < 0 || int(size) > MaxDecompressedSize {
		return nil, frameErr("read data length", fmt.Errorf("%w: %d decompressed bytes", ErrFrameTooLarge, size))
	}
	if int(size) < threshold {
		return nil, frameErr("read data length",
			fmt.Errorf("%w: %d bytes compressed below threshold %d", ErrDecompressedLength, size, threshold))
	}
	payload, err := decompress(frame[m:], int(size))
	if err != nil {
		return nil, frameErr("decompress", err)
	}
	return payload, nil
}

// Fill performs one Read from src and buffers whatever arrives. A clean end
// of stream returns io.EOF when nothing is buffered and ErrClosedMidFrame
// otherwise. Other errors, including timeouts, leave the buffer untouched so
// the caller can retry.
func (r *FrameReader) Fill(src io.Reader) error {
	if r.scratch == nil {
		r.scratch = make([]byte, readChunkSize)
	}
	n, err := src.Read(r.scratch)
	if n > 0 {
		r.Feed(r.scratch[:n])
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if n > 0 {
			return nil
		}
		if r.Buffered() == 0 {
			return io.EOF
		}
		return frameErr("read", ErrClosedMidFrame)
	default:
		return err
	}
}

// ReadFrame reads from src until a complete frame is available.
func (r *FrameReader) ReadFrame(src io.Reader) ([]byte, error) {
	for {
		frame, err := r.Next()
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, ErrNeedMoreData) {
			return nil, err
		}
		if err := r.Fill(src); err != nil {
			return nil, err
		}
	}
}

// FrameWriter encodes payloads into frames. It must be driven by a single
// goroutine; SetCompression and SetCipher may be called from any goroutine.
type FrameWriter struct {
	maxFrame    int
	compression *compressionCell
	stream      atomic.Pointer[streamBox]
}

// NewFrameWriter creates a writer that refuses to produce frames longer than
// maxFrame bytes.
func NewFrameWriter(maxFrame int) *FrameWriter {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &FrameWriter{
		maxFrame:    maxFrame,
		compression: newCompressionCell(),
	}
}

// SetCompression enables compression with the given threshold. It can be
// called once.
func (w *FrameWriter) SetCompression(threshold int) error {
	return w.compression.set(threshold)
}

// SetCipher installs the encryption stream. It can be called once.
func (w *FrameWriter) SetCipher(stream cipher.Stream) error {
	if !w.stream.CompareAndSwap(nil, &streamBox{stream}) {
		return fmt.Errorf("encryption: %w", ErrAlreadyEnabled)
	}
	return nil
}

// Encode frames a payload (VarInt packet id plus body). Payloads of at least
// the threshold size are compressed; smaller ones carry a zero data length.
func (w *FrameWriter) Encode(payload []byte) ([]byte, error) {
	body := payload
	if threshold, ok := w.compression.load(); ok {
		if len(payload) >= threshold {
			if len(payload) > MaxDecompressedSize {
				return nil, frameErr("write frame", fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload)))
			}
			compressed, err := compress(payload)
			if err != nil {
				return nil, frameErr("compress", err)
			}
			body = protocol.AppendVarInt(make([]byte, 0, protocol.MaxVarIntLen+len(compressed)), int32(len(payload)))
			body = append(body, compressed...)
		} else {
			body = append([]byte{0}, payload...)
		}
	}
	if len(body) == 0 || len(body) > w.maxFrame {
		return nil, frameErr("write frame", fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(body), w.maxFrame))
	}
	out := protocol.AppendVarInt(make([]byte, 0, protocol.MaxVarIntLen+len(body)), int32(len(body)))
	out = append(out, body...)
	if box := w.stream.Load(); box != nil {
		box.XORKeyStream(out, out)
	}
	return out, nil
}

// WriteFrame encodes payload and writes the frame to dst in one call.
func (w *FrameWriter) WriteFrame(dst io.Writer, payload []byte) error {
	frame, err := w.Encode(payload)
	if err != nil {
		return err
	}
	if _, err := dst.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}
