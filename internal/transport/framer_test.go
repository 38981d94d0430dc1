package transport

import (
	"bytes"
	"crypto/aes"
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/protocol"
)

var testSecret = []byte("0123456789abcdef")

func testPayloads() [][]byte {
	big := bytes.Repeat([]byte("craftflow "), 5000)
	random := make([]byte, 3000)
	rand.New(rand.NewSource(7)).Read(random)
	return [][]byte{
		{0x00},
		[]byte("\x01hello"),
		bytes.Repeat([]byte{0x42}, 255),
		bytes.Repeat([]byte{0x43}, 256),
		bytes.Repeat([]byte{0x44}, 1000),
		random,
		big,
	}
}

type framerSetup struct {
	name       string
	compressed bool
	encrypted  bool
}

var framerSetups = []framerSetup{
	{"plain", false, false},
	{"compressed", true, false},
	{"encrypted", false, true},
	{"compressed+encrypted", true, true},
}

func newPair(t *testing.T, s framerSetup) (*FrameWriter, *FrameReader) {
	t.Helper()
	w := NewFrameWriter(0)
	r := NewFrameReader(0)
	if s.compressed {
		require.NoError(t, w.SetCompression(256))
		require.NoError(t, r.SetCompression(256))
	}
	if s.encrypted {
		enc, err := NewCFB8Encrypter(testSecret)
		require.NoError(t, err)
		dec, err := NewCFB8Decrypter(testSecret)
		require.NoError(t, err)
		require.NoError(t, w.SetCipher(enc))
		require.NoError(t, r.SetCipher(dec))
	}
	return w, r
}

func encodeAll(t *testing.T, w *FrameWriter, payloads [][]byte) []byte {
	t.Helper()
	var stream []byte
	for _, p := range payloads {
		frame, err := w.Encode(p)
		require.NoError(t, err)
		stream = append(stream, frame...)
	}
	return stream
}

func drain(t *testing.T, r *FrameReader) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		frame, err := r.Next()
		if errors.Is(err, ErrNeedMoreData) {
			return out
		}
		require.NoError(t, err)
		out = append(out, frame)
	}
}

func TestFramingRoundTrip(t *testing.T) {
	payloads := testPayloads()
	for _, s := range framerSetups {
		t.Run(s.name, func(t *testing.T) {
			w, r := newPair(t, s)
			stream := encodeAll(t, w, payloads)

			got, err := readAll(r, bytes.NewReader(stream))
			require.NoError(t, err)
			assert.Equal(t, payloads, got)
		})
	}
}

func readAll(r *FrameReader, src io.Reader) ([][]byte, error) {
	var out [][]byte
	for {
		frame, err := r.ReadFrame(src)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, frame)
	}
}

func TestFramingEverySplitPoint(t *testing.T) {
	payloads := testPayloads()[:5]
	for _, s := range framerSetups {
		t.Run(s.name, func(t *testing.T) {
			w, _ := newPair(t, s)
			stream := encodeAll(t, w, payloads)

			for split := 0; split <= len(stream); split++ {
				_, r := newPair(t, s)
				r.Feed(stream[:split])
				got := drain(t, r)
				r.Feed(stream[split:])
				got = append(got, drain(t, r)...)
				require.Equal(t, payloads, got, "split at %d", split)
				assert.Zero(t, r.Buffered())
			}
		})
	}
}

func TestFramingRandomChunks(t *testing.T) {
	payloads := testPayloads()
	rng := rand.New(rand.NewSource(42))
	for _, s := range framerSetups {
		t.Run(s.name, func(t *testing.T) {
			w, _ := newPair(t, s)
			stream := encodeAll(t, w, payloads)

			for round := 0; round < 50; round++ {
				_, r := newPair(t, s)
				var got [][]byte
				for rest := stream; len(rest) > 0; {
					n := 1 + rng.Intn(700)
					if n > len(rest) {
						n = len(rest)
					}
					r.Feed(rest[:n])
					rest = rest[n:]
					got = append(got, drain(t, r)...)
				}
				require.Equal(t, payloads, got, "round %d", round)
			}
		})
	}
}

// flakyReader hands out data in small chunks and times out every other call.
type flakyReader struct {
	data  []byte
	calls int
}

func (f *flakyReader) Read(p []byte) (int, error) {
	f.calls++
	if f.calls%2 == 0 {
		return 0, os.ErrDeadlineExceeded
	}
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), 3)], f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestReadFrameSurvivesTimeouts(t *testing.T) {
	w, r := newPair(t, framerSetups[3])
	payloads := testPayloads()[:4]
	src := &flakyReader{data: encodeAll(t, w, payloads)}

	var got [][]byte
	for len(got) < len(payloads) {
		frame, err := r.ReadFrame(src)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			continue
		}
		require.NoError(t, err)
		got = append(got, frame)
	}
	assert.Equal(t, payloads, got)
}

func TestCompressionThreshold(t *testing.T) {
	w := NewFrameWriter(0)
	require.NoError(t, w.SetCompression(256))

	small := bytes.Repeat([]byte{0x01}, 10)
	frame, err := w.Encode(small)
	require.NoError(t, err)
	length, n, err := protocol.DecodeVarInt(frame)
	require.NoError(t, err)
	assert.Equal(t, int32(11), length)
	assert.Equal(t, byte(0), frame[n], "small payload carries data length 0")
	assert.Equal(t, small, frame[n+1:])

	big := bytes.Repeat([]byte("abcd"), 250)
	frame, err = w.Encode(big)
	require.NoError(t, err)
	_, n, err = protocol.DecodeVarInt(frame)
	require.NoError(t, err)
	dataLen, m, err := protocol.DecodeVarInt(frame[n:])
	require.NoError(t, err)
	assert.Equal(t, int32(1000), dataLen)
	assert.Less(t, len(frame[n+m:]), 1000)
}

func TestCipherActivatedWithBufferedData(t *testing.T) {
	w := NewFrameWriter(0)
	first, err := w.Encode([]byte("\x01before"))
	require.NoError(t, err)
	enc, err := NewCFB8Encrypter(testSecret)
	require.NoError(t, err)
	require.NoError(t, w.SetCipher(enc))
	second, err := w.Encode([]byte("\x02after"))
	require.NoError(t, err)

	r := NewFrameReader(0)
	r.Feed(append(first, second...))
	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x01before"), frame)

	dec, err := NewCFB8Decrypter(testSecret)
	require.NoError(t, err)
	require.NoError(t, r.SetCipher(dec))
	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x02after"), frame)
}

func TestSetOnce(t *testing.T) {
	w, r := newPair(t, framerSetups[3])
	assert.ErrorIs(t, w.SetCompression(64), ErrAlreadyEnabled)
	assert.ErrorIs(t, r.SetCompression(64), ErrAlreadyEnabled)

	enc, err := NewCFB8Encrypter(testSecret)
	require.NoError(t, err)
	assert.ErrorIs(t, w.SetCipher(enc), ErrAlreadyEnabled)
	assert.ErrorIs(t, r.SetCipher(enc), ErrAlreadyEnabled)
	assert.True(t, r.Encrypted())
	assert.True(t, r.Compressed())
}

func TestFramingErrors(t *testing.T) {
	t.Run("varint too long", func(t *testing.T) {
		r := NewFrameReader(0)
		r.Feed([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
		_, err := r.Next()
		var fe *FrameError
		assert.ErrorAs(t, err, &fe)
		assert.ErrorIs(t, err, ErrVarIntTooLong)
	})
	t.Run("frame too large", func(t *testing.T) {
		r := NewFrameReader(0)
		r.Feed(protocol.AppendVarInt(nil, DefaultMaxFrameSize+1))
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
	t.Run("zero length", func(t *testing.T) {
		r := NewFrameReader(0)
		r.Feed([]byte{0x00})
		_, err := r.Next()
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
	t.Run("compressed below threshold", func(t *testing.T) {
		payload := []byte("\x01tiny")
		z, err := compress(payload)
		require.NoError(t, err)
		body := append(protocol.AppendVarInt(nil, int32(len(payload))), z...)
		r := NewFrameReader(0)
		require.NoError(t, r.SetCompression(256))
		r.Feed(append(protocol.AppendVarInt(nil, int32(len(body))), body...))
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrDecompressedLength)
	})
	t.Run("decompressed length mismatch", func(t *testing.T) {
		payload := bytes.Repeat([]byte{7}, 300)
		z, err := compress(payload)
		require.NoError(t, err)
		body := append(protocol.AppendVarInt(nil, 400), z...)
		r := NewFrameReader(0)
		require.NoError(t, r.SetCompression(256))
		r.Feed(append(protocol.AppendVarInt(nil, int32(len(body))), body...))
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrDecompressedLength)
	})
	t.Run("decompressed longer than declared", func(t *testing.T) {
		payload := bytes.Repeat([]byte{7}, 300)
		z, err := compress(payload)
		require.NoError(t, err)
		body := append(protocol.AppendVarInt(nil, 290), z...)
		r := NewFrameReader(0)
		require.NoError(t, r.SetCompression(256))
		r.Feed(append(protocol.AppendVarInt(nil, int32(len(body))), body...))
		_, err = r.Next()
		assert.ErrorIs(t, err, ErrDecompressedLength)
	})
	t.Run("closed mid frame", func(t *testing.T) {
		r := NewFrameReader(0)
		_, err := r.ReadFrame(bytes.NewReader([]byte{0x05, 0x00, 0x01}))
		assert.ErrorIs(t, err, ErrClosedMidFrame)
	})
	t.Run("clean close", func(t *testing.T) {
		r := NewFrameReader(0)
		_, err := r.ReadFrame(bytes.NewReader(nil))
		assert.ErrorIs(t, err, io.EOF)
	})
	t.Run("oversized write", func(t *testing.T) {
		w := NewFrameWriter(16)
		_, err := w.Encode(make([]byte, 17))
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestCFB8KnownAnswer(t *testing.T) {
	key, _ := hex.DecodeString("2b7e151628aed2a6abf7158809cf4f3c")
	iv, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")
	plain, _ := hex.DecodeString("6bc1bee22e409f96e93d7e117393172aae2d")
	want, _ := hex.DecodeString("3b79424c9c0dd436bace9e0ed4586a4f32b9")

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	got := make([]byte, len(plain))
	newCFB8(block, iv, false).XORKeyStream(got, plain)
	assert.Equal(t, want, got)

	back := make([]byte, len(got))
	newCFB8(block, iv, true).XORKeyStream(back, got)
	assert.Equal(t, plain, back)
}

func TestCFB8RejectsBadSecret(t *testing.T) {
	_, err := NewCFB8Encrypter([]byte("short"))
	assert.Error(t, err)
}
