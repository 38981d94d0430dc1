package transport

import (
	"net"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detectWith(t *testing.T, send func(c net.Conn)) (LegacyFormat, *FrameReader, error) {
	t.Helper()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go send(client)
	fr := NewFrameReader(0)
	format, err := DetectLegacyPing(server, fr, time.Now().Add(time.Second))
	return format, fr, err
}

func TestDetectPre1_4AfterSilence(t *testing.T) {
	start := time.Now()
	format, fr, err := detectWith(t, func(c net.Conn) {
		_, _ = c.Write([]byte{0xFE})
	})
	require.NoError(t, err)
	assert.Equal(t, LegacyPre1_4, format)
	assert.GreaterOrEqual(t, time.Since(start), LegacyAmbiguityWait)
	assert.Equal(t, 1, fr.Buffered(), "detection must not consume bytes")
}

func TestDetectPre1_6(t *testing.T) {
	format, _, err := detectWith(t, func(c net.Conn) {
		_, _ = c.Write([]byte{0xFE, 0x01})
	})
	require.NoError(t, err)
	assert.Equal(t, LegacyPre1_6, format)
}

func TestDetectPre1_7InPieces(t *testing.T) {
	format, fr, err := detectWith(t, func(c net.Conn) {
		_, _ = c.Write([]byte{0xFE})
		time.Sleep(10 * time.Millisecond)
		_, _ = c.Write([]byte{0x01, 0xFA, 0x00, 0x0B})
	})
	require.NoError(t, err)
	assert.Equal(t, LegacyPre1_7, format)
	assert.GreaterOrEqual(t, fr.Buffered(), 3)
}

func TestDetectModernHandshake(t *testing.T) {
	hs := []byte{0x10, 0x00, 0xFF, 0x05, 0x09, 'l', 'o', 'c', 'a', 'l', 'h', 'o', 's', 't', 0x63, 0xDD, 0x01}
	format, fr, err := detectWith(t, func(c net.Conn) {
		_, _ = c.Write(hs)
	})
	require.NoError(t, err)
	assert.Equal(t, LegacyNone, format)

	frame, err := fr.Next()
	require.NoError(t, err)
	assert.Equal(t, hs[1:], frame, "buffered bytes stay available to the framer")
}

func TestDetectTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	_, err := DetectLegacyPing(server, NewFrameReader(0), time.Now().Add(20*time.Millisecond))
	assert.Error(t, err)
}

func decodeLegacy(t *testing.T, b []byte) string {
	t.Helper()
	require.Equal(t, byte(0xFF), b[0])
	n := int(b[1])<<8 | int(b[2])
	require.Equal(t, 3+2*n, len(b))
	units := make([]uint16, n)
	for i := range units {
		units[i] = uint16(b[3+2*i])<<8 | uint16(b[4+2*i])
	}
	return string(utf16.Decode(units))
}

func TestEncodeLegacyResponse(t *testing.T) {
	resp := LegacyResponse{
		ProtocolVersion: 127,
		Version:         "1.6.4",
		Description:     "§aA craftflow server",
		OnlinePlayers:   3,
		MaxPlayers:      20,
	}
	assert.Equal(t, "§1\x00127\x001.6.4\x00§aA craftflow server\x003\x0020",
		decodeLegacy(t, EncodeLegacyResponse(LegacyPre1_7, resp)))
	assert.Equal(t, "A craftflow server§3§20",
		decodeLegacy(t, EncodeLegacyResponse(LegacyPre1_4, resp)))
}

func TestLegacyResponseTruncated(t *testing.T) {
	long := make([]rune, 400)
	for i := range long {
		long[i] = 'x'
	}
	resp := LegacyResponse{ProtocolVersion: 127, Version: "1.6.4", Description: string(long), OnlinePlayers: 1, MaxPlayers: 2}
	text := decodeLegacy(t, EncodeLegacyResponse(LegacyPre1_6, resp))
	// fields plus the fixed prefix and separators
	assert.LessOrEqual(t, len([]rune(text)), legacyMaxLength+3+4)
}

func TestStripFormatting(t *testing.T) {
	assert.Equal(t, "Hello world", StripFormatting("§cHello §lworld"))
	assert.Equal(t, "trailing", StripFormatting("trailing§"))
}
