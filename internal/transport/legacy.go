package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
)

// LegacyFormat identifies which pre-netty server list ping a client sent.
type LegacyFormat int

const (
	// LegacyNone means the stream does not start with a legacy ping.
	LegacyNone LegacyFormat = iota
	// LegacyPre1_4 is the bare 0xFE ping of Beta 1.8 to 1.3.
	LegacyPre1_4
	// LegacyPre1_6 is the 0xFE 0x01 ping of 1.4 and 1.5.
	LegacyPre1_6
	// LegacyPre1_7 is the 0xFE 0x01 0xFA ping of 1.6.
	LegacyPre1_7
)

var legacyFormatStrings = map[LegacyFormat]string{
	LegacyNone:   "none",
	LegacyPre1_4: "pre-1.4",
	LegacyPre1_6: "1.4-1.5",
	LegacyPre1_7: "1.6",
}

func (f LegacyFormat) String() string {
	if s, ok := legacyFormatStrings[f]; ok {
		return s
	}
	return "unknown"
}

const (
	// LegacyDetectTimeout bounds the wait for the first bytes of a connection.
	LegacyDetectTimeout = 5 * time.Second
	// LegacyAmbiguityWait is how long to wait for more bytes when the buffered
	// prefix could be either an old ping or the start of a longer one.
	LegacyAmbiguityWait = 50 * time.Millisecond
	// LegacyLinger is how long to keep the connection open after replying;
	// old clients report an error if it closes immediately.
	LegacyLinger = time.Second

	legacyMaxLength = 248
)

// DeadlineReader is the part of net.Conn legacy detection needs.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// DetectLegacyPing looks at the first bytes of a connection through fr
// without consuming them. It waits until deadline for the first byte, which
// is an error if it never comes. When the prefix is 0xFE or 0xFE 0x01 it
// waits a further LegacyAmbiguityWait, never past deadline, for the rest of
// a 1.6 ping before deciding.
func DetectLegacyPing(conn DeadlineReader, fr *FrameReader, deadline time.Time) (LegacyFormat, error) {
	defer conn.SetReadDeadline(time.Time{})

	if err := conn.SetReadDeadline(deadline); err != nil {
		return LegacyNone, fmt.Errorf("failed to set read deadline: %w", err)
	}
	for fr.Buffered() == 0 {
		if err := fr.Fill(conn); err != nil {
			if isTimeout(err) {
				return LegacyNone, fmt.Errorf("timed out waiting for first bytes: %w", err)
			}
			return LegacyNone, err
		}
	}

	if ambiguous(fr.Peek(3)) {
		settle := time.Now().Add(LegacyAmbiguityWait)
		if settle.After(deadline) {
			settle = deadline
		}
		if err := conn.SetReadDeadline(settle); err != nil {
			return LegacyNone, fmt.Errorf("failed to set read deadline: %w", err)
		}
		for fr.Buffered() < 3 {
			if err := fr.Fill(conn); err != nil {
				// silence or a closed stream both settle the question
				break
			}
		}
	}
	return classifyLegacy(fr.Peek(3)), nil
}

func ambiguous(b []byte) bool {
	switch len(b) {
	case 1:
		return b[0] == 0xFE
	case 2:
		return b[0] == 0xFE && b[1] == 0x01
	}
	return false
}

func classifyLegacy(b []byte) LegacyFormat {
	switch {
	case len(b) == 1 && b[0] == 0xFE:
		return LegacyPre1_4
	case len(b) == 2 && b[0] == 0xFE && b[1] == 0x01:
		return LegacyPre1_6
	case len(b) == 3 && b[0] == 0xFE && b[1] == 0x01 && b[2] == 0xFA:
		return LegacyPre1_7
	}
	return LegacyNone
}

// LegacyResponse is the server list entry sent to legacy clients.
type LegacyResponse struct {
	ProtocolVersion int32
	Version         string
	Description     string
	OnlinePlayers   int32
	MaxPlayers      int32
}

// EncodeLegacyResponse builds the kick packet old clients read as a server
// list entry: 0xFF, a u16 count of UTF-16 units, then UTF-16BE text.
func EncodeLegacyResponse(format LegacyFormat, resp LegacyResponse) []byte {
	desc := resp.Description
	sep := "\x00"
	if format == LegacyPre1_4 {
		desc = StripFormatting(desc)
		sep = "§"
	}
	resp.Description = desc
	resp = truncateLegacy(resp)

	var sb strings.Builder
	if format != LegacyPre1_4 {
		sb.WriteString("§1\x00")
		sb.WriteString(strconv.Itoa(int(resp.ProtocolVersion)))
		sb.WriteString(sep)
		sb.WriteString(resp.Version)
		sb.WriteString(sep)
	}
	sb.WriteString(resp.Description)
	sb.WriteString(sep)
	sb.WriteString(strconv.Itoa(int(resp.OnlinePlayers)))
	sb.WriteString(sep)
	sb.WriteString(strconv.Itoa(int(resp.MaxPlayers)))

	units := utf16.Encode([]rune(sb.String()))
	out := make([]byte, 3, 3+2*len(units))
	out[0] = 0xFF
	out[1] = byte(len(units) >> 8)
	out[2] = byte(len(units))
	for _, u := range units {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

// WriteLegacyResponse writes the encoded response to w.
func WriteLegacyResponse(w io.Writer, format LegacyFormat, resp LegacyResponse) error {
	if _, err := w.Write(EncodeLegacyResponse(format, resp)); err != nil {
		return fmt.Errorf("failed to write legacy ping response: %w", err)
	}
	return nil
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// truncateLegacy shortens the description, then the version, until the
// combined field length fits what old clients accept.
func truncateLegacy(r LegacyResponse) LegacyResponse {
	fixed := len(strconv.Itoa(int(r.ProtocolVersion))) +
		len(strconv.Itoa(int(r.OnlinePlayers))) +
		len(strconv.Itoa(int(r.MaxPlayers)))
	over := fixed + utf16Len(r.Version) + utf16Len(r.Description) - legacyMaxLength
	if over <= 0 {
		return r
	}
	r.Description, over = trimUnits(r.Description, over)
	if over > 0 {
		r.Version, _ = trimUnits(r.Version, over)
	}
	return r
}

// trimUnits drops whole characters from the end of s until at least n UTF-16
// units are gone, returning the remainder still to trim.
func trimUnits(s string, n int) (string, int) {
	runes := []rune(s)
	for n > 0 && len(runes) > 0 {
		last := runes[len(runes)-1]
		runes = runes[:len(runes)-1]
		if last >= 0x10000 {
			n -= 2
		} else {
			n--
		}
	}
	if n < 0 {
		n = 0
	}
	return string(runes), n
}

// StripFormatting removes § formatting codes and the character after each.
func StripFormatting(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' {
			i++
			continue
		}
		sb.WriteRune(runes[i])
	}
	return sb.String()
}
