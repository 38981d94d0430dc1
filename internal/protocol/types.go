// Package protocol implements the version codec registry: wire primitives,
// concrete packet layouts for every supported protocol version, and the
// id tables that map (state, direction, version, id) to a packet shape.
//
// All multi-byte integers are big-endian. Packet bodies are prefixed by a
// VarInt packet id whose meaning depends on the connection state, the
// direction and the negotiated protocol version.
package protocol

import (
	"fmt"
	"math"
	"sort"
)

// Version is a protocol version number as sent in the handshake.
type Version int32

// Latest is an open upper bound for version ranges.
const Latest Version = math.MaxInt32

// Well-known versions referenced by the codecs and the state machine.
const (
	V1_7_6  Version = 5
	V1_8    Version = 47
	V1_12_2 Version = 340
	V1_13   Version = 393
	V1_14   Version = 477
	V1_15_2 Version = 578
	V1_16   Version = 735
	V1_16_4 Version = 754
	V1_17   Version = 755
	V1_18_2 Version = 758
	V1_19   Version = 759
	V1_19_2 Version = 760
	V1_19_3 Version = 761
	V1_20   Version = 763
	V1_20_2 Version = 764
	V1_20_3 Version = 765
	V1_20_5 Version = 766
	V1_21   Version = 767
	V1_21_2 Version = 768
)

// SupportedVersions lists every version the codec registry can speak, in
// ascending order.
var SupportedVersions = []Version{
	V1_7_6, V1_8, V1_12_2, V1_13, V1_14, V1_15_2, V1_16, V1_16_4, V1_17,
	V1_18_2, V1_19, V1_19_2, V1_19_3, V1_20, V1_20_2, V1_20_3, V1_20_5,
	V1_21, V1_21_2,
}

var versionNames = map[Version]string{
	V1_7_6:  "1.7.6",
	V1_8:    "1.8",
	V1_12_2: "1.12.2",
	V1_13:   "1.13",
	V1_14:   "1.14",
	V1_15_2: "1.15.2",
	V1_16:   "1.16",
	V1_16_4: "1.16.4",
	V1_17:   "1.17",
	V1_18_2: "1.18.2",
	V1_19:   "1.19",
	V1_19_2: "1.19.2",
	V1_19_3: "1.19.3",
	V1_20:   "1.20",
	V1_20_2: "1.20.2",
	V1_20_3: "1.20.3",
	V1_20_5: "1.20.5",
	V1_21:   "1.21",
	V1_21_2: "1.21.2",
}

// String returns the release name, or the bare number for unknown versions.
func (v Version) String() string {
	if s, ok := versionNames[v]; ok {
		return s
	}
	return fmt.Sprintf("%d", int32(v))
}

// MinVersion is the oldest supported version. The handshake is decoded with
// it before the client's version is known.
func MinVersion() Version { return SupportedVersions[0] }

// MaxVersion is the newest supported version.
func MaxVersion() Version { return SupportedVersions[len(SupportedVersions)-1] }

// IsSupported reports whether v has a codec.
func IsSupported(v Version) bool {
	i := sort.Search(len(SupportedVersions), func(i int) bool { return SupportedVersions[i] >= v })
	return i < len(SupportedVersions) && SupportedVersions[i] == v
}

// NearestSupported returns the newest supported version not above v, or the
// oldest one when v predates all of them.
func NearestSupported(v Version) Version {
	i := sort.Search(len(SupportedVersions), func(i int) bool { return SupportedVersions[i] > v })
	if i == 0 {
		return SupportedVersions[0]
	}
	return SupportedVersions[i-1]
}

// VersionRange is an inclusive span of protocol versions.
type VersionRange struct {
	From Version
	To   Version
}

// Contains reports whether v lies inside the range.
func (r VersionRange) Contains(v Version) bool {
	return v >= r.From && v <= r.To
}

func (r VersionRange) String() string {
	if r.To == Latest {
		return fmt.Sprintf("%d+", r.From)
	}
	if r.From == r.To {
		return fmt.Sprintf("%d", r.From)
	}
	return fmt.Sprintf("%d..%d", r.From, r.To)
}

// State is the protocol state of one half of a connection.
type State int32

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateConfiguration
	StatePlay
)

var stateStrings = map[State]string{
	StateHandshake:     "handshake",
	StateStatus:        "status",
	StateLogin:         "login",
	StateConfiguration: "configuration",
	StatePlay:          "play",
}

func (s State) String() string {
	if v, ok := stateStrings[s]; ok {
		return v
	}
	return "unknown"
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Direction is the direction a packet travels.
type Direction uint8

const (
	// ServerBound packets are sent by the client.
	ServerBound Direction = iota
	// ClientBound packets are sent by the server.
	ClientBound
)

func (d Direction) String() string {
	switch d {
	case ServerBound:
		return "c2s"
	case ClientBound:
		return "s2c"
	}
	return "unknown"
}
