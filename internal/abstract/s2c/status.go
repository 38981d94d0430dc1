// Package s2c holds the abstract packets sent by the server.
package s2c

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

const faviconPrefix = "data:image/png;base64,"

// StatusVersion names the server version in a status response.
type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

// StatusPlayer is one entry of the player sample.
type StatusPlayer struct {
	Name string    `json:"name"`
	ID   uuid.UUID `json:"id"`
}

// StatusPlayers is the player count block of a status response.
type StatusPlayers struct {
	Max    int32          `json:"max"`
	Online int32          `json:"online"`
	Sample []StatusPlayer `json:"sample,omitempty"`
}

// StatusInfo is the server list status.
type StatusInfo struct {
	Version     StatusVersion
	Players     *StatusPlayers
	Description abstract.Text
	// Favicon is raw PNG data.
	Favicon            []byte
	EnforcesSecureChat bool
}

type statusJSON struct {
	Version            StatusVersion  `json:"version"`
	Players            *StatusPlayers `json:"players,omitempty"`
	Description        *abstract.Text `json:"description,omitempty"`
	Favicon            string         `json:"favicon,omitempty"`
	EnforcesSecureChat bool           `json:"enforcesSecureChat,omitempty"`
}

func (*StatusInfo) Name() string                  { return "StatusInfo" }
func (*StatusInfo) Direction() protocol.Direction { return protocol.ClientBound }

// MarshalJSON renders the wire JSON of a status response.
func (p *StatusInfo) MarshalJSON() ([]byte, error) {
	out := statusJSON{
		Version:            p.Version,
		Players:            p.Players,
		EnforcesSecureChat: p.EnforcesSecureChat,
	}
	if p.Description != "" {
		desc := p.Description
		out.Description = &desc
	}
	if len(p.Favicon) > 0 {
		out.Favicon = faviconPrefix + base64.StdEncoding.EncodeToString(p.Favicon)
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the wire JSON of a status response.
func (p *StatusInfo) UnmarshalJSON(b []byte) error {
	var in statusJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*p = StatusInfo{
		Version:            in.Version,
		Players:            in.Players,
		EnforcesSecureChat: in.EnforcesSecureChat,
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Favicon != "" {
		data, ok := strings.CutPrefix(in.Favicon, faviconPrefix)
		if !ok {
			return abstract.Invalid("StatusInfo", "Favicon", "not a base64 PNG data URI")
		}
		png, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return abstract.Invalid("StatusInfo", "Favicon", "%v", err)
		}
		p.Favicon = png
	}
	return nil
}

func (p *StatusInfo) Convert(_ protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateStatus {
		return abstract.Unsupported(), nil
	}
	b, err := p.MarshalJSON()
	if err != nil {
		return abstract.WriteResult{}, err
	}
	return abstract.Success(&protocol.StatusResponse{JSON: string(b)}), nil
}

func constructStatusInfo(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.StatusResponse)
	if !ok {
		return nil, nil
	}
	info := &StatusInfo{}
	if err := info.UnmarshalJSON([]byte(c.JSON)); err != nil {
		var semantic *abstract.SemanticError
		if errors.As(err, &semantic) {
			return nil, err
		}
		return nil, abstract.Invalid("StatusInfo", "JSON", "%v", err)
	}
	return info, nil
}

// StatusPong echoes the client's ping payload.
type StatusPong struct {
	Payload int64
}

func (*StatusPong) Name() string                  { return "StatusPong" }
func (*StatusPong) Direction() protocol.Direction { return protocol.ClientBound }

func (p *StatusPong) Convert(_ protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateStatus {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.StatusPong{Payload: p.Payload}), nil
}

func constructStatusPong(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.StatusPong)
	if !ok {
		return nil, nil
	}
	return &StatusPong{Payload: c.Payload}, nil
}
