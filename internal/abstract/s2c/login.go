package s2c

import (
	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/nbt"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// Disconnect closes the connection with a reason. It maps onto the login,
// configuration or play disconnect packet depending on the state.
type Disconnect struct {
	Reason abstract.Text
}

func (*Disconnect) Name() string                  { return "Disconnect" }
func (*Disconnect) Direction() protocol.Direction { return protocol.ClientBound }

func (p *Disconnect) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	reason := p.Reason
	if reason == "" {
		reason = abstract.PlainText("")
	}
	switch s {
	case protocol.StateLogin:
		return abstract.Success(&protocol.LoginDisconnect{Reason: string(reason)}), nil
	case protocol.StateConfiguration:
		if v < protocol.V1_20_2 {
			return abstract.Unsupported(), nil
		}
		if v < protocol.V1_20_3 {
			return abstract.Success(&protocol.ConfDisconnectV764{Reason: string(reason)}), nil
		}
		tag, err := reason.NBT()
		if err != nil {
			return abstract.WriteResult{}, err
		}
		return abstract.Success(&protocol.ConfDisconnectV765{Reason: tag}), nil
	case protocol.StatePlay:
		if v < protocol.V1_20_3 {
			return abstract.Success(&protocol.PlayDisconnectV5{Reason: string(reason)}), nil
		}
		tag, err := reason.NBT()
		if err != nil {
			return abstract.WriteResult{}, err
		}
		return abstract.Success(&protocol.PlayDisconnectV765{Reason: tag}), nil
	}
	return abstract.Unsupported(), nil
}

func constructDisconnect(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.LoginDisconnect:
		return &Disconnect{Reason: abstract.Text(c.Reason)}, nil
	case *protocol.ConfDisconnectV764:
		return &Disconnect{Reason: abstract.Text(c.Reason)}, nil
	case *protocol.PlayDisconnectV5:
		return &Disconnect{Reason: abstract.Text(c.Reason)}, nil
	case *protocol.ConfDisconnectV765:
		return disconnectFromNBT(c.Reason)
	case *protocol.PlayDisconnectV765:
		return disconnectFromNBT(c.Reason)
	}
	return nil, nil
}

func disconnectFromNBT(v nbt.Value) (abstract.Packet, error) {
	reason, err := abstract.TextFromNBT(v)
	if err != nil {
		return nil, abstract.Invalid("Disconnect", "Reason", "%v", err)
	}
	return &Disconnect{Reason: reason}, nil
}

// LoginEncryptionBegin asks the client to enable encryption.
type LoginEncryptionBegin struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
	// ShouldAuthenticate is implied true before 1.20.5.
	ShouldAuthenticate bool
}

func (*LoginEncryptionBegin) Name() string                  { return "LoginEncryptionBegin" }
func (*LoginEncryptionBegin) Direction() protocol.Direction { return protocol.ClientBound }

func (p *LoginEncryptionBegin) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin {
		return abstract.Unsupported(), nil
	}
	switch {
	case v < protocol.V1_8:
		return abstract.Success(&protocol.EncryptionRequestV5{ServerID: p.ServerID, PublicKey: p.PublicKey, VerifyToken: p.VerifyToken}), nil
	case v < protocol.V1_20_5:
		return abstract.Success(&protocol.EncryptionRequestV47{ServerID: p.ServerID, PublicKey: p.PublicKey, VerifyToken: p.VerifyToken}), nil
	}
	return abstract.Success(&protocol.EncryptionRequestV766{
		ServerID:           p.ServerID,
		PublicKey:          p.PublicKey,
		VerifyToken:        p.VerifyToken,
		ShouldAuthenticate: p.ShouldAuthenticate,
	}), nil
}

func constructLoginEncryptionBegin(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.EncryptionRequestV5:
		return &LoginEncryptionBegin{ServerID: c.ServerID, PublicKey: c.PublicKey, VerifyToken: c.VerifyToken, ShouldAuthenticate: true}, nil
	case *protocol.EncryptionRequestV47:
		return &LoginEncryptionBegin{ServerID: c.ServerID, PublicKey: c.PublicKey, VerifyToken: c.VerifyToken, ShouldAuthenticate: true}, nil
	case *protocol.EncryptionRequestV766:
		return &LoginEncryptionBegin{ServerID: c.ServerID, PublicKey: c.PublicKey, VerifyToken: c.VerifyToken, ShouldAuthenticate: c.ShouldAuthenticate}, nil
	}
	return nil, nil
}

// LoginSuccess completes the login.
type LoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []protocol.GameProfileProperty
	// StrictErrorHandling is only sent by 1.20.5 and 1.21.
	StrictErrorHandling bool
}

func (*LoginSuccess) Name() string                  { return "LoginSuccess" }
func (*LoginSuccess) Direction() protocol.Direction { return protocol.ClientBound }

func (p *LoginSuccess) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin {
		return abstract.Unsupported(), nil
	}
	switch {
	case v < protocol.V1_16:
		return abstract.Success(&protocol.LoginSuccessV5{UUID: p.UUID, Username: p.Username}), nil
	case v < protocol.V1_19:
		return abstract.Success(&protocol.LoginSuccessV735{UUID: p.UUID, Username: p.Username}), nil
	case v >= protocol.V1_20_5 && v < protocol.V1_21_2:
		return abstract.Success(&protocol.LoginSuccessV766{
			UUID:                p.UUID,
			Username:            p.Username,
			Properties:          p.Properties,
			StrictErrorHandling: p.StrictErrorHandling,
		}), nil
	}
	return abstract.Success(&protocol.LoginSuccessV759{UUID: p.UUID, Username: p.Username, Properties: p.Properties}), nil
}

func constructLoginSuccess(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.LoginSuccessV5:
		return &LoginSuccess{UUID: c.UUID, Username: c.Username}, nil
	case *protocol.LoginSuccessV735:
		return &LoginSuccess{UUID: c.UUID, Username: c.Username}, nil
	case *protocol.LoginSuccessV759:
		return &LoginSuccess{UUID: c.UUID, Username: c.Username, Properties: c.Properties}, nil
	case *protocol.LoginSuccessV766:
		return &LoginSuccess{UUID: c.UUID, Username: c.Username, Properties: c.Properties, StrictErrorHandling: c.StrictErrorHandling}, nil
	}
	return nil, nil
}

// LoginCompress announces the compression threshold. Versions before 1.8
// have no compression and nothing is sent.
type LoginCompress struct {
	Threshold int32
}

func (*LoginCompress) Name() string                  { return "LoginCompress" }
func (*LoginCompress) Direction() protocol.Direction { return protocol.ClientBound }

func (p *LoginCompress) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin {
		return abstract.Unsupported(), nil
	}
	if v < protocol.V1_8 {
		return abstract.Success(), nil
	}
	return abstract.Success(&protocol.SetCompression{Threshold: p.Threshold}), nil
}

func constructLoginCompress(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.SetCompression)
	if !ok {
		return nil, nil
	}
	return &LoginCompress{Threshold: c.Threshold}, nil
}

// LoginPluginRequest sends a custom query during login.
type LoginPluginRequest struct {
	MessageID int32
	Channel   string
	Data      []byte
}

func (*LoginPluginRequest) Name() string                  { return "LoginPluginRequest" }
func (*LoginPluginRequest) Direction() protocol.Direction { return protocol.ClientBound }

func (p *LoginPluginRequest) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin || v < protocol.V1_13 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.LoginPluginRequest{MessageID: p.MessageID, Channel: p.Channel, Data: p.Data}), nil
}

func constructLoginPluginRequest(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.LoginPluginRequest)
	if !ok {
		return nil, nil
	}
	return &LoginPluginRequest{MessageID: c.MessageID, Channel: c.Channel, Data: c.Data}, nil
}
