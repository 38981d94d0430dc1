package c2s

import (
	"errors"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// ErrMissingVerifyToken is returned when an encryption response without a
// verify token is converted for a version that requires one.
var ErrMissingVerifyToken = errors.New("verify token required for this version")

// LoginStart opens the login sequence.
type LoginStart struct {
	Username string
	// UUID is nil when the client did not send one.
	UUID *uuid.UUID
	// Signature is the chat key data sent by 1.19 and 1.19.2 clients.
	Signature *protocol.LoginSignatureData
}

func (*LoginStart) Name() string                  { return "LoginStart" }
func (*LoginStart) Direction() protocol.Direction { return protocol.ServerBound }

func (p *LoginStart) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin {
		return abstract.Unsupported(), nil
	}
	switch {
	case v < protocol.V1_19:
		return abstract.Success(&protocol.LoginStartV5{Username: p.Username}), nil
	case v < protocol.V1_19_2:
		return abstract.Success(&protocol.LoginStartV759{Username: p.Username, Signature: p.Signature}), nil
	case v < protocol.V1_19_3:
		return abstract.Success(&protocol.LoginStartV760{Username: p.Username, Signature: p.Signature, UUID: p.UUID}), nil
	case v < protocol.V1_20_2:
		return abstract.Success(&protocol.LoginStartV761{Username: p.Username, UUID: p.UUID}), nil
	}
	id := uuid.Nil
	if p.UUID != nil {
		id = *p.UUID
	}
	return abstract.Success(&protocol.LoginStartV764{Username: p.Username, UUID: id}), nil
}

func constructLoginStart(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.LoginStartV5:
		return &LoginStart{Username: c.Username}, nil
	case *protocol.LoginStartV759:
		return &LoginStart{Username: c.Username, Signature: c.Signature}, nil
	case *protocol.LoginStartV760:
		return &LoginStart{Username: c.Username, Signature: c.Signature, UUID: c.UUID}, nil
	case *protocol.LoginStartV761:
		return &LoginStart{Username: c.Username, UUID: c.UUID}, nil
	case *protocol.LoginStartV764:
		id := c.UUID
		return &LoginStart{Username: c.Username, UUID: &id}, nil
	}
	return nil, nil
}

// LoginEncryption is the client's answer to an encryption request.
type LoginEncryption struct {
	SharedSecret []byte
	// VerifyToken is nil when the client signed the nonce instead.
	VerifyToken []byte
	Signature   *protocol.MessageSignature
}

func (*LoginEncryption) Name() string                  { return "LoginEncryption" }
func (*LoginEncryption) Direction() protocol.Direction { return protocol.ServerBound }

func (p *LoginEncryption) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin {
		return abstract.Unsupported(), nil
	}
	if v >= protocol.V1_19 && v < protocol.V1_19_3 {
		return abstract.Success(&protocol.EncryptionResponseV759{
			SharedSecret: p.SharedSecret,
			VerifyToken:  p.VerifyToken,
			Signature:    p.Signature,
		}), nil
	}
	if p.Signature != nil && p.VerifyToken == nil {
		return abstract.WriteResult{}, ErrMissingVerifyToken
	}
	if v < protocol.V1_8 {
		return abstract.Success(&protocol.EncryptionResponseV5{SharedSecret: p.SharedSecret, VerifyToken: p.VerifyToken}), nil
	}
	return abstract.Success(&protocol.EncryptionResponseV47{SharedSecret: p.SharedSecret, VerifyToken: p.VerifyToken}), nil
}

func constructLoginEncryption(p protocol.Packet) (abstract.Packet, error) {
	switch c := p.(type) {
	case *protocol.EncryptionResponseV5:
		return &LoginEncryption{SharedSecret: c.SharedSecret, VerifyToken: c.VerifyToken}, nil
	case *protocol.EncryptionResponseV47:
		return &LoginEncryption{SharedSecret: c.SharedSecret, VerifyToken: c.VerifyToken}, nil
	case *protocol.EncryptionResponseV759:
		return &LoginEncryption{SharedSecret: c.SharedSecret, VerifyToken: c.VerifyToken, Signature: c.Signature}, nil
	}
	return nil, nil
}

// LoginPluginResponse answers a login plugin request.
type LoginPluginResponse struct {
	MessageID  int32
	Understood bool
	Data       []byte
}

func (*LoginPluginResponse) Name() string                  { return "LoginPluginResponse" }
func (*LoginPluginResponse) Direction() protocol.Direction { return protocol.ServerBound }

func (p *LoginPluginResponse) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin || v < protocol.V1_13 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.LoginPluginResponse{
		MessageID:  p.MessageID,
		Successful: p.Understood,
		Data:       p.Data,
	}), nil
}

func constructLoginPluginResponse(p protocol.Packet) (abstract.Packet, error) {
	c, ok := p.(*protocol.LoginPluginResponse)
	if !ok {
		return nil, nil
	}
	return &LoginPluginResponse{MessageID: c.MessageID, Understood: c.Successful, Data: c.Data}, nil
}

// LoginAcknowledge confirms the login success and enters configuration.
type LoginAcknowledge struct{}

func (*LoginAcknowledge) Name() string                  { return "LoginAcknowledge" }
func (*LoginAcknowledge) Direction() protocol.Direction { return protocol.ServerBound }

func (*LoginAcknowledge) Convert(v protocol.Version, s protocol.State) (abstract.WriteResult, error) {
	if s != protocol.StateLogin || v < protocol.V1_20_2 {
		return abstract.Unsupported(), nil
	}
	return abstract.Success(&protocol.LoginAcknowledged{}), nil
}

func constructLoginAcknowledge(p protocol.Packet) (abstract.Packet, error) {
	if _, ok := p.(*protocol.LoginAcknowledged); !ok {
		return nil, nil
	}
	return &LoginAcknowledge{}, nil
}
