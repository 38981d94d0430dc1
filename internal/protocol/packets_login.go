package protocol

import "github.com/google/uuid"

// Text components are JSON strings bounded by this many characters.
const maxTextLength = 262144

const maxUsernameLength = 16

// LoginStartV5 is the original login start: just the username.
type LoginStartV5 struct {
	Username string
}

func (p *LoginStartV5) Encode(w *Writer) { w.String(p.Username, maxUsernameLength) }
func (p *LoginStartV5) Decode(r *Reader) { p.Username = r.String(maxUsernameLength) }

// LoginSignatureData is the chat-signing key sent with 1.19 and 1.19.2 logins.
type LoginSignatureData struct {
	Timestamp int64
	PublicKey []byte
	Signature []byte
}

func (d *LoginSignatureData) encode(w *Writer) {
	w.Int64(d.Timestamp).ByteArray(d.PublicKey).ByteArray(d.Signature)
}

func (d *LoginSignatureData) decode(r *Reader) {
	d.Timestamp = r.Int64()
	d.PublicKey = r.ByteArray()
	d.Signature = r.ByteArray()
}

// LoginStartV759 adds optional signature data.
type LoginStartV759 struct {
	Username  string
	Signature *LoginSignatureData
}

func (p *LoginStartV759) Encode(w *Writer) {
	w.String(p.Username, maxUsernameLength)
	w.Bool(p.Signature != nil)
	if p.Signature != nil {
		p.Signature.encode(w)
	}
}

func (p *LoginStartV759) Decode(r *Reader) {
	p.Username = r.String(maxUsernameLength)
	if r.Bool() {
		p.Signature = &LoginSignatureData{}
		p.Signature.decode(r)
	}
}

// LoginStartV760 adds an optional player UUID after the signature data.
type LoginStartV760 struct {
	Username  string
	Signature *LoginSignatureData
	UUID      *uuid.UUID
}

func (p *LoginStartV760) Encode(w *Writer) {
	w.String(p.Username, maxUsernameLength)
	w.Bool(p.Signature != nil)
	if p.Signature != nil {
		p.Signature.encode(w)
	}
	w.Bool(p.UUID != nil)
	if p.UUID != nil {
		w.UUID(*p.UUID)
	}
}

func (p *LoginStartV760) Decode(r *Reader) {
	p.Username = r.String(maxUsernameLength)
	if r.Bool() {
		p.Signature = &LoginSignatureData{}
		p.Signature.decode(r)
	}
	if r.Bool() {
		u := r.UUID()
		p.UUID = &u
	}
}

// LoginStartV761 drops signature data and keeps the optional UUID.
type LoginStartV761 struct {
	Username string
	UUID     *uuid.UUID
}

func (p *LoginStartV761) Encode(w *Writer) {
	w.String(p.Username, maxUsernameLength)
	w.Bool(p.UUID != nil)
	if p.UUID != nil {
		w.UUID(*p.UUID)
	}
}

func (p *LoginStartV761) Decode(r *Reader) {
	p.Username = r.String(maxUsernameLength)
	if r.Bool() {
		u := r.UUID()
		p.UUID = &u
	}
}

// LoginStartV764 makes the UUID mandatory.
type LoginStartV764 struct {
	Username string
	UUID     uuid.UUID
}

func (p *LoginStartV764) Encode(w *Writer) { w.String(p.Username, maxUsernameLength).UUID(p.UUID) }

func (p *LoginStartV764) Decode(r *Reader) {
	p.Username = r.String(maxUsernameLength)
	p.UUID = r.UUID()
}

// EncryptionResponseV5 uses i16-prefixed arrays.
type EncryptionResponseV5 struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (p *EncryptionResponseV5) Encode(w *Writer) {
	w.ShortByteArray(p.SharedSecret).ShortByteArray(p.VerifyToken)
}

func (p *EncryptionResponseV5) Decode(r *Reader) {
	p.SharedSecret = r.ShortByteArray()
	p.VerifyToken = r.ShortByteArray()
}

// EncryptionResponseV47 uses VarInt-prefixed arrays.
type EncryptionResponseV47 struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func (p *EncryptionResponseV47) Encode(w *Writer) {
	w.ByteArray(p.SharedSecret).ByteArray(p.VerifyToken)
}

func (p *EncryptionResponseV47) Decode(r *Reader) {
	p.SharedSecret = r.ByteArray()
	p.VerifyToken = r.ByteArray()
}

// MessageSignature replaces the verify token when the client signs with its
// chat key.
type MessageSignature struct {
	Salt      int64
	Signature []byte
}

// EncryptionResponseV759 carries either a verify token or a salted signature.
type EncryptionResponseV759 struct {
	SharedSecret []byte
	VerifyToken  []byte
	Signature    *MessageSignature
}

func (p *EncryptionResponseV759) Encode(w *Writer) {
	w.ByteArray(p.SharedSecret)
	if p.Signature == nil {
		w.Bool(true).ByteArray(p.VerifyToken)
		return
	}
	w.Bool(false).Int64(p.Signature.Salt).ByteArray(p.Signature.Signature)
}

func (p *EncryptionResponseV759) Decode(r *Reader) {
	p.SharedSecret = r.ByteArray()
	if r.Bool() {
		p.VerifyToken = r.ByteArray()
		return
	}
	p.Signature = &MessageSignature{Salt: r.Int64(), Signature: r.ByteArray()}
}

// LoginPluginResponse answers a LoginPluginRequest. Data is only present
// when the client understood the request.
type LoginPluginResponse struct {
	MessageID  int32
	Successful bool
	Data       []byte
}

func (p *LoginPluginResponse) Encode(w *Writer) {
	w.VarInt(p.MessageID).Bool(p.Successful)
	if p.Successful {
		w.Raw(p.Data)
	}
}

func (p *LoginPluginResponse) Decode(r *Reader) {
	p.MessageID = r.VarInt()
	p.Successful = r.Bool()
	if p.Successful {
		p.Data = r.Rest()
	}
}

// LoginAcknowledged moves the client into the configuration state.
type LoginAcknowledged struct{}

func (p *LoginAcknowledged) Encode(*Writer) {}
func (p *LoginAcknowledged) Decode(*Reader) {}

// LoginDisconnect carries a JSON text reason.
type LoginDisconnect struct {
	Reason string
}

func (p *LoginDisconnect) Encode(w *Writer) { w.String(p.Reason, maxTextLength) }
func (p *LoginDisconnect) Decode(r *Reader) { p.Reason = r.String(maxTextLength) }

// EncryptionRequestV5 uses i16-prefixed arrays.
type EncryptionRequestV5 struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (p *EncryptionRequestV5) Encode(w *Writer) {
	w.String(p.ServerID, 20).ShortByteArray(p.PublicKey).ShortByteArray(p.VerifyToken)
}

func (p *EncryptionRequestV5) Decode(r *Reader) {
	p.ServerID = r.String(20)
	p.PublicKey = r.ShortByteArray()
	p.VerifyToken = r.ShortByteArray()
}

// EncryptionRequestV47 uses VarInt-prefixed arrays.
type EncryptionRequestV47 struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

func (p *EncryptionRequestV47) Encode(w *Writer) {
	w.String(p.ServerID, 20).ByteArray(p.PublicKey).ByteArray(p.VerifyToken)
}

func (p *EncryptionRequestV47) Decode(r *Reader) {
	p.ServerID = r.String(20)
	p.PublicKey = r.ByteArray()
	p.VerifyToken = r.ByteArray()
}

// EncryptionRequestV766 tells the client whether to authenticate with the
// session server.
type EncryptionRequestV766 struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

func (p *EncryptionRequestV766) Encode(w *Writer) {
	w.String(p.ServerID, 20).ByteArray(p.PublicKey).ByteArray(p.VerifyToken).Bool(p.ShouldAuthenticate)
}

func (p *EncryptionRequestV766) Decode(r *Reader) {
	p.ServerID = r.String(20)
	p.PublicKey = r.ByteArray()
	p.VerifyToken = r.ByteArray()
	p.ShouldAuthenticate = r.Bool()
}

// LoginSuccessV5 sends the UUID as a hyphenated string.
type LoginSuccessV5 struct {
	UUID     uuid.UUID
	Username string
}

func (p *LoginSuccessV5) Encode(w *Writer) { w.UUIDString(p.UUID).String(p.Username, maxUsernameLength) }

func (p *LoginSuccessV5) Decode(r *Reader) {
	p.UUID = r.UUIDString()
	p.Username = r.String(maxUsernameLength)
}

// LoginSuccessV735 sends the UUID as 128 bits.
type LoginSuccessV735 struct {
	UUID     uuid.UUID
	Username string
}

func (p *LoginSuccessV735) Encode(w *Writer) { w.UUID(p.UUID).String(p.Username, maxUsernameLength) }

func (p *LoginSuccessV735) Decode(r *Reader) {
	p.UUID = r.UUID()
	p.Username = r.String(maxUsernameLength)
}

// GameProfileProperty is a signed profile property such as "textures".
type GameProfileProperty struct {
	Name      string
	Value     string
	Signature *string
}

func encodeProperties(w *Writer, props []GameProfileProperty) {
	w.VarInt(int32(len(props)))
	for _, pr := range props {
		w.String(pr.Name, DefaultStringLimit).String(pr.Value, DefaultStringLimit)
		w.Bool(pr.Signature != nil)
		if pr.Signature != nil {
			w.String(*pr.Signature, DefaultStringLimit)
		}
	}
}

func decodeProperties(r *Reader) []GameProfileProperty {
	n := r.Count(3)
	if n == 0 {
		return nil
	}
	props := make([]GameProfileProperty, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		pr := GameProfileProperty{
			Name:  r.String(DefaultStringLimit),
			Value: r.String(DefaultStringLimit),
		}
		if r.Bool() {
			sig := r.String(DefaultStringLimit)
			pr.Signature = &sig
		}
		props = append(props, pr)
	}
	return props
}

// LoginSuccessV759 adds profile properties.
type LoginSuccessV759 struct {
	UUID       uuid.UUID
	Username   string
	Properties []GameProfileProperty
}

func (p *LoginSuccessV759) Encode(w *Writer) {
	w.UUID(p.UUID).String(p.Username, maxUsernameLength)
	encodeProperties(w, p.Properties)
}

func (p *LoginSuccessV759) Decode(r *Reader) {
	p.UUID = r.UUID()
	p.Username = r.String(maxUsernameLength)
	p.Properties = decodeProperties(r)
}

// LoginSuccessV766 adds the strict error handling flag, removed again in 1.21.2.
type LoginSuccessV766 struct {
	UUID                uuid.UUID
	Username            string
	Properties          []GameProfileProperty
	StrictErrorHandling bool
}

func (p *LoginSuccessV766) Encode(w *Writer) {
	w.UUID(p.UUID).String(p.Username, maxUsernameLength)
	encodeProperties(w, p.Properties)
	w.Bool(p.StrictErrorHandling)
}

func (p *LoginSuccessV766) Decode(r *Reader) {
	p.UUID = r.UUID()
	p.Username = r.String(maxUsernameLength)
	p.Properties = decodeProperties(r)
	p.StrictErrorHandling = r.Bool()
}

// SetCompression enables compression for every frame after this one.
type SetCompression struct {
	Threshold int32
}

func (p *SetCompression) Encode(w *Writer) { w.VarInt(p.Threshold) }
func (p *SetCompression) Decode(r *Reader) { p.Threshold = r.VarInt() }

// LoginPluginRequest is a custom query during login.
type LoginPluginRequest struct {
	MessageID int32
	Channel   string
	Data      []byte
}

func (p *LoginPluginRequest) Encode(w *Writer) {
	w.VarInt(p.MessageID).String(p.Channel, DefaultStringLimit).Raw(p.Data)
}

func (p *LoginPluginRequest) Decode(r *Reader) {
	p.MessageID = r.VarInt()
	p.Channel = r.String(DefaultStringLimit)
	p.Data = r.Rest()
}
