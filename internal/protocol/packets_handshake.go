package protocol

// Handshake intents carried in SetProtocol.NextState.
const (
	IntentStatus   int32 = 1
	IntentLogin    int32 = 2
	IntentTransfer int32 = 3
)

// SetProtocol is the first packet of every modern connection.
type SetProtocol struct {
	ProtocolVersion int32
	ServerHost      string
	ServerPort      uint16
	NextState       int32
}

func (p *SetProtocol) Encode(w *Writer) {
	w.VarInt(p.ProtocolVersion).
		String(p.ServerHost, 255).
		Uint16(p.ServerPort).
		VarInt(p.NextState)
}

func (p *SetProtocol) Decode(r *Reader) {
	p.ProtocolVersion = r.VarInt()
	p.ServerHost = r.String(255)
	p.ServerPort = r.Uint16()
	p.NextState = r.VarInt()
}

// StatusRequest asks for the server list entry.
type StatusRequest struct{}

func (p *StatusRequest) Encode(*Writer) {}
func (p *StatusRequest) Decode(*Reader) {}

// StatusPing carries an opaque payload the server echoes back.
type StatusPing struct {
	Payload int64
}

func (p *StatusPing) Encode(w *Writer) { w.Int64(p.Payload) }
func (p *StatusPing) Decode(r *Reader) { p.Payload = r.Int64() }

// StatusResponse carries the server list entry as JSON.
type StatusResponse struct {
	JSON string
}

func (p *StatusResponse) Encode(w *Writer) { w.String(p.JSON, DefaultStringLimit) }
func (p *StatusResponse) Decode(r *Reader) { p.JSON = r.String(DefaultStringLimit) }

// StatusPong echoes the ping payload.
type StatusPong struct {
	Payload int64
}

func (p *StatusPong) Encode(w *Writer) { w.Int64(p.Payload) }
func (p *StatusPong) Decode(r *Reader) { p.Payload = r.Int64() }
