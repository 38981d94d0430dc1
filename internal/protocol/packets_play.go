package protocol

import "github.com/energizer-project/craftflow/internal/nbt"

// PlayKeepAliveV5 uses an i32 id.
type PlayKeepAliveV5 struct {
	ID int32
}

func (p *PlayKeepAliveV5) Encode(w *Writer) { w.Int32(p.ID) }
func (p *PlayKeepAliveV5) Decode(r *Reader) { p.ID = r.Int32() }

// PlayKeepAliveV47 uses a VarInt id.
type PlayKeepAliveV47 struct {
	ID int32
}

func (p *PlayKeepAliveV47) Encode(w *Writer) { w.VarInt(p.ID) }
func (p *PlayKeepAliveV47) Decode(r *Reader) { p.ID = r.VarInt() }

// PlayKeepAliveV340 uses an i64 id.
type PlayKeepAliveV340 struct {
	ID int64
}

func (p *PlayKeepAliveV340) Encode(w *Writer) { w.Int64(p.ID) }
func (p *PlayKeepAliveV340) Decode(r *Reader) { p.ID = r.Int64() }

// The client-bound keep alive has the same layouts as the server-bound one
// but is a separate shape with its own ids.
type (
	PlayKeepAliveS2CV5   struct{ PlayKeepAliveV5 }
	PlayKeepAliveS2CV47  struct{ PlayKeepAliveV47 }
	PlayKeepAliveS2CV340 struct{ PlayKeepAliveV340 }
)

// PlayDisconnectV5 carries a JSON text reason.
type PlayDisconnectV5 struct {
	Reason string
}

func (p *PlayDisconnectV5) Encode(w *Writer) { w.String(p.Reason, maxTextLength) }
func (p *PlayDisconnectV5) Decode(r *Reader) { p.Reason = r.String(maxTextLength) }

// PlayDisconnectV765 carries an NBT text reason.
type PlayDisconnectV765 struct {
	Reason nbt.Value
}

func (p *PlayDisconnectV765) Encode(w *Writer) { w.NBT(p.Reason) }
func (p *PlayDisconnectV765) Decode(r *Reader) { p.Reason = r.NBT() }
