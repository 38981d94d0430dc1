package network

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// readLoop decodes frames until the stream ends. Unknown and malformed
// packets are skipped; framing and I/O errors end the loop.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		frame, err := c.reader.ReadFrame(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || c.closing() {
				return nil
			}
			return fmt.Errorf("failed to read frame in %s state: %w", c.readState.Load(), err)
		}
		c.touch()

		state := c.readState.Load()
		p, id, err := c.engine.Codec.DecodePayload(state, protocol.ServerBound, c.Version(), frame)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownPacket) {
				c.engine.Metrics.UnknownPacket(state)
				c.logger.Debug().
					Str("state", state.String()).
					Int32("id", id).
					Int("size", len(frame)).
					Msg("skipping unknown packet")
				continue
			}
			c.logger.Warn().Err(err).Str("state", state.String()).Msg("skipping malformed packet")
			continue
		}
		c.engine.Metrics.PacketReceived(state, protocol.PacketName(p), len(frame))
		c.handleInbound(ctx, state, p)
	}
}

// handleInbound runs one decoded packet through the concrete event, the
// dispatcher and the abstract event. The state transition it triggers
// happens even when a callback drops it, since the client has moved on.
func (c *Conn) handleInbound(ctx context.Context, state protocol.State, p protocol.Packet) {
	defer c.readTransition(p)

	concrete := c.packetPayload(state, protocol.ServerBound)
	concrete.Concrete = p
	if c.fire(ctx, events.EventConcreteInbound, concrete) == events.Break || concrete.Concrete == nil {
		return
	}

	out, err := c.dispatcher.Dispatch(concrete.Concrete)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("state", state.String()).
			Str("packet", protocol.PacketName(concrete.Concrete)).
			Msg("skipping packet that failed abstract construction")
		return
	}
	if out.Pending() {
		return
	}

	next := c.packetPayload(state, protocol.ServerBound)
	if out.Packet != nil {
		next.Abstract = out.Packet
	} else {
		next.Concrete = out.Unclaimed
	}
	c.fire(ctx, events.EventAbstractInbound, next)
}

func (c *Conn) readTransition(p protocol.Packet) {
	var to protocol.State
	switch p.(type) {
	case *protocol.LoginAcknowledged:
		to = protocol.StateConfiguration
	case *protocol.ConfFinishC2S:
		to = protocol.StatePlay
	default:
		return
	}
	c.advance(&c.readState, "read", to)
	c.resetDispatcher(to)
}

// resetDispatcher drops constructors left unfinished by the previous state.
// Their packets can no longer complete.
func (c *Conn) resetDispatcher(to protocol.State) {
	if n := c.dispatcher.Active(); n > 0 {
		c.logger.Warn().
			Int("constructors", n).
			Str("state", to.String()).
			Msg("dropping unfinished abstract packets on state change")
		c.dispatcher.Reset()
	}
}

func (c *Conn) advance(cell *stateCell, half string, to protocol.State) {
	from := cell.Load()
	if cell.advance(to) {
		c.logger.Debug().
			Str("half", half).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("state advanced")
	}
}

// writeLoop writes queued packets in order until the queue is closed.
func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		item, ok := c.queue.pop()
		if !ok {
			return nil
		}
		var err error
		switch {
		case item.abstract != nil:
			err = c.writeAbstract(ctx, item.abstract)
		case item.concrete != nil:
			err = c.writeConcrete(ctx, item.concrete)
		}
		if err != nil {
			return err
		}
		if item.kick != nil {
			return fmt.Errorf("%w: %s", ErrKicked, *item.kick)
		}
	}
}

func (c *Conn) writeAbstract(ctx context.Context, p abstract.Packet) error {
	state := c.writeState.Load()
	payload := c.packetPayload(state, protocol.ClientBound)
	payload.Abstract = p
	if c.fire(ctx, events.EventAbstractOutbound, payload) == events.Break || payload.Abstract == nil {
		return nil
	}
	p = payload.Abstract

	res, err := p.Convert(c.Version(), state)
	if err != nil {
		c.logger.Warn().Err(err).Str("packet", p.Name()).Str("state", state.String()).Msg("dropping packet that failed to convert")
		return nil
	}
	if !res.Supported {
		c.logger.Debug().Str("packet", p.Name()).Str("state", state.String()).Msg("packet not supported by this version, dropped")
		return nil
	}
	for _, cp := range res.Packets {
		if err := c.writeConcrete(ctx, cp); err != nil {
			return err
		}
	}

	sent := c.packetPayload(state, protocol.ClientBound)
	sent.Abstract = p
	c.fire(ctx, events.EventAbstractSent, sent)
	return nil
}

func (c *Conn) writeConcrete(ctx context.Context, p protocol.Packet) error {
	state := c.writeState.Load()
	payload := c.packetPayload(state, protocol.ClientBound)
	payload.Concrete = p
	if c.fire(ctx, events.EventConcreteOutbound, payload) == events.Break || payload.Concrete == nil {
		return nil
	}
	p = payload.Concrete

	data, err := c.encode(state, p)
	if err != nil {
		return err
	}
	c.beforeWrite(p)
	if err := c.writer.WriteFrame(c.conn, data); err != nil {
		if c.closing() {
			return nil
		}
		return fmt.Errorf("failed to send %s: %w", protocol.PacketName(p), err)
	}
	c.touch()
	c.engine.Metrics.PacketSent(state, protocol.PacketName(p), len(data))

	sent := c.packetPayload(state, protocol.ClientBound)
	sent.Concrete = p
	c.fire(ctx, events.EventConcreteSent, sent)
	c.writeTransition(ctx, p)
	return nil
}

// encode turns the registry's misuse panic into an error: a packet queued
// for the wrong state is a bug in the caller, not in the stream.
func (c *Conn) encode(state protocol.State, p protocol.Packet) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			misuse, ok := r.(*protocol.MisuseError)
			if !ok {
				panic(r)
			}
			c.logger.Error().Err(misuse).Msg("packet sent in the wrong state")
			err = fmt.Errorf("failed to encode %s: %w", misuse.Name, misuse)
		}
	}()
	data, err = c.engine.Codec.EncodePayload(state, protocol.ClientBound, c.Version(), p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", protocol.PacketName(p), err)
	}
	return data, nil
}

func loginSuccessOf(p protocol.Packet) (uuid.UUID, string, bool) {
	switch s := p.(type) {
	case *protocol.LoginSuccessV5:
		return s.UUID, s.Username, true
	case *protocol.LoginSuccessV735:
		return s.UUID, s.Username, true
	case *protocol.LoginSuccessV759:
		return s.UUID, s.Username, true
	case *protocol.LoginSuccessV766:
		return s.UUID, s.Username, true
	}
	return uuid.Nil, "", false
}

// beforeWrite moves the read half to play before a pre-1.20.2 login success
// reaches the client, so its first play packet is decoded in the right
// state.
func (c *Conn) beforeWrite(p protocol.Packet) {
	if _, _, ok := loginSuccessOf(p); ok && c.Version() < protocol.V1_20_2 {
		c.advance(&c.readState, "read", protocol.StatePlay)
	}
}

func (c *Conn) writeTransition(ctx context.Context, p protocol.Packet) {
	if id, name, ok := loginSuccessOf(p); ok {
		if c.Version() >= protocol.V1_20_2 {
			c.advance(&c.writeState, "write", protocol.StateConfiguration)
		} else {
			c.advance(&c.writeState, "write", protocol.StatePlay)
		}
		c.logger.Info().Str("username", name).Str("uuid", id.String()).Msg("player logged in")
		c.publish(ctx, events.EventLogin, &events.LoginPayload{
			ConnID:   c.id,
			Remote:   c.remote,
			Version:  c.ClientVersion(),
			Username: name,
			UUID:     id,
		})
		return
	}
	if _, ok := p.(*protocol.ConfFinishS2C); ok {
		c.advance(&c.writeState, "write", protocol.StatePlay)
	}
}
