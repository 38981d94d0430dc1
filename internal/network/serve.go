package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/c2s"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/protocol"
	"github.com/energizer-project/craftflow/internal/transport"
)

// Serve runs the connection until either side closes it or ctx is
// cancelled. It answers legacy pings, reads the handshake, registers the
// connection and then runs the read and write tasks.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.shutdown(nil)

	go func() {
		select {
		case <-ctx.Done():
			c.shutdown(ctx.Err())
		case <-c.done:
		}
	}()

	// legacy detection and the handshake share one deadline
	deadline := time.Now().Add(c.engine.Settings.HandshakeTimeout)

	answered, err := c.answerLegacyPing(ctx, deadline)
	if err != nil || answered {
		if err != nil {
			c.logger.Debug().Err(err).Msg("connection ended before handshake")
		}
		return err
	}

	sp, hs, err := c.readHandshake(deadline)
	if err != nil {
		c.logger.Debug().Err(err).Msg("handshake failed")
		return err
	}
	if err := c.negotiate(ctx, hs); err != nil {
		return err
	}

	c.engine.Registry.Register(c)
	defer c.engine.Registry.Unregister(c.id)
	c.engine.Metrics.ConnectionOpened()
	defer c.engine.Metrics.ConnectionClosed()

	opened := c.connectionPayload("")
	if c.fire(ctx, events.EventNewConnection, opened) == events.Break {
		c.logger.Info().Msg("connection rejected")
		c.shutdown(ErrRejected)
		c.fireDisconnect(ctx)
		return ErrRejected
	}
	c.publish(ctx, events.EventNewConnection, opened)

	c.logger.Info().
		Int32("version", int32(c.ClientVersion())).
		Str("intent", hs.Intent.String()).
		Msg("connection established")

	c.emitHandshake(ctx, sp, hs)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.shutdown(c.readLoop(ctx))
	}()
	go func() {
		defer wg.Done()
		c.shutdown(c.writeLoop(ctx))
	}()
	wg.Wait()

	c.fireDisconnect(ctx)
	return c.Err()
}

// answerLegacyPing reports whether the connection was a pre-1.7 server list
// ping that has been dealt with.
func (c *Conn) answerLegacyPing(ctx context.Context, deadline time.Time) (bool, error) {
	format, err := transport.DetectLegacyPing(c.conn, c.reader, deadline)
	if err != nil {
		return false, fmt.Errorf("failed to read first bytes: %w", err)
	}
	if format == transport.LegacyNone {
		return false, nil
	}

	payload := &events.LegacyPingPayload{ConnID: c.id, Remote: c.remote, Format: format}
	flow := c.fire(ctx, events.EventLegacyPing, payload)
	c.publish(ctx, events.EventLegacyPing, payload)

	switch {
	case payload.Response != nil:
		if err := transport.WriteLegacyResponse(c.conn, format, *payload.Response); err != nil {
			return true, fmt.Errorf("failed to answer legacy ping: %w", err)
		}
		c.logger.Debug().Str("format", format.String()).Msg("answered legacy ping")
		c.linger(ctx, c.engine.Settings.LegacyLinger)
		return true, nil
	case flow == events.Break:
		c.logger.Debug().Str("format", format.String()).Msg("legacy ping dropped")
		return true, nil
	}
	c.logger.Debug().Str("format", format.String()).Msg("legacy ping unanswered, reading modern handshake")
	return false, nil
}

func (c *Conn) linger(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-c.done:
	}
}

// readHandshake reads the first frame before deadline. It is decoded with
// the oldest codec; the handshake layout never changed.
func (c *Conn) readHandshake(deadline time.Time) (*protocol.SetProtocol, *c2s.Handshake, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, fmt.Errorf("failed to set handshake deadline: %w", err)
	}
	frame, err := c.reader.ReadFrame(c.conn)
	_ = c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read handshake: %w", err)
	}
	c.touch()

	p, _, err := c.engine.Codec.DecodePayload(protocol.StateHandshake, protocol.ServerBound, protocol.MinVersion(), frame)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode handshake: %w", err)
	}
	sp, ok := p.(*protocol.SetProtocol)
	if !ok {
		return nil, nil, fmt.Errorf("failed to decode handshake: unexpected %s", protocol.PacketName(p))
	}
	out, err := c.dispatcher.Dispatch(sp)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read handshake: %w", err)
	}
	hs, ok := out.Packet.(*c2s.Handshake)
	if !ok {
		return nil, nil, errors.New("failed to read handshake: not claimed")
	}
	return sp, hs, nil
}

// negotiate fixes the version and moves both halves out of the handshake
// state. A login from an unsupported version is refused here.
func (c *Conn) negotiate(ctx context.Context, hs *c2s.Handshake) error {
	client := hs.ProtocolVersion
	c.clientVersion.Store(int32(client))
	supported := protocol.IsSupported(client)
	codec := client
	if !supported {
		codec = protocol.NearestSupported(client)
	}
	if !c.version.set(codec) {
		return fmt.Errorf("failed to set version %d: already negotiated", codec)
	}

	next := hs.Intent.NextState()
	c.readState.advance(next)
	c.writeState.advance(next)
	c.logger = c.logger.With().Int32("version", int32(client)).Logger()

	c.publish(ctx, events.EventHandshake, &events.HandshakePayload{
		ConnID:  c.id,
		Remote:  c.remote,
		Version: client,
		Address: hs.Address,
		Port:    hs.Port,
		Intent:  int32(hs.Intent),
	})

	if next == protocol.StateLogin && !supported {
		return c.refuseVersion(ctx, client)
	}
	return nil
}

// refuseVersion tells a client with an unsupported version why it cannot
// log in, bypassing the write task, and ends the connection.
func (c *Conn) refuseVersion(ctx context.Context, client protocol.Version) error {
	payload := &events.UnsupportedVersionPayload{
		ConnID:  c.id,
		Remote:  c.remote,
		Version: client,
		Message: c.engine.Settings.UnsupportedMessage,
	}
	c.fire(ctx, events.EventUnsupportedVersion, payload)
	c.publish(ctx, events.EventUnsupportedVersion, payload)

	reason := abstract.PlainText(payload.Message)
	frame, err := c.engine.Codec.EncodePayload(protocol.StateLogin, protocol.ClientBound, c.Version(),
		&protocol.LoginDisconnect{Reason: string(reason)})
	if err == nil {
		err = c.writer.WriteFrame(c.conn, frame)
	}
	if err != nil {
		c.logger.Debug().Err(err).Msg("failed to send unsupported version disconnect")
	}

	c.logger.Info().Msg("refused unsupported version")
	err = fmt.Errorf("%w: %d", ErrUnsupportedVersion, client)
	c.shutdown(err)
	return err
}

// emitHandshake fires the packet events for the handshake, which was read
// before any callback could see it.
func (c *Conn) emitHandshake(ctx context.Context, sp *protocol.SetProtocol, hs *c2s.Handshake) {
	concrete := c.packetPayload(protocol.StateHandshake, protocol.ServerBound)
	concrete.Concrete = sp
	if c.fire(ctx, events.EventConcreteInbound, concrete) == events.Break {
		return
	}
	abs := c.packetPayload(protocol.StateHandshake, protocol.ServerBound)
	abs.Abstract = hs
	c.fire(ctx, events.EventAbstractInbound, abs)
}

func (c *Conn) fireDisconnect(ctx context.Context) {
	reason := ""
	if err := c.Err(); err != nil && !errors.Is(err, io.EOF) {
		reason = err.Error()
	}
	payload := c.connectionPayload(reason)
	c.fire(ctx, events.EventDisconnect, payload)
	c.publish(ctx, events.EventDisconnect, payload)

	ev := c.logger.Info()
	if reason != "" && !errors.Is(c.Err(), ErrKicked) && !errors.Is(c.Err(), context.Canceled) {
		ev = c.logger.Warn().Str("reason", reason)
	}
	ev.Dur("duration", time.Since(c.connectedAt)).Msg("connection closed")
}
