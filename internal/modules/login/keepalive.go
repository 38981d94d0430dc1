package login

import (
	"time"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/abstract/s2c"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// keepAliveState tracks the keep alive the client still has to echo. It is
// guarded by Module.mu.
type keepAliveState struct {
	nextID      int64
	pending     int64
	outstanding bool
	sentAt      time.Time
}

// keepAliveLoop pings the connection until it closes. A keep alive that is not
// echoed within the timeout disconnects the client. Keep alives are only counted
// once written, so one dropped during a state change is not held against
// the client.
func (m *Module) keepAliveLoop(conn *network.Conn, s *session) {
	ticker := time.NewTicker(m.opts.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		ka := &s.keepAlive
		timedOut := ka.outstanding && time.Since(ka.sentAt) > m.opts.KeepAliveTimeout
		send := !ka.outstanding
		if send {
			ka.nextID++
		}
		id := ka.nextID
		m.mu.Unlock()

		switch {
		case timedOut:
			m.logger.Info().Uint64("conn_id", conn.ID()).Msg("keep alive timed out")
			_ = conn.Disconnect(ReasonKeepAliveTimedOut)
			return
		case send:
			if err := conn.Send(keepAliveFor(conn.State(), id)); err != nil {
				return
			}
		}
	}
}

func keepAliveFor(state protocol.State, id int64) abstract.Packet {
	if state == protocol.StateConfiguration {
		return &s2c.ConfKeepAlive{ID: id}
	}
	return &s2c.PlayKeepAlive{ID: id}
}

func (m *Module) keepAliveSent(connID uint64, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[connID]; ok {
		s.keepAlive.pending = id
		s.keepAlive.outstanding = true
		s.keepAlive.sentAt = time.Now()
	}
}

func (m *Module) ackKeepAlive(conn *network.Conn, id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[conn.ID()]
	if !ok || !s.keepAlive.outstanding {
		return
	}
	// Clients before 1.12.2 echo 32 bits.
	if s.keepAlive.pending == id || int32(s.keepAlive.pending) == int32(id) {
		s.keepAlive.outstanding = false
	}
}
