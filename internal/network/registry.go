package network

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// ConnInfo is a point-in-time view of a connection for the API and CLI.
type ConnInfo struct {
	ID            uint64           `json:"id"`
	Remote        string           `json:"remote"`
	Version       protocol.Version `json:"version"`
	ClientVersion protocol.Version `json:"client_version"`
	ReadState     protocol.State   `json:"read_state"`
	WriteState    protocol.State   `json:"write_state"`
	Compressed    bool             `json:"compressed"`
	Encrypted     bool             `json:"encrypted"`
	ConnectedAt   time.Time        `json:"connected_at"`
	LastActivity  time.Time        `json:"last_activity"`
}

// ConnectionRegistry tracks live connections by id.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[uint64]*Conn
}

// NewConnectionRegistry creates a new ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[uint64]*Conn),
	}
}

// Register adds a connection to the registry.
func (r *ConnectionRegistry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID()] = c
	log.Debug().Uint64("conn_id", c.ID()).Msg("connection registered")
}

// Unregister removes a connection from the registry. It does not close it.
func (r *ConnectionRegistry) Unregister(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		log.Debug().Uint64("conn_id", id).Msg("connection unregistered")
	}
}

// Get returns the connection with the given id.
func (r *ConnectionRegistry) Get(id uint64) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// GetAll returns every registered connection, ordered by id.
func (r *ConnectionRegistry) GetAll() []*Conn {
	r.mu.RLock()
	all := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		all = append(all, c)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })
	return all
}

// Count returns the number of registered connections.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountInState returns the number of connections whose write half is in
// the given state.
func (r *ConnectionRegistry) CountInState(state protocol.State) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.conns {
		if c.State() == state {
			n++
		}
	}
	return n
}

// Snapshot returns a view of every connection, ordered by id.
func (r *ConnectionRegistry) Snapshot() []ConnInfo {
	all := r.GetAll()
	out := make([]ConnInfo, 0, len(all))
	for _, c := range all {
		out = append(out, c.Info())
	}
	return out
}

// SendToAll queues a packet on every connection in the given state and
// returns how many accepted it.
func (r *ConnectionRegistry) SendToAll(state protocol.State, p abstract.Packet) int {
	sent := 0
	for _, c := range r.GetAll() {
		if c.State() != state {
			continue
		}
		if err := c.Send(p); err == nil {
			sent++
		}
	}
	return sent
}

// CloseAll closes every registered connection.
func (r *ConnectionRegistry) CloseAll() {
	for _, c := range r.GetAll() {
		_ = c.Close()
	}
	log.Info().Msg("all connections closed")
}
