package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// Session is one row of the ledger.
type Session struct {
	ID             string           `json:"id"`
	ConnID         uint64           `json:"conn_id"`
	Remote         string           `json:"remote"`
	Version        protocol.Version `json:"version"`
	Intent         int32            `json:"intent"`
	Username       string           `json:"username,omitempty"`
	PlayerUUID     string           `json:"player_uuid,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	LoggedInAt     *time.Time       `json:"logged_in_at,omitempty"`
	DisconnectedAt *time.Time       `json:"disconnected_at,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// SessionStore records connection sessions. Bus handlers run concurrently,
// so the three record calls for a connection may land in any order: each
// one upserts the row keyed by SessionID.
type SessionStore struct {
	db *ledgerDB

	// boot scopes connection ids, which restart with the process.
	boot uuid.UUID
}

// NewSessionStore opens the database at dbPath and migrates it.
func NewSessionStore(dbPath string) (*SessionStore, error) {
	database, err := openLedgerDB(dbPath)
	if err != nil {
		return nil, err
	}
	s := &SessionStore{db: database, boot: uuid.New()}
	if err := s.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}
	return s, nil
}

// Migrate creates the schema.
func (s *SessionStore) Migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			conn_id INTEGER NOT NULL,
			remote TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0,
			intent INTEGER NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			player_uuid TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			logged_in_at INTEGER,
			disconnected_at INTEGER,
			reason TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username);
	`
	if _, err := s.db.upsert(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	log.Debug().Msg("session schema migrated")
	return nil
}

// Close closes the database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Ping checks the underlying database.
func (s *SessionStore) Ping() error {
	return s.db.Ping()
}

// SessionID returns the row id of connection connID in this process.
func (s *SessionStore) SessionID(connID uint64) string {
	return uuid.NewSHA1(s.boot, []byte(strconv.FormatUint(connID, 10))).String()
}

// RecordHandshake stores the handshake of connID.
func (s *SessionStore) RecordHandshake(connID uint64, remote string, version protocol.Version, intent int32) error {
	_, err := s.db.upsert(`
		INSERT INTO sessions (id, conn_id, remote, version, intent, started_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remote = excluded.remote,
			version = excluded.version,
			intent = excluded.intent,
			started_at = MIN(started_at, excluded.started_at)`,
		s.SessionID(connID), connID, remote, int32(version), intent, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record handshake of connection %d: %w", connID, err)
	}
	return nil
}

// RecordLogin stores the player identity of connID.
func (s *SessionStore) RecordLogin(connID uint64, username string, player uuid.UUID) error {
	now := time.Now().UnixMilli()
	_, err := s.db.upsert(`
		INSERT INTO sessions (id, conn_id, username, player_uuid, started_at, logged_in_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			player_uuid = excluded.player_uuid,
			logged_in_at = excluded.logged_in_at`,
		s.SessionID(connID), connID, username, player.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record login of connection %d: %w", connID, err)
	}
	return nil
}

// RecordDisconnect closes the session of connID.
func (s *SessionStore) RecordDisconnect(connID uint64, reason string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.upsert(`
		INSERT INTO sessions (id, conn_id, started_at, disconnected_at, reason) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			disconnected_at = excluded.disconnected_at,
			reason = excluded.reason`,
		s.SessionID(connID), connID, now, now, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record disconnect of connection %d: %w", connID, err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (s *SessionStore) Recent(limit int) ([]Session, error) {
	return s.db.sessions("ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
}

// ForConnection returns the session of connID in this process.
func (s *SessionStore) ForConnection(connID uint64) (Session, bool, error) {
	return s.db.session("WHERE id = ?", s.SessionID(connID))
}

// Prune deletes closed sessions that started more than olderThan ago and
// returns how many were removed.
func (s *SessionStore) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	removed, err := s.db.upsert(`DELETE FROM sessions WHERE started_at < ? AND disconnected_at IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return removed, nil
}

// Subscribe records lifecycle events from the bus.
func (s *SessionStore) Subscribe(bus *events.EventBus) {
	bus.Subscribe(events.EventHandshake, "db.handshake", func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(*events.HandshakePayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Payload)
		}
		return s.RecordHandshake(p.ConnID, p.Remote, p.Version, p.Intent)
	})
	bus.Subscribe(events.EventLogin, "db.login", func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(*events.LoginPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Payload)
		}
		return s.RecordLogin(p.ConnID, p.Username, p.UUID)
	})
	bus.Subscribe(events.EventDisconnect, "db.disconnect", func(ctx context.Context, e events.Event) error {
		p, ok := e.Payload.(*events.ConnectionPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T", e.Payload)
		}
		return s.RecordDisconnect(p.ConnID, p.Reason)
	})
}
