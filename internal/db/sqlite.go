// Package db keeps the session ledger: one SQLite row per handshake,
// completed with the login and the disconnect as they happen.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/energizer-project/craftflow/internal/protocol"
)

// sessionColumns is the column list every session query selects, in the
// order scanSession reads them.
const sessionColumns = `id, conn_id, remote, version, intent, username, player_uuid,
	started_at, logged_in_at, disconnected_at, reason`

// ledgerDB is the SQLite handle behind the session store. Writes are
// serialised; the upserts of one connection race on the bus otherwise.
type ledgerDB struct {
	mu sync.Mutex
	db *sql.DB
}

// openLedgerDB opens or creates the ledger database at dbPath.
func openLedgerDB(dbPath string) (*ledgerDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to configure ledger")
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger ping failed: %w", err)
	}
	log.Info().Str("path", dbPath).Msg("session ledger opened")
	return &ledgerDB{db: db}, nil
}

func (d *ledgerDB) Close() error { return d.db.Close() }
func (d *ledgerDB) Ping() error  { return d.db.Ping() }

// upsert runs one write statement and returns the rows it touched.
func (d *ledgerDB) upsert(query string, args ...any) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res, err := d.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess                     Session
		version                  int32
		started                  int64
		loggedIn, disconnectedAt sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.ConnID, &sess.Remote, &version, &sess.Intent,
		&sess.Username, &sess.PlayerUUID, &started, &loggedIn, &disconnectedAt, &sess.Reason); err != nil {
		return Session{}, err
	}
	sess.Version = protocol.Version(version)
	sess.StartedAt = time.UnixMilli(started)
	sess.LoggedInAt = nullTime(loggedIn)
	sess.DisconnectedAt = nullTime(disconnectedAt)
	return sess, nil
}

// sessions runs a SELECT of sessionColumns and scans every row.
func (d *ledgerDB) sessions(where string, args ...any) ([]Session, error) {
	rows, err := d.db.Query("SELECT "+sessionColumns+" FROM sessions "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// session looks up a single row. A missing row is not an error.
func (d *ledgerDB) session(where string, args ...any) (Session, bool, error) {
	sess, err := scanSession(d.db.QueryRow("SELECT "+sessionColumns+" FROM sessions "+where, args...))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Session{}, false, nil
	case err != nil:
		return Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	return sess, true, nil
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
