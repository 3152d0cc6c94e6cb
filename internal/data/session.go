package data

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gerry9000/guacamole-auth-sso-oauth2/internal/auth"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Session is an authenticated login session created from an identity
// assertion. No token material is ever stored here.
type Session struct {
	ID        string
	Username  string
	Groups    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore persists login sessions in SQLite.
type SessionStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewSessionStore opens (creating if needed) the session database.
func NewSessionStore(dbPath string, ttl time.Duration) (*SessionStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			groups_json TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)")

	return &SessionStore{db: db, ttl: ttl}, nil
}

// Create stores a new session for the asserted identity and returns its ID.
func (s *SessionStore) Create(assertion *auth.IdentityAssertion) (*Session, error) {
	groups := assertion.Groups
	if groups == nil {
		groups = []string{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("failed to encode groups: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Username:  assertion.Username,
		Groups:    groups,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	_, err = s.db.Exec(
		"INSERT INTO sessions (id, username, groups_json, created_at, expires_at) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.Username, string(groupsJSON), session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return session, nil
}

// Get returns the session with the given ID. Expired sessions are deleted
// on lookup and reported as not found.
func (s *SessionStore) Get(id string) (*Session, error) {
	var (
		session    Session
		groupsJSON string
	)
	err := s.db.QueryRow(
		"SELECT id, username, groups_json, created_at, expires_at FROM sessions WHERE id = ?", id,
	).Scan(&session.ID, &session.Username, &groupsJSON, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		s.Delete(id)
		return nil, ErrSessionNotFound
	}

	if err := json.Unmarshal([]byte(groupsJSON), &session.Groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	return &session, nil
}

// Delete removes a session, if present.
func (s *SessionStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	return err
}

// PurgeExpired removes all sessions past their expiry.
func (s *SessionStore) PurgeExpired() error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE expires_at < ?", time.Now())
	return err
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
