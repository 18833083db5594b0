// ABOUTME: Session manager issuing and resolving opaque login tokens
// ABOUTME: Tokens are crypto/rand hex with a fixed configurable duration

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablekv/tablekv/internal/store"
)

// DefaultSessionDuration is used when the config does not set one.
const DefaultSessionDuration = 24 * time.Hour

// ErrSessionInvalid is returned by Resolve for tokens that are unknown or
// expired. Use errors.Is against store.ErrSessionExpired to tell the two
// apart where it matters.
var ErrSessionInvalid = errors.New("invalid session")

// SessionManager issues and resolves login sessions.
type SessionManager struct {
	sessions store.SessionStore
	users    store.IdentityStore
	duration time.Duration
	logger   *slog.Logger
}

// NewSessionManager creates a session manager. A non-positive duration
// falls back to DefaultSessionDuration.
func NewSessionManager(sessions store.SessionStore, users store.IdentityStore, duration time.Duration) *SessionManager {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		duration: duration,
		logger:   slog.Default().With("component", "sessions"),
	}
}

// Duration returns the fixed session lifetime.
func (m *SessionManager) Duration() time.Duration {
	return m.duration
}

// Create issues a new session for a user. Multiple concurrent sessions per
// user are permitted. Expired sessions are vacuumed opportunistically.
func (m *SessionManager) Create(ctx context.Context, userID int64) (*store.Session, error) {
	sid, err := generateToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	now := time.Now()
	session := &store.Session{
		SID:       sid,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.duration),
	}

	if err := m.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if _, err := m.sessions.DeleteExpiredSessions(ctx); err != nil {
		m.logger.Warn("failed to vacuum expired sessions", "error", err)
	}

	m.logger.Debug("issued session", "user_id", userID, "expires_at", session.ExpiresAt)
	return session, nil
}

// Resolve maps a session token to an authenticated identity.
// Returns store.ErrSessionNotFound for unknown tokens and
// store.ErrSessionExpired once now reaches the session's expiry; both wrap
// ErrSessionInvalid. The absence of a token is not Resolve's concern: the
// HTTP middleware treats a missing cookie as a guest request.
func (m *SessionManager) Resolve(ctx context.Context, sid string) (*Identity, error) {
	session, err := m.sessions.GetSession(ctx, sid)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, store.ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}

	// Never fail open on clock comparison: at or past expiry is expired.
	if !time.Now().Before(session.ExpiresAt) {
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, store.ErrSessionExpired)
	}

	user, err := m.users.GetUser(ctx, session.UserID)
	if errors.Is(err, store.ErrUserNotFound) {
		// User deleted since login; the session is worthless.
		return nil, fmt.Errorf("%w: %w", ErrSessionInvalid, store.ErrSessionNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	}, nil
}

// generateToken generates a cryptographically secure random token
func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
