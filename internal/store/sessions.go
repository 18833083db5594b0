// ABOUTME: Session persistence for login tokens
// ABOUTME: Expiry is evaluated by the caller; GetSession returns expired rows

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession records a new login session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
	query := `
		INSERT INTO sessions (sid, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.SID,
		session.UserID,
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.ExpiresAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "user_id", session.UserID)
	return nil
}

// GetSession retrieves a session by id. Expired sessions are returned as-is;
// the session manager decides between ErrSessionNotFound and ErrSessionExpired
// so callers can tell the two apart.
func (s *SQLiteStore) GetSession(ctx context.Context, sid string) (*Session, error) {
	query := `
		SELECT sid, user_id, created_at, expires_at
		FROM sessions
		WHERE sid = ?
	`

	var session Session
	var createdAtStr, expiresAtStr string

	err := s.db.QueryRowContext(ctx, query, sid).Scan(
		&session.SID,
		&session.UserID,
		&createdAtStr,
		&expiresAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	return &session, nil
}

// DeleteExpiredSessions removes all lapsed sessions and reports how many.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		s.logger.Debug("deleted expired sessions", "count", rowsAffected)
	}
	return rowsAffected, nil
}
