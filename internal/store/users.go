// ABOUTME: User account types and store methods for the identity store
// ABOUTME: Usernames are unique; the admin flag is mutated only via SetAdmin

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser creates a new user. The user's ID field is populated on success.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, password_hash, is_admin, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Username,
		user.PasswordHash,
		boolToInt(user.IsAdmin),
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUsernameExists
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user id: %w", err)
	}
	user.ID = id

	s.logger.Info("created user", "id", user.ID, "username", user.Username)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var isAdmin int
	var createdAtStr string

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &isAdmin, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	user.IsAdmin = isAdmin != 0
	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// SetAdmin sets or clears a user's admin flag.
func (s *SQLiteStore) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, boolToInt(isAdmin), id)
	if err != nil {
		return fmt.Errorf("updating admin flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("updated admin flag", "id", id, "is_admin", isAdmin)
	return nil
}

// DeleteUser removes a user. Sessions and grants cascade via foreign keys.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("deleted user", "id", id)
	return nil
}

// ListUsers returns all users ordered by creation time.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, created_at
		FROM users
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		var user User
		var isAdmin int
		var createdAtStr string

		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &isAdmin, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}

		user.IsAdmin = isAdmin != 0
		user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	return users, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
