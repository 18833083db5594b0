// ABOUTME: Explicit per-(user, table) grant persistence
// ABOUTME: Upsert/delete are idempotent; lookup misses are ErrPermissionNotFound

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertPermission creates or replaces the explicit grant for a (user, table)
// pair. Idempotent: upserting identical flags succeeds silently.
func (s *SQLiteStore) UpsertPermission(ctx context.Context, perm *Permission) error {
	query := `
		INSERT OR REPLACE INTO permissions (user_id, table_name, can_read, can_write)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		perm.UserID,
		perm.TableName,
		boolToInt(perm.CanRead),
		boolToInt(perm.CanWrite),
	)
	if err != nil {
		return fmt.Errorf("upserting permission: %w", err)
	}

	s.logger.Debug("upserted permission",
		"user_id", perm.UserID,
		"table", perm.TableName,
		"read", perm.CanRead,
		"write", perm.CanWrite,
	)
	return nil
}

// GetPermission retrieves the explicit grant for a (user, table) pair.
// Returns ErrPermissionNotFound when no row exists; callers then fall back
// to the table's guest policy.
func (s *SQLiteStore) GetPermission(ctx context.Context, userID int64, table string) (*Permission, error) {
	query := `
		SELECT user_id, table_name, can_read, can_write
		FROM permissions
		WHERE user_id = ? AND table_name = ?
	`

	var perm Permission
	var canRead, canWrite int

	err := s.db.QueryRowContext(ctx, query, userID, table).Scan(
		&perm.UserID,
		&perm.TableName,
		&canRead,
		&canWrite,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying permission: %w", err)
	}

	perm.CanRead = canRead != 0
	perm.CanWrite = canWrite != 0
	return &perm, nil
}

// DeletePermission removes the explicit grant for a (user, table) pair.
// Idempotent: deleting a missing grant succeeds silently.
func (s *SQLiteStore) DeletePermission(ctx context.Context, userID int64, table string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM permissions WHERE user_id = ? AND table_name = ?`,
		userID, table,
	)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}

	s.logger.Debug("deleted permission", "user_id", userID, "table", table)
	return nil
}

// ListPermissions returns all explicit grants held by a user.
func (s *SQLiteStore) ListPermissions(ctx context.Context, userID int64) ([]*Permission, error) {
	query := `
		SELECT user_id, table_name, can_read, can_write
		FROM permissions
		WHERE user_id = ?
		ORDER BY table_name
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var perms []*Permission
	for rows.Next() {
		var perm Permission
		var canRead, canWrite int

		if err := rows.Scan(&perm.UserID, &perm.TableName, &canRead, &canWrite); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perm.CanRead = canRead != 0
		perm.CanWrite = canWrite != 0
		perms = append(perms, &perm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	return perms, nil
}
