// ABOUTME: Table registry and bounded KV backend over per-table SQLite tables
// ABOUTME: Table names are validated identifiers; keys and values are bound parameters

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateTable registers a KV table, provisions its backing storage, grants
// the creator read+write, and records the audit entry in a single
// transaction: creation either fully applies or not at all. Returns
// ErrInvalidIdentifier for a malformed name and ErrTableExists if the name is
// taken, including any case variant of a registered name. Concurrent
// creators of the same name race on the registry uniqueness; exactly one
// wins.
func (s *SQLiteStore) CreateTable(ctx context.Context, tbl *Table) error {
	if err := ValidateTableName(tbl.Name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO kv_tables (name, allow_guest_read, allow_guest_write, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		tbl.Name,
		boolToInt(tbl.AllowGuestRead),
		boolToInt(tbl.AllowGuestWrite),
		tbl.CreatedBy,
		tbl.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTableExists
		}
		return fmt.Errorf("inserting table registration: %w", err)
	}

	var creator string
	err = tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, tbl.CreatedBy).Scan(&creator)
	if err != nil {
		return fmt.Errorf("looking up creator: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO permissions (user_id, table_name, can_read, can_write)
		VALUES (?, ?, 1, 1)
	`, tbl.CreatedBy, tbl.Name)
	if err != nil {
		return fmt.Errorf("granting creator permission: %w", err)
	}

	// Safe: tbl.Name passed ValidateTableName above. No IF NOT EXISTS: the
	// registry guarantees the physical table is absent, and any residual
	// collision must fail the transaction rather than merge namespaces.
	create := fmt.Sprintf(`CREATE TABLE %s (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`, physicalTableName(tbl.Name))

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("provisioning kv table: %w", err)
	}

	detail := fmt.Sprintf(`{"allow_guest_read":%t,"allow_guest_write":%t}`,
		tbl.AllowGuestRead, tbl.AllowGuestWrite)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, actor, action, target, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		uuid.NewString(),
		creator,
		string(AuditCreateTable),
		tbl.Name,
		time.Now().UTC().Format(time.RFC3339),
		detail,
	)
	if err != nil {
		return fmt.Errorf("recording table creation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing table creation: %w", err)
	}

	s.logger.Info("created kv table",
		"name", tbl.Name,
		"guest_read", tbl.AllowGuestRead,
		"guest_write", tbl.AllowGuestWrite,
	)
	return nil
}

// GetTable retrieves a table's registration and guest policy.
func (s *SQLiteStore) GetTable(ctx context.Context, name string) (*Table, error) {
	query := `
		SELECT name, allow_guest_read, allow_guest_write, created_by, created_at
		FROM kv_tables
		WHERE name = ?
	`

	var tbl Table
	var guestRead, guestWrite int
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&tbl.Name,
		&guestRead,
		&guestWrite,
		&tbl.CreatedBy,
		&createdAtStr,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying table: %w", err)
	}

	tbl.AllowGuestRead = guestRead != 0
	tbl.AllowGuestWrite = guestWrite != 0
	tbl.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &tbl, nil
}

// ListTables returns all registered tables ordered by name.
func (s *SQLiteStore) ListTables(ctx context.Context) ([]*Table, error) {
	query := `
		SELECT name, allow_guest_read, allow_guest_write, created_by, created_at
		FROM kv_tables
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []*Table
	for rows.Next() {
		var tbl Table
		var guestRead, guestWrite int
		var createdAtStr string

		if err := rows.Scan(&tbl.Name, &guestRead, &guestWrite, &tbl.CreatedBy, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		tbl.AllowGuestRead = guestRead != 0
		tbl.AllowGuestWrite = guestWrite != 0
		tbl.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		tables = append(tables, &tbl)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tables: %w", err)
	}

	return tables, nil
}

// requireTable validates the name and confirms the table is registered.
func (s *SQLiteStore) requireTable(ctx context.Context, table string) error {
	if err := ValidateTableName(table); err != nil {
		return err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM kv_tables WHERE name = ?`, table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTableNotFound
	}
	if err != nil {
		return fmt.Errorf("checking table registration: %w", err)
	}
	return nil
}

// GetValue reads a key from a table. An absent key is not an error: it
// returns ("", false, nil) so callers can report an exists flag.
func (s *SQLiteStore) GetValue(ctx context.Context, table, key string) (string, bool, error) {
	if err := s.requireTable(ctx, table); err != nil {
		return "", false, err
	}

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, physicalTableName(table))

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying value: %w", err)
	}

	return value, true, nil
}

// PutValue writes a key, overwriting any prior value (last write wins).
func (s *SQLiteStore) PutValue(ctx context.Context, table, key, value string) error {
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s (key, value) VALUES (?, ?)`, physicalTableName(table))

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing value: %w", err)
	}

	s.logger.Debug("put value", "table", table)
	return nil
}

// DeleteValue removes a key. Idempotent: deleting an absent key succeeds.
func (s *SQLiteStore) DeleteValue(ctx context.Context, table, key string) error {
	if err := s.requireTable(ctx, table); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, physicalTableName(table))

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("deleting value: %w", err)
	}

	s.logger.Debug("deleted value", "table", table)
	return nil
}
