// ABOUTME: Audit log of administrative and table-creation actions
// ABOUTME: Entries are immutable; detail is an optional JSON blob

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies what an audit entry records.
type AuditAction string

const (
	AuditCreateUser  AuditAction = "create_user"
	AuditDeleteUser  AuditAction = "delete_user"
	AuditSetAdmin    AuditAction = "set_admin"
	AuditGrant       AuditAction = "grant"
	AuditRevoke      AuditAction = "revoke"
	AuditCreateTable AuditAction = "create_table"
)

// AuditEntry records a single administrative action.
type AuditEntry struct {
	ID         string
	Actor      string // username of the acting user, or "cli"
	Action     AuditAction
	Target     string // username or table name acted on
	Timestamp  time.Time
	DetailJSON string
}

// AuditStore persists the audit log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error)
}

// AppendAudit records an audit entry. A zero ID or timestamp is filled in.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry *AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO audit_log (audit_id, actor, action, target, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Actor,
		string(entry.Action),
		entry.Target,
		entry.Timestamp.UTC().Format(time.RFC3339),
		nullString(entry.DetailJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit entry", "action", entry.Action, "target", entry.Target)
	return nil
}

// ListAudit returns the most recent audit entries, newest first.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT audit_id, actor, action, target, ts, detail_json
		FROM audit_log
		ORDER BY ts DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*AuditEntry
	for rows.Next() {
		var entry AuditEntry
		var action, tsStr string
		var detail *string

		if err := rows.Scan(&entry.ID, &entry.Actor, &action, &entry.Target, &tsStr, &detail); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.Action = AuditAction(action)
		entry.Timestamp, err = time.Parse(time.RFC3339, tsStr)
		if err != nil {
			return nil, fmt.Errorf("parsing ts: %w", err)
		}
		if detail != nil {
			entry.DetailJSON = *detail
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
