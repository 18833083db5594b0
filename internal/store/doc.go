// Package store provides persistent storage for tablekv using SQLite.
//
// # Architecture
//
// The store package uses an interface-driven architecture with specialized
// interfaces:
//
//   - IdentityStore: user accounts and the admin flag
//   - PermissionStore: explicit per-(user, table) read/write grants
//   - SessionStore: login sessions keyed by opaque random tokens
//   - TableStore: the table registry and bounded key-value operations
//   - AuditStore: immutable log of administrative actions
//
// SQLiteStore implements all interfaces in a single struct, allowing easy
// composition while maintaining clear interface boundaries.
//
// # Data Models
//
//   - User: account with unique username, bcrypt hash, admin flag
//   - Permission: explicit grant; absence of a row is distinct from an
//     explicit false and falls through to the table's guest policy
//   - Table: registered KV namespace with per-table guest read/write flags
//   - Session: time-bounded token proving prior authentication
//   - AuditEntry: record of a user/permission/table mutation
//
// # Identifier safety
//
// Every KV table is backed by a physical SQLite table named kv_<name>.
// Table names pass ValidateTableName before they ever appear in query text;
// keys and values are always bound parameters and never interpolated.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrUserNotFound, ErrUsernameExists
//   - ErrSessionNotFound, ErrSessionExpired
//   - ErrPermissionNotFound
//   - ErrTableNotFound, ErrTableExists, ErrInvalidIdentifier
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewSQLiteStore with a t.TempDir() path for tests against real SQLite.
package store
