// ABOUTME: Store interfaces and data types for tablekv persistence
// ABOUTME: Defines User, Permission, Table, Session structs and sentinel errors

package store

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrUsernameExists is returned when creating a user with a taken username.
var ErrUsernameExists = errors.New("username already exists")

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExpired is returned when a session exists but has expired.
var ErrSessionExpired = errors.New("session expired")

// ErrPermissionNotFound is returned when no explicit grant exists for a
// (user, table) pair. Callers fall back to the table's guest policy.
var ErrPermissionNotFound = errors.New("permission not found")

// ErrTableNotFound is returned when a KV table was never created.
var ErrTableNotFound = errors.New("table not found")

// ErrTableExists is returned when creating a table whose name is taken.
var ErrTableExists = errors.New("table already exists")

// ErrInvalidIdentifier is returned for malformed or reserved table names.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// User represents an account that can log in and hold grants.
type User struct {
	ID           int64
	Username     string
	PasswordHash string // bcrypt hash
	IsAdmin      bool
	CreatedAt    time.Time
}

// Permission is an explicit per-(user, table) grant. Absence of a row is
// not denial: callers without a row fall through to the table's guest flags.
type Permission struct {
	UserID    int64
	TableName string
	CanRead   bool
	CanWrite  bool
}

// Table describes a registered KV namespace and its guest policy.
type Table struct {
	Name            string
	AllowGuestRead  bool
	AllowGuestWrite bool
	CreatedBy       int64
	CreatedAt       time.Time
}

// Session is a time-bounded proof of authentication. Sessions are never
// mutated; they are created at login and lapse at ExpiresAt.
type Session struct {
	SID       string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IdentityStore persists user accounts.
type IdentityStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context) ([]*User, error)
}

// PermissionStore persists explicit per-table grants.
type PermissionStore interface {
	UpsertPermission(ctx context.Context, perm *Permission) error
	GetPermission(ctx context.Context, userID int64, table string) (*Permission, error)
	DeletePermission(ctx context.Context, userID int64, table string) error
	ListPermissions(ctx context.Context, userID int64) ([]*Permission, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, sid string) (*Session, error)
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// TableStore is the bounded storage backend: table registry plus single-key
// get/put/delete. Keys and values are opaque strings bound as parameters;
// only the validated table identifier ever reaches query text.
type TableStore interface {
	CreateTable(ctx context.Context, tbl *Table) error
	GetTable(ctx context.Context, name string) (*Table, error)
	ListTables(ctx context.Context) ([]*Table, error)

	GetValue(ctx context.Context, table, key string) (value string, exists bool, err error)
	PutValue(ctx context.Context, table, key, value string) error
	DeleteValue(ctx context.Context, table, key string) error
}

// Store combines every persistence concern of the gateway.
type Store interface {
	IdentityStore
	PermissionStore
	SessionStore
	TableStore
	AuditStore

	// Close releases any resources held by the store
	Close() error
}
