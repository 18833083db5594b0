// ABOUTME: Table name validation guarding dynamic identifier use in SQL
// ABOUTME: Only names passing ValidateTableName ever reach query text

package store

import (
	"fmt"
	"regexp"
	"strings"
)

// Table name syntax: starts with a letter, alphanumeric + underscores, max 64.
var tableNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,63}$`)

// reservedNames are identifiers that collide with internal tables or SQLite
// system tables. Physical KV tables are prefixed, so these could never clash
// on disk, but rejecting them keeps the namespace unambiguous.
var reservedNames = map[string]struct{}{
	"users":       {},
	"permissions": {},
	"sessions":    {},
	"kv_tables":   {},
	"audit_log":   {},
}

// ValidateTableName checks a user-supplied table name against the allowed
// syntax. Returns ErrInvalidIdentifier for anything that cannot safely be
// used as a SQL identifier.
func ValidateTableName(name string) error {
	if !tableNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	lower := strings.ToLower(name)
	if _, ok := reservedNames[lower]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidIdentifier, name)
	}
	if strings.HasPrefix(lower, "sqlite_") {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidIdentifier, name)
	}
	return nil
}

// physicalTableName maps a validated logical table name to the quoted SQL
// identifier of its backing table. Must only be called after
// ValidateTableName has accepted the name.
func physicalTableName(name string) string {
	return `"kv_` + name + `"`
}
