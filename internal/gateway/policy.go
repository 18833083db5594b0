// ABOUTME: Permission evaluation deciding allow/deny for (identity, table, op)
// ABOUTME: Order: admin override, then explicit grant, then table guest policy

package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/tablekv/tablekv/internal/auth"
	"github.com/tablekv/tablekv/internal/store"
)

// Op is a KV operation class for permission purposes.
type Op string

const (
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// TableGetter provides access to table registrations.
type TableGetter interface {
	GetTable(ctx context.Context, name string) (*store.Table, error)
}

// PermissionGetter provides access to explicit grants.
type PermissionGetter interface {
	GetPermission(ctx context.Context, userID int64, table string) (*store.Permission, error)
}

// Policy evaluates whether an identity may perform an operation on a table.
type Policy struct {
	perms  PermissionGetter
	tables TableGetter
}

// NewPolicy creates a Policy with the given permission and table stores.
func NewPolicy(perms PermissionGetter, tables TableGetter) *Policy {
	return &Policy{
		perms:  perms,
		tables: tables,
	}
}

// Can decides, deterministically, whether ident (nil for guests) may perform
// op on table. Evaluation order, first match wins:
//
//  1. Admin users are allowed everything, unconditionally.
//  2. An authenticated user with an explicit grant for the table gets that
//     grant's flag for op. An explicit false denies even when the table's
//     guest flag is true.
//  3. Guests, and authenticated users with no explicit grant, get the
//     table's guest flag for op.
//  4. An unregistered table denies.
//
// Note the asymmetry in rule 2/3: an authenticated user with no grant row
// falls through to guest policy, while one holding a row with the flag off
// is denied outright. Intentional; matches the grant model's semantics of
// "absence of a row means no explicit decision".
func (p *Policy) Can(ctx context.Context, ident *auth.Identity, table string, op Op) (bool, error) {
	if ident != nil && ident.IsAdmin {
		return true, nil
	}

	if ident != nil {
		perm, err := p.perms.GetPermission(ctx, ident.UserID, table)
		if err == nil {
			return permFlag(perm, op), nil
		}
		if !errors.Is(err, store.ErrPermissionNotFound) {
			return false, fmt.Errorf("looking up grant: %w", err)
		}
	}

	tbl, err := p.tables.GetTable(ctx, table)
	if errors.Is(err, store.ErrTableNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up table: %w", err)
	}

	switch op {
	case OpRead:
		return tbl.AllowGuestRead, nil
	case OpWrite:
		return tbl.AllowGuestWrite, nil
	default:
		return false, nil
	}
}

func permFlag(perm *store.Permission, op Op) bool {
	switch op {
	case OpRead:
		return perm.CanRead
	case OpWrite:
		return perm.CanWrite
	default:
		return false
	}
}
