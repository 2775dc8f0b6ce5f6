package auth

import "errors"

// Role is the caller's access level.
type Role string

// Role constants.
const (
	// RoleUser is any authenticated account: owners and lessees alike.
	// Ownership checks happen in the ledger, not here.
	RoleUser Role = "user"

	// RoleOperator is the platform operator, allowed to administer the
	// treasury and override device status.
	RoleOperator Role = "operator"
)

// Valid reports whether the role is a known value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleOperator
}

// ErrTokenInvalid is returned for tokens that fail signature, expiry, or
// claim validation.
var ErrTokenInvalid = errors.New("auth: invalid token")
