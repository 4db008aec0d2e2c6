package httpapi

import (
	"strings"

	"github.com/shopfront/accounts/internal/app/domain/user"
)

// Permission codes guarding the account administration endpoints.
const (
	PermAddUser    = "users.add_user"
	PermViewUser   = "users.view_user"
	PermChangeUser = "users.change_user"
	PermDeleteUser = "users.delete_user"
)

// staffPerms are granted to staff accounts. Deleting accounts stays with
// superusers and the allowlist.
var staffPerms = map[string]bool{
	PermAddUser:    true,
	PermViewUser:   true,
	PermChangeUser: true,
}

// Roles maps accounts to permission codes. Superusers hold every permission;
// staff hold the administration set minus delete; an operator-supplied
// allowlist can grant full access to named accounts.
type Roles struct {
	admins map[string]bool
}

// NewRoles builds the role table. allowlist is a comma-separated list of
// usernames granted every permission regardless of their flags.
func NewRoles(allowlist string) *Roles {
	admins := make(map[string]bool)
	for _, name := range strings.Split(allowlist, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			admins[trimmed] = true
		}
	}
	return &Roles{admins: admins}
}

// Has reports whether the account holds the permission.
func (r *Roles) Has(u user.User, perm string) bool {
	if u.IsSuperuser || r.admins[u.Username] {
		return true
	}
	if u.IsStaff {
		return staffPerms[perm]
	}
	return false
}
