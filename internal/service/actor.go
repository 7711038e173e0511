package service

import (
	"github.com/google/uuid"
)

// Roles known to the service, lowest privilege first.
const (
	RoleCashier    = "cashier"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// Actor is the injected "current actor context": who is acting, which roles
// they hold, and where they sit. It is derived from the JWT claims on every
// request rather than any ambient global state.
type Actor struct {
	OperatorID uuid.UUID
	Roles      []string
	BranchID   uuid.UUID
	// RegisterID is the cashier's assigned register, when any.
	RegisterID *uuid.UUID
}

// EffectiveRole resolves the governing role using an explicit priority table
// (highest first). Holding several roles is legal; the highest-priority one
// wins. Unknown roles are ignored.
func (a Actor) EffectiveRole(priority []string) string {
	for _, role := range priority {
		for _, held := range a.Roles {
			if held == role {
				return role
			}
		}
	}
	return RoleCashier
}

// BranchScoped reports whether the effective role supervises all registers
// in the branch rather than a single assigned one.
func (a Actor) BranchScoped(priority []string) bool {
	switch a.EffectiveRole(priority) {
	case RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}
