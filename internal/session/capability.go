package session

import (
	"fmt"

	"github.com/nhle/taskboard/internal/model"
)

// PermissionError indicates a capability check failed client-side.
// The operation is never sent to the network.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("not permitted: %s", e.Action)
}

// CapabilityTable maps each role to its capability set. The table is an
// explicit configuration, not inferred from role names, so product
// changes to role rights are a single-value edit here.
type CapabilityTable map[model.Role]model.CapabilitySet

// DefaultTable grants admins full control; regular users may comment
// and move tasks between status columns but not create, edit, delete,
// or reassign them.
var DefaultTable = CapabilityTable{
	model.RoleAdmin: {
		CanCreateTasks: true,
		CanUpdateTasks: true,
		CanDeleteTasks: true,
		CanAssignTasks: true,
		CanComment:     true,
		CanMoveStatus:  true,
	},
	model.RoleUser: {
		CanComment:    true,
		CanMoveStatus: true,
	},
}

// Resolve derives the capability set for a role. Pure: same role, same
// result. Unknown or missing roles map to the least-privileged (zero)
// set.
func (t CapabilityTable) Resolve(role model.Role) model.CapabilitySet {
	caps, ok := t[role]
	if !ok {
		return model.CapabilitySet{}
	}
	return caps
}
