package model

// Role is the access level granted to a user account.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User is an account known to the task service. Immutable for the
// lifetime of a client session; re-fetched only on session change.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// CapabilitySet enumerates the actions a session may perform. It is
// derived from the user's role and never persisted.
type CapabilitySet struct {
	CanCreateTasks bool
	CanUpdateTasks bool
	CanDeleteTasks bool
	CanAssignTasks bool
	CanComment     bool
	CanMoveStatus  bool
}
