// Package models defines the records carried between the DevTrack backend,
// the session layer, and the views.
package models

// Role is the advisory permission level attached to an Identity.
// Authorization itself is enforced by the backend.
type Role string

const (
	// RoleAdmin can manage every resource.
	RoleAdmin Role = "admin"
	// RoleManager can manage projects and their work items.
	RoleManager Role = "manager"
	// RoleDeveloper is the default role for new registrations.
	RoleDeveloper Role = "developer"
	// RoleTester reports and follows bugs.
	RoleTester Role = "tester"
)

// DefaultRole is applied to registrations that do not name a role.
const DefaultRole = RoleDeveloper

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleTester:
		return true
	}
	return false
}

// CanManageProjects reports whether project create/update actions
// should be offered to this role.
func (r Role) CanManageProjects() bool {
	return r == RoleAdmin || r == RoleManager
}

// Identity is the authenticated user as reported by the backend.
type Identity struct {
	// ID is the backend-assigned user id. The live channel is addressed by it.
	ID int64 `json:"id"`
	// Email is the login name.
	Email string `json:"email"`
	// Username is the display name.
	Username string `json:"username"`
	// Role controls which mutating actions the client offers.
	Role Role `json:"role"`
}

// AuthResult is the body returned by the login and register endpoints.
type AuthResult struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type,omitempty"`
	User        Identity `json:"user"`
}

// Registration carries the fields sent to the register endpoint.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     Role   `json:"role"`
}

// Credentials carries the fields sent to the login endpoint.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Identity *Identity
	Token    string
	Loading  bool
	// Epoch increases every time the identity changes.
	Epoch uint64
}

// Authenticated reports whether the snapshot holds an active session.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil && s.Token != ""
}
