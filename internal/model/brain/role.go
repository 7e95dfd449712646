package brain

import "github.com/google/uuid"

// Role grants a user rights on a brain. Ordering matters: Owner > Editor > Viewer.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleOwner  Role = "Owner"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// AtLeast reports whether the role meets the required minimum.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// BrainUser binds a user to a brain with a set of rights.
type BrainUser struct {
	UserID    uuid.UUID `json:"user_id"`
	BrainID   uuid.UUID `json:"brain_id"`
	Rights    Role      `json:"rights"`
	IsDefault bool      `json:"default_brain"`
}
