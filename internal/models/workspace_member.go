package models

import "time"

// WorkspaceRole is a member's stored role.
type WorkspaceRole string

const (
	RoleOwner  WorkspaceRole = "OWNER"
	RoleAdmin  WorkspaceRole = "ADMIN"
	RoleMember WorkspaceRole = "MEMBER"
)

// Valid reports whether r is one of the stored membership roles.
func (r WorkspaceRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// WorkspaceMember is keyed by (WorkspaceID, UserID) so a user holds at most
// one membership row per workspace.
type WorkspaceMember struct {
	WorkspaceID string        `gorm:"type:varchar(36);primarykey" json:"workspaceId"`
	UserID      string        `gorm:"type:varchar(36);primarykey" json:"userId"`
	Role        WorkspaceRole `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt    time.Time     `json:"joinedAt"`

	// Relations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
