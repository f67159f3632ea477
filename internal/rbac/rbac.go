// Package rbac resolves a user's role in a workspace and decides which
// actions that role may perform. REST handlers and the realtime hub share it.
package rbac

import "github.com/yukikurage/kanban-realtime-api/internal/models"

// Role is the effective role of a user in a workspace.
type Role string
// Action is something a role may be allowed to do.
type Action string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleNone   Role = "NONE"
)

const (
	// ActionRead covers viewing a workspace and its boards, columns and
	// tasks, and joining a board room.
	ActionRead Action = "read"
	// ActionManageWorkspace covers update, delete, invite and role changes.
	ActionManageWorkspace Action = "manage_workspace"
	ActionManageBoard     Action = "manage_board"
	ActionManageColumn    Action = "manage_column"
	// ActionWriteTask covers task create, update, move and delete on every path.
	ActionWriteTask Action = "write_task"
)

// Can reports whether role may perform action. Only OWNER may change
// anything; ADMIN and MEMBER are read-only.
func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleAdmin, RoleMember:
		return action == ActionRead
	default:
		return false
	}
}

// FromMember maps a stored membership role onto a Role.
func FromMember(role models.WorkspaceRole) Role {
	switch role {
	case models.RoleOwner:
		return RoleOwner
	case models.RoleAdmin:
		return RoleAdmin
	case models.RoleMember:
		return RoleMember
	default:
		return RoleNone
	}
}
