package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"gorm.io/gorm"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrWorkspaceNotFound = errors.New("workspace not found")
)

// WorkspaceLookup is the slice of the workspace store the resolver reads.
type WorkspaceLookup interface {
	FindByID(ctx context.Context, id string) (*models.Workspace, error)
	FindMember(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error)
}

// Resolver looks up a user's role in a workspace.
type Resolver struct {
	workspaces WorkspaceLookup
}

// NewResolver creates a Resolver backed by workspaces.
func NewResolver(workspaces WorkspaceLookup) *Resolver {
	return &Resolver{workspaces: workspaces}
}

// ResolveRole returns OWNER for the workspace owner, the membership role for
// members and NONE for everyone else. It never writes to the store.
func (r *Resolver) ResolveRole(ctx context.Context, userID, workspaceID string) (Role, error) {
	workspace, err := r.workspaces.FindByID(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RoleNone, ErrWorkspaceNotFound
		}
		return RoleNone, fmt.Errorf("failed to load workspace: %w", err)
	}
	return r.RoleIn(ctx, userID, workspace)
}

// RoleIn resolves the role against an already loaded workspace.
func (r *Resolver) RoleIn(ctx context.Context, userID string, workspace *models.Workspace) (Role, error) {
	if userID == "" {
		return RoleNone, nil
	}
	if workspace.OwnerID == userID {
		return RoleOwner, nil
	}

	member, err := r.workspaces.FindMember(ctx, workspace.ID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RoleNone, nil
		}
		return RoleNone, fmt.Errorf("failed to load membership: %w", err)
	}
	return FromMember(member.Role), nil
}

// Authorize resolves the role and checks it against the policy table. The
// returned error wraps ErrForbidden when the role is insufficient.
func (r *Resolver) Authorize(ctx context.Context, userID, workspaceID string, action Action) (Role, error) {
	role, err := r.ResolveRole(ctx, userID, workspaceID)
	if err != nil {
		return role, err
	}
	return role, Check(role, action)
}

// Check is Can as an error.
func Check(role Role, action Action) error {
	if !Can(role, action) {
		return fmt.Errorf("%w: role %s cannot %s", ErrForbidden, role, action)
	}
	return nil
}
