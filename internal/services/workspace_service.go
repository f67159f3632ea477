package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrWorkspaceNotFound       = errors.New("workspace not found")
	ErrWorkspaceSlugTaken      = errors.New("a workspace with this name already exists")
	ErrAlreadyWorkspaceMember  = errors.New("user is already a member")
	ErrWorkspaceMemberNotFound = errors.New("workspace member not found")
	ErrInvalidRole             = errors.New("role must be ADMIN or MEMBER")
)

// WorkspaceService provides business logic for workspaces and membership.
type WorkspaceService struct {
	workspaceRepo repository.WorkspaceRepository
	userRepo      repository.UserRepository
	resolver      *rbac.Resolver
}

// NewWorkspaceService creates a new WorkspaceService
func NewWorkspaceService(workspaceRepo repository.WorkspaceRepository, userRepo repository.UserRepository, resolver *rbac.Resolver) *WorkspaceService {
	return &WorkspaceService{
		workspaceRepo: workspaceRepo,
		userRepo:      userRepo,
		resolver:      resolver,
	}
}

// CreateWorkspaceInput is the data needed to create a workspace
type CreateWorkspaceInput struct {
	OwnerID     string
	Name        string
	Description string
}

// CreateWorkspace creates a workspace owned by the caller. Ownership is held on
// the workspace itself; no membership row is written for the owner.
func (s *WorkspaceService) CreateWorkspace(ctx context.Context, input CreateWorkspaceInput) (*models.Workspace, error) {
	name, err := requireText("workspace name", input.Name, constants.MaxNameLength)
	if err != nil {
		return nil, err
	}
	description, err := limitText("description", input.Description, constants.MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	slug, err := utils.Slugify(name)
	if errors.Is(err, utils.ErrSlugLooksLikeID) {
		return nil, validationError("workspace name must not look like an ID")
	}
	if err != nil {
		return nil, validationError("workspace name must contain letters or digits")
	}

	if _, err := s.workspaceRepo.FindBySlug(ctx, slug); err == nil {
		return nil, ErrWorkspaceSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check workspace slug: %w", err)
	}

	workspace := &models.Workspace{
		Name:        name,
		Slug:        slug,
		Description: description,
		OwnerID:     input.OwnerID,
	}
	if err := s.workspaceRepo.Create(ctx, workspace); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrWorkspaceSlugTaken
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return workspace, nil
}

// ListOwnedWorkspaces returns the workspaces the user owns, newest first.
func (s *WorkspaceService) ListOwnedWorkspaces(ctx context.Context, userID string) ([]models.Workspace, error) {
	workspaces, err := s.workspaceRepo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	return workspaces, nil
}

// ListMemberships returns the workspaces the user was invited into.
func (s *WorkspaceService) ListMemberships(ctx context.Context, userID string) ([]models.WorkspaceMember, error) {
	memberships, err := s.workspaceRepo.ListMembershipsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	return memberships, nil
}

// access loads the workspace by slug and checks the caller may perform action.
// Callers without any role see ErrWorkspaceNotFound for reads.
func (s *WorkspaceService) access(ctx context.Context, userID, slug string, action rbac.Action) (*models.Workspace, rbac.Role, error) {
	workspace, err := s.workspaceRepo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.RoleNone, ErrWorkspaceNotFound
		}
		return nil, rbac.RoleNone, fmt.Errorf("failed to find workspace: %w", err)
	}

	role, err := s.resolver.RoleIn(ctx, userID, workspace)
	if err != nil {
		return nil, rbac.RoleNone, err
	}
	if action == rbac.ActionRead && role == rbac.RoleNone {
		return nil, role, ErrWorkspaceNotFound
	}
	if err := rbac.Check(role, action); err != nil {
		return nil, role, err
	}
	return workspace, role, nil
}

// GetWorkspace returns a workspace visible to the caller with the caller's role.
func (s *WorkspaceService) GetWorkspace(ctx context.Context, userID, slug string) (*models.Workspace, rbac.Role, error) {
	return s.access(ctx, userID, slug, rbac.ActionRead)
}

// RoleIn reports the caller's role in the workspace, including NONE.
func (s *WorkspaceService) RoleIn(ctx context.Context, userID, slug string) (rbac.Role, error) {
	workspace, err := s.workspaceRepo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rbac.RoleNone, ErrWorkspaceNotFound
		}
		return rbac.RoleNone, fmt.Errorf("failed to find workspace: %w", err)
	}
	return s.resolver.RoleIn(ctx, userID, workspace)
}

// UpdateWorkspaceInput holds the fields to change; nil means unchanged
type UpdateWorkspaceInput struct {
	Name        *string
	Description *string
}

// UpdateWorkspace changes the name or description. The slug is kept so
// existing links stay valid.
func (s *WorkspaceService) UpdateWorkspace(ctx context.Context, userID, slug string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	if input.Name == nil && input.Description == nil {
		return nil, ErrNoUpdateData
	}

	workspace, _, err := s.access(ctx, userID, slug, rbac.ActionManageWorkspace)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := requireText("workspace name", *input.Name, constants.MaxNameLength)
		if err != nil {
			return nil, err
		}
		workspace.Name = name
	}
	if input.Description != nil {
		description, err := limitText("description", *input.Description, constants.MaxDescriptionLength)
		if err != nil {
			return nil, err
		}
		workspace.Description = description
	}

	if err := s.workspaceRepo.Update(ctx, workspace); err != nil {
		return nil, fmt.Errorf("failed to update workspace: %w", err)
	}
	return workspace, nil
}

// DeleteWorkspace removes the workspace and everything under it.
func (s *WorkspaceService) DeleteWorkspace(ctx context.Context, userID, slug string) (*models.Workspace, error) {
	workspace, _, err := s.access(ctx, userID, slug, rbac.ActionManageWorkspace)
	if err != nil {
		return nil, err
	}

	if err := s.workspaceRepo.Delete(ctx, workspace.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to delete workspace: %w", err)
	}
	return workspace, nil
}

// memberRole validates a requested membership role. OWNER is not assignable:
// ownership lives on the workspace record.
func memberRole(role string, fallback models.WorkspaceRole) (models.WorkspaceRole, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" {
		return fallback, nil
	}
	switch models.WorkspaceRole(role) {
	case models.RoleAdmin, models.RoleMember:
		return models.WorkspaceRole(role), nil
	default:
		return "", ErrInvalidRole
	}
}

// InviteInput names the user to invite and an optional role
type InviteInput struct {
	Email string
	Role  string
}

// InviteMember adds an existing user to the workspace. Role defaults to MEMBER.
func (s *WorkspaceService) InviteMember(ctx context.Context, userID, slug string, input InviteInput) (*models.WorkspaceMember, error) {
	role, err := memberRole(input.Role, models.RoleMember)
	if err != nil {
		return nil, err
	}

	workspace, _, err := s.access(ctx, userID, slug, rbac.ActionManageWorkspace)
	if err != nil {
		return nil, err
	}

	invitee, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if invitee.ID == workspace.OwnerID {
		return nil, ErrAlreadyWorkspaceMember
	}

	if _, err := s.workspaceRepo.FindMember(ctx, workspace.ID, invitee.ID); err == nil {
		return nil, ErrAlreadyWorkspaceMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to verify membership: %w", err)
	}

	member := &models.WorkspaceMember{
		WorkspaceID: workspace.ID,
		UserID:      invitee.ID,
		Role:        role,
		JoinedAt:    time.Now(),
	}
	if err := s.workspaceRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyWorkspaceMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	member.User = *invitee
	return member, nil
}

// ListMembers returns the membership rows of a workspace visible to the caller.
func (s *WorkspaceService) ListMembers(ctx context.Context, userID, slug string) ([]models.WorkspaceMember, error) {
	workspace, _, err := s.access(ctx, userID, slug, rbac.ActionRead)
	if err != nil {
		return nil, err
	}

	members, err := s.workspaceRepo.ListMembers(ctx, workspace.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// ChangeRoleInput names the member and the new role
type ChangeRoleInput struct {
	Email string
	Role  string
}

// ChangeMemberRole switches an existing member between ADMIN and MEMBER.
func (s *WorkspaceService) ChangeMemberRole(ctx context.Context, userID, slug string, input ChangeRoleInput) error {
	if strings.TrimSpace(input.Role) == "" {
		return ErrInvalidRole
	}
	role, err := memberRole(input.Role, "")
	if err != nil {
		return err
	}

	workspace, _, err := s.access(ctx, userID, slug, rbac.ActionManageWorkspace)
	if err != nil {
		return err
	}

	target, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(input.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceMemberNotFound
		}
		return fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.workspaceRepo.UpdateMemberRole(ctx, workspace.ID, target.ID, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWorkspaceMemberNotFound
		}
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return nil
}
