package repository

import (
	"context"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"gorm.io/gorm"
)

// GormWorkspaceRepository is a GORM implementation of WorkspaceRepository
type GormWorkspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new workspace repository
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &GormWorkspaceRepository{db: db}
}

// Create creates a new workspace
func (r *GormWorkspaceRepository) Create(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).Create(workspace).Error
}

// FindByID finds a workspace by ID
func (r *GormWorkspaceRepository) FindByID(ctx context.Context, id string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// FindBySlug finds a workspace by slug
func (r *GormWorkspaceRepository) FindBySlug(ctx context.Context, slug string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// ListByOwner lists the workspaces a user owns
func (r *GormWorkspaceRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Workspace, error) {
	var workspaces []models.Workspace
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&workspaces).Error; err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Update saves a workspace
func (r *GormWorkspaceRepository) Update(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).Save(workspace).Error
}

// Delete deletes a workspace and everything under it in a transaction
func (r *GormWorkspaceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		boardIDs := tx.Model(&models.Board{}).Select("id").Where("workspace_id = ?", id)

		if err := tx.Where("board_id IN (?)", boardIDs).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		if err := tx.Where("board_id IN (?)", boardIDs).Delete(&models.Column{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.Board{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&models.Workspace{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AddMember adds a workspace member
func (r *GormWorkspaceRepository) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

// FindMember finds a user's membership in a workspace
func (r *GormWorkspaceRepository) FindMember(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// UpdateMemberRole changes a member's role. Setting the current role is not an error
func (r *GormWorkspaceRepository) UpdateMemberRole(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error {
	result := r.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// MySQL reports changed rows, so an unchanged role also affects none.
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListMembers lists the members of a workspace with their users
func (r *GormWorkspaceRepository) ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error) {
	var members []models.WorkspaceMember
	if err := r.db.WithContext(ctx).Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// ListMembershipsByUser lists the workspaces a user was invited into
func (r *GormWorkspaceRepository) ListMembershipsByUser(ctx context.Context, userID string) ([]models.WorkspaceMember, error) {
	var memberships []models.WorkspaceMember
	if err := r.db.WithContext(ctx).Preload("Workspace").
		Where("user_id = ?", userID).
		Order("joined_at DESC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}
