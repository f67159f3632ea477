package repository

import (
	"context"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// WorkspaceRepository defines the interface for workspace and membership data access
type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *models.Workspace) error
	FindByID(ctx context.Context, id string) (*models.Workspace, error)
	FindBySlug(ctx context.Context, slug string) (*models.Workspace, error)

	// ListByOwner lists workspaces owned by the user, newest first
	ListByOwner(ctx context.Context, ownerID string) ([]models.Workspace, error)

	Update(ctx context.Context, workspace *models.Workspace) error

	// Delete removes the workspace with its members, boards, columns and tasks
	Delete(ctx context.Context, id string) error

	AddMember(ctx context.Context, member *models.WorkspaceMember) error
	FindMember(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error)
	UpdateMemberRole(ctx context.Context, workspaceID, userID string, role models.WorkspaceRole) error

	// ListMembers lists the members of a workspace with their users preloaded
	ListMembers(ctx context.Context, workspaceID string) ([]models.WorkspaceMember, error)

	// ListMembershipsByUser lists the memberships of a user with their workspaces preloaded
	ListMembershipsByUser(ctx context.Context, userID string) ([]models.WorkspaceMember, error)
}

// BoardRepository defines the interface for board data access
type BoardRepository interface {
	Create(ctx context.Context, board *models.Board) error
	FindByID(ctx context.Context, id string) (*models.Board, error)
	FindBySlug(ctx context.Context, slug string) (*models.Board, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]models.Board, error)
	Update(ctx context.Context, board *models.Board) error

	// Delete removes the board with its columns and tasks
	Delete(ctx context.Context, id string) error
}

// ColumnRepository defines the interface for column data access
type ColumnRepository interface {
	Create(ctx context.Context, column *models.Column) error
	FindByID(ctx context.Context, id string) (*models.Column, error)

	// ListByBoard lists the columns of a board in display order
	ListByBoard(ctx context.Context, boardID string) ([]models.Column, error)

	// NextOrder returns the order a column appended to the board would take
	NextOrder(ctx context.Context, boardID string) (int, error)

	Update(ctx context.Context, column *models.Column) error

	// Delete removes the column and the tasks it holds
	Delete(ctx context.Context, id string) error
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)

	// ListByBoard lists the tasks of a board, newest first, with the total count
	ListByBoard(ctx context.Context, boardID string, params utils.PaginationParams) ([]models.Task, int64, error)

	Update(ctx context.Context, task *models.Task) error

	// UpdateColumn points the task at another column. Returns
	// gorm.ErrRecordNotFound when the task does not exist.
	UpdateColumn(ctx context.Context, taskID, columnID string) error

	// Delete removes the task. Returns gorm.ErrRecordNotFound when the task
	// does not exist.
	Delete(ctx context.Context, id string) error
}
