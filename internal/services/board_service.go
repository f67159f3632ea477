package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
	"gorm.io/gorm"
)

var (
	ErrBoardNotFound  = errors.New("board not found")
	ErrBoardSlugTaken = errors.New("a board with this name already exists")
)

// BoardService provides business logic for boards.
type BoardService struct {
	boardRepo     repository.BoardRepository
	workspaceRepo repository.WorkspaceRepository
	resolver      *rbac.Resolver
}

// NewBoardService creates a new BoardService
func NewBoardService(boardRepo repository.BoardRepository, workspaceRepo repository.WorkspaceRepository, resolver *rbac.Resolver) *BoardService {
	return &BoardService{
		boardRepo:     boardRepo,
		workspaceRepo: workspaceRepo,
		resolver:      resolver,
	}
}

// ResolveBoard finds a board by ID when ref is a UUID and by slug otherwise.
func (s *BoardService) ResolveBoard(ctx context.Context, ref string) (*models.Board, error) {
	return resolveBoard(ctx, s.boardRepo, ref)
}

func resolveBoard(ctx context.Context, boards repository.BoardRepository, ref string) (*models.Board, error) {
	if ref == "" {
		return nil, ErrBoardNotFound
	}
	var (
		board *models.Board
		err   error
	)
	if utils.IsID(ref) {
		board, err = boards.FindByID(ctx, ref)
	} else {
		board, err = boards.FindBySlug(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to find board: %w", err)
	}
	return board, nil
}

// authorizeBoard checks action against the caller's role in the board's
// workspace. A caller without any role gets ErrBoardNotFound for reads.
func authorizeBoard(ctx context.Context, resolver *rbac.Resolver, userID string, board *models.Board, action rbac.Action) (rbac.Role, error) {
	role, err := resolver.ResolveRole(ctx, userID, board.WorkspaceID)
	if err != nil {
		if errors.Is(err, rbac.ErrWorkspaceNotFound) {
			return role, ErrBoardNotFound
		}
		return role, err
	}
	if action == rbac.ActionRead && role == rbac.RoleNone {
		return role, ErrBoardNotFound
	}
	return role, rbac.Check(role, action)
}

// Authorize checks that the user may perform action on the board.
func (s *BoardService) Authorize(ctx context.Context, userID string, board *models.Board, action rbac.Action) (rbac.Role, error) {
	return authorizeBoard(ctx, s.resolver, userID, board, action)
}

// CreateBoardInput is the data needed to create a board
type CreateBoardInput struct {
	WorkspaceSlug string
	Name          string
	Description   string
}

// CreateBoard creates a board. Only the workspace owner may.
func (s *BoardService) CreateBoard(ctx context.Context, userID string, input CreateBoardInput) (*models.Board, error) {
	name, err := requireText("board name", input.Name, constants.MaxNameLength)
	if err != nil {
		return nil, err
	}
	description, err := limitText("description", input.Description, constants.MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	slug, err := utils.Slugify(name)
	if errors.Is(err, utils.ErrSlugLooksLikeID) {
		return nil, validationError("board name must not look like an ID")
	}
	if err != nil {
		return nil, validationError("board name must contain letters or digits")
	}

	workspace, err := s.workspaceRepo.FindBySlug(ctx, input.WorkspaceSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	role, err := s.resolver.RoleIn(ctx, userID, workspace)
	if err != nil {
		return nil, err
	}
	if err := rbac.Check(role, rbac.ActionManageBoard); err != nil {
		return nil, err
	}

	// Board slugs are unique across all workspaces.
	if _, err := s.boardRepo.FindBySlug(ctx, slug); err == nil {
		return nil, ErrBoardSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check board slug: %w", err)
	}

	board := &models.Board{
		WorkspaceID: workspace.ID,
		Name:        name,
		Slug:        slug,
		Description: description,
		CreatedBy:   userID,
	}
	if err := s.boardRepo.Create(ctx, board); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrBoardSlugTaken
		}
		return nil, fmt.Errorf("failed to create board: %w", err)
	}
	return board, nil
}

// ListBoards returns the boards of a workspace, newest first.
func (s *BoardService) ListBoards(ctx context.Context, userID, workspaceSlug string) ([]models.Board, error) {
	workspace, err := s.workspaceRepo.FindBySlug(ctx, workspaceSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}
	role, err := s.resolver.RoleIn(ctx, userID, workspace)
	if err != nil {
		return nil, err
	}
	if role == rbac.RoleNone {
		return nil, ErrWorkspaceNotFound
	}

	boards, err := s.boardRepo.ListByWorkspace(ctx, workspace.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	return boards, nil
}

// GetBoard returns the board and the caller's role
func (s *BoardService) GetBoard(ctx context.Context, userID, slug string) (*models.Board, rbac.Role, error) {
	board, err := s.boardBySlug(ctx, slug)
	if err != nil {
		return nil, rbac.RoleNone, err
	}
	role, err := s.Authorize(ctx, userID, board, rbac.ActionRead)
	if err != nil {
		return nil, role, err
	}
	return board, role, nil
}

// UpdateBoardInput holds the fields to change; nil means unchanged
type UpdateBoardInput struct {
	Name        *string
	Description *string
}

// UpdateBoard updates a board's name or description
func (s *BoardService) UpdateBoard(ctx context.Context, userID, slug string, input UpdateBoardInput) (*models.Board, error) {
	if input.Name == nil && input.Description == nil {
		return nil, ErrNoUpdateData
	}

	board, err := s.boardBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.Authorize(ctx, userID, board, rbac.ActionManageBoard); err != nil {
		return nil, err
	}

	if input.Name != nil {
		name, err := requireText("board name", *input.Name, constants.MaxNameLength)
		if err != nil {
			return nil, err
		}
		board.Name = name
	}
	if input.Description != nil {
		description, err := limitText("description", *input.Description, constants.MaxDescriptionLength)
		if err != nil {
			return nil, err
		}
		board.Description = description
	}

	if err := s.boardRepo.Update(ctx, board); err != nil {
		return nil, fmt.Errorf("failed to update board: %w", err)
	}
	return board, nil
}

// DeleteBoard removes the board with its columns and tasks.
func (s *BoardService) DeleteBoard(ctx context.Context, userID, slug string) (*models.Board, error) {
	board, err := s.boardBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if _, err := s.Authorize(ctx, userID, board, rbac.ActionManageBoard); err != nil {
		return nil, err
	}

	if err := s.boardRepo.Delete(ctx, board.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to delete board: %w", err)
	}
	return board, nil
}

func (s *BoardService) boardBySlug(ctx context.Context, slug string) (*models.Board, error) {
	board, err := s.boardRepo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to find board: %w", err)
	}
	return board, nil
}
