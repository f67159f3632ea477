package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"gorm.io/gorm"
)

var ErrColumnNotFound = errors.New("column not found")

// ColumnService provides business logic for board columns.
type ColumnService struct {
	columnRepo repository.ColumnRepository
	boardRepo  repository.BoardRepository
	resolver   *rbac.Resolver
}

// NewColumnService creates a new ColumnService
func NewColumnService(columnRepo repository.ColumnRepository, boardRepo repository.BoardRepository, resolver *rbac.Resolver) *ColumnService {
	return &ColumnService{
		columnRepo: columnRepo,
		boardRepo:  boardRepo,
		resolver:   resolver,
	}
}

// CreateColumnInput is the data needed to create a column
type CreateColumnInput struct {
	BoardSlug string
	Title     string
	Order     *int
}

// CreateColumn appends a column to the board unless an order is given.
func (s *ColumnService) CreateColumn(ctx context.Context, userID string, input CreateColumnInput) (*models.Column, error) {
	title, err := requireText("column title", input.Title, constants.MaxNameLength)
	if err != nil {
		return nil, err
	}
	if input.Order != nil && *input.Order < 0 {
		return nil, validationError("order must be non-negative")
	}

	board, err := resolveBoard(ctx, s.boardRepo, input.BoardSlug)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeBoard(ctx, s.resolver, userID, board, rbac.ActionManageColumn); err != nil {
		return nil, err
	}

	order := 0
	if input.Order != nil {
		order = *input.Order
	} else {
		order, err = s.columnRepo.NextOrder(ctx, board.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to compute column order: %w", err)
		}
	}

	column := &models.Column{
		BoardID: board.ID,
		Title:   title,
		Order:   order,
	}
	if err := s.columnRepo.Create(ctx, column); err != nil {
		return nil, fmt.Errorf("failed to create column: %w", err)
	}
	return column, nil
}

// ListColumns returns the board's columns in display order.
func (s *ColumnService) ListColumns(ctx context.Context, userID, boardRef string) ([]models.Column, error) {
	board, err := resolveBoard(ctx, s.boardRepo, boardRef)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeBoard(ctx, s.resolver, userID, board, rbac.ActionRead); err != nil {
		return nil, err
	}

	columns, err := s.columnRepo.ListByBoard(ctx, board.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return columns, nil
}

// GetColumn returns a column the caller can read
func (s *ColumnService) GetColumn(ctx context.Context, userID, id string) (*models.Column, error) {
	column, _, err := s.columnWithBoard(ctx, userID, id, rbac.ActionRead)
	return column, err
}

// UpdateColumnInput holds the fields to change; nil means unchanged
type UpdateColumnInput struct {
	Title *string
	Order *int
}

// UpdateColumn updates a column's title or order
func (s *ColumnService) UpdateColumn(ctx context.Context, userID, id string, input UpdateColumnInput) (*models.Column, error) {
	if input.Title == nil && input.Order == nil {
		return nil, ErrNoUpdateData
	}

	column, _, err := s.columnWithBoard(ctx, userID, id, rbac.ActionManageColumn)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title, err := requireText("column title", *input.Title, constants.MaxNameLength)
		if err != nil {
			return nil, err
		}
		column.Title = title
	}
	if input.Order != nil {
		if *input.Order < 0 {
			return nil, validationError("order must be non-negative")
		}
		column.Order = *input.Order
	}

	if err := s.columnRepo.Update(ctx, column); err != nil {
		return nil, fmt.Errorf("failed to update column: %w", err)
	}
	return column, nil
}

// DeleteColumn removes the column together with its tasks.
func (s *ColumnService) DeleteColumn(ctx context.Context, userID, id string) (*models.Column, error) {
	column, _, err := s.columnWithBoard(ctx, userID, id, rbac.ActionManageColumn)
	if err != nil {
		return nil, err
	}

	if err := s.columnRepo.Delete(ctx, column.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrColumnNotFound
		}
		return nil, fmt.Errorf("failed to delete column: %w", err)
	}
	return column, nil
}

func (s *ColumnService) columnWithBoard(ctx context.Context, userID, id string, action rbac.Action) (*models.Column, *models.Board, error) {
	column, err := s.columnRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrColumnNotFound
		}
		return nil, nil, fmt.Errorf("failed to find column: %w", err)
	}

	board, err := s.boardRepo.FindByID(ctx, column.BoardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrColumnNotFound
		}
		return nil, nil, fmt.Errorf("failed to find board: %w", err)
	}

	if _, err := authorizeBoard(ctx, s.resolver, userID, board, action); err != nil {
		if errors.Is(err, ErrBoardNotFound) {
			return nil, nil, ErrColumnNotFound
		}
		return nil, nil, err
	}
	return column, board, nil
}
