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
	ErrTaskNotFound      = errors.New("task not found")
	ErrColumnNotInBoard  = errors.New("column does not belong to this board")
	ErrInvalidTaskStatus = errors.New("status must be one of Backlog, In Progress, Done")
)

// TaskService handles task business logic for both the REST API and the
// realtime hub. Every mutation is checked with rbac.ActionWriteTask.
type TaskService struct {
	taskRepo   repository.TaskRepository
	columnRepo repository.ColumnRepository
	boardRepo  repository.BoardRepository
	resolver   *rbac.Resolver
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository, columnRepo repository.ColumnRepository, boardRepo repository.BoardRepository, resolver *rbac.Resolver) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		columnRepo: columnRepo,
		boardRepo:  boardRepo,
		resolver:   resolver,
	}
}

// CreateTaskInput is the data needed to create a task
type CreateTaskInput struct {
	// BoardRef is a board ID or slug.
	BoardRef    string
	ColumnID    string
	Title       string
	Description string
	Status      string
}

// CreateTask persists a task created by userID. The creator is always the
// caller, never a client supplied value.
func (s *TaskService) CreateTask(ctx context.Context, userID string, input CreateTaskInput) (*models.Task, error) {
	title, err := requireText("task title", input.Title, constants.MaxTaskTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := limitText("description", input.Description, constants.MaxTaskDescLength)
	if err != nil {
		return nil, err
	}
	status := models.TaskStatusBacklog
	if input.Status != "" {
		status = models.TaskStatus(input.Status)
		if !status.Valid() {
			return nil, ErrInvalidTaskStatus
		}
	}

	board, err := resolveBoard(ctx, s.boardRepo, input.BoardRef)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeBoard(ctx, s.resolver, userID, board, rbac.ActionWriteTask); err != nil {
		return nil, err
	}
	if err := s.columnOnBoard(ctx, input.ColumnID, board.ID); err != nil {
		return nil, err
	}

	task := &models.Task{
		BoardID:     board.ID,
		ColumnID:    input.ColumnID,
		Title:       title,
		Description: description,
		Status:      status,
		CreatedBy:   userID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// ListTasks returns the board's tasks, newest first.
func (s *TaskService) ListTasks(ctx context.Context, userID, boardRef string, params utils.PaginationParams) ([]models.Task, int64, error) {
	board, err := resolveBoard(ctx, s.boardRepo, boardRef)
	if err != nil {
		return nil, 0, err
	}
	if _, err := authorizeBoard(ctx, s.resolver, userID, board, rbac.ActionRead); err != nil {
		return nil, 0, err
	}

	tasks, total, err := s.taskRepo.ListByBoard(ctx, board.ID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// UpdateTaskInput holds the fields to change; nil means unchanged
type UpdateTaskInput struct {
	Title       *string
	Description *string
	ColumnID    *string
	Status      *string
}

// UpdateTask updates a task. A new column must belong to the same board.
func (s *TaskService) UpdateTask(ctx context.Context, userID, id string, input UpdateTaskInput) (*models.Task, error) {
	if input.Title == nil && input.Description == nil && input.ColumnID == nil && input.Status == nil {
		return nil, ErrNoUpdateData
	}

	task, err := s.writableTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title, err := requireText("task title", *input.Title, constants.MaxTaskTitleLength)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if input.Description != nil {
		description, err := limitText("description", *input.Description, constants.MaxTaskDescLength)
		if err != nil {
			return nil, err
		}
		task.Description = description
	}
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		if !status.Valid() {
			return nil, ErrInvalidTaskStatus
		}
		task.Status = status
	}
	if input.ColumnID != nil && *input.ColumnID != task.ColumnID {
		if err := s.columnOnBoard(ctx, *input.ColumnID, task.BoardID); err != nil {
			return nil, err
		}
		task.ColumnID = *input.ColumnID
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// MoveTask points the task at another column of the same board. Status is
// left untouched.
func (s *TaskService) MoveTask(ctx context.Context, userID, taskID, columnID string) (*models.Task, error) {
	if columnID == "" {
		return nil, validationError("column ID is required")
	}

	task, err := s.writableTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.columnOnBoard(ctx, columnID, task.BoardID); err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpdateColumn(ctx, task.ID, columnID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to move task: %w", err)
	}
	task.ColumnID = columnID
	return task, nil
}

// DeleteTask deletes a task and returns it
func (s *TaskService) DeleteTask(ctx context.Context, userID, id string) (*models.Task, error) {
	task, err := s.writableTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	return task, nil
}

// PersistMove stores a move that was already authorized and broadcast for
// boardID. The task and the column must both belong to that board.
func (s *TaskService) PersistMove(ctx context.Context, boardID, taskID, columnID string) error {
	task, err := s.taskOnBoard(ctx, taskID, boardID)
	if err != nil {
		return err
	}
	if err := s.columnOnBoard(ctx, columnID, boardID); err != nil {
		return err
	}

	if err := s.taskRepo.UpdateColumn(ctx, task.ID, columnID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to move task: %w", err)
	}
	return nil
}

// PersistDelete removes a task whose deletion was already authorized and
// broadcast for boardID.
func (s *TaskService) PersistDelete(ctx context.Context, boardID, taskID string) error {
	task, err := s.taskOnBoard(ctx, taskID, boardID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// writableTask loads the task and checks the caller may write tasks on its board.
func (s *TaskService) writableTask(ctx context.Context, userID, id string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	board, err := s.boardRepo.FindByID(ctx, task.BoardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find board: %w", err)
	}

	role, err := authorizeBoard(ctx, s.resolver, userID, board, rbac.ActionWriteTask)
	if err != nil {
		if role == rbac.RoleNone && errors.Is(err, ErrBoardNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *TaskService) taskOnBoard(ctx context.Context, taskID, boardID string) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task.BoardID != boardID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) columnOnBoard(ctx context.Context, columnID, boardID string) error {
	if columnID == "" {
		return validationError("column ID is required")
	}
	column, err := s.columnRepo.FindByID(ctx, columnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrColumnNotFound
		}
		return fmt.Errorf("failed to find column: %w", err)
	}
	if column.BoardID != boardID {
		return ErrColumnNotInBoard
	}
	return nil
}
