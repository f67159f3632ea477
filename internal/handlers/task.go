package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/dto"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
	"github.com/yukikurage/kanban-realtime-api/internal/utils"
)

// TaskPublisher forwards REST task changes to realtime viewers of the board.
type TaskPublisher interface {
	PublishTaskCreated(task *models.Task)
	PublishTaskUpdated(task *models.Task)
	PublishTaskDeleted(task *models.Task)
}

// TaskHandler serves the task endpoints.
type TaskHandler struct {
	taskService *services.TaskService
	publisher   TaskPublisher
}

// NewTaskHandler creates a TaskHandler. publisher may be nil.
func NewTaskHandler(taskService *services.TaskService, publisher TaskPublisher) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		publisher:   publisher,
	}
}

// CreateTask creates a task in a column of the given board.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		BoardID     string `json:"boardId"`
		BoardSlug   string `json:"boardSlug"`
		ColumnID    string `json:"columnId" binding:"required"`
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}
	boardRef := req.BoardID
	if boardRef == "" {
		boardRef = req.BoardSlug
	}
	if boardRef == "" {
		apierrors.BadRequest(c, "boardId or boardSlug is required")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, services.CreateTaskInput{
		BoardRef:    boardRef,
		ColumnID:    req.ColumnID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if h.publisher != nil {
		h.publisher.PublishTaskCreated(task)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    task,
	})
}

// ListTasks returns the board's tasks. page and limit are optional; without
// them the whole board is returned.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), userID, c.Param("boardId"), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	response := gin.H{
		"message": "Tasks retrieved successfully",
		"tasks":   tasks,
	}
	if pagination := dto.ToPagination(params, total); pagination != nil {
		response["pagination"] = pagination
	}
	c.JSON(http.StatusOK, response)
}

// UpdateTask changes any of a task's title, description, column and status.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateTaskRequest struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		ColumnID    *string `json:"columnId"`
		Status      *string `json:"status"`
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, c.Param("id"), services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		ColumnID:    req.ColumnID,
		Status:      req.Status,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if h.publisher != nil {
		h.publisher.PublishTaskUpdated(task)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task updated successfully",
		"task":    task,
	})
}

// MoveTask changes only the task's column
func (h *TaskHandler) MoveTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type MoveTaskRequest struct {
		ColumnID string `json:"columnId" binding:"required"`
	}

	var req MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.MoveTask(c.Request.Context(), userID, c.Param("id"), req.ColumnID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if h.publisher != nil {
		h.publisher.PublishTaskUpdated(task)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task moved successfully",
		"task":    task,
	})
}

// DeleteTask removes a task.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	task, err := h.taskService.DeleteTask(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if h.publisher != nil {
		h.publisher.PublishTaskDeleted(task)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
		"task":    task,
	})
}
