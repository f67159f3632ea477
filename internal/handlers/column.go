package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
)

// ColumnHandler serves the column endpoints.
type ColumnHandler struct {
	columnService *services.ColumnService
}

// NewColumnHandler creates a new ColumnHandler.
func NewColumnHandler(columnService *services.ColumnService) *ColumnHandler {
	return &ColumnHandler{columnService: columnService}
}

// CreateColumn appends a column unless an explicit order is sent
func (h *ColumnHandler) CreateColumn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateColumnRequest struct {
		BoardSlug string `json:"boardSlug" binding:"required"`
		Title     string `json:"title" binding:"required"`
		Order     *int   `json:"order"`
	}

	var req CreateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	column, err := h.columnService.CreateColumn(c.Request.Context(), userID, services.CreateColumnInput{
		BoardSlug: req.BoardSlug,
		Title:     req.Title,
		Order:     req.Order,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Column created successfully",
		"column":  column,
	})
}

// ListColumns returns a board's columns by order.
func (h *ColumnHandler) ListColumns(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	columns, err := h.columnService.ListColumns(c.Request.Context(), userID, c.Param("boardId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Columns retrieved successfully",
		"columns": columns,
	})
}

// GetColumn returns a single column.
func (h *ColumnHandler) GetColumn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	column, err := h.columnService.GetColumn(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Column retrieved successfully",
		"column":  column,
	})
}

// UpdateColumn changes a column's title or order.
func (h *ColumnHandler) UpdateColumn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateColumnRequest struct {
		Title *string `json:"title"`
		Order *int    `json:"order"`
	}

	var req UpdateColumnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	column, err := h.columnService.UpdateColumn(c.Request.Context(), userID, c.Param("id"), services.UpdateColumnInput{
		Title: req.Title,
		Order: req.Order,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Column updated successfully",
		"column":  column,
	})
}

// DeleteColumn removes the column and the tasks in it
func (h *ColumnHandler) DeleteColumn(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	column, err := h.columnService.DeleteColumn(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Column deleted successfully",
		"column":  column,
	})
}
