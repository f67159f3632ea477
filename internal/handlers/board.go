package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
)

// BoardHandler serves the board endpoints.
type BoardHandler struct {
	boardService     *services.BoardService
	workspaceService *services.WorkspaceService
}

// NewBoardHandler creates a new BoardHandler.
func NewBoardHandler(boardService *services.BoardService, workspaceService *services.WorkspaceService) *BoardHandler {
	return &BoardHandler{
		boardService:     boardService,
		workspaceService: workspaceService,
	}
}

// CreateBoard creates a board in a workspace the caller owns.
func (h *BoardHandler) CreateBoard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateBoardRequest struct {
		WorkspaceSlug string `json:"workspaceSlug" binding:"required"`
		Name          string `json:"name" binding:"required"`
		Description   string `json:"description"`
	}

	var req CreateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	board, err := h.boardService.CreateBoard(c.Request.Context(), userID, services.CreateBoardInput{
		WorkspaceSlug: req.WorkspaceSlug,
		Name:          req.Name,
		Description:   req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Board created successfully",
		"board":   board,
	})
}

// ListBoards returns the boards of a workspace.
func (h *BoardHandler) ListBoards(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	boards, err := h.boardService.ListBoards(c.Request.Context(), userID, c.Param("workspaceSlug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Boards retrieved successfully",
		"boards":  boards,
	})
}

// GetRole tells the board UI which controls to show. Callers without any
// role in the workspace get 403.
func (h *BoardHandler) GetRole(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	role, err := h.workspaceService.RoleIn(c.Request.Context(), userID, c.Param("workspaceSlug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if role == rbac.RoleNone {
		apierrors.Forbidden(c, "You are not a member of this workspace")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Role retrieved successfully",
		"role":    role,
	})
}

// GetBoard returns a board with the caller's role in its workspace.
func (h *BoardHandler) GetBoard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	board, role, err := h.boardService.GetBoard(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board retrieved successfully",
		"board":   board,
		"role":    role,
	})
}

// UpdateBoard renames a board or changes its description. The slug is kept.
func (h *BoardHandler) UpdateBoard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateBoardRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}

	var req UpdateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	board, err := h.boardService.UpdateBoard(c.Request.Context(), userID, c.Param("slug"), services.UpdateBoardInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board updated successfully",
		"board":   board,
	})
}

// DeleteBoard removes a board with its columns and tasks.
func (h *BoardHandler) DeleteBoard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	board, err := h.boardService.DeleteBoard(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Board deleted successfully",
		"board":   board,
	})
}
