package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/dto"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
)

// WorkspaceHandler serves the workspace and membership endpoints.
type WorkspaceHandler struct {
	workspaceService *services.WorkspaceService
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(workspaceService *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// CreateWorkspace creates a workspace owned by the caller
func (h *WorkspaceHandler) CreateWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type CreateWorkspaceRequest struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	workspace, err := h.workspaceService.CreateWorkspace(c.Request.Context(), services.CreateWorkspaceInput{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Workspace created successfully",
		"workspace": workspace,
	})
}

// ListWorkspaces returns the workspaces the caller owns
func (h *WorkspaceHandler) ListWorkspaces(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	workspaces, err := h.workspaceService.ListOwnedWorkspaces(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Workspaces retrieved successfully",
		"workspaces": workspaces,
	})
}

// ListMemberships returns the workspaces the caller was invited into
func (h *WorkspaceHandler) ListMemberships(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	memberships, err := h.workspaceService.ListMemberships(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Memberships retrieved successfully",
		"workspaces": dto.ToMembershipDTOs(memberships),
	})
}

// GetWorkspace returns a workspace with the caller's role in it.
func (h *WorkspaceHandler) GetWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	workspace, role, err := h.workspaceService.GetWorkspace(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Workspace retrieved successfully",
		"workspace": dto.WorkspaceDetailDTO{Workspace: *workspace, Role: role},
	})
}

// UpdateWorkspace changes the name or description. The slug is kept.
func (h *WorkspaceHandler) UpdateWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type UpdateWorkspaceRequest struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}

	var req UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	workspace, err := h.workspaceService.UpdateWorkspace(c.Request.Context(), userID, c.Param("slug"), services.UpdateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Workspace updated successfully",
		"workspace": workspace,
	})
}

// DeleteWorkspace removes the workspace with its boards, columns and tasks
func (h *WorkspaceHandler) DeleteWorkspace(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	workspace, err := h.workspaceService.DeleteWorkspace(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Workspace deleted successfully",
		"workspace": workspace,
	})
}

// InviteMember adds a registered user to the workspace by email.
func (h *WorkspaceHandler) InviteMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type InviteRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role"`
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	member, err := h.workspaceService.InviteMember(c.Request.Context(), userID, c.Param("slug"), services.InviteInput{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Member invited successfully",
		"member":  dto.ToMemberDTO(*member),
	})
}

// ListMembers returns the workspace members with their roles.
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	members, err := h.workspaceService.ListMembers(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Members retrieved successfully",
		"members": dto.ToMemberDTOs(members),
	})
}

// ChangeMemberRole switches a member between ADMIN and MEMBER
func (h *WorkspaceHandler) ChangeMemberRole(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	type ChangeRoleRequest struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}

	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	err := h.workspaceService.ChangeMemberRole(c.Request.Context(), userID, c.Param("slug"), services.ChangeRoleInput{
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Member role updated successfully",
	})
}
