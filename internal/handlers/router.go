package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	"github.com/yukikurage/kanban-realtime-api/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes. Realtime and
// Health may be nil.
type Handlers struct {
	Auth      *AuthHandler
	Workspace *WorkspaceHandler
	Board     *BoardHandler
	Column    *ColumnHandler
	Task      *TaskHandler
	Realtime  *RealtimeHandler
	Health    *HealthHandler
}

// RegisterRoutes mounts the REST API under /api. The engine must already use
// the sessions middleware.
func RegisterRoutes(r gin.IRouter, verifier auth.Verifier, h Handlers) {
	if h.Health != nil {
		r.GET("/health", h.Health.Check)
	}
	if h.Realtime != nil {
		r.GET("/ws", h.Realtime.Connect)
	}

	requireAuth := middleware.RequireAuth(verifier)

	api := r.Group("/api")
	{
		// Auth routes (public)
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signup", h.Auth.Signup)
			authRoutes.POST("/login", h.Auth.Login)
			authRoutes.POST("/logout", h.Auth.Logout)
			authRoutes.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		}

		workspaces := api.Group("/workspaces")
		workspaces.Use(requireAuth)
		{
			workspaces.POST("", h.Workspace.CreateWorkspace)
			workspaces.GET("", h.Workspace.ListWorkspaces)
			workspaces.GET("/members", h.Workspace.ListMemberships)
			workspaces.GET("/:slug", h.Workspace.GetWorkspace)
			workspaces.PUT("/:slug", h.Workspace.UpdateWorkspace)
			workspaces.DELETE("/:slug", h.Workspace.DeleteWorkspace)
			workspaces.POST("/:slug/invite", h.Workspace.InviteMember)
			workspaces.GET("/:slug/members", h.Workspace.ListMembers)
			workspaces.PUT("/:slug/members", h.Workspace.ChangeMemberRole)
		}

		boards := api.Group("/boards")
		boards.Use(requireAuth)
		{
			boards.POST("", h.Board.CreateBoard)
			boards.GET("/workspace/:workspaceSlug", h.Board.ListBoards)
			boards.GET("/role/:workspaceSlug", h.Board.GetRole)
			boards.GET("/:slug", h.Board.GetBoard)
			boards.PUT("/:slug", h.Board.UpdateBoard)
			boards.DELETE("/:slug", h.Board.DeleteBoard)
		}

		columns := api.Group("/columns")
		columns.Use(requireAuth)
		{
			columns.POST("", h.Column.CreateColumn)
			columns.GET("/board/:boardId", h.Column.ListColumns)
			columns.GET("/:id", h.Column.GetColumn)
			columns.PUT("/:id", h.Column.UpdateColumn)
			columns.DELETE("/:id", h.Column.DeleteColumn)
		}

		tasks := api.Group("/tasks")
		tasks.Use(requireAuth)
		{
			tasks.POST("", h.Task.CreateTask)
			tasks.GET("/board/:boardId", h.Task.ListTasks)
			tasks.PUT("/:id", h.Task.UpdateTask)
			tasks.PATCH("/:id/move", h.Task.MoveTask)
			tasks.DELETE("/:id", h.Task.DeleteTask)
		}
	}
}
