package handlers

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/middleware"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
)

// respondServiceError maps a service error onto the HTTP error taxonomy.
// Unknown errors are attached to the context for the request logger.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		apierrors.Forbidden(c, "Insufficient role for this action")

	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.UnauthorizedWithCode(c, apierrors.ErrCodeInvalidCredentials, err.Error())

	case errors.Is(err, services.ErrWorkspaceNotFound),
		errors.Is(err, services.ErrBoardNotFound),
		errors.Is(err, services.ErrColumnNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrWorkspaceMemberNotFound):
		apierrors.NotFound(c, err.Error())

	case errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrWorkspaceSlugTaken),
		errors.Is(err, services.ErrBoardSlugTaken),
		errors.Is(err, services.ErrAlreadyWorkspaceMember):
		apierrors.Conflict(c, err.Error())

	case errors.Is(err, services.ErrPasswordTooShort):
		apierrors.BadRequest(c, fmt.Sprintf("Password must be at least %d characters", constants.MinPasswordLength))

	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrNoUpdateData),
		errors.Is(err, services.ErrInvalidRole),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrNameRequired),
		errors.Is(err, services.ErrColumnNotInBoard),
		errors.Is(err, services.ErrInvalidTaskStatus):
		apierrors.BadRequest(c, err.Error())

	default:
		c.Error(err)
		apierrors.InternalError(c, "")
	}
}

func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		apierrors.Unauthorized(c, "Not authenticated")
	}
	return userID, ok
}
