package middleware

import (
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
)

const contextKeyIdentity = "identity"

// RequireAuth verifies the bearer token from the Authorization header, or
// the token saved in the session cookie at login when no header is sent.
func RequireAuth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerFromHeader(c.GetHeader("Authorization"))
		if errors.Is(err, auth.ErrMissingCredential) {
			token = sessionToken(c)
		} else if err != nil {
			apierrors.UnauthorizedWithCode(c, apierrors.ErrCodeInvalidCredentials, "Invalid authorization header")
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			respondCredentialError(c, err)
			return
		}

		c.Set(constants.ContextKeyUserID, identity.UserID)
		c.Set(contextKeyIdentity, identity)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	session := sessions.Default(c)
	if token, ok := session.Get(constants.SessionKeyToken).(string); ok {
		return token
	}
	return ""
}

func respondCredentialError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredCredential):
		apierrors.UnauthorizedWithCode(c, apierrors.ErrCodeExpiredCredentials, "Token expired")
	case errors.Is(err, auth.ErrInvalidCredential):
		apierrors.UnauthorizedWithCode(c, apierrors.ErrCodeInvalidCredentials, "Invalid token")
	default:
		apierrors.Unauthorized(c, "")
	}
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// GetIdentity returns the verified identity set by RequireAuth.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(contextKeyIdentity)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
