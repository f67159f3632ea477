package constants

const (
	// ContextKeyUserID is the gin context key holding the authenticated user ID.
	ContextKeyUserID = "user_id"

	// SessionCookieName is the cookie carrying the gin-contrib session.
	SessionCookieName = "kanban_session"
	// SessionKeyToken is the session key under which login stores the bearer token.
	SessionKeyToken = "token"

	MinPasswordLength = 8

	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 500

	MaxNameLength        = 100
	MaxDescriptionLength = 500
	MaxTaskTitleLength   = 200
	MaxTaskDescLength    = 1000
)
