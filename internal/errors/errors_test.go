package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		respond func(*gin.Context)
		status  int
		code    string
		message string
	}{
		{"bad request default", func(c *gin.Context) { BadRequest(c, "") }, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "Token missing") }, http.StatusUnauthorized, ErrCodeUnauthorized, "Token missing"},
		{"expired", func(c *gin.Context) { UnauthorizedWithCode(c, ErrCodeExpiredCredentials, "") }, http.StatusUnauthorized, ErrCodeExpiredCredentials, "Authentication required"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "") }, http.StatusForbidden, ErrCodeForbidden, "Access denied"},
		{"not found", func(c *gin.Context) { NotFound(c, "Board not found") }, http.StatusNotFound, ErrCodeNotFound, "Board not found"},
		{"conflict", func(c *gin.Context) { Conflict(c, "") }, http.StatusConflict, ErrCodeConflict, "Resource conflict"},
		{"internal", func(c *gin.Context) { InternalError(c, "") }, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tc.respond(c)

			assert.Equal(t, tc.status, w.Code)
			assert.True(t, c.IsAborted())

			var body APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}
