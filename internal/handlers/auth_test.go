package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/dto"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
)

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == constants.SessionCookieName {
			return c
		}
	}
	t.Fatalf("response did not set %s", constants.SessionCookieName)
	return nil
}

func TestAuthHandler_Signup(t *testing.T) {
	env := setupAPI(t)

	w := env.request(http.MethodPost, "/api/auth/signup", "", gin.H{
		"email":    "Ada@Example.com",
		"name":     "Ada",
		"password": "supersecret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	user := field[dto.UserDTO](t, w, "user")
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, "Ada", user.Name)
	assert.NotContains(t, w.Body.String(), "supersecret")
}

func TestAuthHandler_SignupRejected(t *testing.T) {
	env := setupAPI(t)
	env.signup("taken@example.com", "Taken")

	cases := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"missing name", gin.H{"email": "a@example.com", "password": "supersecret"}, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
		{"short password", gin.H{"email": "a@example.com", "name": "A", "password": "short"}, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
		{"bad email", gin.H{"email": "not-an-email", "name": "A", "password": "supersecret"}, http.StatusBadRequest, apierrors.ErrCodeInvalidInput},
		{"duplicate email", gin.H{"email": "taken@example.com", "name": "B", "password": "supersecret"}, http.StatusConflict, apierrors.ErrCodeConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.request(http.MethodPost, "/api/auth/signup", "", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	env := setupAPI(t)
	env.signup("existing@example.com", "Existing")

	w := env.request(http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "existing@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := field[string](t, w, "token")
	identity, err := env.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, field[dto.UserDTO](t, w, "user").ID, identity.UserID)
	assert.NotEmpty(t, field[string](t, w, "expiresAt"))

	// browser clients get the same credential through the session cookie
	cookie := sessionCookie(t, w.Result())
	me := env.request(http.MethodGet, "/api/auth/me", "", nil, cookie)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())
	assert.Equal(t, "existing@example.com", field[dto.UserDTO](t, me, "user").Email)
}

func TestAuthHandler_LoginInvalidCredentials(t *testing.T) {
	env := setupAPI(t)
	env.signup("existing@example.com", "Existing")

	for _, body := range []gin.H{
		{"email": "existing@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "password123"},
	} {
		w := env.request(http.MethodPost, "/api/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apierrors.ErrCodeInvalidCredentials, errorCode(t, w))
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	env := setupAPI(t)
	env.signup("existing@example.com", "Existing")

	login := env.request(http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "existing@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, login.Code)

	w := env.request(http.MethodPost, "/api/auth/logout", "", nil, sessionCookie(t, login.Result()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, sessionCookie(t, w.Result()).MaxAge, 0)
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	env := setupAPI(t)
	token := env.signup("me@example.com", "Me")

	w := env.request(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Me", field[dto.UserDTO](t, w, "user").Name)

	w = env.request(http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.request(http.MethodGet, "/api/auth/me", "garbage", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apierrors.ErrCodeInvalidCredentials, errorCode(t, w))
}
