package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	"github.com/yukikurage/kanban-realtime-api/internal/constants"
	"github.com/yukikurage/kanban-realtime-api/internal/database/dbtest"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/repository"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(kind string, task *models.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+task.ID)
}

func (p *recordingPublisher) PublishTaskCreated(task *models.Task) { p.record("created", task) }
func (p *recordingPublisher) PublishTaskUpdated(task *models.Task) { p.record("updated", task) }
func (p *recordingPublisher) PublishTaskDeleted(task *models.Task) { p.record("deleted", task) }

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type apiEnv struct {
	t         *testing.T
	db        *gorm.DB
	tokens    *auth.TokenService
	services  serviceSet
	router    *gin.Engine
	publisher *recordingPublisher
}

type serviceSet struct {
	auth       *services.AuthService
	workspaces *services.WorkspaceService
	boards     *services.BoardService
	columns    *services.ColumnService
	tasks      *services.TaskService
}

func newServiceSet(db *gorm.DB, tokens *auth.TokenService) serviceSet {
	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	boardRepo := repository.NewBoardRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	resolver := rbac.NewResolver(workspaceRepo)

	return serviceSet{
		auth:       services.NewAuthService(userRepo, tokens),
		workspaces: services.NewWorkspaceService(workspaceRepo, userRepo, resolver),
		boards:     services.NewBoardService(boardRepo, workspaceRepo, resolver),
		columns:    services.NewColumnService(columnRepo, boardRepo, resolver),
		tasks:      services.NewTaskService(repository.NewTaskRepository(db), columnRepo, boardRepo, resolver),
	}
}

// apiOption adjusts the handlers before the routes are mounted.
type apiOption func(env *apiEnv, h *Handlers)

// setupAPI mounts every REST route on a fresh store.
func setupAPI(t *testing.T, opts ...apiOption) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t)
	tokens := auth.NewTokenService("handler-test-secret", time.Hour)
	set := newServiceSet(db, tokens)
	publisher := &recordingPublisher{}

	env := &apiEnv{
		t:         t,
		db:        db,
		tokens:    tokens,
		services:  set,
		publisher: publisher,
	}

	h := Handlers{
		Auth:      NewAuthHandler(set.auth),
		Workspace: NewWorkspaceHandler(set.workspaces),
		Board:     NewBoardHandler(set.boards, set.workspaces),
		Column:    NewColumnHandler(set.columns),
		Task:      NewTaskHandler(set.tasks, publisher),
	}
	for _, opt := range opts {
		opt(env, &h)
	}

	env.router = gin.New()
	env.router.Use(sessions.Sessions(constants.SessionCookieName, cookie.NewStore([]byte("test-session-secret"))))
	RegisterRoutes(env.router, tokens, h)
	return env
}

func (e *apiEnv) request(method, path, token string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signup registers a user through the API and returns a bearer token for it.
func (e *apiEnv) signup(email, name string) string {
	e.t.Helper()

	w := e.request(http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": email, "name": name, "password": "password123",
	})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	w = e.request(http.MethodPost, "/api/auth/login", "", gin.H{
		"email": email, "password": "password123",
	})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return field[string](e.t, w, "token")
}

// seededBoard is workspace "Team" owned by owner, member invited as MEMBER,
// and board "Roadmap" with columns Todo and Done.
type seededBoard struct {
	ownerToken, memberToken, outsiderToken string
	workspaceSlug                          string
	board                                  models.Board
	todo, done                             models.Column
}

func (e *apiEnv) seedBoard() seededBoard {
	e.t.Helper()

	s := seededBoard{
		ownerToken:    e.signup("owner@example.com", "Owner"),
		memberToken:   e.signup("member@example.com", "Member"),
		outsiderToken: e.signup("outsider@example.com", "Outsider"),
	}

	w := e.request(http.MethodPost, "/api/workspaces", s.ownerToken, gin.H{"name": "Team"})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	s.workspaceSlug = field[models.Workspace](e.t, w, "workspace").Slug

	w = e.request(http.MethodPost, "/api/workspaces/"+s.workspaceSlug+"/invite", s.ownerToken, gin.H{"email": "member@example.com"})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())

	w = e.request(http.MethodPost, "/api/boards", s.ownerToken, gin.H{"workspaceSlug": s.workspaceSlug, "name": "Roadmap"})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	s.board = field[models.Board](e.t, w, "board")

	column := func(title string) models.Column {
		w := e.request(http.MethodPost, "/api/columns", s.ownerToken, gin.H{"boardSlug": s.board.Slug, "title": title})
		require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
		return field[models.Column](e.t, w, "column")
	}
	s.todo = column("Todo")
	s.done = column("Done")
	return s
}

func (e *apiEnv) createTask(token, boardID, columnID, title string) *httptest.ResponseRecorder {
	e.t.Helper()
	return e.request(http.MethodPost, "/api/tasks", token, gin.H{
		"boardId": boardID, "columnId": columnID, "title": title,
	})
}

// field decodes one top-level key of a JSON response body.
func field[T any](t *testing.T, w *httptest.ResponseRecorder, key string) T {
	t.Helper()

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	raw, ok := body[key]
	require.True(t, ok, "response has no %q: %s", key, w.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return field[string](t, w, "code")
}
