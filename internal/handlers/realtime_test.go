package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/realtime"
)

func withHub(hub **realtime.Hub) apiOption {
	return func(env *apiEnv, h *Handlers) {
		logger, _ := test.NewNullLogger()
		*hub = realtime.NewHub(env.tokens, env.services.boards, env.services.tasks, realtime.Options{Logger: logger})
		h.Task = NewTaskHandler(env.services.tasks, *hub)
		h.Realtime = NewRealtimeHandler(*hub)
	}
}

type wsFrame struct {
	Event         string          `json:"event"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlationId"`
}

func readFrame(t *testing.T, ws *websocket.Conn) wsFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f wsFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestRealtimeHandler_RESTChangesReachViewers(t *testing.T) {
	var hub *realtime.Hub
	env := setupAPI(t, withHub(&hub))
	server := httptest.NewServer(env.router)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		server.Close()
	})
	seed := env.seedBoard()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + seed.memberToken
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(gin.H{
		"event":         realtime.EventJoinBoard,
		"data":          gin.H{"boardSlug": seed.board.Slug},
		"correlationId": "join-1",
	}))
	joined := readFrame(t, ws)
	require.Equal(t, realtime.EventBoardJoined, joined.Event)
	assert.Equal(t, "join-1", joined.CorrelationID)

	task := field[models.Task](t, env.createTask(seed.ownerToken, seed.board.ID, seed.todo.ID, "From REST"), "task")
	created := readFrame(t, ws)
	require.Equal(t, realtime.EventTaskCreated, created.Event)
	var createdData realtime.TaskCreatedPayload
	require.NoError(t, json.Unmarshal(created.Data, &createdData))
	assert.Equal(t, task.ID, createdData.Task.ID)

	w := env.request(http.MethodPatch, "/api/tasks/"+task.ID+"/move", seed.ownerToken, gin.H{"columnId": seed.done.ID})
	require.Equal(t, http.StatusOK, w.Code)
	updated := readFrame(t, ws)
	require.Equal(t, realtime.EventTaskUpdated, updated.Event)
	var updatedData realtime.TaskUpdatedPayload
	require.NoError(t, json.Unmarshal(updated.Data, &updatedData))
	assert.Equal(t, task.ID, updatedData.TaskID)
	assert.Equal(t, seed.done.ID, updatedData.NewColumnID)

	w = env.request(http.MethodDelete, "/api/tasks/"+task.ID, seed.ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	deleted := readFrame(t, ws)
	require.Equal(t, realtime.EventTaskDeleted, deleted.Event)
	assert.JSONEq(t, `{"taskId":"`+task.ID+`"}`, string(deleted.Data))
}

func TestRealtimeHandler_Handshake(t *testing.T) {
	var hub *realtime.Hub
	env := setupAPI(t, withHub(&hub))
	token := env.signup("viewer@example.com", "Viewer")

	for _, path := range []string{"/ws", "/ws?token=garbage"} {
		w := env.request(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		assert.Equal(t, apierrors.ErrCodeInvalidCredentials, errorCode(t, w))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	w := env.request(http.MethodGet, "/ws", token, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apierrors.ErrCodeServiceUnavailable, errorCode(t, w))
}
