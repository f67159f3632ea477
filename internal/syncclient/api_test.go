package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

func TestAPIClient_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/boards/roadmap":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": "Board retrieved successfully",
				"board":   models.Board{ID: "b1", Slug: "roadmap"},
			})
		case "/api/columns/board/b1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"columns": []models.Column{{ID: "c1", BoardID: "b1", Title: "Todo"}},
			})
		case "/api/tasks/board/b1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"tasks": []models.Task{{ID: "t1", BoardID: "b1", ColumnID: "c1"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "NOT_FOUND", "message": "Board not found"})
		}
	}))
	defer server.Close()

	client := NewAPIClient(server.URL+"/", "tok", nil)
	ctx := context.Background()

	board, err := client.Board(ctx, "roadmap")
	require.NoError(t, err)
	assert.Equal(t, "b1", board.ID)

	columns, err := client.Columns(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, columns, 1)

	tasks, err := client.Tasks(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "c1", tasks[0].ColumnID)

	_, err = client.Board(ctx, "missing")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, "NOT_FOUND", statusErr.Code)
}
