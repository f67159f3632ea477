package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

var ErrNotMounted = errors.New("no board mounted")

// Snapshotter loads the REST view of a board.
type Snapshotter interface {
	Board(ctx context.Context, slug string) (*models.Board, error)
	Columns(ctx context.Context, boardID string) ([]models.Column, error)
	Tasks(ctx context.Context, boardID string) ([]models.Task, error)
}

// Agent mounts one board at a time and reconciles it with peer events.
type Agent struct {
	conn     *Conn
	api      Snapshotter
	log      logrus.FieldLogger
	onChange func(*Board)

	mu      sync.Mutex
	board   *Board
	refresh chan struct{}
	once    sync.Once
}

// NewAgent creates an Agent over conn, loading snapshots from api.
func NewAgent(conn *Conn, api Snapshotter, log logrus.FieldLogger) *Agent {
	return &Agent{
		conn:    conn,
		api:     api,
		log:     log,
		refresh: make(chan struct{}, 1),
	}
}

// OnChange registers fn to run after every applied change.
func (a *Agent) OnChange(fn func(*Board)) {
	a.onChange = fn
}

// Board returns the mounted board or nil.
func (a *Agent) Board() *Board {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.board
}

// Mount fetches the snapshot for slug and then joins its room, leaving the
// previously mounted board.
func (a *Agent) Mount(ctx context.Context, slug string) (*Board, error) {
	a.once.Do(a.listen)

	record, err := a.api.Board(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load board %s: %w", slug, err)
	}
	board := NewBoard(record.ID, record.Slug)
	if err := a.load(ctx, board); err != nil {
		return nil, err
	}

	a.mu.Lock()
	previous := a.board
	a.board = board
	a.mu.Unlock()
	if previous != nil && previous.ID != board.ID {
		if err := a.conn.Leave(previous.ID); err != nil {
			a.log.WithError(err).Warn("failed to leave previous board")
		}
	}

	if err := a.conn.Join(board.ID); err != nil {
		return nil, err
	}
	a.changed(board)
	return board, nil
}

func (a *Agent) load(ctx context.Context, board *Board) error {
	columns, err := a.api.Columns(ctx, board.ID)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}
	tasks, err := a.api.Tasks(ctx, board.ID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	board.Reset(columns, tasks)
	return nil
}

// Run refetches the snapshot whenever the board is marked stale. It returns
// when ctx is done or the connection closes.
func (a *Agent) Run(ctx context.Context) error {
	done := a.conn.Done()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return ErrNotConnected
		case <-a.refresh:
			board := a.Board()
			if board == nil {
				continue
			}
			if err := a.load(ctx, board); err != nil {
				a.log.WithError(err).Warn("failed to refresh stale board")
				continue
			}
			a.log.WithField("board_id", board.ID).Info("board refreshed after sync failure")
			a.changed(board)
		}
	}
}

// Move applies the move locally and emits it.
func (a *Agent) Move(taskID, columnID string) error {
	board := a.Board()
	if board == nil {
		return ErrNotMounted
	}
	if !board.MoveLocal(taskID, columnID) {
		return fmt.Errorf("task %s is not on board %s", taskID, board.Slug)
	}
	a.changed(board)
	return a.conn.Emit("task-moved", uuid.NewString(), map[string]string{
		"taskId":      taskID,
		"newColumnId": columnID,
		"boardId":     board.ID,
	})
}

// Delete removes the task locally and emits the intent.
func (a *Agent) Delete(taskID string) error {
	board := a.Board()
	if board == nil {
		return ErrNotMounted
	}
	board.DeleteLocal(taskID)
	a.changed(board)
	return a.conn.Emit("task-deleted", uuid.NewString(), map[string]string{
		"taskId":  taskID,
		"boardId": board.ID,
	})
}

// Create shows a placeholder and emits the intent. It returns the
// correlation ID that will come back on the server echo.
func (a *Agent) Create(columnID, title, description string) (string, error) {
	board := a.Board()
	if board == nil {
		return "", ErrNotMounted
	}
	correlationID := uuid.NewString()
	board.CreateLocal(models.Task{ColumnID: columnID, Title: title, Description: description}, correlationID)
	a.changed(board)

	err := a.conn.Emit("task-created", correlationID, map[string]interface{}{
		"task": map[string]string{
			"columnId":    columnID,
			"title":       title,
			"description": description,
		},
		"boardId": board.ID,
	})
	if err != nil {
		board.DiscardLocal(correlationID)
		return "", err
	}
	return correlationID, nil
}

func (a *Agent) listen() {
	a.conn.On("task-updated", func(m Message) {
		var p struct {
			TaskID      string       `json:"taskId"`
			NewColumnID string       `json:"newColumnId"`
			Task        *models.Task `json:"task"`
		}
		a.apply(m, &p, func(b *Board) {
			// REST updates carry the whole task
			if p.Task != nil {
				if p.Task.BoardID == b.ID {
					b.ApplyTask(*p.Task)
				}
				return
			}
			b.ApplyUpdated(p.TaskID, p.NewColumnID)
		})
	})
	a.conn.On("task-deleted", func(m Message) {
		var p struct {
			TaskID string `json:"taskId"`
		}
		a.apply(m, &p, func(b *Board) { b.ApplyDeleted(p.TaskID) })
	})
	a.conn.On("task-created", func(m Message) {
		var p struct {
			Task *models.Task `json:"task"`
		}
		a.apply(m, &p, func(b *Board) {
			if p.Task != nil && p.Task.BoardID == b.ID {
				b.ApplyCreated(*p.Task, m.CorrelationID)
			}
		})
	})
	a.conn.On("task-sync-failed", func(m Message) {
		var p struct {
			TaskID string `json:"taskId"`
			Op     string `json:"op"`
			Reason string `json:"reason"`
		}
		a.apply(m, &p, func(b *Board) {
			a.log.WithFields(logrus.Fields{"task_id": p.TaskID, "op": p.Op}).Warn("server could not store change: " + p.Reason)
			a.markStale(b)
		})
	})
	a.conn.On("error", func(m Message) {
		var p struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Event   string `json:"event"`
		}
		a.apply(m, &p, func(b *Board) {
			a.log.WithFields(logrus.Fields{"code": p.Code, "event": p.Event}).Warn(p.Message)
			switch p.Event {
			case "task-created":
				b.DiscardLocal(m.CorrelationID)
			case "task-moved", "task-deleted":
				// the optimistic change was rejected
				a.markStale(b)
			}
		})
	})
}

func (a *Agent) apply(m Message, payload interface{}, fn func(*Board)) {
	if err := json.Unmarshal(m.Data, payload); err != nil {
		a.log.WithError(err).WithField("event", m.Event).Warn("unable to parse event payload")
		return
	}
	board := a.Board()
	if board == nil {
		return
	}
	fn(board)
	a.changed(board)
}

func (a *Agent) markStale(b *Board) {
	b.ApplySyncFailed()
	select {
	case a.refresh <- struct{}{}:
	default:
	}
}

func (a *Agent) changed(board *Board) {
	if a.onChange != nil {
		a.onChange(board)
	}
}
