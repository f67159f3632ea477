package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

// Client to server events.
const (
	EventJoinBoard  = "join-board"
	EventLeaveBoard = "leave-board"
	EventTaskMoved  = "task-moved"
	EventTaskCreate = "task-created"
	EventTaskDelete = "task-deleted"
)

// Server to client events. task-created and task-deleted are echoed under the
// same name they arrive with.
const (
	EventTaskUpdated    = "task-updated"
	EventTaskCreated    = EventTaskCreate
	EventTaskDeleted    = EventTaskDelete
	EventTaskSyncFailed = "task-sync-failed"
	EventBoardJoined    = "board-joined"
	EventBoardLeft      = "board-left"
	EventError          = "error"
)

var ErrInvalidEvent = errors.New("invalid event")

// Frame is the JSON text frame exchanged in both directions.
type Frame struct {
	Event         string          `json:"event"`
	Data          json.RawMessage `json:"data,omitempty"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

// Inbound is one decoded client event. The concrete types are JoinBoard,
// LeaveBoard, TaskMoved, TaskDeleted and TaskCreated.
type Inbound interface {
	inbound()
}

// JoinBoard asks to receive a board's events.
type JoinBoard struct {
	BoardRef string
}

// LeaveBoard stops a board's events.
type LeaveBoard struct {
	BoardRef string
}

// TaskMoved moves a task to another column.
type TaskMoved struct {
	TaskID      string
	NewColumnID string
	BoardRef    string
}

// TaskDeleted removes a task.
type TaskDeleted struct {
	TaskID   string
	BoardRef string
}

// TaskDraft holds the client supplied fields of a new task. Any creator
// field sent by the client is dropped here.
type TaskDraft struct {
	ColumnID    string `json:"columnId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// TaskCreated adds a task to a board.
type TaskCreated struct {
	Task     TaskDraft
	BoardRef string
}

func (JoinBoard) inbound()   {}
func (LeaveBoard) inbound()  {}
func (TaskMoved) inbound()   {}
func (TaskDeleted) inbound() {}
func (TaskCreated) inbound() {}

// boardRefPayload accepts either boardId or boardSlug.
type boardRefPayload struct {
	BoardID   string `json:"boardId"`
	BoardSlug string `json:"boardSlug"`
}

func (p boardRefPayload) ref() string {
	if id := strings.TrimSpace(p.BoardID); id != "" {
		return id
	}
	return strings.TrimSpace(p.BoardSlug)
}

// ParseFrame reads the envelope of a client message without looking at data.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: malformed frame", ErrInvalidEvent)
	}
	if f.Event == "" {
		return f, fmt.Errorf("%w: event is required", ErrInvalidEvent)
	}
	return f, nil
}

// Decode validates the frame data against the shape of its event.
func (f Frame) Decode() (Inbound, error) {
	switch f.Event {
	case EventJoinBoard, EventLeaveBoard:
		ref, err := decodeBoardRef(f.Data)
		if err != nil {
			return nil, err
		}
		if f.Event == EventJoinBoard {
			return JoinBoard{BoardRef: ref}, nil
		}
		return LeaveBoard{BoardRef: ref}, nil

	case EventTaskMoved:
		var p struct {
			boardRefPayload
			TaskID      string `json:"taskId"`
			NewColumnID string `json:"newColumnId"`
		}
		if err := unmarshalData(f.Data, &p); err != nil {
			return nil, err
		}
		ev := TaskMoved{TaskID: p.TaskID, NewColumnID: p.NewColumnID, BoardRef: p.ref()}
		if ev.TaskID == "" || ev.NewColumnID == "" || ev.BoardRef == "" {
			return nil, fmt.Errorf("%w: taskId, newColumnId and board are required", ErrInvalidEvent)
		}
		return ev, nil

	case EventTaskDelete:
		var p struct {
			boardRefPayload
			TaskID string `json:"taskId"`
		}
		if err := unmarshalData(f.Data, &p); err != nil {
			return nil, err
		}
		ev := TaskDeleted{TaskID: p.TaskID, BoardRef: p.ref()}
		if ev.TaskID == "" || ev.BoardRef == "" {
			return nil, fmt.Errorf("%w: taskId and board are required", ErrInvalidEvent)
		}
		return ev, nil

	case EventTaskCreate:
		var p struct {
			boardRefPayload
			Task *TaskDraft `json:"task"`
		}
		if err := unmarshalData(f.Data, &p); err != nil {
			return nil, err
		}
		if p.Task == nil || p.ref() == "" {
			return nil, fmt.Errorf("%w: task and board are required", ErrInvalidEvent)
		}
		return TaskCreated{Task: *p.Task, BoardRef: p.ref()}, nil
	}
	return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidEvent, f.Event)
}

// decodeBoardRef accepts a bare string or an object with boardId/boardSlug.
func decodeBoardRef(data json.RawMessage) (string, error) {
	var ref string
	if err := json.Unmarshal(data, &ref); err == nil {
		if ref = strings.TrimSpace(ref); ref != "" {
			return ref, nil
		}
		return "", fmt.Errorf("%w: board is required", ErrInvalidEvent)
	}
	var p boardRefPayload
	if err := unmarshalData(data, &p); err != nil {
		return "", err
	}
	if p.ref() == "" {
		return "", fmt.Errorf("%w: board is required", ErrInvalidEvent)
	}
	return p.ref(), nil
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: data is required", ErrInvalidEvent)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed data", ErrInvalidEvent)
	}
	return nil
}

// Outbound payloads.

// BoardRoomPayload acknowledges a join or leave.
type BoardRoomPayload struct {
	BoardID   string `json:"boardId"`
	BoardSlug string `json:"boardSlug"`
}

// TaskUpdatedPayload carries the full task when the update came from REST.
type TaskUpdatedPayload struct {
	TaskID      string       `json:"taskId"`
	NewColumnID string       `json:"newColumnId"`
	Task        *models.Task `json:"task,omitempty"`
}

// TaskDeletedPayload is broadcast after a delete.
type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

// TaskCreatedPayload carries the stored task.
type TaskCreatedPayload struct {
	Task *models.Task `json:"task"`
}

// SyncFailedPayload reports a broadcast change that was not stored.
type SyncFailedPayload struct {
	TaskID string `json:"taskId"`
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// ErrorPayload is sent to the sender of a rejected event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// Encode builds a text frame for event.
func Encode(event, correlationID string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return json.Marshal(Frame{Event: event, Data: data, CorrelationID: correlationID})
}
