package syncclient

import (
	"sync"

	"github.com/google/uuid"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

// Board is the local view of one board: its columns and its tasks in
// insertion order.
type Board struct {
	ID   string
	Slug string

	mu      sync.RWMutex
	columns []models.Column
	order   []string
	tasks   map[string]models.Task
	// pending maps a correlation ID to the placeholder task created for it.
	pending map[string]string
	stale   bool
}

// NewBoard creates an empty local board.
func NewBoard(id, slug string) *Board {
	return &Board{
		ID:      id,
		Slug:    slug,
		tasks:   make(map[string]models.Task),
		pending: make(map[string]string),
	}
}

// Reset replaces the local state with a fresh snapshot.
func (b *Board) Reset(columns []models.Column, tasks []models.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.columns = append([]models.Column(nil), columns...)
	b.order = b.order[:0]
	b.tasks = make(map[string]models.Task, len(tasks))
	b.pending = make(map[string]string)
	for _, t := range tasks {
		b.appendLocked(t)
	}
	b.stale = false
}

func (b *Board) Columns() []models.Column {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]models.Column(nil), b.columns...)
}

// Tasks returns the tasks in insertion order.
func (b *Board) Tasks() []models.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tasks := make([]models.Task, 0, len(b.order))
	for _, id := range b.order {
		tasks = append(tasks, b.tasks[id])
	}
	return tasks
}

func (b *Board) Task(id string) (models.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	return t, ok
}

// ApplyUpdated moves a known task. Unknown tasks are ignored.
func (b *Board) ApplyUpdated(taskID, newColumnID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tasks[taskID]; ok {
		t.ColumnID = newColumnID
		b.tasks[taskID] = t
	}
}

// ApplyTask replaces a known task with the server's copy. Unknown tasks are
// ignored.
func (b *Board) ApplyTask(task models.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[task.ID]; ok {
		b.tasks[task.ID] = task
	}
}

// ApplyDeleted removes a task. Unknown tasks are ignored.
func (b *Board) ApplyDeleted(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(taskID)
}

// ApplyCreated adds a task from the server. When correlationID belongs to a
// local placeholder the placeholder is swapped for the stored task in place.
func (b *Board) ApplyCreated(task models.Task, correlationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if placeholder, ok := b.pending[correlationID]; ok && correlationID != "" {
		delete(b.pending, correlationID)
		for i, id := range b.order {
			if id == placeholder {
				delete(b.tasks, placeholder)
				b.order[i] = task.ID
				b.tasks[task.ID] = task
				return
			}
		}
	}
	b.appendLocked(task)
}

// MoveLocal applies a move before the server confirms it.
func (b *Board) MoveLocal(taskID, columnID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[taskID]
	if !ok {
		return false
	}
	t.ColumnID = columnID
	b.tasks[taskID] = t
	return true
}

// DeleteLocal removes a task before the server confirms it.
func (b *Board) DeleteLocal(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(taskID)
}

// CreateLocal shows draft under a temporary ID until the server echo for
// correlationID arrives. It returns the temporary ID.
func (b *Board) CreateLocal(draft models.Task, correlationID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	draft.ID = "local-" + uuid.NewString()
	draft.BoardID = b.ID
	b.pending[correlationID] = draft.ID
	b.appendLocked(draft)
	return draft.ID
}

// DiscardLocal drops a placeholder whose create was rejected.
func (b *Board) DiscardLocal(correlationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if placeholder, ok := b.pending[correlationID]; ok {
		delete(b.pending, correlationID)
		b.removeLocked(placeholder)
	}
}

// ApplySyncFailed marks the view as diverged from the store.
func (b *Board) ApplySyncFailed() {
	b.mu.Lock()
	b.stale = true
	b.mu.Unlock()
}

func (b *Board) Stale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stale
}

func (b *Board) appendLocked(t models.Task) {
	if _, exists := b.tasks[t.ID]; !exists {
		b.order = append(b.order, t.ID)
	}
	b.tasks[t.ID] = t
}

func (b *Board) removeLocked(taskID string) bool {
	if _, ok := b.tasks[taskID]; !ok {
		return false
	}
	delete(b.tasks, taskID)
	for i, id := range b.order {
		if id == taskID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}
