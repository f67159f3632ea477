// Package realtime relays task changes between sockets viewing the same board.
package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/kanban-realtime-api/internal/auth"
	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
	"github.com/yukikurage/kanban-realtime-api/internal/rbac"
	"github.com/yukikurage/kanban-realtime-api/internal/services"
	"golang.org/x/time/rate"
)

var ErrHubClosed = errors.New("realtime hub is shutting down")

// BoardAccess resolves board references and checks the caller's role.
type BoardAccess interface {
	ResolveBoard(ctx context.Context, ref string) (*models.Board, error)
	Authorize(ctx context.Context, userID string, board *models.Board, action rbac.Action) (rbac.Role, error)
}

// TaskStore is the task persistence used on the socket path.
type TaskStore interface {
	CreateTask(ctx context.Context, userID string, input services.CreateTaskInput) (*models.Task, error)
	PersistMove(ctx context.Context, boardID, taskID, columnID string) error
	PersistDelete(ctx context.Context, boardID, taskID string) error
}

// Options tunes a Hub. Zero values get defaults.
type Options struct {
	Logger          logrus.FieldLogger
	PersistTimeout  time.Duration
	EventsPerSecond float64
	EventBurst      int
	SendBuffer      int
	// InstanceID tags bus messages so an instance skips its own broadcasts.
	InstanceID  string
	Deduper     Deduper
	Bus         Bus
	CheckOrigin func(r *http.Request) bool
}

// Hub owns the live connections and the board rooms.
type Hub struct {
	verifier auth.Verifier
	boards   BoardAccess
	tasks    TaskStore
	rooms    *RoomRegistry
	upgrader websocket.Upgrader
	opts     Options
	log      logrus.FieldLogger

	mu     sync.Mutex
	conns  map[string]*Conn
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates a Hub. It accepts connections until Shutdown.
func NewHub(verifier auth.Verifier, boards BoardAccess, tasks TaskStore, opts Options) *Hub {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if opts.EventBurst <= 0 {
		opts.EventBurst = 1
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.InstanceID == "" {
		opts.InstanceID = uuid.NewString()
	}
	if opts.Deduper == nil {
		opts.Deduper = NewMemoryDeduper(10 * time.Minute)
	}

	return &Hub{
		verifier: verifier,
		boards:   boards,
		tasks:    tasks,
		rooms:    NewRoomRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts:  opts,
		log:   opts.Logger.WithField("component", "realtime"),
		conns: make(map[string]*Conn),
	}
}

// Rooms exposes the room registry.
func (h *Hub) Rooms() *RoomRegistry { return h.rooms }

// Authenticate reads the handshake credential from the token query parameter
// or the Authorization header.
func (h *Hub) Authenticate(r *http.Request) (auth.Identity, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		token, err = auth.BearerFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			return auth.Identity{}, err
		}
	}
	return h.verifier.Verify(token)
}

// Accept upgrades an already authenticated request and starts its pumps.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, identity auth.Identity) error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return ErrHubClosed
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		return err
	}

	limit := rate.Inf
	if h.opts.EventsPerSecond > 0 {
		limit = rate.Limit(h.opts.EventsPerSecond)
	}
	id := uuid.NewString()
	c := &Conn{
		id:       id,
		hub:      h,
		ws:       ws,
		identity: identity,
		log:      h.log.WithFields(logrus.Fields{"conn_id": id, "user_id": identity.UserID}),
		send:     make(chan []byte, h.opts.SendBuffer),
		done:     make(chan struct{}),
		jobs:     make(chan job, jobQueueSize),
		limiter:  rate.NewLimiter(limit, h.opts.EventBurst),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return ErrHubClosed
	}
	h.conns[id] = c
	h.wg.Add(3)
	h.mu.Unlock()

	c.log.Debug("realtime connection opened")
	go c.writePump()
	go c.persistWorker()
	go c.readPump()
	return nil
}

func (h *Hub) release(c *Conn) []string {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
	return h.rooms.LeaveAll(c.id)
}

// Run forwards broadcasts from other instances until ctx is done. Without a
// bus it returns immediately.
func (h *Hub) Run(ctx context.Context) error {
	if h.opts.Bus == nil {
		return nil
	}
	return h.opts.Bus.Subscribe(ctx, func(m BusMessage) {
		if m.Origin == h.opts.InstanceID {
			return
		}
		h.rooms.Broadcast(m.Room, m.Frame, m.Except)
	})
}

// Shutdown closes every connection and waits for queued persistence to drain.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.opts.PersistTimeout)
}

// broadcast delivers locally and forwards to the bus when one is configured.
func (h *Hub) broadcast(room string, msg []byte, exceptID string) {
	h.rooms.Broadcast(room, msg, exceptID)
	if h.opts.Bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	err := h.opts.Bus.Publish(ctx, BusMessage{Origin: h.opts.InstanceID, Room: room, Except: exceptID, Frame: msg})
	if err != nil {
		h.log.WithError(err).WithField("board_id", room).Warn("failed to forward broadcast")
	}
}

// Publish broadcasts a server event to a whole board room. REST handlers use
// it so socket viewers see REST edits.
func (h *Hub) Publish(boardID, event string, payload interface{}) {
	msg, err := Encode(event, "", payload)
	if err != nil {
		h.log.WithError(err).Error("failed to encode published event")
		return
	}
	h.broadcast(boardID, msg, "")
}

// PublishTaskCreated sends a REST-created task to its board room.
func (h *Hub) PublishTaskCreated(task *models.Task) {
	h.Publish(task.BoardID, EventTaskCreated, TaskCreatedPayload{Task: task})
}

// PublishTaskUpdated sends the full updated task to its board room.
func (h *Hub) PublishTaskUpdated(task *models.Task) {
	h.Publish(task.BoardID, EventTaskUpdated, TaskUpdatedPayload{TaskID: task.ID, NewColumnID: task.ColumnID, Task: task})
}

// PublishTaskDeleted tells the board room a task is gone.
func (h *Hub) PublishTaskDeleted(task *models.Task) {
	h.Publish(task.BoardID, EventTaskDeleted, TaskDeletedPayload{TaskID: task.ID})
}

func (h *Hub) dispatch(c *Conn, frame Frame) {
	ev, err := frame.Decode()
	if err != nil {
		c.emitError(frame.Event, frame.CorrelationID, apierrors.ErrCodeInvalidInput, err.Error())
		return
	}

	switch e := ev.(type) {
	case JoinBoard:
		h.joinBoard(c, frame, e)
	case LeaveBoard:
		h.leaveBoard(c, frame, e)
	case TaskMoved:
		h.taskMoved(c, frame, e)
	case TaskDeleted:
		h.taskDeleted(c, frame, e)
	case TaskCreated:
		h.taskCreated(c, frame, e)
	}
}

// authorizedBoard resolves ref and checks action for the connection's user.
func (h *Hub) authorizedBoard(ctx context.Context, c *Conn, ref string, action rbac.Action) (*models.Board, error) {
	board, err := h.boards.ResolveBoard(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := h.boards.Authorize(ctx, c.identity.UserID, board, action); err != nil {
		return nil, err
	}
	return board, nil
}

func (h *Hub) joinBoard(c *Conn, frame Frame, e JoinBoard) {
	ctx, cancel := h.storeContext()
	defer cancel()

	board, err := h.authorizedBoard(ctx, c, e.BoardRef, rbac.ActionRead)
	if err != nil {
		h.reject(c, frame, err)
		return
	}
	if h.rooms.Join(board.ID, c) {
		c.log.WithField("board_id", board.ID).Debug("joined board")
	}
	c.emit(EventBoardJoined, frame.CorrelationID, BoardRoomPayload{BoardID: board.ID, BoardSlug: board.Slug})
}

func (h *Hub) leaveBoard(c *Conn, frame Frame, e LeaveBoard) {
	ctx, cancel := h.storeContext()
	defer cancel()

	board, err := h.boards.ResolveBoard(ctx, e.BoardRef)
	if err != nil {
		h.reject(c, frame, err)
		return
	}
	h.rooms.Leave(board.ID, c.id)
	c.emit(EventBoardLeft, frame.CorrelationID, BoardRoomPayload{BoardID: board.ID, BoardSlug: board.Slug})
}

// taskMoved broadcasts to the other viewers first and persists afterwards.
func (h *Hub) taskMoved(c *Conn, frame Frame, e TaskMoved) {
	ctx, cancel := h.storeContext()
	defer cancel()

	board, err := h.authorizedBoard(ctx, c, e.BoardRef, rbac.ActionWriteTask)
	if err != nil {
		h.reject(c, frame, err)
		return
	}

	msg, err := Encode(EventTaskUpdated, frame.CorrelationID, TaskUpdatedPayload{TaskID: e.TaskID, NewColumnID: e.NewColumnID})
	if err != nil {
		h.reject(c, frame, err)
		return
	}
	h.broadcast(board.ID, msg, c.id)

	boardID := board.ID
	c.enqueue(func(ctx context.Context) {
		if err := h.tasks.PersistMove(ctx, boardID, e.TaskID, e.NewColumnID); err != nil {
			h.syncFailed(c, boardID, frame.CorrelationID, e.TaskID, "move", err)
		}
	})
}

// taskDeleted broadcasts to the whole room, sender included, then persists.
func (h *Hub) taskDeleted(c *Conn, frame Frame, e TaskDeleted) {
	ctx, cancel := h.storeContext()
	defer cancel()

	board, err := h.authorizedBoard(ctx, c, e.BoardRef, rbac.ActionWriteTask)
	if err != nil {
		h.reject(c, frame, err)
		return
	}

	msg, err := Encode(EventTaskDeleted, frame.CorrelationID, TaskDeletedPayload{TaskID: e.TaskID})
	if err != nil {
		h.reject(c, frame, err)
		return
	}
	h.broadcast(board.ID, msg, "")

	boardID := board.ID
	c.enqueue(func(ctx context.Context) {
		if err := h.tasks.PersistDelete(ctx, boardID, e.TaskID); err != nil {
			h.syncFailed(c, boardID, frame.CorrelationID, e.TaskID, "delete", err)
		}
	})
}

// taskCreated persists first so peers receive the stored ID.
func (h *Hub) taskCreated(c *Conn, frame Frame, e TaskCreated) {
	ctx, cancel := h.storeContext()
	defer cancel()

	board, err := h.authorizedBoard(ctx, c, e.BoardRef, rbac.ActionWriteTask)
	if err != nil {
		h.reject(c, frame, err)
		return
	}

	var key string
	if frame.CorrelationID != "" {
		key = "task-created:" + c.identity.UserID + ":" + frame.CorrelationID
		fresh, err := h.opts.Deduper.Claim(ctx, key)
		switch {
		case err != nil:
			c.log.WithError(err).Warn("dedupe unavailable, creating without it")
			key = ""
		case !fresh:
			c.emitError(frame.Event, frame.CorrelationID, apierrors.ErrCodeConflict, "task already created for this correlation ID")
			return
		}
	}

	task, err := h.tasks.CreateTask(ctx, c.identity.UserID, services.CreateTaskInput{
		BoardRef:    board.ID,
		ColumnID:    e.Task.ColumnID,
		Title:       e.Task.Title,
		Description: e.Task.Description,
		Status:      e.Task.Status,
	})
	if err != nil {
		if key != "" {
			if rerr := h.opts.Deduper.Release(ctx, key); rerr != nil {
				c.log.WithError(rerr).Warn("failed to release dedupe key")
			}
		}
		h.reject(c, frame, err)
		return
	}

	msg, err := Encode(EventTaskCreated, frame.CorrelationID, TaskCreatedPayload{Task: task})
	if err != nil {
		h.reject(c, frame, err)
		return
	}
	h.broadcast(board.ID, msg, "")
}

// reject reports a failed event to its sender only.
func (h *Hub) reject(c *Conn, frame Frame, err error) {
	code, message := classify(err)
	if code == apierrors.ErrCodeInternalError {
		c.log.WithError(err).WithField("event", frame.Event).Error("realtime event failed")
	}
	c.emitError(frame.Event, frame.CorrelationID, code, message)
}

// syncFailed tells the whole room that an already broadcast change did not
// reach the store.
func (h *Hub) syncFailed(c *Conn, boardID, correlationID, taskID, op string, err error) {
	c.log.WithError(err).WithFields(logrus.Fields{
		"board_id": boardID,
		"task_id":  taskID,
		"op":       op,
	}).Error("realtime persistence failed")

	_, reason := classify(err)
	msg, encErr := Encode(EventTaskSyncFailed, correlationID, SyncFailedPayload{TaskID: taskID, Op: op, Reason: reason})
	if encErr != nil {
		c.log.WithError(encErr).Error("failed to encode sync failure")
		return
	}
	h.broadcast(boardID, msg, "")
}

// classify maps service errors to an error code and a client safe message.
func classify(err error) (string, string) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return apierrors.ErrCodeForbidden, "insufficient role for this action"
	case errors.Is(err, services.ErrBoardNotFound),
		errors.Is(err, services.ErrColumnNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrWorkspaceNotFound):
		return apierrors.ErrCodeNotFound, err.Error()
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrColumnNotInBoard),
		errors.Is(err, services.ErrInvalidTaskStatus):
		return apierrors.ErrCodeInvalidInput, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrCodeServiceUnavailable, "store did not respond in time"
	}
	return apierrors.ErrCodeInternalError, "internal error"
}
