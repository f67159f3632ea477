package realtime_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/kanban-realtime-api/internal/realtime"
)

func TestRedisBus_FansOutBetweenHubs(t *testing.T) {
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { rc.Close() })

	w := newWorld(t)
	task := w.seedTask(t, "Across instances")
	logger, _ := test.NewNullLogger()
	bus := realtime.NewRedisBus(rc, "kanban:test", logger)
	dedupe := realtime.NewRedisDeduper(rc, time.Minute)

	hubA, serverA := w.newHub(t, realtime.Options{Logger: logger, Bus: bus, Deduper: dedupe, InstanceID: "a"})
	hubB, serverB := w.newHub(t, realtime.Options{Logger: logger, Bus: bus, Deduper: dedupe, InstanceID: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	for _, hub := range []*realtime.Hub{hubA, hubB} {
		go func(hub *realtime.Hub) {
			hub.Run(ctx)
			done <- struct{}{}
		}(hub)
	}
	// wait for both subscriptions
	time.Sleep(100 * time.Millisecond)

	owner := dial(t, serverA, w.token(t, w.owner))
	member := dial(t, serverB, w.token(t, w.member))
	owner.join(w.board.Slug)
	member.join(w.board.Slug)

	owner.emit(realtime.EventTaskMoved, "x-1", map[string]string{
		"taskId":      task.ID,
		"newColumnId": w.done.ID,
		"boardId":     w.board.ID,
	})
	f := member.next(realtime.EventTaskUpdated)
	require.Equal(t, task.ID, decode[realtime.TaskUpdatedPayload](t, f).TaskID)

	owner.emit(realtime.EventTaskCreate, "x-2", map[string]interface{}{
		"task":    map[string]string{"title": "Created on A", "columnId": w.todo.ID},
		"boardId": w.board.ID,
	})
	owner.next(realtime.EventTaskCreated)
	member.next(realtime.EventTaskCreated)

	// the sender's own instance skips its bus copy
	owner.sync(w.board.Slug)
	member.sync(w.board.Slug)

	cancel()
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("hub.Run did not exit")
		}
	}
}
