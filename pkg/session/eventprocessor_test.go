package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/errors"
)

// memTaskStore is a minimal, session-package-local TaskStore: the real
// in-memory store lives in pkg/stores, which itself imports this package,
// so a test here can't depend on it without an import cycle.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*a2a.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[string]*a2a.Task)}
}

func (s *memTaskStore) Get(ctx context.Context, id string, historyLength *int, includeArtifacts bool) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, errors.ErrTaskNotFound
	}
	return task, nil
}

func (s *memTaskStore) Put(ctx context.Context, task *a2a.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
	return nil
}

func (s *memTaskStore) Update(ctx context.Context, id string, mutator func(*a2a.Task) error) (*a2a.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, errors.ErrTaskNotFound
	}
	if err := mutator(task); err != nil {
		return nil, err
	}
	return task, nil
}

func TestEventProcessor_RejectsEventsAfterFinal(t *testing.T) {
	store := newMemTaskStore()
	ep := NewEventProcessor("task-1", "ctx-1", store)
	ctx := context.Background()

	require.NoError(t, ep.SendTaskEvent(ctx, a2a.TaskEvent{Task: a2a.NewTask("task-1", "ctx-1")}))

	require.NoError(t, ep.SendTaskEvent(ctx, a2a.TaskStatusUpdateEvent{
		TaskID: "task-1", ContextID: "ctx-1",
		Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
		Final:  true,
	}))

	// The processor closes itself once a final event lands; a standalone
	// message bypasses the store's own monotonicity check, so this is the
	// path that exercises the processor's own terminal guard.
	err := ep.SendMessage(ctx, a2a.NewTextMessage(a2a.RoleAgent, "too late"))
	var invalidEvent *InvalidEventException
	require.ErrorAs(t, err, &invalidEvent)
}

func TestEventProcessor_RejectsMonotonicityViolation(t *testing.T) {
	store := newMemTaskStore()
	require.NoError(t, store.Put(context.Background(), &a2a.Task{
		ID: "task-2", ContextID: "ctx-1",
		Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
	}))

	ep := NewEventProcessor("task-2", "ctx-1", store)

	// The store already holds a terminal task (as if restored from a
	// crash); a non-final update against it must be rejected rather than
	// silently reviving the task.
	err := ep.SendTaskEvent(context.Background(), a2a.TaskStatusUpdateEvent{
		TaskID: "task-2", ContextID: "ctx-1",
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	var invalidTransition *InvalidTransition
	require.ErrorAs(t, err, &invalidTransition)
	assert.Equal(t, "completed", invalidTransition.From)
	assert.Equal(t, "working", invalidTransition.To)
}

func TestEventProcessor_RejectsMismatchedTaskInfo(t *testing.T) {
	store := newMemTaskStore()
	ep := NewEventProcessor("task-3", "ctx-1", store)

	err := ep.SendTaskEvent(context.Background(), a2a.TaskStatusUpdateEvent{
		TaskID: "someone-elses-task", ContextID: "ctx-1",
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	})

	var invalidEvent *InvalidEventException
	require.ErrorAs(t, err, &invalidEvent)
}

func TestEventProcessor_ColdSubscriberSeesEventsFromStart(t *testing.T) {
	store := newMemTaskStore()
	ep := NewEventProcessor("task-4", "ctx-1", store)

	events, cancel := ep.Subscribe()
	defer cancel()

	require.NoError(t, ep.SendMessage(context.Background(), a2a.NewTextMessage(a2a.RoleAgent, "hi")))

	select {
	case event := <-events:
		msgEvent, ok := event.(a2a.MessageEvent)
		require.True(t, ok)
		assert.Equal(t, "hi", msgEvent.Message.Parts[0].Text)
	default:
		t.Fatal("subscriber attached before the event should have received it")
	}
}

func TestEventProcessor_DisconnectsSlowSubscriber(t *testing.T) {
	store := newMemTaskStore()
	ep := NewEventProcessor("task-5", "ctx-1", store)

	events, cancel := ep.Subscribe()
	defer cancel()

	// subscriberBuffer+1 sends without draining overflows the buffered
	// channel, which should disconnect this subscriber rather than block
	// the emitting goroutine.
	for i := 0; i < subscriberBuffer+1; i++ {
		_ = ep.SendMessage(context.Background(), a2a.NewTextMessage(a2a.RoleAgent, "msg"))
	}

	closed := make(chan struct{})
	go func() {
		for range events {
		}
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was never disconnected")
	}
}
