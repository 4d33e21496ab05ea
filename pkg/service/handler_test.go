package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/session"
	"github.com/theapemachine/a2a-go/pkg/stores"
	"github.com/theapemachine/a2a-go/pkg/utils"
)

// echoExecutor replies to every message with a standalone agent message,
// never creating a task — grounds scenario 1 (hello world).
type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	return processor.SendMessage(ctx, a2a.NewTextMessage(a2a.RoleAgent, "Hello World"))
}

func (echoExecutor) Cancel(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	return nil
}

// shortTaskExecutor emits Submitted -> Working -> Completed(final) for
// every call — grounds scenario 2.
type shortTaskExecutor struct{}

func (shortTaskExecutor) Execute(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	task := a2a.NewTask(reqCtx.TaskID, reqCtx.ContextID)
	if err := processor.SendTaskEvent(ctx, a2a.TaskEvent{Task: task}); err != nil {
		return err
	}

	if err := processor.SendTaskEvent(ctx, a2a.TaskStatusUpdateEvent{
		TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	}); err != nil {
		return err
	}

	return processor.SendTaskEvent(ctx, a2a.TaskStatusUpdateEvent{
		TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID,
		Status: a2a.TaskStatus{
			State:   a2a.TaskStateCompleted,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "done"),
		},
		Final: true,
	})
}

func (shortTaskExecutor) Cancel(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	return nil
}

// longRunningExecutor emits Submitted -> Working("Still working"...) on a
// slow loop and only reaches a terminal state via Cancel — grounds
// scenarios 3, 4 and 5.
type longRunningExecutor struct{}

func (longRunningExecutor) Execute(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	task := a2a.NewTask(reqCtx.TaskID, reqCtx.ContextID)
	if err := processor.SendTaskEvent(ctx, a2a.TaskEvent{Task: task}); err != nil {
		return err
	}

	for {
		err := processor.SendTaskEvent(ctx, a2a.TaskStatusUpdateEvent{
			TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID,
			Status: a2a.TaskStatus{
				State:   a2a.TaskStateWorking,
				Message: a2a.NewTextMessage(a2a.RoleAgent, "Still working"),
			},
		})
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (longRunningExecutor) Cancel(ctx context.Context, reqCtx *session.RequestContext, processor *session.EventProcessor) error {
	return processor.SendTaskEvent(context.Background(), a2a.TaskStatusUpdateEvent{
		TaskID: reqCtx.TaskID, ContextID: reqCtx.ContextID,
		Status: a2a.TaskStatus{
			State:   a2a.TaskStateCanceled,
			Message: a2a.NewTextMessage(a2a.RoleAgent, "Task canceled"),
		},
		Final: true,
	})
}

func newTestHandler(executor session.AgentExecutor) (*Handler, *stores.InMemoryTaskStore) {
	keys := session.NewKeyedMutex()
	tasks := stores.NewInMemoryTaskStore()
	messages := stores.NewInMemoryMessageStore()
	push := stores.NewInMemoryPushConfigStore()
	manager := session.NewManager(keys, tasks, push, nil)

	return NewHandler(keys, tasks, messages, push, manager, executor, nil, nil), tasks
}

func TestHandler_HelloWorld(t *testing.T) {
	h, tasks := newTestHandler(echoExecutor{})
	ctx := context.Background()

	result, err := h.OnSendMessage(ctx, a2a.MessageSendParams{
		Message: a2a.NewTextMessage(a2a.RoleUser, "hello world"),
	}, nil)
	assert.NoError(t, err)

	msg, ok := result.(*a2a.Message)
	assert.True(t, ok)
	assert.Equal(t, "Hello World", msg.Parts[0].Text)

	_, err = tasks.Get(ctx, "nonexistent", nil, true)
	assert.Error(t, err)
}

func TestHandler_ShortTask(t *testing.T) {
	h, _ := newTestHandler(shortTaskExecutor{})
	ctx := context.Background()

	msg := a2a.NewTextMessage(a2a.RoleUser, "do task")
	msg.ContextID = utils.Ptr("c1")

	result, err := h.OnSendMessage(ctx, a2a.MessageSendParams{Message: msg}, nil)
	assert.NoError(t, err)

	task, ok := result.(*a2a.Task)
	assert.True(t, ok)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	assert.GreaterOrEqual(t, len(task.History), 1)

	got, err := h.OnGetTask(ctx, a2a.TaskQueryParams{TaskIDParams: a2a.TaskIDParams{ID: task.ID}})
	assert.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	assert.Equal(t, 0, h.manager.ActiveSessions())
}

func TestHandler_LongRunningWithCancel(t *testing.T) {
	h, _ := newTestHandler(longRunningExecutor{})
	ctx := context.Background()

	msg := a2a.NewTextMessage(a2a.RoleUser, "do long-running task")
	msg.ContextID = utils.Ptr("c2")

	blocking := false
	result, err := h.OnSendMessage(ctx, a2a.MessageSendParams{
		Message:       msg,
		Configuration: &a2a.SendMessageConfiguration{Blocking: &blocking},
	}, nil)
	assert.NoError(t, err)

	task, ok := result.(*a2a.Task)
	assert.True(t, ok)
	assert.Contains(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking}, task.Status.State)

	events, cancel, err := h.OnResubscribe(ctx, a2a.TaskIDParams{ID: task.ID})
	assert.NoError(t, err)
	defer cancel()

	select {
	case event := <-events:
		status, ok := event.(a2a.TaskStatusUpdateEvent)
		assert.True(t, ok)
		assert.Equal(t, a2a.TaskStateWorking, status.Status.State)
		assert.Contains(t, status.Status.Message.Parts[0].Text, "Still working")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a Working event")
	}

	time.Sleep(400 * time.Millisecond)

	canceled, err := h.OnCancelTask(ctx, a2a.TaskIDParams{ID: task.ID})
	assert.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCanceled, canceled.Status.State)

	finalSeen := false
	for {
		select {
		case event, ok := <-events:
			if !ok {
				assert.True(t, finalSeen)
				return
			}
			if status, ok := event.(a2a.TaskStatusUpdateEvent); ok && status.Final {
				finalSeen = true
				assert.Equal(t, a2a.TaskStateCanceled, status.Status.State)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestHandler_FollowUpToRunningTask(t *testing.T) {
	h, _ := newTestHandler(longRunningExecutor{})
	ctx := context.Background()

	msg := a2a.NewTextMessage(a2a.RoleUser, "do long-running task")
	blocking := false
	first, err := h.OnSendMessage(ctx, a2a.MessageSendParams{
		Message:       msg,
		Configuration: &a2a.SendMessageConfiguration{Blocking: &blocking},
	}, nil)
	assert.NoError(t, err)

	task := first.(*a2a.Task)
	assert.Contains(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking}, task.Status.State)

	followUp := a2a.NewTextMessage(a2a.RoleUser, "any update?")
	followUp.TaskID = utils.Ptr(task.ID)

	second, err := h.OnSendMessage(ctx, a2a.MessageSendParams{Message: followUp}, nil)
	assert.NoError(t, err)

	updated := second.(*a2a.Task)
	assert.Equal(t, a2a.TaskStateWorking, updated.Status.State)
	assert.Contains(t, updated.Status.Message.Parts[0].Text, "Still working")
	assert.Equal(t, 1, h.manager.ActiveSessions())

	_, _ = h.OnCancelTask(ctx, a2a.TaskIDParams{ID: task.ID})
}

func TestHandler_PushNotificationOnCompletion(t *testing.T) {
	keys := session.NewKeyedMutex()
	tasks := stores.NewInMemoryTaskStore()
	messages := stores.NewInMemoryMessageStore()
	pushStore := stores.NewInMemoryPushConfigStore()

	delivered := make(chan *a2a.Task, 1)
	sender := sendFunc(func(ctx context.Context, config a2a.PushNotificationConfig, task *a2a.Task) error {
		delivered <- task
		return nil
	})

	manager := session.NewManager(keys, tasks, pushStore, sender)
	h := NewHandler(keys, tasks, messages, pushStore, manager, longRunningExecutor{}, nil, nil)
	ctx := context.Background()

	msg := a2a.NewTextMessage(a2a.RoleUser, "do long-running task")
	msg.ContextID = utils.Ptr("c3")
	blocking := false

	started, err := h.OnSendMessage(ctx, a2a.MessageSendParams{
		Message:       msg,
		Configuration: &a2a.SendMessageConfiguration{Blocking: &blocking},
	}, nil)
	assert.NoError(t, err)
	task := started.(*a2a.Task)

	_, err = h.OnSetTaskPushConfig(ctx, a2a.TaskPushNotificationConfig{
		TaskID:                 task.ID,
		PushNotificationConfig: a2a.PushNotificationConfig{URL: "https://example.com/hook"},
	})
	assert.NoError(t, err)

	_, err = h.OnCancelTask(ctx, a2a.TaskIDParams{ID: task.ID})
	assert.NoError(t, err)

	select {
	case task := <-delivered:
		assert.True(t, task.Status.State.Terminal())
	case <-time.After(time.Second):
		t.Fatal("push was never delivered")
	}
}

type sendFunc func(ctx context.Context, config a2a.PushNotificationConfig, task *a2a.Task) error

func (f sendFunc) Send(ctx context.Context, config a2a.PushNotificationConfig, task *a2a.Task) error {
	return f(ctx, config, task)
}
