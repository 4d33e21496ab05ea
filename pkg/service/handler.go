package service

// Handler implements the Request Handler (C9): the nine A2A methods,
// wired on top of the Task/Message/Push-Config stores and the Session
// Manager. It owns no business logic of its own — every Task/Message
// decision is made by the AgentExecutor the server was configured with.

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/session"
	"github.com/theapemachine/a2a-go/pkg/stores"
	"github.com/theapemachine/a2a-go/pkg/utils"
)

type Handler struct {
	keys     *session.KeyedMutex
	tasks    *stores.InMemoryTaskStore
	messages *stores.InMemoryMessageStore
	push     *stores.InMemoryPushConfigStore
	manager  *session.Manager
	executor session.AgentExecutor

	card         *a2a.AgentCard
	extendedCard *a2a.AgentCard
}

func NewHandler(
	keys *session.KeyedMutex,
	tasks *stores.InMemoryTaskStore,
	messages *stores.InMemoryMessageStore,
	push *stores.InMemoryPushConfigStore,
	manager *session.Manager,
	executor session.AgentExecutor,
	card *a2a.AgentCard,
	extendedCard *a2a.AgentCard,
) *Handler {
	return &Handler{
		keys:         keys,
		tasks:        tasks,
		messages:     messages,
		push:         push,
		manager:      manager,
		executor:     executor,
		card:         card,
		extendedCard: extendedCard,
	}
}

// resolved carries the outcome of resolving a message/send or
// message/stream call's target: either a brand-new session about to be
// started, or a handle on one already running.
type resolved struct {
	taskID    string
	contextID string
	session   *session.Session
	fresh     bool
}

// resolve implements the shared taskId/contextId/session lookup used by
// both OnSendMessage and OnSendMessageStream. It must be called while
// holding the task-key lock for the returned taskID.
func (h *Handler) resolve(ctx context.Context, msg *a2a.Message) (resolved, error) {
	if msg.TaskID != nil {
		taskID := *msg.TaskID

		if sess, ok := h.manager.GetSession(taskID); ok {
			return resolved{taskID: taskID, contextID: sess.ContextID, session: sess}, nil
		}

		if _, err := h.tasks.Get(ctx, taskID, nil, false); err == nil {
			// Either genuinely terminal, or a non-terminal task with no
			// live session — internally inconsistent in this
			// implementation, so treated the same as terminal rather
			// than silently reviving it.
			return resolved{}, errors.ErrTaskNotCancelable
		}

		contextID := a2a.NewContextID()
		if msg.ContextID != nil {
			contextID = *msg.ContextID
		}

		return resolved{taskID: taskID, contextID: contextID, fresh: true}, nil
	}

	taskID := a2a.NewTaskID()
	contextID := a2a.NewContextID()
	if msg.ContextID != nil {
		contextID = *msg.ContextID
	}

	return resolved{taskID: taskID, contextID: contextID, fresh: true}, nil
}

// startSession builds the Event Processor, RequestContext and Session for
// a freshly resolved call, registers it with the Session Manager, waits
// for MonitorReady, and starts it. The returned Session's Processor
// already has a live subscriber (the caller's own subscription, attached
// before Start per the "cold subscription" contract).
func (h *Handler) startSession(parent context.Context, r resolved, msg *a2a.Message, headers map[string]string) (*session.Session, <-chan a2a.Event, func(), error) {
	scopedTasks := stores.NewContextTaskStorage(h.tasks, r.contextID)
	scopedMessages := stores.NewContextMessageStorage(h.messages, r.contextID)
	processor := session.NewEventProcessor(r.taskID, r.contextID, scopedTasks)

	reqCtx := &session.RequestContext{
		Message:        msg,
		TaskID:         r.taskID,
		ContextID:      r.contextID,
		TaskStorage:    scopedTasks,
		MessageStorage: scopedMessages,
		Headers:        headers,
		State:          make(map[string]any),
	}

	sess := session.NewSession(r.taskID, r.contextID, h.executor, reqCtx, processor)

	ready, err := h.manager.AddSession(sess)
	if err != nil {
		return nil, nil, nil, err
	}

	events, cancel := processor.Subscribe()

	<-ready
	sess.Start(parent)

	return sess, events, cancel, nil
}

// OnSendMessage implements message/send.
func (h *Handler) OnSendMessage(ctx context.Context, params a2a.MessageSendParams, headers map[string]string) (a2a.SendMessageResult, error) {
	unlock := h.keys.Lock(session.TaskKey(taskKeyOf(params.Message)))
	defer unlock()

	r, err := h.resolve(ctx, params.Message)
	if err != nil {
		return nil, err
	}

	if err := h.messages.Save(withContextID(params.Message, r.contextID)); err != nil {
		return nil, err
	}

	blocking := params.Configuration.IsBlocking()

	if !r.fresh {
		return h.sendFollowUp(ctx, r, params.Message, blocking)
	}

	sess, events, cancel, err := h.startSession(ctx, r, params.Message, headers)
	if err != nil {
		return nil, err
	}

	if !blocking {
		defer cancel()
		var lastMessage *a2a.Message
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return h.snapshotOrMessage(ctx, r.taskID, lastMessage)
				}
				switch e := event.(type) {
				case a2a.MessageEvent:
					// A standalone message never interrupts non-blocking
					// drain on its own; keep it as a fallback result and
					// keep waiting for a task snapshot or status update.
					lastMessage = e.Message
				case a2a.TaskEvent:
					return e.Task, nil
				case a2a.TaskStatusUpdateEvent:
					return h.snapshotOrMessage(ctx, r.taskID, lastMessage)
				}
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	var lastMessage *a2a.Message
	authRequired := make(chan struct{}, 1)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for event := range events {
			switch e := event.(type) {
			case a2a.MessageEvent:
				lastMessage = e.Message
			case a2a.TaskStatusUpdateEvent:
				if e.Status.State == a2a.TaskStateAuthRequired {
					select {
					case authRequired <- struct{}{}:
					default:
					}
				}
			}
		}
	}()

	joined := make(chan error, 1)
	go func() { joined <- sess.Join(ctx) }()

	select {
	case <-authRequired:
		// The client cannot make further progress without the handler
		// returning control, even in blocking mode; the session keeps
		// running in the background.
		cancel()
		<-drained
		return h.snapshotOrMessage(ctx, r.taskID, lastMessage)
	case err := <-joined:
		if err != nil {
			cancel()
			return nil, err
		}
		<-drained
		return h.snapshotOrMessage(ctx, r.taskID, lastMessage)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

// sendFollowUp persists a message against an already-running session's
// task and, in blocking mode, waits for the next Working, AuthRequired or
// terminal status transition before returning a snapshot.
func (h *Handler) sendFollowUp(ctx context.Context, r resolved, msg *a2a.Message, blocking bool) (a2a.SendMessageResult, error) {
	_, err := h.tasks.Update(ctx, r.taskID, func(task *a2a.Task) error {
		task.History = append(task.History, *msg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !blocking {
		return h.tasks.Get(ctx, r.taskID, nil, true)
	}

	events, cancel := r.session.Processor().Subscribe()
	defer cancel()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return h.tasks.Get(ctx, r.taskID, nil, true)
			}
			if status, ok := event.(a2a.TaskStatusUpdateEvent); ok {
				state := status.Status.State
				if state == a2a.TaskStateWorking || state == a2a.TaskStateAuthRequired || state.Terminal() {
					return h.tasks.Get(ctx, r.taskID, nil, true)
				}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (h *Handler) snapshotOrMessage(ctx context.Context, taskID string, fallback *a2a.Message) (a2a.SendMessageResult, error) {
	task, err := h.tasks.Get(ctx, taskID, nil, true)
	if err != nil {
		if fallback != nil {
			return fallback, nil
		}
		return nil, err
	}
	return task, nil
}

// OnSendMessageStream implements message/stream: always a cold
// subscription attached before the session (new or existing) resumes
// producing events.
func (h *Handler) OnSendMessageStream(ctx context.Context, params a2a.MessageSendParams, headers map[string]string) (<-chan a2a.Event, func(), error) {
	unlock := h.keys.Lock(session.TaskKey(taskKeyOf(params.Message)))

	r, err := h.resolve(ctx, params.Message)
	if err != nil {
		unlock()
		return nil, nil, err
	}

	if err := h.messages.Save(withContextID(params.Message, r.contextID)); err != nil {
		unlock()
		return nil, nil, err
	}

	if !r.fresh {
		_, err := h.tasks.Update(ctx, r.taskID, func(task *a2a.Task) error {
			task.History = append(task.History, *params.Message)
			return nil
		})
		events, cancel := r.session.Processor().Subscribe()
		unlock()
		if err != nil {
			return nil, nil, err
		}
		return events, cancel, nil
	}

	_, events, cancel, err := h.startSession(ctx, r, params.Message, headers)
	unlock()
	if err != nil {
		return nil, nil, err
	}

	return events, cancel, nil
}

// OnGetTask implements tasks/get.
func (h *Handler) OnGetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	return h.tasks.Get(ctx, params.ID, params.HistoryLength, params.IncludeArtifacts)
}

// OnCancelTask implements tasks/cancel. The cancel key is held for the
// whole call so the Session Manager's monitor cannot tear the session
// down while cancel is still delivering its final events.
func (h *Handler) OnCancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	cancelUnlock := h.keys.Lock(session.CancelKey(params.ID))
	defer cancelUnlock()

	taskUnlock := h.keys.Lock(session.TaskKey(params.ID))
	defer taskUnlock()

	sess, err := h.manager.RequireSession(params.ID)
	if _, notActive := err.(*session.SessionNotActive); notActive {
		task, err := h.tasks.Get(ctx, params.ID, nil, true)
		if err != nil {
			return nil, err
		}
		if task.Status.State.Terminal() {
			return nil, errors.ErrTaskNotCancelable
		}

		return h.tasks.Update(ctx, params.ID, func(t *a2a.Task) error {
			t.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: utils.Ptr(time.Now())}
			return nil
		})
	}

	if err := sess.CancelAndJoin(ctx); err != nil {
		return nil, err
	}

	return h.tasks.Get(ctx, params.ID, nil, true)
}

// OnResubscribe implements tasks/resubscribe.
func (h *Handler) OnResubscribe(ctx context.Context, params a2a.TaskIDParams) (<-chan a2a.Event, func(), error) {
	sess, err := h.manager.RequireSession(params.ID)
	if _, notActive := err.(*session.SessionNotActive); notActive {
		if _, err := h.tasks.Get(ctx, params.ID, nil, false); err != nil {
			return nil, nil, err
		}

		empty := make(chan a2a.Event)
		close(empty)
		return empty, func() {}, nil
	}

	events, cancel := sess.Processor().Subscribe()
	return events, cancel, nil
}

// OnSetTaskPushConfig implements tasks/pushNotificationConfig/set.
func (h *Handler) OnSetTaskPushConfig(ctx context.Context, params a2a.TaskPushNotificationConfig) (*a2a.TaskPushNotificationConfig, error) {
	if _, err := h.tasks.Get(ctx, params.TaskID, nil, false); err != nil {
		return nil, err
	}

	saved, err := h.push.Save(ctx, params.TaskID, params.PushNotificationConfig)
	if err != nil {
		return nil, err
	}

	return &a2a.TaskPushNotificationConfig{TaskID: params.TaskID, PushNotificationConfig: saved}, nil
}

// OnGetTaskPushConfig implements tasks/pushNotificationConfig/get.
func (h *Handler) OnGetTaskPushConfig(ctx context.Context, params a2a.TaskPushConfigParams) (*a2a.TaskPushNotificationConfig, error) {
	if _, err := h.tasks.Get(ctx, params.TaskID, nil, false); err != nil {
		return nil, err
	}

	config, err := h.push.Get(ctx, params.TaskID, params.ConfigID)
	if err != nil {
		return nil, err
	}

	return &a2a.TaskPushNotificationConfig{TaskID: params.TaskID, PushNotificationConfig: config}, nil
}

// OnListTaskPushConfig implements tasks/pushNotificationConfig/list.
func (h *Handler) OnListTaskPushConfig(ctx context.Context, params a2a.TaskIDParams) ([]a2a.TaskPushNotificationConfig, error) {
	if _, err := h.tasks.Get(ctx, params.ID, nil, false); err != nil {
		return nil, err
	}

	configs, err := h.push.List(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	out := make([]a2a.TaskPushNotificationConfig, len(configs))
	for i, config := range configs {
		out[i] = a2a.TaskPushNotificationConfig{TaskID: params.ID, PushNotificationConfig: config}
	}

	return out, nil
}

// OnDeleteTaskPushConfig implements tasks/pushNotificationConfig/delete.
func (h *Handler) OnDeleteTaskPushConfig(ctx context.Context, params a2a.TaskPushConfigParams) error {
	if _, err := h.tasks.Get(ctx, params.TaskID, nil, false); err != nil {
		return err
	}

	return h.push.Delete(ctx, params.TaskID, params.ConfigID)
}

// OnGetAuthenticatedExtendedCard implements
// agent/getAuthenticatedExtendedCard.
func (h *Handler) OnGetAuthenticatedExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	if h.extendedCard == nil {
		return nil, errors.ErrUnsupportedOperation
	}
	return h.extendedCard, nil
}

func taskKeyOf(msg *a2a.Message) string {
	if msg.TaskID != nil {
		return *msg.TaskID
	}
	// Messages starting a brand-new task have no id yet to lock on; the
	// nil case below generates its own, so no two callers can collide on
	// this placeholder key.
	return "new/" + a2a.NewMessageID()
}

func withContextID(msg *a2a.Message, contextID string) *a2a.Message {
	if msg.ContextID == nil {
		msg.ContextID = utils.Ptr(contextID)
	}
	return msg
}
