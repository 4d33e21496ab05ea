package session

import (
	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

/*
AgentExecutor is the user-supplied business logic. Execute is invoked once
per Session and runs until it returns, emitting events through the
EventProcessor it is handed; Cancel asks a running Execute to stop
cooperatively and is expected to emit whatever final event (typically a
Canceled status update) the executor wants observed before returning.

Both are treated as opaque suspending computations: the core never
inspects what they do, only that they eventually return (or are canceled)
and that events flow out through the processor in the meantime.
*/
type AgentExecutor interface {
	Execute(ctx context.Context, reqCtx *RequestContext, processor *EventProcessor) error
	Cancel(ctx context.Context, reqCtx *RequestContext, processor *EventProcessor) error
}

// TaskStorage is the Task Store surface handed to the executor, scoped to
// this request's contextId.
type TaskStorage interface {
	Get(ctx context.Context, id string, historyLength *int, includeArtifacts bool) (*a2a.Task, error)
	Put(ctx context.Context, task *a2a.Task) error
	Update(ctx context.Context, id string, mutator func(*a2a.Task) error) (*a2a.Task, error)
	GetByContext() []*a2a.Task
}

// MessageStorage is the Message Store surface handed to the executor,
// scoped to this request's contextId.
type MessageStorage interface {
	Save(message *a2a.Message) error
	GetByContext() []a2a.Message
	DeleteByContext()
	ReplaceByContext(messages []a2a.Message)
}

/*
RequestContext is what the handler hands the executor: the triggering
message, the resolved task/context ids, a shallow snapshot of the stored
task if one exists, any related tasks the message referenced, the two
stores scoped to this contextId, and a call-scoped opaque state map
alongside the transport's headers.
*/
type RequestContext struct {
	Message        *a2a.Message
	TaskID         string
	ContextID      string
	StoredTask     *a2a.Task
	RelatedTasks   []*a2a.Task
	TaskStorage    TaskStorage
	MessageStorage MessageStorage
	Headers        map[string]string
	State          map[string]any
}

func (rc *RequestContext) TaskInfo() a2a.TaskInfo {
	return a2a.TaskInfo{TaskID: rc.TaskID, ContextID: rc.ContextID}
}

// RequestContextInterceptor is an extension point that can inspect or
// enrich a RequestContext before it reaches the AgentExecutor — e.g. to
// load tasks referenced in the triggering message.
type RequestContextInterceptor interface {
	Intercept(ctx context.Context, reqCtx *RequestContext) (context.Context, error)
}
