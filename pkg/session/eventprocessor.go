package session

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// subscriberBuffer bounds how far behind a slow subscriber can fall before
// it is disconnected rather than stalling the executor. Disconnect-on-
// overflow was chosen over drop-oldest: a subscriber that silently missed
// events could observe a task as stuck, where a closed channel is an
// unambiguous "resubscribe" signal.
const subscriberBuffer = 32

// TaskStore is the slice of the Task Store the Event Processor needs: an
// upsert on every Task snapshot, and a guarded read-modify-write for
// status/artifact updates that enforces terminal-state monotonicity.
type TaskStore interface {
	Get(ctx context.Context, id string, historyLength *int, includeArtifacts bool) (*a2a.Task, error)
	Put(ctx context.Context, task *a2a.Task) error
	Update(ctx context.Context, id string, mutator func(*a2a.Task) error) (*a2a.Task, error)
}

/*
EventProcessor is the per-session sink for events emitted by the executor
and the source for subscribers (C5). It is a hot, multi-subscriber
broadcast: a subscription attached before the first event sees everything;
one attached later only sees events emitted after it joined. All events
for a task are observed by every subscriber in emission order, since the
processor itself is the serialization point — sendMessage/sendTaskEvent
are called from a single goroutine (the executor's).
*/
type EventProcessor struct {
	taskID    string
	contextID string
	store     TaskStore

	mu          sync.Mutex
	subscribers map[chan a2a.Event]struct{}
	closed      bool
	terminal    bool
}

func NewEventProcessor(taskID, contextID string, store TaskStore) *EventProcessor {
	return &EventProcessor{
		taskID:      taskID,
		contextID:   contextID,
		store:       store,
		subscribers: make(map[chan a2a.Event]struct{}),
	}
}

// Subscribe attaches a new subscriber and returns a channel of events from
// this point forward (or from the beginning, if called before any event
// has been sent). The returned cancel func detaches the subscriber; it is
// safe to call more than once.
func (ep *EventProcessor) Subscribe() (events <-chan a2a.Event, cancel func()) {
	ch := make(chan a2a.Event, subscriberBuffer)

	ep.mu.Lock()
	if ep.closed {
		close(ch)
		ep.mu.Unlock()
		return ch, func() {}
	}
	ep.subscribers[ch] = struct{}{}
	ep.mu.Unlock()

	var once sync.Once
	cancelFn := func() {
		once.Do(func() {
			ep.mu.Lock()
			if _, ok := ep.subscribers[ch]; ok {
				delete(ep.subscribers, ch)
				close(ch)
			}
			ep.mu.Unlock()
		})
	}

	return ch, cancelFn
}

// SendMessage forwards a standalone agent Message to all live subscribers
// without mutating any stored task.
func (ep *EventProcessor) SendMessage(ctx context.Context, msg *a2a.Message) error {
	return ep.emit(ctx, a2a.MessageEvent{Message: msg}, false)
}

// SendTaskEvent applies the event's store side effects (if any) and
// forwards it to all live subscribers. final, for a status update, closes
// the stream after this event has been delivered.
func (ep *EventProcessor) SendTaskEvent(ctx context.Context, event a2a.Event) error {
	info := taskInfoOf(event)
	if info.TaskID != ep.taskID || info.ContextID != ep.contextID {
		return &InvalidEventException{Reason: "event taskId/contextId does not match this session"}
	}

	final := false

	switch e := event.(type) {
	case a2a.TaskEvent:
		if e.Task != nil {
			if err := ep.store.Put(ctx, e.Task); err != nil {
				return &TaskOperationException{TaskID: ep.taskID, Err: err}
			}
		}
	case a2a.TaskStatusUpdateEvent:
		final = e.Final
		updated, err := ep.store.Update(ctx, ep.taskID, func(task *a2a.Task) error {
			if task.Status.State.Terminal() && !final {
				return &InvalidTransition{TaskID: ep.taskID, From: string(task.Status.State), To: string(e.Status.State)}
			}
			task.Status = e.Status
			if e.Status.Message != nil {
				task.History = append(task.History, *e.Status.Message)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if final {
			log.Debug("event processor: task reached a terminal state", "task_id", ep.taskID, "snapshot", updated.String())
		}
	case a2a.TaskArtifactUpdateEvent:
		_, err := ep.store.Update(ctx, ep.taskID, func(task *a2a.Task) error {
			applyArtifact(task, e.Artifact)
			return nil
		})
		if err != nil {
			return err
		}
	}

	return ep.emit(ctx, event, final)
}

func (ep *EventProcessor) emit(_ context.Context, event a2a.Event, final bool) error {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return &InvalidEventException{Reason: "processor is closed"}
	}
	if ep.terminal {
		ep.mu.Unlock()
		return &InvalidEventException{Reason: "task already reached a terminal state"}
	}

	subs := make([]chan a2a.Event, 0, len(ep.subscribers))
	for ch := range ep.subscribers {
		subs = append(subs, ch)
	}
	if final {
		ep.terminal = true
	}
	ep.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			ep.disconnect(ch)
			log.Warn("event processor: disconnected slow subscriber", "task_id", ep.taskID)
		}
	}

	if final {
		ep.Close()
	}

	return nil
}

func (ep *EventProcessor) disconnect(ch chan a2a.Event) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if _, ok := ep.subscribers[ch]; ok {
		delete(ep.subscribers, ch)
		close(ch)
	}
}

// Close ends the event stream; no more events may be emitted afterward.
// Idempotent.
func (ep *EventProcessor) Close() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.closed {
		return
	}
	ep.closed = true

	for ch := range ep.subscribers {
		close(ch)
	}
	ep.subscribers = make(map[chan a2a.Event]struct{})
}

func taskInfoOf(event a2a.Event) a2a.TaskInfo {
	if provider, ok := event.(a2a.TaskInfoProvider); ok {
		return provider.TaskInfo()
	}
	return a2a.TaskInfo{}
}

func applyArtifact(task *a2a.Task, artifact a2a.Artifact) {
	for i := range task.Artifacts {
		if task.Artifacts[i].ArtifactID == artifact.ArtifactID {
			if artifact.Append {
				task.Artifacts[i].Parts = append(task.Artifacts[i].Parts, artifact.Parts...)
			} else {
				task.Artifacts[i] = artifact
			}
			return
		}
	}
	task.Artifacts = append(task.Artifacts, artifact)
}
