package a2a

import (
	"encoding/json"
	"fmt"
)

// TaskInfo carries the (taskId, contextId) pair that correlates an event,
// a message, or a request context to the task it belongs to.
type TaskInfo struct {
	TaskID    string
	ContextID string
}

// TaskInfoProvider is implemented by anything that can report which
// task/context it belongs to, for interceptors and validation that need to
// correlate across types without a type switch.
type TaskInfoProvider interface {
	TaskInfo() TaskInfo
}

/*
Event is the sum type emitted by an Agent Executor through the Event
Processor: a Task snapshot, a status update, an artifact update, or a
standalone Message. Every variant except a standalone Message carries a
taskId and contextId; EventKind is the wire discriminator.
*/
type Event interface {
	eventKind() EventKind
}

type EventKind string

const (
	EventKindTask           EventKind = "task"
	EventKindStatusUpdate   EventKind = "status-update"
	EventKindArtifactUpdate EventKind = "artifact-update"
	EventKindMessage        EventKind = "message"
)

// TaskEvent is a full snapshot of a task, emitted e.g. on creation.
type TaskEvent struct {
	Task *Task
}

func (TaskEvent) eventKind() EventKind { return EventKindTask }

func (e TaskEvent) TaskInfo() TaskInfo {
	if e.Task == nil {
		return TaskInfo{}
	}
	return TaskInfo{TaskID: e.Task.ID, ContextID: e.Task.ContextID}
}

// MarshalJSON flattens the wrapped Task and tags it with the wire
// discriminator, so a client that only sees the JSON can tell a task
// snapshot apart from a status/artifact update without out-of-band context.
func (e TaskEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		*Task
		Kind EventKind `json:"kind"`
	}
	return json.Marshal(wire{Task: e.Task, Kind: EventKindTask})
}

/*
TaskStatusUpdateEvent informs the Event Processor (and its subscribers) of
a status transition. Final marks the last event for a task: after
forwarding it, the Event Processor closes the stream.
*/
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (TaskStatusUpdateEvent) eventKind() EventKind { return EventKindStatusUpdate }

func (e TaskStatusUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

func (e TaskStatusUpdateEvent) MarshalJSON() ([]byte, error) {
	type alias TaskStatusUpdateEvent
	return json.Marshal(struct {
		alias
		Kind EventKind `json:"kind"`
	}{alias: alias(e), Kind: EventKindStatusUpdate})
}

// TaskArtifactUpdateEvent delivers a new or updated artifact for a task.
type TaskArtifactUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Artifact  Artifact       `json:"artifact"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (TaskArtifactUpdateEvent) eventKind() EventKind { return EventKindArtifactUpdate }

func (e TaskArtifactUpdateEvent) TaskInfo() TaskInfo {
	return TaskInfo{TaskID: e.TaskID, ContextID: e.ContextID}
}

func (e TaskArtifactUpdateEvent) MarshalJSON() ([]byte, error) {
	type alias TaskArtifactUpdateEvent
	return json.Marshal(struct {
		alias
		Kind EventKind `json:"kind"`
	}{alias: alias(e), Kind: EventKindArtifactUpdate})
}

// MessageEvent wraps a standalone agent Message not bound to any task.
type MessageEvent struct {
	Message *Message
}

func (MessageEvent) eventKind() EventKind { return EventKindMessage }

func (e MessageEvent) TaskInfo() TaskInfo {
	if e.Message == nil {
		return TaskInfo{}
	}
	return e.Message.TaskInfo()
}

func (e MessageEvent) MarshalJSON() ([]byte, error) {
	type wire struct {
		*Message
		Kind EventKind `json:"kind"`
	}
	return json.Marshal(wire{Message: e.Message, Kind: EventKindMessage})
}

// EventKindOf returns the wire discriminator for any Event value; useful
// for transports that need to tag frames without a type switch per event.
func EventKindOf(e Event) EventKind {
	return e.eventKind()
}

// DecodeEvent inspects the "kind" discriminator of a wire-encoded event and
// decodes it into the matching Event variant. Used by anything on the
// receiving end of a stream (a client, a push notification receiver) that
// only has the JSON payload and the event kind to go on.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var probe struct {
		Kind EventKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.Kind {
	case EventKindTask:
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, err
		}
		return TaskEvent{Task: &task}, nil
	case EventKindStatusUpdate:
		var event TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, err
		}
		return event, nil
	case EventKindArtifactUpdate:
		var event TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, err
		}
		return event, nil
	case EventKindMessage:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return MessageEvent{Message: &msg}, nil
	default:
		return nil, fmt.Errorf("a2a: unknown event kind %q", probe.Kind)
	}
}
