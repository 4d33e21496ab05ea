package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
)

// newTestA2AServer is a hand-rolled HTTP server standing in for the real
// transport, so Client can be exercised without booting fiber.
func newTestA2AServer(t *testing.T) (*httptest.Server, error) {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")

		switch req.Method {
		case "message/stream":
			task := NewTask("task-1", "ctx-1")
			_ = json.NewEncoder(w).Encode(jsonrpc.NewResultResponse(req.ID, TaskEvent{Task: task}))
		case "tasks/get":
			var params TaskQueryParams
			_ = json.Unmarshal(req.Params, &params)
			task := NewTask(params.ID, "ctx-1")
			task.Status.State = TaskStateCompleted
			_ = json.NewEncoder(w).Encode(jsonrpc.NewResultResponse(req.ID, task))
		case "tasks/cancel":
			var params TaskIDParams
			_ = json.Unmarshal(req.Params, &params)
			task := NewTask(params.ID, "ctx-1")
			task.Status.State = TaskStateCanceled
			_ = json.NewEncoder(w).Encode(jsonrpc.NewResultResponse(req.ID, task))
		case "tasks/pushNotificationConfig/set":
			var cfg TaskPushNotificationConfig
			_ = json.Unmarshal(req.Params, &cfg)
			_ = json.NewEncoder(w).Encode(jsonrpc.NewResultResponse(req.ID, cfg))
		default:
			http.Error(w, "unknown method", http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		w.Header().Set("Content-Type", "text/event-stream")

		working := TaskStatusUpdateEvent{
			TaskID: "task-1", ContextID: "ctx-1",
			Status: TaskStatus{State: TaskStateWorking},
		}
		writeSSEFrame(t, w, flusher, working)

		completed := TaskStatusUpdateEvent{
			TaskID: "task-1", ContextID: "ctx-1",
			Status: TaskStatus{State: TaskStateCompleted},
			Final:  true,
		}
		writeSSEFrame(t, w, flusher, completed)
	})

	var srv *httptest.Server
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("listener not permitted: %v", r)
			}
		}()
		srv = httptest.NewServer(mux)
	}()

	return srv, err
}

func writeSSEFrame(t *testing.T, w http.ResponseWriter, flusher http.Flusher, event TaskStatusUpdateEvent) {
	t.Helper()
	b, err := json.Marshal(event)
	require.NoError(t, err)

	fmt.Fprintf(w, "event: %s\n", EventKindStatusUpdate)
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}

func TestClient_GetTask(t *testing.T) {
	srv, err := newTestA2AServer(t)
	if err != nil {
		t.Skip("network disabled; skipping client test")
	}
	defer srv.Close()

	client := NewClient(srv.URL)

	task, err := client.GetTask(context.Background(), TaskQueryParams{TaskIDParams: TaskIDParams{ID: "task-1"}})
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
}

func TestClient_CancelTask(t *testing.T) {
	srv, err := newTestA2AServer(t)
	if err != nil {
		t.Skip("network disabled; skipping client test")
	}
	defer srv.Close()

	client := NewClient(srv.URL)

	task, err := client.CancelTask(context.Background(), TaskIDParams{ID: "task-1"})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCanceled, task.Status.State)
}

func TestClient_SetPushNotificationConfig(t *testing.T) {
	srv, err := newTestA2AServer(t)
	if err != nil {
		t.Skip("network disabled; skipping client test")
	}
	defer srv.Close()

	client := NewClient(srv.URL)

	cfg, err := client.SetPushNotificationConfig(context.Background(), TaskPushNotificationConfig{
		TaskID:                 "task-1",
		PushNotificationConfig: PushNotificationConfig{URL: "https://example.com/hook"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", cfg.PushNotificationConfig.URL)
}

func TestClient_StreamMessage(t *testing.T) {
	srv, err := newTestA2AServer(t)
	if err != nil {
		t.Skip("network disabled; skipping client test")
	}
	defer srv.Close()

	client := NewClient(srv.URL)

	events := make(chan Event, 8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.StreamMessage(ctx, MessageSendParams{Message: NewTextMessage(RoleUser, "hi")}, events)
	require.NoError(t, err)
	close(events)

	var kinds []EventKind
	for event := range events {
		kinds = append(kinds, EventKindOf(event))
	}

	require.Len(t, kinds, 3)
	assert.Equal(t, EventKindTask, kinds[0])
	assert.Equal(t, EventKindStatusUpdate, kinds[1])
	assert.Equal(t, EventKindStatusUpdate, kinds[2])
}
