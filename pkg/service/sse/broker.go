package sse

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// SSEBroker fans a2a.Event values (and anything else JSON-serializable) out
// to subscribed HTTP clients as Server-Sent Events. Every frame sent through
// a broker is pre-formatted as a single "event: <kind>\ndata: <json>\n\n"
// unit, so Subscribe never needs to inspect message contents.
type SSEBroker struct {
	mu          sync.RWMutex
	clients     map[chan []byte]struct{}
	taskBrokers map[string]*SSEBroker
	closed      bool
	testMode    bool
}

func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients:     make(map[chan []byte]struct{}),
		taskBrokers: make(map[string]*SSEBroker),
	}
}

// NewTestSSEBroker returns a broker with a shorter heartbeat interval, for
// tests that want to observe a heartbeat without waiting 25 seconds.
func NewTestSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients:     make(map[chan []byte]struct{}),
		taskBrokers: make(map[string]*SSEBroker),
		testMode:    true,
	}
}

/*
GetOrCreateTaskBroker returns the broker for a single task's event stream
(message/stream, tasks/resubscribe), creating it on first use. Clients
subscribing to a specific taskId via /events only see that task's events.
*/
func (broker *SSEBroker) GetOrCreateTaskBroker(taskID string) *SSEBroker {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return nil
	}

	if taskBroker, exists := broker.taskBrokers[taskID]; exists {
		return taskBroker
	}

	taskBroker := &SSEBroker{
		clients:  make(map[chan []byte]struct{}),
		testMode: broker.testMode,
	}
	broker.taskBrokers[taskID] = taskBroker
	return taskBroker
}

// BroadcastToTask sends v to every client subscribed to taskID's broker, if
// one exists; it is a no-op if the task has no subscribers yet.
func (broker *SSEBroker) BroadcastToTask(taskID string, v any) error {
	broker.mu.RLock()
	taskBroker, exists := broker.taskBrokers[taskID]
	broker.mu.RUnlock()

	if !exists || broker.closed {
		return nil
	}

	return taskBroker.Broadcast(v)
}

// CloseTaskBroker closes a task's broker and removes it from the registry,
// once the Event Processor has delivered that task's final event.
func (broker *SSEBroker) CloseTaskBroker(taskID string) {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if taskBroker, exists := broker.taskBrokers[taskID]; exists {
		taskBroker.Close()
		delete(broker.taskBrokers, taskID)
	}
}

// Subscribe upgrades the HTTP connection to an SSE stream and blocks until
// the client disconnects or the broker closes.
func (broker *SSEBroker) Subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 8)
	broker.mu.Lock()

	if broker.closed {
		broker.mu.Unlock()
		http.Error(w, "broker closed", http.StatusGone)
		return
	}

	broker.clients[ch] = struct{}{}
	broker.mu.Unlock()

	tickerInterval := 25 * time.Second
	if broker.testMode {
		tickerInterval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			broker.remove(ch)
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()
		}
	}
}

// Broadcast marshals v and sends it to every connected client. If v is an
// a2a.Event, its wire discriminator (a2a.EventKindOf) becomes the SSE event
// type; everything else defaults to "message".
func (broker *SSEBroker) Broadcast(v any) error {
	eventType := "message"
	if event, ok := v.(a2a.Event); ok {
		eventType = string(a2a.EventKindOf(event))
	}
	return broker.BroadcastWithEventType(eventType, v)
}

// BroadcastWithEventType marshals v and sends it to every connected client
// tagged with the given SSE event type.
func (broker *SSEBroker) BroadcastWithEventType(eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame := frameSSE(eventType, data)

	broker.mu.RLock()
	defer broker.mu.RUnlock()

	if broker.closed {
		return nil
	}

	for ch := range broker.clients {
		select {
		case ch <- frame:
		default:
			// slow client, drop the frame rather than block the broadcaster.
		}
	}

	return nil
}

func frameSSE(eventType string, data []byte) []byte {
	frame := make([]byte, 0, len(eventType)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, eventType...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame
}

// Close disconnects all clients and prevents further subscriptions.
func (broker *SSEBroker) Close() {
	broker.mu.Lock()
	defer broker.mu.Unlock()

	if broker.closed {
		return
	}

	broker.closed = true

	for ch := range broker.clients {
		close(ch)
	}

	broker.clients = map[chan []byte]struct{}{}
}

func (broker *SSEBroker) remove(ch chan []byte) {
	broker.mu.Lock()

	if _, ok := broker.clients[ch]; ok {
		delete(broker.clients, ch)
		close(ch)
	}

	broker.mu.Unlock()
}
